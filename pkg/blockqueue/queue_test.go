package blockqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	q := New(4)
	q.Put(Descriptor{Index: 1, Token: "t1"})
	q.Put(Descriptor{Index: 2, Token: "t2"})

	d, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, Descriptor{Index: 1, Token: "t1"}, d)

	d, ok = q.Get()
	require.True(t, ok)
	assert.Equal(t, Descriptor{Index: 2, Token: "t2"}, d)
}

func TestCloseDrainsRemainingThenSignalsEnd(t *testing.T) {
	q := New(4)
	q.Put(Descriptor{Index: 1})
	q.Put(Descriptor{Index: 2})
	q.Close()

	seen := map[int64]bool{}
	for {
		d, ok := q.Get()
		if !ok {
			break
		}
		seen[d.Index] = true
	}
	assert.Len(t, seen, 2)
	assert.True(t, seen[1])
	assert.True(t, seen[2])

	_, ok := q.Get()
	assert.False(t, ok, "Get after drained close must keep returning false")
}

func TestCloseWakesBlockedConsumers(t *testing.T) {
	q := New(1)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond) // let the goroutine block on Get
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("blocked consumer was not woken by Close")
	}
}

func TestPutBlocksWhenFull(t *testing.T) {
	q := New(1)
	q.Put(Descriptor{Index: 0})

	putDone := make(chan struct{})
	go func() {
		q.Put(Descriptor{Index: 1})
		close(putDone)
	}()

	select {
	case <-putDone:
		t.Fatal("Put on a full queue should have blocked")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = q.Get()
	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("Put should unblock once capacity frees up")
	}
}

func TestConcurrentProducersAndConsumers(t *testing.T) {
	q := New(8)
	const total = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Put(Descriptor{Index: int64(i)})
		}
		q.Close()
	}()

	seen := map[int64]bool{}
	var mu sync.Mutex
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				d, ok := q.Get()
				if !ok {
					return
				}
				mu.Lock()
				seen[d.Index] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	consumers.Wait()
	assert.Len(t, seen, total, "every descriptor must be consumed exactly once")
}
