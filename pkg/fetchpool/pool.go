// Package fetchpool implements the worker pool (C5): a fixed set of
// goroutines that drain pkg/blockqueue, fetch each block through pkg/ebs
// (retried via internal/retry), verify it with pkg/checksum, and write it
// with pkg/sparsefile. The first fatal error published by any worker
// triggers a coordinated shutdown of the rest.
package fetchpool

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/internal/retry"
	"github.com/RhinoSecurityLabs/dsnap/pkg/blockqueue"
	"github.com/RhinoSecurityLabs/dsnap/pkg/checksum"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
	"github.com/RhinoSecurityLabs/dsnap/pkg/sparsefile"
)

// Fetcher is the single-block fetch the pool needs, narrowed to an
// interface so tests can substitute an in-memory fake. pkg/ebs.Client does
// not implement it directly; pkg/snapshot.ClientAdapter adapts it.
type Fetcher interface {
	GetBlock(ctx context.Context, snapshotID string, index int64, token string) (data []byte, checksumValue string, err error)
}

// Params configures a single pool run.
type Params struct {
	SnapshotID  string
	OutputPath  string
	BlockSize   int64
	NumWorkers  int
	RetryPolicy retry.Policy
}

// Result summarizes a completed (successful) run.
type Result struct {
	BlocksWritten int64
}

// firstError is a write-once error cell: only the first Store call's error
// is retained, matching spec.md's "orchestrator reports that error, not any
// subsequent ones" propagation policy. Storing an error also closes stopCh
// exactly once, which wakes any worker blocked waiting for its next
// descriptor, and aborts q's Put side so the producer feeding it doesn't
// leak blocked on a full queue forever — spec.md's "pool closes the queue
// with drained, remaining workers see end-of-queue and exit" shutdown, done
// via stop signals instead of racing Queue.Close against an in-flight
// producer Put.
type firstError struct {
	mu      sync.Mutex
	err     error
	stopCh  chan struct{}
	stopped bool
	q       *blockqueue.Queue
}

func newFirstError(q *blockqueue.Queue) *firstError {
	return &firstError{stopCh: make(chan struct{}), q: q}
}

func (f *firstError) Store(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
	if !f.stopped {
		f.stopped = true
		close(f.stopCh)
		f.q.Abort()
	}
}

func (f *firstError) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Run starts params.NumWorkers goroutines consuming from q and blocks until
// either the queue is drained by all workers or a fatal error is published.
// On a fatal error, Run aborts q's Put side so a producer concurrently
// feeding q (pkg/snapshot's feeder goroutine) stops blocking on a full
// queue instead of leaking; q itself is still only ever Close()'d by that
// producer. Run returns the total blocks written and the first fatal
// error, if any.
func Run(ctx context.Context, fetcher Fetcher, q *blockqueue.Queue, total int64, p Params) (Result, error) {
	var blocksWritten int64
	errs := newFirstError(q)

	numWorkers := p.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 30
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			defer wg.Done()
			runWorker(ctx, workerID, fetcher, q, p, &blocksWritten, total, errs)
		}(w)
	}
	wg.Wait()

	return Result{BlocksWritten: atomic.LoadInt64(&blocksWritten)}, errs.Load()
}

func runWorker(ctx context.Context, workerID int, fetcher Fetcher, q *blockqueue.Queue, p Params, blocksWritten *int64, total int64, errs *firstError) {
	for {
		var d blockqueue.Descriptor
		var ok bool

		select {
		case <-errs.stopCh:
			return
		case <-ctx.Done():
			errs.Store(dsnaperr.New(dsnaperr.KindCancelled, ctx.Err()))
			return
		case d, ok = <-q.Chan():
			if !ok {
				return
			}
		}

		if err := fetchVerifyWrite(ctx, fetcher, d, p); err != nil {
			errs.Store(err)
			logger.Error("worker aborting on fatal error",
				logger.WorkerID(workerID),
				logger.BlockIndex(d.Index),
				logger.Err(err),
			)
			return
		}

		n := atomic.AddInt64(blocksWritten, 1)
		fmt.Fprintf(os.Stderr, "Saved block %d of %d\r", n, total)
	}
}

func fetchVerifyWrite(ctx context.Context, fetcher Fetcher, d blockqueue.Descriptor, p Params) error {
	var data []byte
	var digest string

	err := retry.Do(ctx, p.RetryPolicy, fmt.Sprintf("get_block(%s, %d)", p.SnapshotID, d.Index), func(ctx context.Context) error {
		var innerErr error
		data, digest, innerErr = fetcher.GetBlock(ctx, p.SnapshotID, d.Index, d.Token)
		return innerErr
	})
	if err != nil {
		return err
	}

	if !checksum.Verify(data, digest) {
		return dsnaperr.NewBlock(dsnaperr.KindChecksum, fmt.Errorf("checksum mismatch"), d.Index)
	}

	offset := d.Index * p.BlockSize
	if _, err := sparsefile.WriteAt(p.OutputPath, offset, data); err != nil {
		return err
	}
	return nil
}
