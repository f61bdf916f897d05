package dsnaperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Run("non-block scoped", func(t *testing.T) {
		err := New(KindIO, errors.New("disk full"))
		assert.Equal(t, "IO: disk full", err.Error())
	})

	t.Run("block scoped", func(t *testing.T) {
		err := NewBlock(KindChecksum, errors.New("mismatch"), 42)
		assert.Equal(t, "Checksum: block 42: mismatch", err.Error())
	})
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindTransient, cause)

	assert.True(t, errors.Is(err, cause))

	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, KindTransient, target.Kind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTransient, KindOf(New(KindTransient, errors.New("x"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsTransient(New(KindTransient, errors.New("x"))))
	assert.False(t, IsTransient(New(KindIO, errors.New("x"))))

	assert.True(t, IsOutputExists(New(KindOutputExists, errors.New("x"))))
	assert.True(t, IsCancelled(New(KindCancelled, errors.New("x"))))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"output exists", New(KindOutputExists, errors.New("x")), 1},
		{"not found", New(KindNotFound, errors.New("x")), 1},
		{"unauthorized", New(KindUnauthorized, errors.New("x")), 1},
		{"transient", New(KindTransient, errors.New("x")), 2},
		{"checksum", New(KindChecksum, errors.New("x")), 2},
		{"io", New(KindIO, errors.New("x")), 2},
		{"plain error", errors.New("x"), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OutputExists", KindOutputExists.String())
	assert.Equal(t, "Unknown(99)", Kind(99).String())
}

func TestWrappedErrorIs(t *testing.T) {
	err := fmt.Errorf("get block: %w", New(KindTransient, errors.New("throttled")))
	assert.True(t, IsTransient(err))
}
