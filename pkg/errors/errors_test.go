package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(InvalidInput, "bad genome")
	require.Error(t, err)
	assert.Equal(t, "bad genome", err.Error())

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, InvalidInput, e.Code())
}

func TestNewf(t *testing.T) {
	err := Newf(InvalidRunState, "cannot start from %s", "Terminated")
	assert.Equal(t, "cannot start from Terminated", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wraps and preserves original", func(t *testing.T) {
		original := stderrors.New("disk full")
		err := Wrap(original, Unknown, "recording snapshot")
		require.Error(t, err)
		assert.Equal(t, "recording snapshot: disk full", err.Error())
		assert.Equal(t, original, stderrors.Unwrap(err))
	})

	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, Unknown, "noop"))
	})
}

func TestWithFields(t *testing.T) {
	t.Run("adds fields to structured error", func(t *testing.T) {
		err := WithFields(New(DimensionMismatch, "length mismatch"), Fields{
			"expected": 2,
			"actual":   3,
		})
		var e *Error
		require.True(t, stderrors.As(err, &e))
		assert.Equal(t, DimensionMismatch, e.Code())
		assert.Equal(t, 2, e.Fields()["expected"])
		assert.Equal(t, 3, e.Fields()["actual"])
	})

	t.Run("merges without mutating the original", func(t *testing.T) {
		base := WithFields(New(InvalidInput, "base"), Fields{"a": 1})
		derived := WithFields(base, Fields{"b": 2})

		var be, de *Error
		require.True(t, stderrors.As(base, &be))
		require.True(t, stderrors.As(derived, &de))
		assert.NotContains(t, be.Fields(), "b")
		assert.Contains(t, de.Fields(), "a")
		assert.Contains(t, de.Fields(), "b")
	})

	t.Run("wraps foreign errors", func(t *testing.T) {
		err := WithFields(fmt.Errorf("plain"), Fields{"k": "v"})
		var e *Error
		require.True(t, stderrors.As(err, &e))
		assert.Equal(t, Unknown, e.Code())
	})

	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, WithFields(nil, Fields{"k": "v"}))
	})
}

func TestIs(t *testing.T) {
	err := New(InsufficientViableGenomes, "bootstrap failed")
	assert.True(t, stderrors.Is(err, New(InsufficientViableGenomes, "any message")))
	assert.False(t, stderrors.Is(err, New(Timeout, "any message")))
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "direct match",
			err:  New(ConfigurationInvalid, "bad config"),
			code: ConfigurationInvalid,
			want: true,
		},
		{
			name: "match deep in the chain",
			err:  Wrap(Wrap(New(Timeout, "inner"), Unknown, "middle"), InvalidInput, "outer"),
			code: Timeout,
			want: true,
		},
		{
			name: "no match",
			err:  New(InvalidInput, "nope"),
			code: Timeout,
			want: false,
		},
		{
			name: "foreign error",
			err:  stderrors.New("plain"),
			code: Unknown,
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			code: Unknown,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCode(tt.err, tt.code))
		})
	}
}

func TestCheckContext(t *testing.T) {
	t.Run("live context passes", func(t *testing.T) {
		assert.NoError(t, CheckContext(context.Background(), "evaluation"))
	})

	t.Run("canceled context fails with Canceled code", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := CheckContext(ctx, "evaluation")
		require.Error(t, err)
		assert.True(t, HasCode(err, Canceled))
		assert.Contains(t, err.Error(), "evaluation canceled")
	})
}
