package dbretry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestpractice116/liminal-umbrella/internal/database/dbretry"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	t.Run("nil is not retryable", func(t *testing.T) {
		t.Parallel()
		assert.False(t, dbretry.IsRetryableError(nil))
	})

	t.Run("network failures are retryable", func(t *testing.T) {
		t.Parallel()

		cases := []string{
			"read tcp 127.0.0.1:5432: connection reset by peer",
			"write tcp 127.0.0.1:5432: broken pipe",
			"dial tcp 127.0.0.1:5432: connection refused",
			"pgdriver: no connection available",
			"read tcp 127.0.0.1:5432: i/o timeout",
			"unexpected EOF",
		}

		for _, msg := range cases {
			assert.True(t, dbretry.IsRetryableError(errors.New(msg)), msg)
		}
	})

	t.Run("context errors are retryable", func(t *testing.T) {
		t.Parallel()

		assert.True(t, dbretry.IsRetryableError(context.DeadlineExceeded))
		assert.True(t, dbretry.IsRetryableError(fmt.Errorf("query: %w", context.Canceled)))
	})

	t.Run("constraint violations are not retryable", func(t *testing.T) {
		t.Parallel()

		assert.False(t, dbretry.IsRetryableError(errors.New("duplicate key value violates unique constraint")))
		assert.False(t, dbretry.IsRetryableError(errors.New("null value in column violates not-null constraint")))
	})
}

func TestOperation(t *testing.T) {
	t.Parallel()

	t.Run("non-retryable errors fail immediately", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		_, err := dbretry.Operation(context.Background(), func(context.Context) (int, error) {
			attempts++

			return 0, errors.New("syntax error at or near SELECT")
		})

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retryable errors are retried until success", func(t *testing.T) {
		t.Parallel()

		attempts := 0

		result, err := dbretry.Operation(context.Background(), func(context.Context) (int, error) {
			attempts++
			if attempts < 2 {
				return 0, errors.New("dial tcp: connection refused")
			}

			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 42, result)
	})

	t.Run("success passes the value through untouched", func(t *testing.T) {
		t.Parallel()

		result, err := dbretry.Operation(context.Background(), func(context.Context) (string, error) {
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})
}

func TestNoResult(t *testing.T) {
	t.Parallel()

	called := false

	err := dbretry.NoResult(context.Background(), func(context.Context) error {
		called = true

		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}
