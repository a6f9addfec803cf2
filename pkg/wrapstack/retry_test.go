package wrapstack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), fastPolicy(), "test", func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, kotaerr.NewIOTransient("test", errors.New("transient"))
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("retryDo returned error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryDoDoesNotRetryNonTransient(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), fastPolicy(), "test", func() (int, error) {
		attempts++
		return 0, kotaerr.NewInvalidInput("test", "bad input")
	})
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.InvalidInput {
		t.Errorf("err = %v, want InvalidInput", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", attempts)
	}
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), fastPolicy(), "test", func() (int, error) {
		attempts++
		return 0, kotaerr.NewIOTransient("test", errors.New("always fails"))
	})
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.IOTransient {
		t.Errorf("err = %v, want IOTransient", err)
	}
	if attempts != fastPolicy().MaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, fastPolicy().MaxAttempts)
	}
}
