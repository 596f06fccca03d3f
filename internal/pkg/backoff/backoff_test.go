package backoff

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type tempErr struct{}

func (tempErr) Error() string   { return "try again" }
func (tempErr) Temporary() bool { return true }

func TestDoRetriesTemporaryErrors(t *testing.T) {
	calls, retries := 0, 0
	p := Policy{Attempts: 3, Base: time.Millisecond, OnRetry: func(int, time.Duration, error) { retries++ }}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("publish: %w", tempErr{})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("calls=%d retries=%d, want 3 and 2", calls, retries)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	boom := errors.New("bad topic")
	err := Policy{Attempts: 5, Base: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Policy{Attempts: 2, Base: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDoWaitsGrowWithinBounds(t *testing.T) {
	var waits []time.Duration
	p := Policy{Attempts: 4, Base: 10 * time.Millisecond, MaxWait: 25 * time.Millisecond, OnRetry: func(_ int, wait time.Duration, _ error) {
		waits = append(waits, wait)
	}}
	_ = p.Do(context.Background(), func(context.Context) error { return tempErr{} })
	if len(waits) != 3 {
		t.Fatalf("expected 3 waits, got %v", waits)
	}
	for i, w := range waits {
		if w < 8*time.Millisecond || w > 30*time.Millisecond {
			t.Fatalf("wait %d = %v out of range", i, w)
		}
	}
}

func TestDoStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{Attempts: 5, Base: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return tempErr{}
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
