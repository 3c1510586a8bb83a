package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func zeroJitter() float64 { return 0 }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	rec := &sleepRecorder{}
	p := Policy{MaxRetries: 3, BackoffFactor: 2, Jitter: zeroJitter, Sleep: rec.sleep}
	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("want ok after 3 calls got=%q calls=%d", got, calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("waits: want=%v got=%v", want, rec.waits)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Fatalf("wait %d: want=%s got=%s", i, want[i], rec.waits[i])
		}
	}
}

func TestDoReturnsLastErrorWithoutFinalSleep(t *testing.T) {
	rec := &sleepRecorder{}
	p := Policy{MaxRetries: 3, BackoffFactor: 2, Jitter: zeroJitter, Sleep: rec.sleep}
	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("attempt failed")
	})
	if err == nil || err.Error() != "attempt failed" {
		t.Fatalf("want last error got=%v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	if len(rec.waits) != 2 {
		t.Fatalf("sleeps: want=2 got=%d", len(rec.waits))
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	rec := &sleepRecorder{}
	fatal := errors.New("fatal")
	p := Default().Only(func(err error) bool { return !errors.Is(err, fatal) })
	p.Sleep = rec.sleep
	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("want fatal got=%v", err)
	}
	if calls != 1 || len(rec.waits) != 0 {
		t.Fatalf("want one call and no sleep got calls=%d sleeps=%d", calls, len(rec.waits))
	}
}

func TestDoHonorsContextDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxRetries: 3, Jitter: zeroJitter}
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled got=%v", err)
	}
}

func TestWaitAddsJitter(t *testing.T) {
	p := Policy{BackoffFactor: 2, Jitter: func() float64 { return 0.5 }}
	if got := p.Wait(2); got != 4500*time.Millisecond {
		t.Fatalf("wait: want=4.5s got=%s", got)
	}
}
