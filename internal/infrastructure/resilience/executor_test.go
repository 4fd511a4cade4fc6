package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func retryAll(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func retryNone(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteRetriesRetryableFailures(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	wantErr := errors.New("still down")
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	}, retryAll)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteDoesNotRetryTerminalFailures(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, retryNone)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteHonorsCanceledContext(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := executor.Execute(ctx, "op", func(context.Context) error {
		calls++
		return nil
	}, retryAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("canceled context must not run the operation, calls = %d", calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	policy := fastPolicy()
	policy.RetryMaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 3
	policy.BreakerFailureRatio = 0.5
	policy.BreakerOpenTimeout = time.Minute
	executor := NewExecutor(policy)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "flaky", func(context.Context) error {
			return boom
		}, retryNone)
	}

	err := executor.Execute(context.Background(), "flaky", func(context.Context) error {
		t.Fatalf("open breaker must not run the operation")
		return nil
	}, retryNone)
	if !IsCircuitOpen(err) {
		t.Fatalf("err = %v, want open-circuit error", err)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	policy := fastPolicy()
	policy.RetryMaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 2
	executor := NewExecutor(policy)

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	for i := 0; i < 5; i++ {
		_ = executor.Execute(context.Background(), "benign", func(context.Context) error {
			return errors.New("client error")
		}, classifier)
	}

	ran := false
	_ = executor.Execute(context.Background(), "benign", func(context.Context) error {
		ran = true
		return nil
	}, classifier)
	if !ran {
		t.Fatalf("unrecorded failures must not trip the breaker")
	}
}

func TestBreakersAreIsolatedPerOperation(t *testing.T) {
	policy := fastPolicy()
	policy.RetryMaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 2
	executor := NewExecutor(policy)

	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "broken", func(context.Context) error {
			return errors.New("down")
		}, retryNone)
	}

	err := executor.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, retryNone)
	if err != nil {
		t.Fatalf("unrelated operation tripped: %v", err)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	executor := NewExecutor(Policy{})
	def := DefaultPolicy()

	if executor.policy.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("RetryMaxAttempts = %d", executor.policy.RetryMaxAttempts)
	}
	if executor.policy.RetryInitialBackoff != def.RetryInitialBackoff {
		t.Fatalf("RetryInitialBackoff = %v", executor.policy.RetryInitialBackoff)
	}
	if executor.policy.BreakerMinRequests != def.BreakerMinRequests {
		t.Fatalf("BreakerMinRequests = %d", executor.policy.BreakerMinRequests)
	}
}
