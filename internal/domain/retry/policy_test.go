package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartsite/edge-gateway/internal/domain/retry"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name        string
		policy      retry.Policy
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{
			name: "fixed backoff - attempt 1",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffFixed,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        1 * time.Second,
			},
			attempt:     1,
			expectedMin: 100 * time.Millisecond,
			expectedMax: 100 * time.Millisecond,
		},
		{
			name: "linear backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffLinear,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        1 * time.Second,
			},
			attempt:     3,
			expectedMin: 300 * time.Millisecond,
			expectedMax: 300 * time.Millisecond,
		},
		{
			name: "exponential backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffExponential,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        10 * time.Second,
			},
			attempt:     3,
			expectedMin: 400 * time.Millisecond,
			expectedMax: 400 * time.Millisecond,
		},
		{
			name: "exponential backoff capped at max delay",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffExponential,
				InitialDelay:    1 * time.Second,
				MaxDelay:        5 * time.Second,
			},
			attempt:     10,
			expectedMin: 5 * time.Second,
			expectedMax: 5 * time.Second,
		},
		{
			name: "jitter stays within bounds",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffExponential,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        10 * time.Second,
				JitterFactor:    0.25,
			},
			attempt:     2,
			expectedMin: 150 * time.Millisecond,
			expectedMax: 250 * time.Millisecond,
		},
		{
			name:        "attempt zero is immediate",
			policy:      retry.DefaultPolicy(),
			attempt:     0,
			expectedMin: 0,
			expectedMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := tt.policy.CalculateDelay(tt.attempt)
			if delay < tt.expectedMin || delay > tt.expectedMax {
				t.Errorf("CalculateDelay(%d) = %v, want between %v and %v",
					tt.attempt, delay, tt.expectedMin, tt.expectedMax)
			}
		})
	}
}

func TestExecuteWithResult_SucceedsAfterTransientFailures(t *testing.T) {
	policy := retry.Policy{MaxRetries: 3}
	calls := 0

	result, err := retry.ExecuteWithResult(context.Background(), policy, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %q, want %q", result, "ok")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithResult_ExhaustsRetries(t *testing.T) {
	policy := retry.Policy{MaxRetries: 2}
	wantErr := errors.New("still broken")
	calls := 0

	_, err := retry.ExecuteWithResult(context.Background(), policy, func(context.Context, int) (int, error) {
		calls++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (initial attempt plus two retries)", calls)
	}
}

func TestExecuteWithResult_PermanentErrorStopsImmediately(t *testing.T) {
	policy := retry.Policy{MaxRetries: 5}
	terminal := errors.New("token rejected")
	calls := 0

	_, err := retry.ExecuteWithResult(context.Background(), policy, func(context.Context, int) (int, error) {
		calls++
		return 0, retry.Permanent(terminal)
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("err = %v, want wrapped %v", err, terminal)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteWithResult_ContextCancellation(t *testing.T) {
	policy := retry.Policy{
		MaxRetries:      5,
		InitialDelay:    time.Hour,
		BackoffStrategy: retry.BackoffFixed,
		MaxDelay:        time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := retry.ExecuteWithResult(ctx, policy, func(context.Context, int) (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestIsPermanent(t *testing.T) {
	if retry.IsPermanent(errors.New("plain")) {
		t.Error("plain error reported permanent")
	}
	if !retry.IsPermanent(retry.Permanent(errors.New("wrapped"))) {
		t.Error("wrapped error not reported permanent")
	}
	if retry.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
