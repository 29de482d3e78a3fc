package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInvalidPolicyParam(t *testing.T) {
	testCases := []struct {
		name   string
		policy Policy
	}{
		{
			name:   "backoff: growth factor too small",
			policy: &Backoff{Base: 100 * time.Millisecond, Growth: 0.9, Jitter: 0.1},
		},
		{
			name:   "backoff: jitter amplitude too large",
			policy: &Backoff{Base: 100 * time.Millisecond, Growth: 1.2, Jitter: 1.5},
		},
		{
			name:   "backoff: jitter amplitude negative",
			policy: &Backoff{Base: 100 * time.Millisecond, Growth: 1.2, Jitter: -0.1},
		},
		{
			name:   "backoff: max delay negative",
			policy: &Backoff{Base: 100 * time.Millisecond, Growth: 1.2, Max: -time.Second},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := func(*RetryContext) {
				t.Error("Do(ctx, fn, n) unexpectedly invoked fn")
			}
			if got, want := tc.policy.Do(context.Background(), fn, 3), ErrInvalidPolicyParam; !errors.Is(got, want) {
				t.Errorf("Do(ctx, fn, n) did not produce the expected error status: got: %v, want: %v", got, want)
			}
		})
	}
}

type countingWorker struct {
	attempts []int
	fnInner  func(rc *RetryContext)
}

func (cw *countingWorker) fn(rc *RetryContext) {
	cw.attempts = append(cw.attempts, rc.Attempt)
	cw.fnInner(rc)
}

func TestBackoffBasic(t *testing.T) {
	backoff := &Backoff{Base: time.Millisecond, Growth: 1.1, Jitter: 0.1}
	testCases := []struct {
		name     string
		fn       func(*RetryContext)
		budget   int
		attempts int
		err      error
	}{
		{
			name:     "exhausted",
			fn:       func(rc *RetryContext) {},
			budget:   3,
			attempts: 3,
			err:      ErrExhausted,
		},
		{
			name:     "aborted",
			fn:       func(rc *RetryContext) { rc.Abort() },
			budget:   3,
			attempts: 1,
			err:      ErrAborted,
		},
		{
			name:     "succeeds",
			fn:       func(rc *RetryContext) { rc.Done() },
			budget:   3,
			attempts: 1,
		},
		{
			name: "succeeds on retry",
			fn: func(rc *RetryContext) {
				if rc.Attempt == 2 {
					rc.Done()
				}
			},
			budget:   3,
			attempts: 2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := &countingWorker{fnInner: tc.fn}
			err := backoff.Do(context.Background(), w.fn, tc.budget)
			if gotErr, wantErr := err != nil, tc.err != nil; gotErr != wantErr {
				t.Errorf("Do(ctx, fn, %d) returned unexpected error state: gotErr: %t, wantErr: %t", tc.budget, gotErr, wantErr)
			} else if tc.err != nil && !errors.Is(err, tc.err) {
				t.Errorf("Do(ctx, fn, %d) returned incorrect error type: got: %v, want: %v", tc.budget, err, tc.err)
			}
			if got, want := len(w.attempts), tc.attempts; got != want {
				t.Errorf("Do(ctx, fn, %d) invoked fn an incorrect number of times: got: %d, want: %d", tc.budget, got, want)
			}
			for i, a := range w.attempts {
				if a != i+1 {
					t.Errorf("Do(ctx, fn, %d) reported attempt %d on call %d", tc.budget, a, i+1)
				}
			}
		})
	}
}

func TestBackoffContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backoff := &Backoff{Base: time.Hour, Growth: 1.0}
	w := &countingWorker{fnInner: func(rc *RetryContext) { cancel() }}
	if got, want := backoff.Do(ctx, w.fn, 5), context.Canceled; !errors.Is(got, want) {
		t.Errorf("Do(ctx, fn, 5) returned unexpected error: got: %v, want: %v", got, want)
	}
	if got, want := len(w.attempts), 1; got != want {
		t.Errorf("Do(ctx, fn, 5) invoked fn an incorrect number of times: got: %d, want: %d", got, want)
	}
}

type interval struct {
	min time.Duration
	max time.Duration
}

func (i interval) contains(d time.Duration) bool {
	return d >= i.min && d <= i.max
}

func TestBackoffDelays(t *testing.T) {
	testCases := []struct {
		name    string
		backoff *Backoff
		budget  int
		delays  []interval
	}{
		{
			name:    "no growth - no jitter",
			backoff: &Backoff{Base: 100 * time.Millisecond, Growth: 1.0, Jitter: 0.0},
			budget:  4,
			delays: []interval{
				{min: 100 * time.Millisecond, max: 100 * time.Millisecond},
				{min: 100 * time.Millisecond, max: 100 * time.Millisecond},
				{min: 100 * time.Millisecond, max: 100 * time.Millisecond},
			},
		},
		{
			name:    "growth - no jitter",
			backoff: &Backoff{Base: 100 * time.Millisecond, Growth: 1.2, Jitter: 0.0},
			budget:  4,
			delays: []interval{
				{min: 100 * time.Millisecond, max: 100 * time.Millisecond},
				{min: 120 * time.Millisecond, max: 120 * time.Millisecond},
				{min: 144 * time.Millisecond, max: 144 * time.Millisecond},
			},
		},
		{
			name:    "growth - capped",
			backoff: &Backoff{Base: 100 * time.Millisecond, Growth: 2.0, Jitter: 0.0, Max: 150 * time.Millisecond},
			budget:  4,
			delays: []interval{
				{min: 100 * time.Millisecond, max: 100 * time.Millisecond},
				{min: 150 * time.Millisecond, max: 150 * time.Millisecond},
				{min: 150 * time.Millisecond, max: 150 * time.Millisecond},
			},
		},
		{
			name:    "growth - jitter",
			backoff: &Backoff{Base: 100 * time.Millisecond, Growth: 1.2, Jitter: 0.1},
			budget:  4,
			delays: []interval{
				{min: 90 * time.Millisecond, max: 110 * time.Millisecond},
				{min: 108 * time.Millisecond, max: 132 * time.Millisecond},
				{min: 129 * time.Millisecond, max: 159 * time.Millisecond},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Note: This is why we are testing _in_ package retry (i.e., we are
			// using a private test helper to intercept the wait).
			var delays []time.Duration
			tc.backoff.wait = func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}
			if got, want := tc.backoff.Do(context.Background(), func(rc *RetryContext) {}, tc.budget), ErrExhausted; !errors.Is(got, want) {
				t.Errorf("Do(ctx, fn, %d) returned unexpected error status: got: %v, want: %v", tc.budget, got, want)
			}
			if got, want := len(delays), len(tc.delays); got != want {
				t.Fatalf("Do(ctx, fn, %d) waited an incorrect number of times: got: %d, want: %d", tc.budget, got, want)
			}
			for i, d := range delays {
				if !tc.delays[i].contains(d) {
					t.Errorf("Do(ctx, fn, %d) waited for an unexpected duration: got: %v, want in interval: %v", tc.budget, d, tc.delays[i])
				}
			}
		})
	}
}
