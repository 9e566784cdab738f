package fault

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyByKeyword(t *testing.T) {
	cases := []struct {
		message string
		want    Type
	}{
		{"invalid token provided", Authentication},
		{"permission denied for model customer", Authorization},
		{"rate limit exceeded", RateLimit},
		{"operation timed out after 30s", Timeout},
		{"openai returned status 500", Generator},
		{"sqlite disk I/O error", Persistence},
		{"connection refused", Network},
		{"validation failed for question", Validation},
		{"something odd happened", Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			fe := Classify(errors.New(tc.message))
			if fe.Type != tc.want {
				t.Errorf("got %s, want %s", fe.Type, tc.want)
			}
		})
	}
}

func TestClassifyAuthBeatsValidation(t *testing.T) {
	// "invalid token" contains both keyword groups; authentication
	// must win.
	fe := Classify(errors.New("validation error: invalid token"))
	if fe.Type != Authentication {
		t.Errorf("got %s, want %s", fe.Type, Authentication)
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	orig := New(Authorization, "role VIEWER cannot see customer data")
	fe := Classify(orig)
	if fe != orig {
		t.Error("expected classified error to pass through unchanged")
	}
}

func TestErrorWrappingAndUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	fe := Wrap(Persistence, "write failed", inner)
	if !errors.Is(fe, inner) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
	if fe.Code != "AI_ERR_007" || fe.Severity != High {
		t.Errorf("unexpected derived fields: %+v", fe)
	}
}

func TestSeverityAndRetryability(t *testing.T) {
	cases := []struct {
		t         Type
		severity  Severity
		retryable bool
	}{
		{Validation, Low, false},
		{RateLimit, Medium, true},
		{Generator, Medium, true},
		{Timeout, High, true},
		{Persistence, High, false},
		{Network, High, true},
		{Authentication, Critical, false},
		{Authorization, Critical, false},
		{Internal, Critical, false},
		{Unknown, Critical, false},
	}
	for _, tc := range cases {
		fe := New(tc.t, "x")
		if fe.Severity != tc.severity {
			t.Errorf("%s severity: got %s, want %s", tc.t, fe.Severity, tc.severity)
		}
		if fe.Retryable != tc.retryable {
			t.Errorf("%s retryable: got %v, want %v", tc.t, fe.Retryable, tc.retryable)
		}
	}
}

func TestFallbackByType(t *testing.T) {
	h := NewHandler(0, time.Millisecond, nil)

	for _, typ := range []Type{Generator, Timeout, RateLimit, Persistence} {
		resp, ok := h.Fallback(New(typ, "boom"))
		if !ok {
			t.Errorf("%s: expected a fallback", typ)
			continue
		}
		if resp.Answer == "" || len(resp.Suggestions) == 0 {
			t.Errorf("%s: fallback missing content", typ)
		}
	}

	if _, ok := h.Fallback(New(Authorization, "no")); ok {
		t.Error("authorization must not fall back to a degraded answer")
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	h := NewHandler(3, time.Millisecond, nil)

	calls := 0
	err := h.Retry(context.Background(), func() error {
		calls++
		return New(Validation, "bad question")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.Type != Validation {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	h := NewHandler(3, time.Millisecond, nil)

	calls := 0
	err := h.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return New(Network, "connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	h := NewHandler(5, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Retry(ctx, func() error {
		return New(Network, "connection refused")
	})
	var fe *Error
	if !errors.As(err, &fe) || fe.Type != Timeout {
		t.Errorf("expected timeout fault after cancellation, got %v", err)
	}
}

func TestStatsTracking(t *testing.T) {
	h := NewHandler(0, time.Millisecond, nil)

	h.Fallback(New(Generator, "a"))
	h.Fallback(New(Generator, "b"))
	h.Fallback(New(Timeout, "c"))

	s := h.Stats()
	if s.Total != 3 {
		t.Errorf("total: got %d", s.Total)
	}
	if s.ByType[Generator] != 2 {
		t.Errorf("generator count: got %d", s.ByType[Generator])
	}
	if s.MostCommonType != Generator {
		t.Errorf("most common: got %s", s.MostCommonType)
	}
	if len(s.Recent) != 3 {
		t.Errorf("recent: got %d", len(s.Recent))
	}

	h.Reset()
	if h.Stats().Total != 0 {
		t.Error("expected stats cleared after reset")
	}
}
