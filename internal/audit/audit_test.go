package audit

import (
	"strings"
	"testing"
	"time"
)

func drainLogger(t *testing.T) *Logger {
	t.Helper()
	l := NewLogger(nil)
	t.Cleanup(l.Close)
	return l
}

// waitFor polls until the worker has consumed n entries.
func waitFor(t *testing.T, l *Logger, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.Stats().Total >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("worker never consumed %d entries", n)
}

func TestRecordFillsDefaults(t *testing.T) {
	l := drainLogger(t)
	l.Record(Entry{UserID: "u1", UserRole: "ADMIN", Question: "show products"})
	waitFor(t, l, 1)

	entries := l.Recent(1)
	if len(entries) != 1 {
		t.Fatalf("Recent = %d entries", len(entries))
	}
	e := entries[0]
	if !strings.HasPrefix(e.RequestID, "ai-") {
		t.Errorf("RequestID = %q", e.RequestID)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestStats(t *testing.T) {
	l := drainLogger(t)
	l.Record(Entry{Question: "q1", ExecutionTime: 10 * time.Millisecond})
	l.Record(Entry{Question: "q2", HasError: true, ErrorMessage: "boom"})
	l.Record(Entry{Question: "q3", AccessDenied: true})
	l.Record(Entry{Question: "q4", Cached: true, LLMUsed: true, LLMProvider: "openai"})
	waitFor(t, l, 4)

	s := l.Stats()
	if s.Total != 4 || s.Errors != 1 || s.AccessDenied != 1 || s.CachedResponses != 1 || s.LLMUsage != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRecentReturnsNewestLast(t *testing.T) {
	l := drainLogger(t)
	l.Record(Entry{Question: "first"})
	l.Record(Entry{Question: "second"})
	l.Record(Entry{Question: "third"})
	waitFor(t, l, 3)

	entries := l.Recent(2)
	if len(entries) != 2 {
		t.Fatalf("Recent = %d entries", len(entries))
	}
	if entries[0].Question != "second" || entries[1].Question != "third" {
		t.Errorf("Recent order: %q, %q", entries[0].Question, entries[1].Question)
	}
}

func TestRecordAfterClose(t *testing.T) {
	l := NewLogger(nil)
	l.Close()
	// Must not panic on a closed queue.
	l.Record(Entry{Question: "late"})
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			"token eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.abc123def",
			"token [JWT_REDACTED]",
		},
		{
			"dsn postgresql://app:hunter2secret@db:5432/adoptiq",
			"dsn postgresql://app:[PASSWORD_REDACTED]@db:5432/adoptiq",
		},
		{
			"header Bearer abcdefghijklmnopqrstuvwxyz123456",
			"header Bearer [TOKEN_REDACTED]",
		},
		{
			"key sk-proj4abcdefghijklmnopqrst",
			"key [API_KEY_REDACTED]",
		},
		{
			`{"password": "supersecret1"}`,
			`{"password": "[PASSWORD_REDACTED]"}`,
		},
		{
			"show all products",
			"show all products",
		},
	}
	for _, tc := range cases {
		if got := Redact(tc.in); got != tc.want {
			t.Errorf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
