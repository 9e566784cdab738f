// Package audit records every answered question for compliance and
// usage analytics. Recording is fire and forget: a full buffer drops
// the entry rather than stalling the answer path.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one audited question.
type Entry struct {
	RequestID      string        `json:"requestId"`
	Timestamp      time.Time     `json:"timestamp"`
	UserID         string        `json:"userId"`
	UserRole       string        `json:"userRole"`
	Question       string        `json:"question"`
	TemplateUsed   string        `json:"templateUsed,omitempty"`
	LLMUsed        bool          `json:"llmUsed"`
	LLMProvider    string        `json:"llmProvider,omitempty"`
	Cached         bool          `json:"cached"`
	ExecutionTime  time.Duration `json:"-"`
	RowCount       int           `json:"rowCount"`
	HasError       bool          `json:"hasError"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
	AccessDenied   bool          `json:"accessDenied"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// Stats summarizes the retained entries.
type Stats struct {
	Total            int           `json:"total"`
	Errors           int           `json:"errors"`
	AccessDenied     int           `json:"accessDenied"`
	CachedResponses  int           `json:"cachedResponses"`
	LLMUsage         int           `json:"llmUsage"`
	AvgExecutionTime time.Duration `json:"-"`
}

const (
	queueSize  = 256
	retainCap  = 1000
	recentSize = 100
)

// Logger consumes entries on a background goroutine and keeps the
// most recent ones in memory for the stats endpoint.
type Logger struct {
	queue chan Entry
	log   *slog.Logger

	mu     sync.Mutex
	recent []Entry
	closed bool

	done chan struct{}
	once sync.Once
}

// NewLogger starts the worker.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	l := &Logger{
		queue: make(chan Entry, queueSize),
		log:   log,
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Record queues an entry. It never blocks; under sustained overload
// entries are dropped and the drop is counted in the log.
func (l *Logger) Record(e Entry) {
	if e.RequestID == "" {
		e.RequestID = NewRequestID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Question = Redact(e.Question)
	e.ErrorMessage = Redact(e.ErrorMessage)

	// The closed check and the send share the lock so Close cannot
	// close the queue between them.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	select {
	case l.queue <- e:
	default:
		l.log.Warn("audit queue full, entry dropped", "requestId", e.RequestID)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		l.mu.Lock()
		l.recent = append(l.recent, e)
		if len(l.recent) > retainCap {
			l.recent = l.recent[len(l.recent)-retainCap:]
		}
		l.mu.Unlock()

		attrs := []any{
			"requestId", e.RequestID,
			"userId", e.UserID,
			"userRole", e.UserRole,
			"question", e.Question,
			"cached", e.Cached,
			"durationMs", e.ExecutionTime.Milliseconds(),
			"rows", e.RowCount,
		}
		if e.TemplateUsed != "" {
			attrs = append(attrs, "template", e.TemplateUsed)
		}
		if e.LLMUsed {
			attrs = append(attrs, "llmProvider", e.LLMProvider)
		}
		if e.ConversationID != "" {
			attrs = append(attrs, "conversationId", e.ConversationID)
		}

		switch {
		case e.HasError:
			attrs = append(attrs, "error", e.ErrorMessage)
			l.log.Error("question failed", attrs...)
		case e.AccessDenied:
			l.log.Warn("question denied", attrs...)
		default:
			l.log.Info("question answered", attrs...)
		}
	}
}

// Recent returns up to n of the latest entries, newest last.
func (l *Logger) Recent(n int) []Entry {
	if n <= 0 {
		n = recentSize
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]Entry, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}

// Stats aggregates the retained entries.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Total: len(l.recent)}
	var totalTime time.Duration
	for _, e := range l.recent {
		if e.HasError {
			s.Errors++
		}
		if e.AccessDenied {
			s.AccessDenied++
		}
		if e.Cached {
			s.CachedResponses++
		}
		if e.LLMUsed {
			s.LLMUsage++
		}
		totalTime += e.ExecutionTime
	}
	if s.Total > 0 {
		s.AvgExecutionTime = totalTime / time.Duration(s.Total)
	}
	return s
}

// Close drains the queue and stops the worker.
func (l *Logger) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.queue)
		<-l.done
	})
}

// NewRequestID returns a fresh audit request id.
func NewRequestID() string {
	return "ai-" + uuid.NewString()
}
