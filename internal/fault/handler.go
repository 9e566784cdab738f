package fault

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"adoptiq/internal/answer"
)

const recentErrorCap = 100

// Handler turns classified errors into degraded answers, tracks error
// statistics, and runs retryable operations with backoff.
type Handler struct {
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger

	mu     sync.Mutex
	counts map[Type]int
	recent []*Error
}

// NewHandler builds a Handler with the given retry policy.
func NewHandler(maxRetries int, baseDelay time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		log:        log,
		counts:     make(map[Type]int),
	}
}

// Fallback returns a degraded but useful answer for error types that
// have one, or false when the caller should surface the error itself.
func (h *Handler) Fallback(err *Error) (answer.Response, bool) {
	h.track(err)

	switch err.Type {
	case Generator:
		return fallbackResponse(
			"**Using Template Matching**\n\nThe AI language model is currently unavailable, so basic pattern matching is in use.\n\nCommon questions that work well:\n- \"Show me all products\"\n- \"List customers with low adoption\"\n- \"Count all tasks\"\n\nTry one of these formats, or retry later for advanced queries.",
			[]string{
				"Show me all products",
				"List customers with adoption below 50%",
				"How many customers do we have?",
				"Find tasks without descriptions",
			},
			"fallback_templates",
		), true
	case Timeout:
		return fallbackResponse(
			"**Query Timeout**\n\nYour query took too long to process. This usually happens with complex queries or large data sets.\n\nSuggestions:\n- Try a more specific question\n- Add filters to reduce data\n- Ask for counts instead of full lists",
			[]string{
				"How many products do we have?",
				"Show top 10 customers by adoption",
				"List products with no telemetry",
			},
			"fallback_timeout",
		), true
	case RateLimit:
		return fallbackResponse(
			"**Rate Limit Reached**\n\nYou've made many requests in a short time. Please wait a few seconds and try again.",
			[]string{
				"View Products page",
				"View Customers page",
				"View Analytics dashboard",
			},
			"fallback_rate_limit",
		), true
	case Persistence:
		return fallbackResponse(
			"**Database Issue**\n\nThere was a problem accessing the database. This is usually temporary.\n\nWhat you can do:\n- Wait a moment and try again\n- Check if the data exists in the UI\n- Contact support if the issue persists",
			[]string{
				"Try again in a few seconds",
				"Check the Products page",
				"View the status dashboard",
			},
			"fallback_database",
		), true
	}
	return answer.Response{}, false
}

// Response formats an error as a terminal answer with suggestions.
func (h *Handler) Response(err *Error) answer.Response {
	return answer.Response{
		Answer:      "**Error**\n\n" + err.UserMessage,
		Error:       err.Message,
		Suggestions: errorSuggestions(err.Type),
	}
}

func fallbackResponse(text string, suggestions []string, marker string) answer.Response {
	return answer.Response{
		Answer:      text,
		Suggestions: suggestions,
		Metadata:    answer.Metadata{TemplateUsed: marker},
	}
}

func errorSuggestions(t Type) []string {
	switch t {
	case Validation:
		return []string{"Show me all products", "List customers", "How many tasks are there?"}
	case Authentication:
		return []string{"Please log in again", "Check your session"}
	case Authorization:
		return []string{"Contact your administrator", "View your accessible data"}
	case RateLimit:
		return []string{"Wait a moment and try again", "View data in the app directly"}
	case Timeout:
		return []string{"Try a simpler question", "Ask for fewer results", "Add filters to your query"}
	case Generator:
		return []string{"Try a template question", "Show me all products", "Count customers"}
	case Persistence:
		return []string{"Try again in a moment", "Check the app status"}
	case Network:
		return []string{"Check your connection", "Try again"}
	case Internal:
		return []string{"Try again later", "Contact support"}
	}
	return []string{"Try a different question", "Show me all products"}
}

// Retry runs op until it succeeds, fails with a non-retryable error,
// or exhausts the retry budget. The delay doubles per attempt and
// respects context cancellation.
func (h *Handler) Retry(ctx context.Context, op func() error) error {
	var last *Error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		last = Classify(err).WithContext("attempt", attempt)

		if !last.Retryable || attempt == h.maxRetries {
			return last
		}

		delay := h.baseDelay << attempt
		h.log.Warn("retrying after failure",
			"type", last.Type,
			"attempt", attempt,
			"delay", delay,
			"error", last.Message)

		select {
		case <-ctx.Done():
			return Wrap(Timeout, "retry abandoned", ctx.Err())
		case <-time.After(delay):
		}
	}
	return last
}

func (h *Handler) track(err *Error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[err.Type]++
	h.recent = append(h.recent, err)
	if len(h.recent) > recentErrorCap {
		h.recent = h.recent[1:]
	}

	h.log.Error("pipeline failure",
		"code", err.Code,
		"type", err.Type,
		"severity", err.Severity,
		"error", err.Message)
}

// Stats summarizes tracked errors.
type Stats struct {
	Total          int           `json:"total"`
	ByType         map[Type]int  `json:"byType"`
	MostCommonType Type          `json:"mostCommonType,omitempty"`
	Recent         []RecentError `json:"recent,omitempty"`
}

// RecentError is the serializable view of a tracked error.
type RecentError struct {
	Type      Type      `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats returns counters and the last ten tracked errors.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{ByType: make(map[Type]int, len(h.counts))}
	max := 0
	for t, n := range h.counts {
		s.Total += n
		s.ByType[t] = n
		if n > max {
			max = n
			s.MostCommonType = t
		}
	}

	start := len(h.recent) - 10
	if start < 0 {
		start = 0
	}
	for _, e := range h.recent[start:] {
		s.Recent = append(s.Recent, RecentError{
			Type:      e.Type,
			Code:      e.Code,
			Message:   e.Message,
			Timestamp: e.Timestamp,
		})
	}
	return s
}

// Reset clears tracked error statistics.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make(map[Type]int)
	h.recent = nil
}
