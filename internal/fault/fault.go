// Package fault classifies pipeline failures, maps them to
// user-facing messages, and drives graceful degradation.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type categorizes a failure.
type Type string

const (
	Validation     Type = "VALIDATION"
	Authentication Type = "AUTHENTICATION"
	Authorization  Type = "AUTHORIZATION"
	RateLimit      Type = "RATE_LIMIT"
	Timeout        Type = "TIMEOUT"
	Generator      Type = "GENERATOR"
	Persistence    Type = "PERSISTENCE"
	Internal       Type = "INTERNAL"
	Network        Type = "NETWORK"
	Unknown        Type = "UNKNOWN"
)

// Severity orders failures by service impact.
type Severity string

const (
	Low      Severity = "LOW"
	Medium   Severity = "MEDIUM"
	High     Severity = "HIGH"
	Critical Severity = "CRITICAL"
)

var userMessages = map[Type]string{
	Validation:     "I couldn't understand your question. Please try rephrasing it.",
	Authentication: "There was an authentication issue. Please try logging in again.",
	Authorization:  "You don't have permission to access this information.",
	RateLimit:      "Too many requests. Please wait a moment and try again.",
	Timeout:        "The query took too long. Try a simpler question or smaller data range.",
	Generator:      "The AI service is temporarily unavailable. Using basic query matching instead.",
	Persistence:    "There was an issue accessing the data. Please try again.",
	Internal:       "Something went wrong. Our team has been notified.",
	Network:        "Network connectivity issue. Please check your connection.",
	Unknown:        "An unexpected error occurred. Please try again.",
}

var codes = map[Type]string{
	Validation:     "AI_ERR_001",
	Authentication: "AI_ERR_002",
	Authorization:  "AI_ERR_003",
	RateLimit:      "AI_ERR_004",
	Timeout:        "AI_ERR_005",
	Generator:      "AI_ERR_006",
	Persistence:    "AI_ERR_007",
	Internal:       "AI_ERR_008",
	Network:        "AI_ERR_009",
	Unknown:        "AI_ERR_999",
}

var severities = map[Type]Severity{
	Validation:     Low,
	RateLimit:      Medium,
	Generator:      Medium,
	Timeout:        High,
	Persistence:    High,
	Network:        High,
	Authentication: Critical,
	Authorization:  Critical,
	Internal:       Critical,
	Unknown:        Critical,
}

var retryable = map[Type]bool{
	RateLimit: true,
	Timeout:   true,
	Network:   true,
	Generator: true,
}

// Error is a classified pipeline failure.
type Error struct {
	Type        Type
	Severity    Severity
	Message     string
	UserMessage string
	Code        string
	Retryable   bool
	Context     map[string]any
	Timestamp   time.Time
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given type with derived severity, code,
// user message and retryability.
func New(t Type, message string) *Error {
	return &Error{
		Type:        t,
		Severity:    severities[t],
		Message:     message,
		UserMessage: userMessages[t],
		Code:        codes[t],
		Retryable:   retryable[t],
		Timestamp:   time.Now().UTC(),
	}
}

// Wrap builds an Error of the given type around an underlying error.
func Wrap(t Type, message string, err error) *Error {
	e := New(t, message)
	e.Err = err
	return e
}

// WithContext attaches diagnostic context and returns the same error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Classify turns an arbitrary error into a typed Error. Already
// classified errors pass through unchanged; everything else is typed
// by message keywords.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(inferType(err.Error()), err.Error(), err)
}

// inferType scans the message for type keywords. Authentication wins
// over validation because "invalid token" must not classify as a
// validation failure.
func inferType(message string) Type {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "token", "auth", "credential"):
		return Authentication
	case containsAny(lower, "permission", "forbidden", "denied"):
		return Authorization
	case containsAny(lower, "rate", "limit", "too many"):
		return RateLimit
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return Timeout
	case containsAny(lower, "llm", "openai", "gpt", "api"):
		return Generator
	case containsAny(lower, "database", "sqlite", "sql", "query failed"):
		return Persistence
	case containsAny(lower, "network", "connect", "connection refused"):
		return Network
	case containsAny(lower, "validation", "invalid input"):
		return Validation
	}
	return Unknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
