// Package failure classifies download failures and carries the result as a
// typed error so callers branch on the failure kind instead of error text.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	// KindMissing means the server confirmed the resource does not exist.
	KindMissing Kind = "missing"
	// KindBlocked covers anti-bot interstitials and transient server errors.
	KindBlocked   Kind = "blocked_or_retryable"
	KindRetryable Kind = "retryable"
	KindCancelled Kind = "cancelled"
)

// Hard reports whether a failure of this kind blocks a chapter from completing.
func (k Kind) Hard() bool {
	return k == KindBlocked || k == KindRetryable
}

var challengeMarkers = []string{
	"cloudflare",
	"just a moment",
	"attention required",
	"captcha",
}

// Classify maps an HTTP status (0 when there is none) and an error message to
// a failure kind. It never fails.
func Classify(statusCode int, message string) Kind {
	switch statusCode {
	case 404, 410:
		return KindMissing
	case 401, 403, 429, 500, 502, 503, 504:
		return KindBlocked
	}

	msg := strings.ToLower(message)
	for _, m := range challengeMarkers {
		if strings.Contains(msg, m) {
			return KindBlocked
		}
	}

	return KindRetryable
}

// Error is the typed result of a failed fetch.
type Error struct {
	Kind       Kind
	StatusCode int    // 0 for non-HTTP failures
	Phase      string // where the failure happened, e.g. "direct"
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Phase != "" {
		b.WriteString(" (" + e.Phase + ")")
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " HTTP %d", e.StatusCode)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func FromStatus(statusCode int, phase string) *Error {
	return &Error{
		Kind:       Classify(statusCode, ""),
		StatusCode: statusCode,
		Phase:      phase,
		Reason:     fmt.Sprintf("HTTP Error %d", statusCode),
	}
}

// FromError classifies a transport-level error. Context cancellation becomes
// KindCancelled.
func FromError(err error, phase string) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled(err)
	}

	return &Error{
		Kind:   Classify(0, err.Error()),
		Phase:  phase,
		Reason: err.Error(),
		Err:    err,
	}
}

func Cancelled(err error) *Error {
	return &Error{Kind: KindCancelled, Reason: "cancelled by user", Err: err}
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf extracts the failure kind carried by err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err, "").Kind
}

func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// Record is one image failure recorded during a chapter attempt.
type Record struct {
	URL        string
	Kind       Kind
	StatusCode int
	Reason     string
}

func NewRecord(url string, err error) Record {
	fe := FromError(err, "")
	reason := fe.Reason
	if reason == "" {
		reason = err.Error()
	}

	return Record{
		URL:        url,
		Kind:       fe.Kind,
		StatusCode: fe.StatusCode,
		Reason:     reason,
	}
}
