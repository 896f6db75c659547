package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
)

// Kind classifies a provider failure so callers and the retry loop can branch
// on type rather than on exception text.
type Kind int

const (
	// KindTimeout: the attempt exceeded its time box.
	KindTimeout Kind = iota
	// KindRateLimited: the provider signalled throttling (HTTP 429).
	KindRateLimited
	// KindTransient: a retryable failure (5xx, connection reset).
	KindTransient
	// KindFatal: not retryable (bad request, auth failure).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// ProviderError wraps a provider failure with its classification.
type ProviderError struct {
	Kind Kind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool {
	return e.Kind != KindFatal
}

// Status codes are matched as whole tokens so an id or payload that happens
// to contain "500" or "429" cannot flip the classification.
var (
	rateLimitCodePattern = regexp.MustCompile(`\b429\b`)
	serverErrCodePattern = regexp.MustCompile(`\b50[0234]\b`)
	eofPattern           = regexp.MustCompile(`\beof\b`)
)

// classify maps a raw provider error onto the taxonomy. Typed checks come
// first (deadlines, net timeouts, io EOFs); langchaingo surfaces provider
// responses as opaque errors, so HTTP status classification falls back to
// inspecting the message.
func classify(err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProviderError{Kind: KindTransient, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case rateLimitCodePattern.MatchString(msg) || strings.Contains(msg, "rate limit"):
		return &ProviderError{Kind: KindRateLimited, Err: err}
	case serverErrCodePattern.MatchString(msg) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		eofPattern.MatchString(msg):
		return &ProviderError{Kind: KindTransient, Err: err}
	}
	return &ProviderError{Kind: KindFatal, Err: err}
}
