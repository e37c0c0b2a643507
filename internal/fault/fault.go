package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of failure classes the pipeline distinguishes.
// Every error that crosses a component boundary carries exactly one Kind
// so that callers can match on it instead of string-probing.
type Kind int

const (
	// KindUnknown is the zero value for errors that were never classified.
	KindUnknown Kind = iota

	// KindProviderUnavailable covers network failures, 5xx responses and
	// timeouts. Retryable per the orchestrator's backoff policy.
	KindProviderUnavailable

	// KindAuthFailure covers 401/403 responses. Never retried; the
	// orchestrator fails the provider immediately and moves on.
	KindAuthFailure

	// KindRateLimited covers 429 responses. Retryable with backoff.
	KindRateLimited

	// KindEmptyOrShortInput is a pre-flight validation failure. The
	// offending buffer is never sent to a provider.
	KindEmptyOrShortInput

	// KindEmptyTranscript means the provider answered but returned
	// nothing usable. Fails that attempt.
	KindEmptyTranscript

	// KindGenerationFailure is a terminal failure of the reply generator.
	KindGenerationFailure

	// KindSynthesisFailure is a terminal failure of the voice synthesizer.
	KindSynthesisFailure
)

func (k Kind) String() string {
	switch k {
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindEmptyOrShortInput:
		return "empty_or_short_input"
	case KindEmptyTranscript:
		return "empty_transcript"
	case KindGenerationFailure:
		return "generation_failure"
	case KindSynthesisFailure:
		return "synthesis_failure"
	default:
		return "unknown"
	}
}

// Retryable reports whether retrying the same call may help.
func (k Kind) Retryable() bool {
	return k == KindProviderUnavailable || k == KindRateLimited
}

// Error is a classified pipeline error.
type Error struct {
	Kind     Kind
	Stage    string // pipeline stage: recognition, generation, synthesis
	Provider string // provider name, if the failure is provider-specific
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", e.Stage)
	}
	if e.Provider != "" {
		fmt.Fprintf(&b, " provider=%s", e.Provider)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, stage, provider string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Provider: provider, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		return KindProviderUnavailable
	}
	return KindUnknown
}

// IsRetryable reports whether err's classification permits a retry.
// Unclassified errors are not retried.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// AggregateError reports that every configured provider failed, carrying
// each provider's last failure. Callers surface it as a single
// "transcription unavailable" condition rather than any one provider's.
type AggregateError struct {
	Stage    string
	Failures map[string]error // provider name -> last error
	Order    []string         // provider attempt order, for stable messages
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %s providers failed", e.Stage)
	for _, name := range e.Order {
		if err, ok := e.Failures[name]; ok {
			fmt.Fprintf(&b, "; %s: %v", name, err)
		}
	}
	return b.String()
}

// Retryable reports whether at least one provider failed for a
// transient reason, i.e. whether a later retry of the whole chain could
// succeed.
func (e *AggregateError) Retryable() bool {
	for _, err := range e.Failures {
		if IsRetryable(err) {
			return true
		}
	}
	return false
}
