package stt

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/lumenvoice/companion-gateway/internal/fault"
)

// classifyProviderError maps a raw provider error onto the fault
// taxonomy. Providers speak different SDKs, so classification falls
// back to message probing when no structured status is available.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var fe *fault.Error
	if errors.As(err, &fe) {
		return err // already classified by the provider
	}

	kind := fault.KindProviderUnavailable

	if isTimeoutError(err) {
		kind = fault.KindProviderUnavailable
	} else if isAuthError(err) {
		kind = fault.KindAuthFailure
	} else if isRateLimitError(err) {
		kind = fault.KindRateLimited
	}

	return fault.New(kind, "recognition", provider, err)
}

func isAuthError(err error) bool {
	return containsAny(err.Error(), []string{
		"401",
		"403",
		"unauthorized",
		"forbidden",
		"invalid credentials",
		"invalid api key",
		"authentication",
	})
}

func isRateLimitError(err error) bool {
	return containsAny(err.Error(), []string{
		"429",
		"rate limit",
		"too many requests",
	})
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func containsAny(s string, substrings []string) bool {
	ls := strings.ToLower(s)
	for _, substr := range substrings {
		if strings.Contains(ls, substr) {
			return true
		}
	}
	return false
}
