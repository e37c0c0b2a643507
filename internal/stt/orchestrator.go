package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/fault"
	"github.com/lumenvoice/companion-gateway/internal/observability"
	"github.com/lumenvoice/companion-gateway/internal/resilience"
)

// OrchestratorConfig tunes the failover and retry behavior.
type OrchestratorConfig struct {
	MinAudioBytes       int           // buffers shorter than this never reach a provider
	ProviderTimeout     time.Duration // per-attempt timeout
	RetryMaxAttempts    int           // same-provider attempts for transient failures
	RetryInitialBackoff time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// Orchestrator transcribes audio buffers through an ordered provider
// list with per-provider retry, circuit breaking and fallthrough.
type Orchestrator struct {
	providers []Recognizer
	breakers  map[string]*resilience.CircuitBreaker
	cfg       OrchestratorConfig
	logger    zerolog.Logger
}

// NewOrchestrator creates an orchestrator over providers, which are
// tried in the given order.
func NewOrchestrator(providers []Recognizer, cfg OrchestratorConfig, logger zerolog.Logger) *Orchestrator {
	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewCircuitBreaker(
			p.Name(), cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)
	}
	return &Orchestrator{
		providers: providers,
		breakers:  breakers,
		cfg:       cfg,
		logger:    logger,
	}
}

// Transcribe runs the provider chain over the buffer. Transient
// failures are retried on the same provider with exponential backoff;
// auth failures fall through to the next provider immediately. When
// every provider fails, an AggregateError enumerating each provider's
// reason is returned.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, mimeType string, mode Mode) (*Result, error) {
	if len(audio) < o.cfg.MinAudioBytes {
		return nil, fault.New(fault.KindEmptyOrShortInput, "recognition", "",
			fmt.Errorf("buffer is %d bytes, need at least %d", len(audio), o.cfg.MinAudioBytes))
	}

	failures := make(map[string]error, len(o.providers))
	order := make([]string, 0, len(o.providers))

	for _, provider := range o.providers {
		result, err := o.tryProvider(ctx, provider, audio, mimeType, mode)
		if err == nil {
			result.IsFinal = mode == ModeFinal
			return result, nil
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The caller's context died; provider fallthrough won't help.
			return nil, err
		}

		order = append(order, provider.Name())
		failures[provider.Name()] = err
		o.logger.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Str("mode", string(mode)).
			Msg("Recognition provider failed, falling through")
	}

	return nil, &fault.AggregateError{Stage: "recognition", Failures: failures, Order: order}
}

// tryProvider runs one provider with retry and breaker protection.
// An open breaker is reported as an unclassified error so the retry
// loop does not spin on it; the chain just moves to the next provider.
func (o *Orchestrator) tryProvider(ctx context.Context, provider Recognizer, audio []byte, mimeType string, mode Mode) (*Result, error) {
	breaker := o.breakers[provider.Name()]

	var result *Result
	err := resilience.Retry(ctx, func() error {
		return breaker.Call(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
			defer cancel()

			res, err := provider.Transcribe(attemptCtx, audio, mimeType)
			if err != nil {
				observability.IncrementCircuitBreakerFailures(provider.Name())
				return err
			}
			result = res
			return nil
		})
	}, &resilience.RetryConfig{
		MaxAttempts:       o.cfg.RetryMaxAttempts,
		InitialBackoff:    o.cfg.RetryInitialBackoff,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	})

	observability.UpdateCircuitBreakerState(provider.Name(), int(breaker.GetState()))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Providers returns the configured provider names in priority order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}
