package turn

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/observability"
)

// SpeculativeConfig sets the trigger thresholds for early generation.
type SpeculativeConfig struct {
	// MinDistinctPartials is how many distinct partial transcripts a
	// turn must produce before speculation is considered.
	MinDistinctPartials int

	// MinPartialChars is the minimum length of the latest partial.
	MinPartialChars int

	// MinNewPartialChars is the length below which a partial never
	// counts as distinct.
	MinNewPartialChars int
}

// speculativeResult is what the early generation produced.
type speculativeResult struct {
	reply     string
	sentiment sentiment
	err       error
}

// speculateFunc runs the early classify-and-generate work against a
// partial transcript.
type speculateFunc func(ctx context.Context, partial string) speculativeResult

// Speculator races early reply generation against the final
// transcript. It watches the stream of partial transcripts for one
// turn and fires at most once; the early reply, if it wins, is served
// as-is when the final transcript lands.
type Speculator struct {
	cfg    SpeculativeConfig
	run    speculateFunc
	logger zerolog.Logger

	mu       sync.Mutex
	distinct int
	last     string
	fired    bool
	done     chan struct{}
	result   speculativeResult
}

// NewSpeculator creates a speculator for a single turn's partials.
func NewSpeculator(cfg SpeculativeConfig, run speculateFunc, logger zerolog.Logger) *Speculator {
	return &Speculator{cfg: cfg, run: run, logger: logger}
}

// Observe feeds one partial transcript in. When the trigger
// conditions are met it launches the early generation exactly once.
func (s *Speculator) Observe(ctx context.Context, partial string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partial == "" || partial == s.last {
		return
	}
	if len(partial) < s.cfg.MinNewPartialChars {
		return
	}
	s.last = partial
	s.distinct++

	if s.fired {
		return
	}
	if s.distinct < s.cfg.MinDistinctPartials || len(partial) < s.cfg.MinPartialChars {
		return
	}

	s.fired = true
	s.done = make(chan struct{})
	observability.RecordSpeculativeFire()
	s.logger.Debug().
		Int("distinct_partials", s.distinct).
		Int("partial_len", len(partial)).
		Msg("Speculative generation fired")

	go func() {
		result := s.run(ctx, partial)
		s.mu.Lock()
		s.result = result
		s.mu.Unlock()
		close(s.done)
	}()
}

// Fired reports whether early generation was launched this turn.
func (s *Speculator) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Await blocks until the early generation finishes and returns its
// result. ok is false when speculation never fired, failed, or the
// context expired first.
func (s *Speculator) Await(ctx context.Context) (speculativeResult, bool) {
	s.mu.Lock()
	fired := s.fired
	done := s.done
	s.mu.Unlock()

	if !fired {
		return speculativeResult{}, false
	}

	select {
	case <-done:
	case <-ctx.Done():
		return speculativeResult{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.err != nil {
		s.logger.Debug().Err(s.result.err).Msg("Speculative generation failed, falling back")
		return speculativeResult{}, false
	}
	return s.result, true
}

// Reset clears the speculator for the next turn.
func (s *Speculator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distinct = 0
	s.last = ""
	s.fired = false
	s.done = nil
	s.result = speculativeResult{}
}
