package stt

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/audio"
	"github.com/lumenvoice/companion-gateway/internal/observability"
)

// PartialPoller issues partial transcriptions on a fixed received-chunk
// interval. A new call is only issued once the previous one completed;
// intervals that land while a call is outstanding are skipped, never
// queued.
type PartialPoller struct {
	orch     *Orchestrator
	interval int
	mimeType string
	logger   zerolog.Logger

	mu          sync.Mutex
	outstanding bool

	results chan *Result
}

// NewPartialPoller creates a poller that fires every interval chunks.
func NewPartialPoller(orch *Orchestrator, interval int, mimeType string, logger zerolog.Logger) *PartialPoller {
	return &PartialPoller{
		orch:     orch,
		interval: interval,
		mimeType: mimeType,
		logger:   logger,
		results:  make(chan *Result, 16),
	}
}

// Results delivers partial transcription results in completion order.
func (p *PartialPoller) Results() <-chan *Result {
	return p.results
}

// OnChunk is called after each appended chunk. It issues a partial
// transcription when the chunk count crosses the interval boundary and
// no call is outstanding. Returns true if a call was issued.
func (p *PartialPoller) OnChunk(ctx context.Context, buf *audio.ChunkBuffer) bool {
	if buf.Chunks() == 0 || buf.Chunks()%p.interval != 0 {
		return false
	}

	p.mu.Lock()
	if p.outstanding {
		p.mu.Unlock()
		observability.RecordPartialPollSkipped()
		p.logger.Debug().Int("chunks", buf.Chunks()).Msg("Partial poll skipped, previous call outstanding")
		return false
	}
	p.outstanding = true
	p.mu.Unlock()

	snapshot := buf.Snapshot()

	go func() {
		defer func() {
			p.mu.Lock()
			p.outstanding = false
			p.mu.Unlock()
		}()

		result, err := p.orch.Transcribe(ctx, snapshot, p.mimeType, ModePartial)
		if err != nil {
			// Partial results are best-effort; a failed poll is only logged.
			p.logger.Debug().Err(err).Msg("Partial transcription failed")
			return
		}

		select {
		case p.results <- result:
		case <-ctx.Done():
		}
	}()

	return true
}

// Outstanding reports whether a partial call is currently in flight.
func (p *PartialPoller) Outstanding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}
