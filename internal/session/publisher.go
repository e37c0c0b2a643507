package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher applies merge-patches to session records. Publishes for
// the same session are serialized, so the last writer wins and
// patches touching disjoint fields compose in any order.
type Publisher struct {
	store  Store
	logger zerolog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store Store, logger zerolog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
		now:    time.Now,
	}
}

// Publish merges the patch into the session's record and persists the
// result. A session with no stored record starts from the initial
// record. The returned record reflects the merge.
func (p *Publisher) Publish(ctx context.Context, sessionID string, patch Patch) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.store.LoadRecord(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		rec = NewRecord()
	} else if err != nil {
		return Record{}, err
	}

	rec = patch.Apply(rec, p.now())
	if err := p.store.SaveRecord(ctx, sessionID, rec); err != nil {
		return Record{}, err
	}

	p.logger.Debug().
		Str("session_id", sessionID).
		Str("phase", string(rec.Phase)).
		Str("emotion", string(rec.Emotion)).
		Msg("Session record published")
	return rec, nil
}

// Snapshot returns the current record, or the initial record when the
// session has never been published.
func (p *Publisher) Snapshot(ctx context.Context, sessionID string) (Record, error) {
	rec, err := p.store.LoadRecord(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return NewRecord(), nil
	}
	return rec, err
}
