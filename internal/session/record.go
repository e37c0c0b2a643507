package session

import (
	"time"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
)

// Phase is the coarse pipeline position a session is in, as surfaced
// to state subscribers.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseSpeaking  Phase = "speaking"
)

// Record is the published view of a session. UpdatedAt is epoch
// milliseconds and is refreshed on every publish.
type Record struct {
	Phase        Phase         `json:"phase" msgpack:"phase"`
	Emotion      emotion.Label `json:"emotion" msgpack:"emotion"`
	Energy       float64       `json:"energy" msgpack:"energy"`
	LastAudioURL string        `json:"last_audio_url,omitempty" msgpack:"last_audio_url,omitempty"`
	UpdatedAt    int64         `json:"updated_at" msgpack:"updated_at"`
}

// NewRecord returns the initial record for a fresh session.
func NewRecord() Record {
	return Record{
		Phase:     PhaseIdle,
		Emotion:   emotion.Neutral,
		Energy:    emotion.Neutral.Energy(),
		UpdatedAt: time.Now().UnixMilli(),
	}
}

// Patch carries only the fields a publish wants to change. Unset
// fields keep their current value, so patches touching disjoint
// fields merge in any order.
type Patch struct {
	Phase        *Phase
	Emotion      *emotion.Label
	Energy       *float64
	LastAudioURL *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Phase == nil && p.Emotion == nil && p.Energy == nil && p.LastAudioURL == nil
}

// Apply merges the patch into the record and stamps a fresh
// UpdatedAt. Applying the same patch twice yields the same field
// values.
func (p Patch) Apply(r Record, now time.Time) Record {
	if p.Phase != nil {
		r.Phase = *p.Phase
	}
	if p.Emotion != nil {
		r.Emotion = *p.Emotion
	}
	if p.Energy != nil {
		r.Energy = *p.Energy
	}
	if p.LastAudioURL != nil {
		r.LastAudioURL = *p.LastAudioURL
	}
	r.UpdatedAt = now.UnixMilli()
	return r
}
