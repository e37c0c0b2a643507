package emotion

import "time"

// State is the mutable emotional record of one session. It is created
// at session start and only ever mutated by the Engine, via patches.
type State struct {
	Current          Label     `json:"current" msgpack:"current"`
	Intensity        float64   `json:"intensity" msgpack:"intensity"`
	Tone             Tone      `json:"tone" msgpack:"tone"`
	LastTransitionAt time.Time `json:"last_transition_at" msgpack:"last_transition_at"`
	SessionStartAt   time.Time `json:"session_start_at" msgpack:"session_start_at"`
}

// NewState returns the fixed default state for a fresh session.
func NewState(now time.Time) State {
	return State{
		Current:          Neutral,
		Intensity:        0.6,
		Tone:             ToneNeutral,
		LastTransitionAt: now,
		SessionStartAt:   now,
	}
}

// Patch is a partial update to a State. Nil fields are unchanged; the
// Engine emits patches so concurrent partial-turn writes never clobber
// fields they did not touch.
type Patch struct {
	Current          *Label
	Intensity        *float64
	Tone             *Tone
	LastTransitionAt *time.Time
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Current == nil && p.Intensity == nil && p.Tone == nil && p.LastTransitionAt == nil
}

// Apply merges the patch into s and returns the updated state.
// LastTransitionAt never moves backwards.
func (p Patch) Apply(s State) State {
	if p.Current != nil {
		s.Current = *p.Current
	}
	if p.Intensity != nil {
		s.Intensity = *p.Intensity
	}
	if p.Tone != nil {
		s.Tone = *p.Tone
	}
	if p.LastTransitionAt != nil && p.LastTransitionAt.After(s.LastTransitionAt) {
		s.LastTransitionAt = *p.LastTransitionAt
	}
	return s
}
