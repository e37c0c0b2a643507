package tts

import (
	"context"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
)

// Params shapes how a reply is voiced.
type Params struct {
	Speed     float64 // playback speed multiplier, 1.0 is neutral
	Stability float64 // lower values allow more expressive variation
}

// Synthesizer converts a reply into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params Params) ([]byte, error)
}

// ParamsFor derives voice parameters from the session's emotional
// state. High-energy moods speak faster and looser; low-energy moods
// slow down and steady out.
func ParamsFor(state emotion.State) Params {
	energy := state.Current.Energy()

	// Map energy 0..1 onto speed 0.85..1.15, then let intensity pull
	// the speed further from neutral.
	speed := 0.85 + 0.3*energy
	speed = 1.0 + (speed-1.0)*state.Intensity

	// Expressive moods get lower stability.
	stability := 0.8 - 0.5*energy*state.Intensity

	return Params{Speed: speed, Stability: stability}
}
