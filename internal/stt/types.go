package stt

import "context"

// Result is one transcription outcome from a provider.
type Result struct {
	// Text is the transcribed text.
	Text string

	// IsFinal indicates a final transcription (true) or a partial (false).
	IsFinal bool

	// Confidence is the provider's confidence score (0.0 to 1.0), if reported.
	Confidence float64

	// Provider is the name of the provider that produced this result.
	Provider string

	// LatencyMs is how long the provider call took.
	LatencyMs int64
}

// Mode selects the transcription flavor.
type Mode string

const (
	// ModeFinal transcribes a sealed recording.
	ModeFinal Mode = "final"

	// ModePartial transcribes a snapshot of an in-progress recording.
	ModePartial Mode = "partial"
)

// Recognizer is the capability interface one speech-recognition
// provider implements. Selection and ordering are configuration;
// implementations hold no cross-call state.
type Recognizer interface {
	// Name identifies the provider in logs, metrics and aggregate errors.
	Name() string

	// Transcribe converts a complete audio buffer to text. Errors must
	// be classified with the fault taxonomy so the orchestrator can
	// decide between retry, fallthrough and surfacing.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)
}
