package turn

import "time"

// Timing collects per-stage latencies for one turn, in milliseconds.
type Timing struct {
	RecognitionMs int64 `json:"recognition_ms"`
	GenerationMs  int64 `json:"generation_ms"`
	SynthesisMs   int64 `json:"synthesis_ms"`
	TotalMs       int64 `json:"total_ms"`
}

// stopwatch measures one stage.
type stopwatch struct {
	start time.Time
}

func startStopwatch() stopwatch {
	return stopwatch{start: time.Now()}
}

func (s stopwatch) elapsedMs() int64 {
	return time.Since(s.start).Milliseconds()
}
