package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "companion_gateway_active_sessions",
		Help: "Number of active conversation sessions",
	})

	totalTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_gateway_turns_total",
		Help: "Total number of conversation turns processed",
	})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_gateway_turn_duration_seconds",
		Help:    "End-to-end duration of a conversation turn",
		Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30},
	})

	// Recognition metrics
	recognitionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_recognition_requests_total",
		Help: "Total number of recognition requests",
	}, []string{"provider", "mode", "status"})

	recognitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "companion_gateway_recognition_latency_seconds",
		Help:    "Recognition latency per provider",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 30.0},
	}, []string{"provider"})

	partialPollsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_gateway_partial_polls_skipped_total",
		Help: "Partial transcription intervals skipped because a call was outstanding",
	})

	// Generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_generation_requests_total",
		Help: "Total number of reply generation requests",
	}, []string{"status"})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_gateway_generation_latency_seconds",
		Help:    "Reply generation latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	speculativeFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_gateway_speculative_fires_total",
		Help: "Times reply generation was launched from a partial transcript",
	})

	speculativeHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_gateway_speculative_hits_total",
		Help: "Turns that used a speculatively generated reply",
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_synthesis_requests_total",
		Help: "Total number of voice synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_gateway_synthesis_latency_seconds",
		Help:    "Voice synthesis latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Emotion metrics
	emotionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_emotion_transitions_total",
		Help: "Emotion transitions by source",
	}, []string{"source"}) // source: keyword, schedule, arc

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"kind", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "companion_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"provider"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"provider"})

	// Audio metrics
	audioBytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_gateway_audio_bytes_ingested_total",
		Help: "Total audio bytes received from clients",
	})
)

// TurnMetrics tracks stage timings for a single conversation turn.
type TurnMetrics struct {
	turnID         string
	startTime      time.Time
	recogStartTime time.Time
	genStartTime   time.Time
	synthStartTime time.Time
	mu             sync.Mutex
}

// NewTurnMetrics creates a metrics tracker for one turn.
func NewTurnMetrics(turnID string) *TurnMetrics {
	totalTurns.Inc()
	return &TurnMetrics{
		turnID:    turnID,
		startTime: time.Now(),
	}
}

// RecordTurnEnd records the completed turn's total duration.
func (m *TurnMetrics) RecordTurnEnd() {
	turnDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordRecognitionStart marks the start of a recognition call.
func (m *TurnMetrics) RecordRecognitionStart() {
	m.mu.Lock()
	m.recogStartTime = time.Now()
	m.mu.Unlock()
}

// RecordRecognitionEnd records a recognition result for a provider.
func (m *TurnMetrics) RecordRecognitionEnd(provider, mode string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.recogStartTime.IsZero() {
		recognitionLatency.WithLabelValues(provider).Observe(time.Since(m.recogStartTime).Seconds())
	}
	status := "success"
	if !success {
		status = "error"
	}
	recognitionRequests.WithLabelValues(provider, mode, status).Inc()
}

// RecordGenerationStart marks the start of reply generation.
func (m *TurnMetrics) RecordGenerationStart() {
	m.mu.Lock()
	m.genStartTime = time.Now()
	m.mu.Unlock()
}

// RecordGenerationEnd records the generation outcome.
func (m *TurnMetrics) RecordGenerationEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.genStartTime.IsZero() {
		generationLatency.Observe(time.Since(m.genStartTime).Seconds())
	}
	status := "success"
	if !success {
		status = "error"
	}
	generationRequests.WithLabelValues(status).Inc()
}

// RecordSynthesisStart marks the start of voice synthesis.
func (m *TurnMetrics) RecordSynthesisStart() {
	m.mu.Lock()
	m.synthStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSynthesisEnd records the synthesis outcome.
func (m *TurnMetrics) RecordSynthesisEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synthStartTime.IsZero() {
		synthesisLatency.Observe(time.Since(m.synthStartTime).Seconds())
	}
	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
}

// RecordError records an error by kind and component.
func (m *TurnMetrics) RecordError(kind, component string) {
	errorsTotal.WithLabelValues(kind, component).Inc()
}

// SessionStarted increments the active session gauge.
func SessionStarted() {
	activeSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func SessionEnded() {
	activeSessions.Dec()
}

// RecordAudioBytes counts ingested audio bytes.
func RecordAudioBytes(n int64) {
	audioBytesIngested.Add(float64(n))
}

// RecordPartialPollSkipped counts a skipped partial interval.
func RecordPartialPollSkipped() {
	partialPollsSkipped.Inc()
}

// RecordSpeculativeFire counts an early generation launch.
func RecordSpeculativeFire() {
	speculativeFires.Inc()
}

// RecordSpeculativeHit counts a turn that used the early reply.
func RecordSpeculativeHit() {
	speculativeHits.Inc()
}

// RecordEmotionTransition counts a transition by its source.
func RecordEmotionTransition(source string) {
	emotionTransitions.WithLabelValues(source).Inc()
}

// RecordErrorKind records an error outside of any turn tracker.
func RecordErrorKind(kind, component string) {
	errorsTotal.WithLabelValues(kind, component).Inc()
}

// UpdateCircuitBreakerState updates the breaker state gauge for a provider.
func UpdateCircuitBreakerState(provider string, state int) {
	circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the breaker failure counter.
func IncrementCircuitBreakerFailures(provider string) {
	circuitBreakerFailures.WithLabelValues(provider).Inc()
}
