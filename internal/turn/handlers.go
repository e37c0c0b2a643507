package turn

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/fault"
	"github.com/lumenvoice/companion-gateway/internal/observability"
	"github.com/lumenvoice/companion-gateway/internal/session"
	"github.com/lumenvoice/companion-gateway/internal/stt"
)

// maxUploadBytes caps batch audio uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// Handlers exposes the batch HTTP surface of the gateway.
type Handlers struct {
	coordinator *Coordinator
	recognition *stt.Orchestrator
	publisher   *session.Publisher
	audioCache  *AudioCache
	logger      zerolog.Logger
}

// NewHandlers creates the batch HTTP handlers.
func NewHandlers(coordinator *Coordinator, recognition *stt.Orchestrator, publisher *session.Publisher, audioCache *AudioCache, logger zerolog.Logger) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		recognition: recognition,
		publisher:   publisher,
		audioCache:  audioCache,
		logger:      logger.With().Str("component", "http").Logger(),
	}
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
	LatencyMs  int64   `json:"latency_ms"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Transcribe handles POST /v1/transcribe: one-shot recognition of an
// uploaded audio payload.
func (h *Handlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	observability.RecordAudioBytes(int64(len(audio)))

	sw := startStopwatch()
	result, err := h.recognition.Transcribe(r.Context(), audio, requestMimeType(r), stt.ModeFinal)
	if err != nil {
		h.writeFault(w, err, "transcribe")
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:       result.Text,
		Confidence: result.Confidence,
		Provider:   result.Provider,
		LatencyMs:  sw.elapsedMs(),
	})
}

type converseRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Converse handles POST /v1/converse: a full turn in one request.
// A JSON body carries an utterance as text; any other content type is
// treated as audio and transcribed first.
func (h *Handlers) Converse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	turnID := observability.NewTurnID()

	var result *Result
	var err error
	if strings.HasPrefix(requestMimeType(r), "application/json") {
		var req converseRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = observability.NewTurnID()
		}
		result, err = h.coordinator.Converse(r.Context(), sessionID, turnID, req.Text)
	} else {
		audio, readErr := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if readErr != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		observability.RecordAudioBytes(int64(len(audio)))
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = observability.NewTurnID()
		}
		result, err = h.coordinator.CompleteTurn(r.Context(), sessionID, turnID, audio, requestMimeType(r), nil)
	}
	if err != nil {
		h.writeFault(w, err, "converse")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SessionState handles GET /v1/sessions/{id}/state.
func (h *Handlers) SessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.publisher.Snapshot(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Audio handles GET /audio/{id}: serves parked synthesis output.
func (h *Handlers) Audio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	audio, ok := h.audioCache.Get(id)
	if !ok {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// writeFault maps a pipeline error onto an HTTP status. Retryable
// failures carry a Retry-After hint.
func (h *Handlers) writeFault(w http.ResponseWriter, err error, component string) {
	kind := fault.KindOf(err)
	observability.RecordErrorKind(kind.String(), component)
	h.logger.Error().Err(err).Str("kind", kind.String()).Msg("Request failed")

	status := http.StatusInternalServerError
	switch kind {
	case fault.KindEmptyOrShortInput:
		status = http.StatusBadRequest
	case fault.KindEmptyTranscript:
		status = http.StatusUnprocessableEntity
	case fault.KindRateLimited:
		status = http.StatusTooManyRequests
	case fault.KindProviderUnavailable:
		status = http.StatusServiceUnavailable
	case fault.KindAuthFailure, fault.KindGenerationFailure, fault.KindSynthesisFailure:
		status = http.StatusBadGateway
	}

	if fault.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Kind:      kind.String(),
		Message:   err.Error(),
		Retryable: fault.IsRetryable(err),
	}})
}

func requestMimeType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
