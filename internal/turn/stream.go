package turn

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/audio"
	"github.com/lumenvoice/companion-gateway/internal/fault"
	"github.com/lumenvoice/companion-gateway/internal/observability"
	"github.com/lumenvoice/companion-gateway/internal/session"
	"github.com/lumenvoice/companion-gateway/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Companion clients connect from app webviews; origin checks
		// are enforced at the edge.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is a control frame from the client. Audio arrives as
// binary frames, everything else as JSON text frames.
type clientMessage struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type,omitempty"`
}

// serverEvent is the envelope for every frame the gateway sends.
// IsFinal is a pointer so transcript frames carry an explicit false.
type serverEvent struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	Transcript  string          `json:"transcript,omitempty"`
	IsFinal     *bool           `json:"is_final,omitempty"`
	Reply       string          `json:"reply,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
	Emotion     string          `json:"emotion,omitempty"`
	Intensity   float64         `json:"intensity,omitempty"`
	Speculative bool            `json:"speculative,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	Timing      *Timing         `json:"timings,omitempty"`
	State       *session.Record `json:"state,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Retryable   bool            `json:"retryable,omitempty"`
}

// StreamDeps carries what the websocket handler needs.
type StreamDeps struct {
	Coordinator     *Coordinator
	Recognition     *stt.Orchestrator
	Publisher       *session.Publisher
	PartialInterval int
	DefaultMimeType string
	Logger          zerolog.Logger
}

// streamSession is the server side of one duplex conversation stream.
// The poller, speculator and buffer are per-turn; the turn context is
// cancelled when the turn ends so superseded partial work is dropped.
type streamSession struct {
	deps      StreamDeps
	conn      *websocket.Conn
	sessionID string
	logger    zerolog.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	buffer     *audio.ChunkBuffer
	spec       *Speculator
	poller     *stt.PartialPoller
	turnCtx    context.Context
	turnCancel context.CancelFunc
	turnID     string
	mimeType   string
	inTurn     bool
}

// StreamHandler upgrades the connection and runs the conversation
// loop until the client disconnects.
func StreamHandler(deps StreamDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
			return
		}
		defer conn.Close()

		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = observability.NewTurnID()
		}

		s := &streamSession{
			deps:      deps,
			conn:      conn,
			sessionID: sessionID,
			logger:    deps.Logger.With().Str("session_id", sessionID).Logger(),
			mimeType:  deps.DefaultMimeType,
		}
		s.run(r.Context())
	}
}

func (s *streamSession) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observability.SessionStarted()
	defer observability.SessionEnded()
	defer s.deps.Coordinator.EndSession(context.WithoutCancel(ctx), s.sessionID)

	s.beginTurn(ctx)
	s.logger.Info().Msg("Conversation stream opened")

	s.sendEvent(serverEvent{Type: "session", SessionID: s.sessionID})
	if rec, err := s.deps.Publisher.Snapshot(ctx, s.sessionID); err == nil {
		s.sendEvent(serverEvent{Type: "state", State: &rec})
	}

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			s.logger.Info().Msg("Conversation stream closed")
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleChunk(ctx, data)

		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Error().Err(err).Msg("Failed to parse control message")
				continue
			}
			switch msg.Type {
			case "start":
				if msg.MimeType != "" {
					s.mu.Lock()
					s.mimeType = msg.MimeType
					s.mu.Unlock()
				}
			case "end":
				s.handleEnd(ctx)
			case "close":
				return
			default:
				s.logger.Debug().Str("type", msg.Type).Msg("Unknown control message")
			}
		}
	}
}

// handleChunk appends audio to the active turn and drives partial
// polling.
func (s *streamSession) handleChunk(ctx context.Context, data []byte) {
	s.mu.Lock()
	buf := s.buffer
	poller := s.poller
	turnCtx := s.turnCtx
	wasIdle := !s.inTurn
	if len(data) > 0 {
		s.inTurn = true
	}
	s.mu.Unlock()

	if len(data) == 0 {
		return
	}

	observability.RecordAudioBytes(int64(len(data)))
	buf.Append(data)

	if wasIdle {
		phase := session.PhaseListening
		if _, err := s.deps.Publisher.Publish(ctx, s.sessionID, session.Patch{Phase: &phase}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish listening phase")
		}
	}

	poller.OnChunk(turnCtx, buf)
}

// forwardPartials relays one turn's partial transcripts to the client
// and feeds the speculator. It exits when the turn context is
// cancelled, dropping any partial that lost the race with the final
// transcript. Speculation runs under the session context so an early
// generation already in flight survives the end of its turn.
func (s *streamSession) forwardPartials(sessionCtx, turnCtx context.Context, poller *stt.PartialPoller, spec *Speculator) {
	notFinal := false
	for {
		select {
		case result := <-poller.Results():
			if turnCtx.Err() != nil {
				return
			}
			spec.Observe(sessionCtx, result.Text)
			s.sendEvent(serverEvent{
				Type:       "partial_transcript",
				Transcript: result.Text,
				IsFinal:    &notFinal,
				Provider:   result.Provider,
				Confidence: result.Confidence,
				Timing:     &Timing{RecognitionMs: result.LatencyMs},
			})

		case <-turnCtx.Done():
			return
		}
	}
}

// handleEnd seals the turn and runs the completion pipeline.
func (s *streamSession) handleEnd(ctx context.Context) {
	s.mu.Lock()
	sealed := s.buffer.Seal()
	spec := s.spec
	turnID := s.turnID
	mimeType := s.mimeType
	cancelTurn := s.turnCancel
	s.mu.Unlock()

	// The sealed buffer supersedes any partial work still in flight;
	// stop the poller and its forwarder before completing the turn so
	// late partials are dropped instead of delivered after the final
	// transcript.
	cancelTurn()

	defer s.beginTurn(ctx)

	result, err := s.deps.Coordinator.CompleteTurn(ctx, s.sessionID, turnID, sealed, mimeType, spec)
	if err != nil {
		s.sendError(err)
		return
	}

	isFinal := true
	s.sendEvent(serverEvent{
		Type:       "final_transcript",
		Transcript: result.Transcript,
		IsFinal:    &isFinal,
		Provider:   result.Provider,
		Confidence: result.Confidence,
		Timing:     &Timing{RecognitionMs: result.Timing.RecognitionMs},
	})
	s.sendEvent(serverEvent{
		Type:        "generated_reply",
		Reply:       result.Reply,
		Emotion:     string(result.Emotion),
		Intensity:   result.Intensity,
		Speculative: result.Speculative,
		Timing:      &result.Timing,
	})
	if result.AudioURL != "" {
		s.sendEvent(serverEvent{Type: "synthesis_ready", AudioURL: result.AudioURL, Timing: &result.Timing})
	}
	if rec, err := s.deps.Publisher.Snapshot(ctx, s.sessionID); err == nil {
		s.sendEvent(serverEvent{Type: "state", State: &rec})
	}
}

// beginTurn resets per-turn state for the next utterance: a fresh
// buffer, speculator and poller, and a turn context the forwarder
// lives under.
func (s *streamSession) beginTurn(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turnCtx, cancel := context.WithCancel(ctx)
	s.turnCtx = turnCtx
	s.turnCancel = cancel
	s.buffer = audio.NewChunkBuffer()
	s.spec = s.deps.Coordinator.NewSpeculator(s.sessionID)
	s.turnID = observability.NewTurnID()
	s.inTurn = false
	s.poller = stt.NewPartialPoller(s.deps.Recognition, s.deps.PartialInterval, s.mimeType, s.logger)
	go s.forwardPartials(ctx, turnCtx, s.poller, s.spec)
}

func (s *streamSession) sendError(err error) {
	kind := fault.KindOf(err)
	observability.RecordErrorKind(kind.String(), "stream")
	s.sendEvent(serverEvent{
		Type:      "error",
		Kind:      kind.String(),
		Message:   err.Error(),
		Retryable: fault.IsRetryable(err),
	})
}

// sendEvent writes one JSON frame. Writes are serialized; a failed
// write is logged and the read loop will notice the dead connection.
func (s *streamSession) sendEvent(ev serverEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		s.logger.Debug().Err(err).Str("event", ev.Type).Msg("Failed to write event")
	}
}
