package turn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
	"github.com/lumenvoice/companion-gateway/internal/observability"
	"github.com/lumenvoice/companion-gateway/internal/session"
	"github.com/lumenvoice/companion-gateway/internal/stt"
	"github.com/lumenvoice/companion-gateway/internal/tts"
)

// Transcriber is the recognition entry point the pipeline depends on.
// The stt orchestrator satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, mode stt.Mode) (*stt.Result, error)
}

// Generator produces the companion's reply text.
type Generator interface {
	Generate(ctx context.Context, utterance string, state emotion.State) (string, error)
}

// SentimentClassifier labels an utterance's emotional tone. It never
// fails; errors degrade to a neutral reading inside the classifier.
type SentimentClassifier interface {
	Classify(ctx context.Context, utterance string) (emotion.Label, float64)
}

// sentiment is a classified label with its suggested intensity.
type sentiment struct {
	label     emotion.Label
	intensity float64
}

// Config tunes the turn pipeline.
type Config struct {
	Speculative       SpeculativeConfig
	GenerationTimeout time.Duration
	SynthesisTimeout  time.Duration
	PublicBaseURL     string
}

// Result is the outcome of one completed turn.
type Result struct {
	SessionID   string        `json:"session_id"`
	TurnID      string        `json:"turn_id"`
	Transcript  string        `json:"transcript"`
	Confidence  float64       `json:"confidence"`
	Provider    string        `json:"provider"`
	Reply       string        `json:"reply"`
	Emotion     emotion.Label `json:"emotion"`
	Intensity   float64       `json:"intensity"`
	AudioURL    string        `json:"audio_url,omitempty"`
	Speculative bool          `json:"speculative"`
	Timing      Timing        `json:"timing"`
}

// Coordinator runs the turn pipeline: recognition, emotion update,
// reply generation and voice synthesis, publishing session state as
// the turn moves through its phases.
type Coordinator struct {
	recognizer Transcriber
	generator  Generator
	classifier SentimentClassifier
	engine     *emotion.Engine
	publisher  *session.Publisher
	store      session.Store
	synth      tts.Synthesizer
	audioCache *AudioCache
	cfg        Config
	logger     zerolog.Logger
}

// NewCoordinator wires the pipeline together.
func NewCoordinator(
	recognizer Transcriber,
	generator Generator,
	classifier SentimentClassifier,
	engine *emotion.Engine,
	publisher *session.Publisher,
	store session.Store,
	synth tts.Synthesizer,
	audioCache *AudioCache,
	cfg Config,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		recognizer: recognizer,
		generator:  generator,
		classifier: classifier,
		engine:     engine,
		publisher:  publisher,
		store:      store,
		synth:      synth,
		audioCache: audioCache,
		cfg:        cfg,
		logger:     logger.With().Str("component", "turn").Logger(),
	}
}

// NewSpeculator builds a speculator whose early generation runs the
// classifier and the generator concurrently against the partial
// transcript, using the session's emotion state as it stands now.
func (c *Coordinator) NewSpeculator(sessionID string) *Speculator {
	run := func(ctx context.Context, partial string) speculativeResult {
		genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
		defer cancel()

		state := c.emotionState(genCtx, sessionID)

		var (
			wg    sync.WaitGroup
			sent  sentiment
			reply string
			err   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			sent.label, sent.intensity = c.classifier.Classify(genCtx, partial)
		}()
		go func() {
			defer wg.Done()
			reply, err = c.generator.Generate(genCtx, partial, state)
		}()
		wg.Wait()

		return speculativeResult{reply: reply, sentiment: sent, err: err}
	}
	return NewSpeculator(c.cfg.Speculative, run, c.logger.With().Str("session_id", sessionID).Logger())
}

// CompleteTurn finishes a turn from sealed audio: final recognition,
// then the reply path. spec may be nil when no partials were streamed.
func (c *Coordinator) CompleteTurn(ctx context.Context, sessionID, turnID string, audio []byte, mimeType string, spec *Speculator) (*Result, error) {
	metrics := observability.NewTurnMetrics(turnID)
	defer metrics.RecordTurnEnd()

	total := startStopwatch()
	result := &Result{SessionID: sessionID, TurnID: turnID}
	logger := c.logger.With().Str("session_id", sessionID).Str("turn_id", turnID).Logger()

	c.publishPhase(ctx, sessionID, session.PhaseThinking)

	recog := startStopwatch()
	metrics.RecordRecognitionStart()
	recognized, err := c.recognizer.Transcribe(ctx, audio, mimeType, stt.ModeFinal)
	if err != nil {
		metrics.RecordRecognitionEnd("none", "final", false)
		c.publishPhase(ctx, sessionID, session.PhaseIdle)
		return nil, err
	}
	metrics.RecordRecognitionEnd(recognized.Provider, "final", true)
	result.Transcript = recognized.Text
	result.Confidence = recognized.Confidence
	result.Provider = recognized.Provider
	result.Timing.RecognitionMs = recog.elapsedMs()

	gen := startStopwatch()
	reply, sent, speculative := c.resolveReply(ctx, sessionID, spec)
	if reply == "" {
		// Speculation missed or never fired; run the full path.
		var genErr error
		reply, sent, genErr = c.generateReply(ctx, sessionID, recognized.Text, metrics)
		if genErr != nil {
			c.publishPhase(ctx, sessionID, session.PhaseIdle)
			return nil, genErr
		}
	}
	result.Reply = reply
	result.Speculative = speculative
	result.Timing.GenerationMs = gen.elapsedMs()

	state := c.advanceEmotion(ctx, sessionID, recognized.Text, reply, sent)
	result.Emotion = state.Current
	result.Intensity = state.Intensity

	synthURL, synthMs, err := c.synthesize(ctx, sessionID, reply, state, metrics)
	if err != nil {
		// A reply without audio is not a completed turn; the caller
		// decides whether to fall back to a local rendering.
		c.publishPhase(ctx, sessionID, session.PhaseIdle)
		return nil, err
	}
	result.AudioURL = synthURL
	result.Timing.SynthesisMs = synthMs

	c.publishState(ctx, sessionID, session.PhaseSpeaking, state, synthURL)
	result.Timing.TotalMs = total.elapsedMs()

	logger.Info().
		Str("emotion", string(state.Current)).
		Bool("speculative", speculative).
		Int64("total_ms", result.Timing.TotalMs).
		Msg("Turn complete")
	return result, nil
}

// Converse runs the reply path for an utterance that arrived as text,
// skipping recognition. Used by the batch endpoint.
func (c *Coordinator) Converse(ctx context.Context, sessionID, turnID, utterance string) (*Result, error) {
	metrics := observability.NewTurnMetrics(turnID)
	defer metrics.RecordTurnEnd()

	total := startStopwatch()
	result := &Result{SessionID: sessionID, TurnID: turnID, Transcript: utterance}

	c.publishPhase(ctx, sessionID, session.PhaseThinking)

	gen := startStopwatch()
	reply, sent, err := c.generateReply(ctx, sessionID, utterance, metrics)
	if err != nil {
		c.publishPhase(ctx, sessionID, session.PhaseIdle)
		return nil, err
	}
	result.Reply = reply
	result.Timing.GenerationMs = gen.elapsedMs()

	state := c.advanceEmotion(ctx, sessionID, utterance, reply, sent)
	result.Emotion = state.Current
	result.Intensity = state.Intensity

	synthURL, synthMs, err := c.synthesize(ctx, sessionID, reply, state, metrics)
	if err != nil {
		c.publishPhase(ctx, sessionID, session.PhaseIdle)
		return nil, err
	}
	result.AudioURL = synthURL
	result.Timing.SynthesisMs = synthMs

	c.publishState(ctx, sessionID, session.PhaseSpeaking, state, synthURL)
	result.Timing.TotalMs = total.elapsedMs()
	return result, nil
}

// EndSession publishes the idle phase and releases per-session state
// kept by the coordinator.
func (c *Coordinator) EndSession(ctx context.Context, sessionID string) {
	c.publishPhase(ctx, sessionID, session.PhaseIdle)
}

// resolveReply serves the cached speculative reply when one is ready.
// The early reply is intentionally not re-checked against the final
// transcript; the race only pays off if its result is trusted.
func (c *Coordinator) resolveReply(ctx context.Context, sessionID string, spec *Speculator) (string, sentiment, bool) {
	if spec == nil || !spec.Fired() {
		return "", sentiment{}, false
	}
	awaitCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	result, ok := spec.Await(awaitCtx)
	if !ok {
		return "", sentiment{}, false
	}
	observability.RecordSpeculativeHit()
	c.logger.Debug().Str("session_id", sessionID).Msg("Speculative reply won the race")
	return result.reply, result.sentiment, true
}

// generateReply classifies and generates concurrently for the final
// transcript.
func (c *Coordinator) generateReply(ctx context.Context, sessionID, utterance string, metrics *observability.TurnMetrics) (string, sentiment, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	state := c.emotionState(genCtx, sessionID)

	var (
		wg    sync.WaitGroup
		sent  sentiment
		reply string
		err   error
	)
	metrics.RecordGenerationStart()
	wg.Add(2)
	go func() {
		defer wg.Done()
		sent.label, sent.intensity = c.classifier.Classify(genCtx, utterance)
	}()
	go func() {
		defer wg.Done()
		reply, err = c.generator.Generate(genCtx, utterance, state)
	}()
	wg.Wait()
	metrics.RecordGenerationEnd(err == nil)

	if err != nil {
		return "", sentiment{}, err
	}
	return reply, sent, nil
}

// advanceEmotion runs the state machine for this utterance, folds in
// the classifier's reading when the machine had nothing to say, and
// persists the result.
func (c *Coordinator) advanceEmotion(ctx context.Context, sessionID, utterance, reply string, sent sentiment) emotion.State {
	state := c.emotionState(ctx, sessionID)
	now := time.Now()

	patch := c.engine.Advance(state, utterance, reply, now)
	if patch.Current == nil && sent.label != "" && sent.label != state.Current && sent.label != emotion.Neutral {
		// No rule matched; let the classifier nudge the mood.
		patch.Current = &sent.label
		if patch.Intensity == nil {
			patch.Intensity = &sent.intensity
		}
		patch.LastTransitionAt = &now
		observability.RecordEmotionTransition("classifier")
	}
	state = patch.Apply(state)

	if err := c.store.SaveEmotion(ctx, sessionID, state); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist emotion state")
	}
	return state
}

// emotionState loads the session's emotion state, starting fresh for
// unknown sessions.
func (c *Coordinator) emotionState(ctx context.Context, sessionID string) emotion.State {
	state, err := c.store.LoadEmotion(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return emotion.NewState(time.Now())
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load emotion state")
		return emotion.NewState(time.Now())
	}
	return state
}

func (c *Coordinator) synthesize(ctx context.Context, sessionID, reply string, state emotion.State, metrics *observability.TurnMetrics) (string, int64, error) {
	synthCtx, cancel := context.WithTimeout(ctx, c.cfg.SynthesisTimeout)
	defer cancel()

	sw := startStopwatch()
	metrics.RecordSynthesisStart()
	audio, err := c.synth.Synthesize(synthCtx, reply, tts.ParamsFor(state))
	metrics.RecordSynthesisEnd(err == nil)
	if err != nil {
		return "", sw.elapsedMs(), err
	}

	id := c.audioCache.Put(audio)
	return c.cfg.PublicBaseURL + "/audio/" + id, sw.elapsedMs(), nil
}

func (c *Coordinator) publishPhase(ctx context.Context, sessionID string, phase session.Phase) {
	if _, err := c.publisher.Publish(ctx, sessionID, session.Patch{Phase: &phase}); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to publish session phase")
	}
}

func (c *Coordinator) publishState(ctx context.Context, sessionID string, phase session.Phase, state emotion.State, audioURL string) {
	label := state.Current
	energy := state.Current.Energy()
	patch := session.Patch{Phase: &phase, Emotion: &label, Energy: &energy}
	if audioURL != "" {
		patch.LastAudioURL = &audioURL
	}
	if _, err := c.publisher.Publish(ctx, sessionID, patch); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to publish session state")
	}
}
