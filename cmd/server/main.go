package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lumenvoice/companion-gateway/internal/config"
	"github.com/lumenvoice/companion-gateway/internal/emotion"
	"github.com/lumenvoice/companion-gateway/internal/llm"
	"github.com/lumenvoice/companion-gateway/internal/observability"
	"github.com/lumenvoice/companion-gateway/internal/session"
	"github.com/lumenvoice/companion-gateway/internal/stt"
	"github.com/lumenvoice/companion-gateway/internal/tts"
	"github.com/lumenvoice/companion-gateway/internal/turn"
)

func main() {
	root := &cobra.Command{
		Use:           "companion-gateway",
		Short:         "Voice companion gateway: streaming recognition, emotion-aware replies and synthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "companion-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("recognizers", cfg.RecognizerOrder).
		Str("session_store", cfg.SessionStore).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Companion gateway starting")

	// Session store.
	var store session.Store
	switch cfg.SessionStore {
	case "badger":
		store, err = session.NewBadgerStore(session.BadgerOptions{Dir: cfg.BadgerDir}, logger)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
	default:
		store = session.NewMemoryStore()
	}
	defer store.Close()
	publisher := session.NewPublisher(store, logger)

	// Recognition chain.
	providers := make([]stt.Recognizer, 0, 2)
	for _, name := range cfg.Recognizers() {
		switch name {
		case "deepgram":
			providers = append(providers, stt.NewDeepgramRecognizer(cfg))
		case "whisper":
			providers = append(providers, stt.NewWhisperRecognizer(cfg))
		default:
			logger.Warn().Str("recognizer", name).Msg("Unknown recognizer in RECOGNIZER_ORDER, skipping")
		}
	}
	recognition := stt.NewOrchestrator(providers, stt.OrchestratorConfig{
		MinAudioBytes:       cfg.MinAudioBytes,
		ProviderTimeout:     time.Duration(cfg.ProviderTimeout) * time.Second,
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		BreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	}, logger)

	// Emotion machinery.
	rules, err := emotion.LoadRules(cfg.EmotionConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load emotion rules: %w", err)
	}
	engine := emotion.NewEngine(rules, emotion.EngineConfig{
		IntensityFloor:   cfg.EmotionIntensityFloor,
		DecayPerMs:       cfg.EmotionDecayPerMs,
		TriggerCooldown:  time.Duration(cfg.EmotionTriggerCooldown) * time.Second,
		ScheduleCooldown: time.Duration(cfg.EmotionScheduleCooldown) * time.Second,
		ArcIdleWindow:    time.Duration(cfg.EmotionArcIdleWindow) * time.Second,
	}, logger)

	// Generation and synthesis.
	llmClient := llm.NewClient(llm.ClientConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ChatModel,
	}, logger)
	classifier := emotion.NewClassifier(llmClient, logger)
	synth := tts.NewClient(tts.ClientConfig{
		APIKey:  cfg.VoiceAPIKey,
		APIURL:  cfg.VoiceAPIURL,
		VoiceID: cfg.VoiceID,
		ModelID: cfg.VoiceModelID,
	}, logger)

	audioCache := turn.NewAudioCache(256)
	coordinator := turn.NewCoordinator(
		recognition,
		llmClient,
		classifier,
		engine,
		publisher,
		store,
		synth,
		audioCache,
		turn.Config{
			Speculative: turn.SpeculativeConfig{
				MinDistinctPartials: cfg.SpecMinDistinctPartials,
				MinPartialChars:     cfg.SpecMinPartialChars,
				MinNewPartialChars:  cfg.SpecMinNewPartialChars,
			},
			GenerationTimeout: time.Duration(cfg.GenerationTimeout) * time.Second,
			SynthesisTimeout:  time.Duration(cfg.SynthesisTimeout) * time.Second,
			PublicBaseURL:     cfg.PublicBaseURL,
		},
		logger,
	)
	handlers := turn.NewHandlers(coordinator, recognition, publisher, audioCache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/streams/conversation", turn.StreamHandler(turn.StreamDeps{
		Coordinator:     coordinator,
		Recognition:     recognition,
		Publisher:       publisher,
		PartialInterval: cfg.PartialChunkInterval,
		DefaultMimeType: "audio/webm",
		Logger:          logger,
	}))
	mux.HandleFunc("POST /v1/transcribe", handlers.Transcribe)
	mux.HandleFunc("POST /v1/converse", handlers.Converse)
	mux.HandleFunc("GET /v1/sessions/{id}/state", handlers.SessionState)
	mux.HandleFunc("GET /audio/{id}", handlers.Audio)

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"session_store": func(ctx context.Context) (bool, error) {
			_, err := publisher.Snapshot(ctx, "readiness-probe")
			return err == nil, err
		},
		"recognition": func(ctx context.Context) (bool, error) {
			if len(providers) == 0 {
				return false, fmt.Errorf("no recognizers configured")
			}
			return true, nil
		},
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/conversation", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("Server exited gracefully")
	return nil
}
