package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the companion gateway service.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service. Used to build absolute audio URLs
	// in synthesis_ready events. Optional; relative URLs are served when unset.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:""`

	// Recognition providers, tried in order. Known values: deepgram, whisper.
	RecognizerOrder string `envconfig:"RECOGNIZER_ORDER" default:"deepgram,whisper"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// OpenAI configuration (Whisper recognition + reply generation)
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`
	ChatModel     string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	WhisperModel  string `envconfig:"WHISPER_MODEL" default:"whisper-1"`

	// Voice synthesis API configuration
	VoiceAPIKey  string `envconfig:"VOICE_API_KEY" required:"true"`
	VoiceAPIURL  string `envconfig:"VOICE_API_URL" default:"https://api.cartesia.ai/v1/tts"`
	VoiceID      string `envconfig:"VOICE_ID" default:"sonic-english"`
	VoiceModelID string `envconfig:"VOICE_MODEL_ID" default:"sonic"`

	// Recognition orchestration
	MinAudioBytes        int `envconfig:"MIN_AUDIO_BYTES" default:"1024"`      // reject shorter buffers pre-flight
	PartialChunkInterval int `envconfig:"PARTIAL_CHUNK_INTERVAL" default:"8"`  // partial transcription every N chunks
	ProviderTimeout      int `envconfig:"PROVIDER_TIMEOUT" default:"30"`       // seconds, per transcription attempt
	RetryMaxAttempts     int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`      // per-provider attempts for transient failures
	RetryInitialBackoff  int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	GenerationTimeout    int `envconfig:"GENERATION_TIMEOUT" default:"20"`     // seconds
	SynthesisTimeout     int `envconfig:"SYNTHESIS_TIMEOUT" default:"20"`      // seconds

	// Circuit breaker per recognition provider
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds

	// Speculative generation
	SpecMinDistinctPartials int `envconfig:"SPEC_MIN_DISTINCT_PARTIALS" default:"5"`
	SpecMinPartialChars     int `envconfig:"SPEC_MIN_PARTIAL_CHARS" default:"20"`
	SpecMinNewPartialChars  int `envconfig:"SPEC_MIN_NEW_PARTIAL_CHARS" default:"2"` // length below which a partial never counts as distinct

	// Emotion engine
	EmotionConfigPath       string  `envconfig:"EMOTION_CONFIG_PATH" default:""` // YAML triggers/arcs; built-in defaults when empty
	EmotionIntensityFloor   float64 `envconfig:"EMOTION_INTENSITY_FLOOR" default:"0.3"`
	EmotionDecayPerMs       float64 `envconfig:"EMOTION_DECAY_PER_MS" default:"0.00001"`
	EmotionTriggerCooldown  int     `envconfig:"EMOTION_TRIGGER_COOLDOWN" default:"10"`   // seconds between keyword transitions
	EmotionScheduleCooldown int     `envconfig:"EMOTION_SCHEDULE_COOLDOWN" default:"120"` // seconds before a time-based transition
	EmotionArcIdleWindow    int     `envconfig:"EMOTION_ARC_IDLE_WINDOW" default:"180"`   // seconds of idle before a mood-arc step

	// Session store: memory or badger
	SessionStore string `envconfig:"SESSION_STORE" default:"memory"`
	BadgerDir    string `envconfig:"BADGER_DIR" default:"./data/sessions"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from the environment, first merging a .env
// file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.VoiceAPIKey == "" {
		return fmt.Errorf("VOICE_API_KEY is required")
	}
	if len(c.Recognizers()) == 0 {
		return fmt.Errorf("RECOGNIZER_ORDER must name at least one provider")
	}
	switch c.SessionStore {
	case "memory", "badger":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or badger, got %q", c.SessionStore)
	}
	if c.EmotionIntensityFloor <= 0 || c.EmotionIntensityFloor >= 1 {
		return fmt.Errorf("EMOTION_INTENSITY_FLOOR must be in (0, 1), got %g", c.EmotionIntensityFloor)
	}
	if c.PartialChunkInterval < 1 {
		return fmt.Errorf("PARTIAL_CHUNK_INTERVAL must be positive, got %d", c.PartialChunkInterval)
	}
	return nil
}

// Recognizers returns the configured provider order, trimmed and with
// empty entries removed.
func (c *Config) Recognizers() []string {
	parts := strings.Split(c.RecognizerOrder, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}
