package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("VOICE_API_KEY", "test-voice-key")
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("VOICE_API_KEY")
	})
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("VOICE_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("Expected default WhisperModel 'whisper-1', got '%s'", cfg.WhisperModel)
	}
	if cfg.MinAudioBytes != 1024 {
		t.Errorf("Expected default MinAudioBytes 1024, got %d", cfg.MinAudioBytes)
	}
	if cfg.PartialChunkInterval != 8 {
		t.Errorf("Expected default PartialChunkInterval 8, got %d", cfg.PartialChunkInterval)
	}
	if cfg.SpecMinDistinctPartials != 5 {
		t.Errorf("Expected default SpecMinDistinctPartials 5, got %d", cfg.SpecMinDistinctPartials)
	}
	if cfg.SpecMinPartialChars != 20 {
		t.Errorf("Expected default SpecMinPartialChars 20, got %d", cfg.SpecMinPartialChars)
	}
	if cfg.EmotionIntensityFloor != 0.3 {
		t.Errorf("Expected default EmotionIntensityFloor 0.3, got %f", cfg.EmotionIntensityFloor)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("Expected default SessionStore 'memory', got '%s'", cfg.SessionStore)
	}
}

func TestRecognizers(t *testing.T) {
	tests := []struct {
		name     string
		order    string
		expected []string
	}{
		{"default order", "deepgram,whisper", []string{"deepgram", "whisper"}},
		{"spaces trimmed", " deepgram , whisper ", []string{"deepgram", "whisper"}},
		{"single provider", "whisper", []string{"whisper"}},
		{"empty entries dropped", "deepgram,,whisper,", []string{"deepgram", "whisper"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RecognizerOrder: tt.order}
			got := cfg.Recognizers()
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d providers, got %d (%v)", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected provider %d to be '%s', got '%s'", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestValidate_BadSessionStore(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SESSION_STORE", "redis")
	defer os.Unsetenv("SESSION_STORE")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown SESSION_STORE")
	}
}

func TestValidate_BadIntensityFloor(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("EMOTION_INTENSITY_FLOOR", "1.5")
	defer os.Unsetenv("EMOTION_INTENSITY_FLOOR")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for out-of-range EMOTION_INTENSITY_FLOOR")
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
