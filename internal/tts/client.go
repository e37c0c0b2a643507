package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/fault"
)

// Client implements Synthesizer against a Cartesia-style HTTP voice API.
type Client struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig holds the settings needed to build a Client.
type ClientConfig struct {
	APIKey  string
	APIURL  string
	VoiceID string
	ModelID string
}

type synthesisRequest struct {
	Text         string  `json:"text"`
	VoiceID      string  `json:"voice_id"`
	ModelID      string  `json:"model_id,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
	Stability    float64 `json:"stability,omitempty"`
}

// NewClient creates a voice synthesis client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		voiceID:    cfg.VoiceID,
		modelID:    cfg.ModelID,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "tts").Logger(),
	}
}

// Synthesize converts text into a single audio payload.
func (c *Client) Synthesize(ctx context.Context, text string, params Params) ([]byte, error) {
	reqBody := synthesisRequest{
		Text:         text,
		VoiceID:      c.voiceID,
		ModelID:      c.modelID,
		OutputFormat: "mp3",
		SampleRate:   24000,
		Speed:        params.Speed,
		Stability:    params.Stability,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("failed to reach voice API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("voice API returned status %d", resp.StatusCode))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("failed to read audio response: %w", err))
	}
	if len(audio) == 0 {
		return nil, fault.New(fault.KindSynthesisFailure, "synthesis", "voice",
			fmt.Errorf("voice API returned empty audio"))
	}

	c.logger.Debug().Int("audio_bytes", len(audio)).Msg("Synthesis complete")
	return audio, nil
}
