package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lumenvoice/companion-gateway/internal/config"
	"github.com/lumenvoice/companion-gateway/internal/fault"
)

// WhisperRecognizer implements Recognizer using OpenAI's audio
// transcription endpoint.
type WhisperRecognizer struct {
	client *openai.Client
	model  string
}

// NewWhisperRecognizer creates a Whisper-backed recognizer.
func NewWhisperRecognizer(cfg *config.Config) *WhisperRecognizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client := openai.NewClient(opts...)
	return &WhisperRecognizer{
		client: &client,
		model:  cfg.WhisperModel,
	}
}

// Name implements Recognizer.
func (w *WhisperRecognizer) Name() string {
	return "whisper"
}

// Transcribe uploads the buffered audio to the transcription endpoint.
func (w *WhisperRecognizer) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	filename := "audio." + extensionFor(mimeType)

	start := time.Now()
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(w.model),
		File:  openai.File(bytes.NewReader(audio), filename, mimeType),
	})
	latency := time.Since(start)
	if err != nil {
		return nil, w.classify(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fault.New(fault.KindEmptyTranscript, "recognition", w.Name(),
			fmt.Errorf("whisper returned no usable transcript"))
	}

	// Whisper does not report confidence for plain transcriptions.
	return &Result{
		Text:      text,
		Provider:  w.Name(),
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// classify prefers the SDK's structured status code over message probing.
func (w *WhisperRecognizer) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fault.New(fault.KindAuthFailure, "recognition", w.Name(), err)
		case 429:
			return fault.New(fault.KindRateLimited, "recognition", w.Name(), err)
		default:
			return fault.New(fault.KindProviderUnavailable, "recognition", w.Name(), err)
		}
	}
	return classifyProviderError(w.Name(), err)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return "wav"
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "mp3"
	case strings.Contains(mimeType, "mp4"):
		return "mp4"
	default:
		return "webm"
	}
}
