package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lumenvoice/companion-gateway/internal/config"
	"github.com/lumenvoice/companion-gateway/internal/fault"
)

// DeepgramRecognizer implements Recognizer using Deepgram's prerecorded
// REST API.
type DeepgramRecognizer struct {
	client   *listenv1rest.Client
	model    string
	language string
}

// NewDeepgramRecognizer creates a Deepgram-backed recognizer.
func NewDeepgramRecognizer(cfg *config.Config) *DeepgramRecognizer {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	return &DeepgramRecognizer{
		client:   listenv1rest.New(rest),
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
	}
}

// Name implements Recognizer.
func (d *DeepgramRecognizer) Name() string {
	return "deepgram"
}

// Transcribe sends the buffered audio to Deepgram and returns the best
// alternative of the first channel.
func (d *DeepgramRecognizer) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	start := time.Now()
	res, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
	latency := time.Since(start)
	if err != nil {
		return nil, classifyProviderError(d.Name(), err)
	}

	text, confidence := bestAlternative(res)
	if strings.TrimSpace(text) == "" {
		return nil, fault.New(fault.KindEmptyTranscript, "recognition", d.Name(),
			fmt.Errorf("deepgram returned no usable transcript"))
	}

	return &Result{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		Provider:   d.Name(),
		LatencyMs:  latency.Milliseconds(),
	}, nil
}

func bestAlternative(res *restinterfaces.PreRecordedResponse) (string, float64) {
	if res == nil || len(res.Results.Channels) == 0 {
		return "", 0
	}
	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", 0
	}
	return alts[0].Transcript, alts[0].Confidence
}
