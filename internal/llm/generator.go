package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
	"github.com/lumenvoice/companion-gateway/internal/fault"
)

// Generator produces a companion reply for a user utterance, shaped by
// the session's current emotional state.
type Generator interface {
	Generate(ctx context.Context, utterance string, state emotion.State) (string, error)
}

// Client wraps the OpenAI chat API for reply generation and for
// single-shot prompts. It satisfies both Generator and the emotion
// package's PromptRunner.
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// ClientConfig holds the settings needed to build a Client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient creates an OpenAI-backed generation client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{
		client: &client,
		model:  cfg.Model,
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// Complete runs a single system/user prompt pair and returns the raw
// model text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fault.New(fault.KindGenerationFailure, "generation", "openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", fault.New(fault.KindGenerationFailure, "generation", "openai",
			fmt.Errorf("chat completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate builds an emotion-conditioned reply to the utterance.
func (c *Client) Generate(ctx context.Context, utterance string, state emotion.State) (string, error) {
	text, err := c.Complete(ctx, companionPrompt(state), utterance)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(text)
	if reply == "" {
		return "", fault.New(fault.KindGenerationFailure, "generation", "openai",
			fmt.Errorf("chat completion returned empty text"))
	}
	c.logger.Debug().Int("reply_len", len(reply)).Msg("Generated reply")
	return reply, nil
}

func companionPrompt(state emotion.State) string {
	return fmt.Sprintf(`You are a warm voice companion in an ongoing spoken conversation.
Your current mood is %s (intensity %.2f) with a %s tone. Let the mood color
your wording without announcing it. Keep replies short and conversational,
one or two sentences, suitable for text-to-speech.`,
		state.Current, state.Intensity, state.Tone)
}
