package emotion

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// PromptRunner runs a single system/user prompt pair and returns the
// model's raw text. The llm package's client satisfies this.
type PromptRunner interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const classifierSystemPrompt = `You label the emotional tone of a short spoken utterance.
Reply with exactly one word from this list and nothing else:
happy, excited, curious, affectionate, playful, melancholy, sleepy, calm, neutral.`

// Classifier assigns an emotion label to an utterance via zero-shot
// prompting. Classification is advisory: any failure degrades to a
// neutral reading instead of surfacing an error.
type Classifier struct {
	runner PromptRunner
	logger zerolog.Logger
}

// NewClassifier creates a sentiment classifier backed by the given runner.
func NewClassifier(runner PromptRunner, logger zerolog.Logger) *Classifier {
	return &Classifier{runner: runner, logger: logger}
}

// Classify returns the emotion label for the utterance along with a
// suggested intensity. Out-of-taxonomy answers coerce to Neutral, and
// runner errors degrade to (Neutral, 0.5).
func (c *Classifier) Classify(ctx context.Context, utterance string) (Label, float64) {
	if strings.TrimSpace(utterance) == "" {
		return Neutral, 0.5
	}

	raw, err := c.runner.Complete(ctx, classifierSystemPrompt, utterance)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Sentiment classification failed, defaulting to neutral")
		return Neutral, 0.5
	}

	label := Coerce(strings.TrimSpace(strings.ToLower(raw)))
	intensity := 0.4 + 0.5*label.Energy()
	if intensity > 1 {
		intensity = 1
	}
	return label, intensity
}
