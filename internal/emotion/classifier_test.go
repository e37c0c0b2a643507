package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeRunner struct {
	reply string
	err   error
}

func (f *fakeRunner) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, f.err
}

func TestClassifyKnownLabel(t *testing.T) {
	c := NewClassifier(&fakeRunner{reply: "excited"}, zerolog.Nop())
	label, intensity := c.Classify(context.Background(), "we won the finals!")
	if label != Excited {
		t.Errorf("expected excited, got %s", label)
	}
	if intensity <= 0.5 || intensity > 1 {
		t.Errorf("unexpected intensity %v for a high-energy label", intensity)
	}
}

func TestClassifyTrimsAndLowercases(t *testing.T) {
	c := NewClassifier(&fakeRunner{reply: "  Sleepy \n"}, zerolog.Nop())
	label, _ := c.Classify(context.Background(), "yawn")
	if label != Sleepy {
		t.Errorf("expected sleepy, got %s", label)
	}
}

func TestClassifyOutOfTaxonomyCoercesToNeutral(t *testing.T) {
	c := NewClassifier(&fakeRunner{reply: "bewildered"}, zerolog.Nop())
	label, _ := c.Classify(context.Background(), "what is happening")
	if label != Neutral {
		t.Errorf("expected neutral coercion, got %s", label)
	}
}

func TestClassifyErrorDegradesToNeutral(t *testing.T) {
	c := NewClassifier(&fakeRunner{err: errors.New("upstream down")}, zerolog.Nop())
	label, intensity := c.Classify(context.Background(), "anything")
	if label != Neutral || intensity != 0.5 {
		t.Errorf("expected (neutral, 0.5) on failure, got (%s, %v)", label, intensity)
	}
}

func TestClassifyEmptyUtterance(t *testing.T) {
	c := NewClassifier(&fakeRunner{reply: "happy"}, zerolog.Nop())
	label, intensity := c.Classify(context.Background(), "   ")
	if label != Neutral || intensity != 0.5 {
		t.Errorf("expected neutral for blank input, got (%s, %v)", label, intensity)
	}
}
