package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(BadgerOptions{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open badger store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerRecordRoundTrip(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	if _, err := s.LoadRecord(ctx, "s1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := NewRecord()
	rec.Phase = PhaseSpeaking
	rec.Emotion = emotion.Excited
	rec.LastAudioURL = "/audio/abc"
	if err := s.SaveRecord(ctx, "s1", rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecord(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != PhaseSpeaking || got.Emotion != emotion.Excited || got.LastAudioURL != "/audio/abc" {
		t.Errorf("record did not round-trip: %+v", got)
	}
}

func TestBadgerEmotionPersistsAcrossTurns(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	state := emotion.NewState(time.Now().Add(-time.Hour))
	state.Current = emotion.Melancholy
	state.Intensity = 0.75
	state.Tone = emotion.ToneDeep
	if err := s.SaveEmotion(ctx, "s1", state); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadEmotion(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Current != emotion.Melancholy || got.Intensity != 0.75 || got.Tone != emotion.ToneDeep {
		t.Errorf("emotion state did not round-trip: %+v", got)
	}
}

func TestBadgerDelete(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	if err := s.SaveRecord(ctx, "s1", NewRecord()); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadRecord(ctx, "s1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent session is not an error.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("delete of missing session failed: %v", err)
	}
}
