package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
	"github.com/lumenvoice/companion-gateway/internal/fault"
)

func TestParamsForHighEnergy(t *testing.T) {
	state := emotion.NewState(time.Now())
	state.Current = emotion.Excited
	state.Intensity = 0.9

	p := ParamsFor(state)
	if p.Speed <= 1.0 {
		t.Errorf("excited speech should be faster than neutral, got %v", p.Speed)
	}
	if p.Stability >= 0.8 {
		t.Errorf("excited speech should be less stable, got %v", p.Stability)
	}
}

func TestParamsForLowEnergy(t *testing.T) {
	state := emotion.NewState(time.Now())
	state.Current = emotion.Sleepy
	state.Intensity = 0.9

	p := ParamsFor(state)
	if p.Speed >= 1.0 {
		t.Errorf("sleepy speech should be slower than neutral, got %v", p.Speed)
	}
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Text != "hello" || req.VoiceID != "v1" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key", APIURL: srv.URL, VoiceID: "v1"}, zerolog.Nop())
	audio, err := c.Synthesize(context.Background(), "hello", Params{Speed: 1.0, Stability: 0.5})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Errorf("unexpected audio payload: %q", audio)
	}
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key", APIURL: srv.URL, VoiceID: "v1"}, zerolog.Nop())
	_, err := c.Synthesize(context.Background(), "hello", Params{})
	if err == nil {
		t.Fatal("expected error on upstream failure")
	}
	if fault.KindOf(err) != fault.KindSynthesisFailure {
		t.Errorf("expected synthesis failure kind, got %v", fault.KindOf(err))
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key", APIURL: srv.URL, VoiceID: "v1"}, zerolog.Nop())
	if _, err := c.Synthesize(context.Background(), "hello", Params{}); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}
