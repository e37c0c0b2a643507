package turn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/fault"
	"github.com/lumenvoice/companion-gateway/internal/session"
)

func newTestMux(p *testPipeline) *http.ServeMux {
	h := NewHandlers(p.coordinator, nil, p.publisher, p.cache, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/converse", h.Converse)
	mux.HandleFunc("GET /v1/sessions/{id}/state", h.SessionState)
	mux.HandleFunc("GET /audio/{id}", h.Audio)
	return mux
}

func TestConverseEndpointWithText(t *testing.T) {
	p := newTestPipeline(t)
	mux := newTestMux(p)

	body := `{"session_id":"s1","text":"hello friend"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/converse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if result.SessionID != "s1" || result.Reply == "" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestConverseEndpointRejectsEmptyText(t *testing.T) {
	p := newTestPipeline(t)
	mux := newTestMux(p)

	req := httptest.NewRequest(http.MethodPost, "/v1/converse", strings.NewReader(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestConverseEndpointWithAudio(t *testing.T) {
	p := newTestPipeline(t)
	mux := newTestMux(p)

	req := httptest.NewRequest(http.MethodPost, "/v1/converse?session=s2", strings.NewReader("fake-audio"))
	req.Header.Set("Content-Type", "audio/webm")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Transcript != "hello there" {
		t.Errorf("audio converse should transcribe first, got %q", result.Transcript)
	}
	if p.transcriber.calls.Load() != 1 {
		t.Errorf("expected one recognition call, got %d", p.transcriber.calls.Load())
	}
}

func TestSessionStateEndpoint(t *testing.T) {
	p := newTestPipeline(t)
	mux := newTestMux(p)

	phase := session.PhaseSpeaking
	if _, err := p.publisher.Publish(context.Background(), "s7", session.Patch{Phase: &phase}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s7/state", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var rec session.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Phase != session.PhaseSpeaking {
		t.Errorf("unexpected phase: %s", rec.Phase)
	}
}

func TestAudioEndpoint(t *testing.T) {
	p := newTestPipeline(t)
	mux := newTestMux(p)

	id := p.cache.Put([]byte("mp3-bytes"))
	req := httptest.NewRequest(http.MethodGet, "/audio/"+id, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "mp3-bytes" {
		t.Errorf("unexpected body: %q", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/audio/unknown", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown handle, got %d", rr.Code)
	}
}

func TestWriteFaultMapping(t *testing.T) {
	p := newTestPipeline(t)
	h := NewHandlers(p.coordinator, nil, p.publisher, p.cache, zerolog.Nop())

	cases := []struct {
		kind   fault.Kind
		status int
	}{
		{fault.KindEmptyOrShortInput, http.StatusBadRequest},
		{fault.KindEmptyTranscript, http.StatusUnprocessableEntity},
		{fault.KindRateLimited, http.StatusTooManyRequests},
		{fault.KindProviderUnavailable, http.StatusServiceUnavailable},
		{fault.KindAuthFailure, http.StatusBadGateway},
		{fault.KindGenerationFailure, http.StatusBadGateway},
		{fault.KindSynthesisFailure, http.StatusBadGateway},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		err := fault.New(tc.kind, "test", "fake", errors.New("boom"))
		h.writeFault(rr, err, "test")
		if rr.Code != tc.status {
			t.Errorf("%v: expected status %d, got %d", tc.kind, tc.status, rr.Code)
		}
		var body errorBody
		if jsonErr := json.Unmarshal(rr.Body.Bytes(), &body); jsonErr != nil {
			t.Fatalf("%v: bad error body: %v", tc.kind, jsonErr)
		}
		if body.Error.Kind != tc.kind.String() {
			t.Errorf("%v: kind mismatch in body: %q", tc.kind, body.Error.Kind)
		}
		if body.Error.Retryable != fault.IsRetryable(err) {
			t.Errorf("%v: retryable mismatch", tc.kind)
		}
		if fault.IsRetryable(err) && rr.Header().Get("Retry-After") == "" {
			t.Errorf("%v: retryable error should carry Retry-After", tc.kind)
		}
	}
}
