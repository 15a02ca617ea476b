package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		TimeoutSeconds: 2,
	}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func respond(t *testing.T, w http.ResponseWriter, parts ...map[string]any) {
	t.Helper()
	body := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateBase64Inline(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.SafetySettings) != 4 {
			t.Errorf("safety settings = %d, want 4", len(req.SafetySettings))
		}
		if req.GenerationConfig.ImageConfig.AspectRatio != "1:1" {
			t.Errorf("aspect ratio = %q", req.GenerationConfig.ImageConfig.AspectRatio)
		}
		respond(t, w, map[string]any{
			"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(raw)},
		})
	})

	got, err := client.Generate(context.Background(), "a prompt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("decoded bytes mismatch: %v", got)
	}
}

func TestGenerateRawPassthroughOnDecodeFailure(t *testing.T) {
	// Not valid base64; payload must come back unchanged.
	payload := "!!not-base64!!"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, map[string]any{
			"inlineData": map[string]any{"data": payload},
		})
	})

	got, err := client.Generate(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("raw passthrough mismatch: %q", got)
	}
}

func TestGenerateFirstInlinePartWins(t *testing.T) {
	first := base64.StdEncoding.EncodeToString([]byte("first"))
	second := base64.StdEncoding.EncodeToString([]byte("second"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w,
			map[string]any{"text": "here is your image"},
			map[string]any{"inlineData": map[string]any{"data": first}},
			map[string]any{"inlineData": map[string]any{"data": second}},
		)
	})

	got, err := client.Generate(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "first" {
		t.Errorf("expected first inline part, got %q", got)
	}
}

func TestGenerateTextOnlyIsEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, map[string]any{"text": "I cannot draw that"})
	})

	_, err := client.Generate(context.Background(), "p")
	if KindOf(err) != KindEmptyResult {
		t.Errorf("kind = %s, want empty_result (%v)", KindOf(err), err)
	}
}

func TestGenerateNoCandidatesIsEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Generate(context.Background(), "p")
	if KindOf(err) != KindEmptyResult {
		t.Errorf("kind = %s, want empty_result (%v)", KindOf(err), err)
	}
}

func TestGenerateServerErrorIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(), "p")
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %s, want transport (%v)", KindOf(err), err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-blocked:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	// Unblock the handler before srv.Close waits on it; cleanups run LIFO.
	t.Cleanup(func() { close(blocked) })

	client, err := NewClient(Config{
		APIKey:  "k",
		BaseURL: srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	client.timeout = 50 * time.Millisecond

	_, err = client.Generate(context.Background(), "p")
	if KindOf(err) != KindTimeout {
		t.Errorf("kind = %s, want timeout (%v)", KindOf(err), err)
	}
}

func TestGenerateCancellationIsNotTimeout(t *testing.T) {
	started := make(chan struct{})
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-blocked:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	// Unblock the handler before srv.Close waits on it; cleanups run LIFO.
	t.Cleanup(func() { close(blocked) })

	client, err := NewClient(Config{
		APIKey:         "k",
		BaseURL:        srv.URL,
		TimeoutSeconds: 60,
	}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = client.Generate(ctx, "p")
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %s, want transport for a canceled call (%v)", KindOf(err), err)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("nil error must map to empty kind")
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("deadline exceeded must map to timeout")
	}
	if KindOf(errors.New("boom")) != KindTransport {
		t.Error("unclassified errors must map to transport")
	}
	wrapped := failure(KindEmptyResult, errors.New("empty"))
	if KindOf(wrapped) != KindEmptyResult {
		t.Error("wrapped failure kind lost")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("expected error for missing api key")
	}
}
