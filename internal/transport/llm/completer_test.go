package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

func chatHandler(t *testing.T, reply string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": reply,
					},
				},
			},
		})
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(&Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestComplete_HappyPath(t *testing.T) {
	server := httptest.NewServer(chatHandler(t, "1. solar panels\n2. renewable energy"))
	defer server.Close()

	c := newTestClient(t, server.URL)

	out, err := c.Complete(context.Background(), "expand this query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1. solar panels\n2. renewable energy" {
		t.Errorf("unexpected completion: %q", out)
	}
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Complete(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		chatHandler(t, "late")(w, r)
	}))
	defer server.Close()

	c, err := New(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Timeout: 20 * time.Millisecond,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.Complete(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable on timeout, got %v", err)
	}
}

func TestForPurpose_ReturnsIndependentCopy(t *testing.T) {
	server := httptest.NewServer(chatHandler(t, "ok"))
	defer server.Close()

	c := newTestClient(t, server.URL)
	exp := c.ForPurpose("expansion")

	if exp == c {
		t.Fatal("expected a copy, got the same instance")
	}
	if exp.purpose != "expansion" {
		t.Errorf("unexpected purpose: %s", exp.purpose)
	}
	if c.purpose != "chat" {
		t.Errorf("original purpose mutated: %s", c.purpose)
	}
}
