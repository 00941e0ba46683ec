package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// chatServer answers chat completion requests with a fixed reply and records
// the decoded request bodies.
type chatServer struct {
	mu     sync.Mutex
	bodies []map[string]any
	reply  string
	status int
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": s.reply},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	})
}

func newTestProvider(t *testing.T, srv *chatServer) *Provider {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(ts.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestComplete(t *testing.T) {
	t.Parallel()
	srv := &chatServer{reply: `["hello","hollow"]`}
	p := newTestProvider(t, srv)

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "suggest replacements",
		Temperature:  0.2,
		MaxTokens:    64,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "helo"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `["hello","hollow"]` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 || resp.Usage.PromptTokens != 12 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.bodies) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(srv.bodies))
	}
	body := srv.bodies[0]
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want system + user", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
	if body["max_completion_tokens"] != float64(64) {
		t.Errorf("max_completion_tokens = %v", body["max_completion_tokens"])
	}
}

func TestComplete_ServerError(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, &chatServer{status: http.StatusInternalServerError})

	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestComplete_NoMessages(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		role    string
		wantErr bool
	}{
		{role: llm.RoleSystem},
		{role: llm.RoleUser},
		{role: llm.RoleAssistant},
		{role: "tool", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			got, err := convertMessage(llm.Message{Role: tt.role, Content: "hi"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown role")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var set bool
			switch tt.role {
			case llm.RoleSystem:
				set = got.OfSystem != nil
			case llm.RoleUser:
				set = got.OfUser != nil
			case llm.RoleAssistant:
				set = got.OfAssistant != nil
			}
			if !set {
				t.Errorf("role %q not mapped to its union member", tt.role)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := New("sk-test", "gpt-4o", WithOrganization("org-123"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
	if p.Model() != "gpt-4o" {
		t.Errorf("Model() = %q", p.Model())
	}
}
