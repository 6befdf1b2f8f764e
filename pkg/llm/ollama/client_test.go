package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/voxchat/pkg/llm"
)

func TestGenerate(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "hello there", "done": true})
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "llama3", MaxTokens: 512})
	resp, err := client.Generate(context.Background(), &llm.Request{
		System: "be brief",
		Prompt: "User: hi\n\nAssistant:",
		Mode:   llm.ModePrimary,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "hello there" {
		t.Errorf("text = %q", resp.Text)
	}
	if gotBody["model"] != "llama3" || gotBody["system"] != "be brief" {
		t.Errorf("request body = %v", gotBody)
	}
	if gotBody["stream"] != false {
		t.Error("expected stream=false")
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	if !errors.Is(err, llm.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestGenerateConnectionRefused(t *testing.T) {
	client := New(&llm.Config{BaseURL: "http://127.0.0.1:1", Model: "llama3", Timeout: time.Second})
	_, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	if !errors.Is(err, llm.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	if !errors.Is(err, llm.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
