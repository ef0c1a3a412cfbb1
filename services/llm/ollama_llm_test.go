package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOllamaTestClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "test-model")

	client, err := NewOllamaClient()
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}
	return client
}

func TestOllamaGenerateShapesRequest(t *testing.T) {
	var captured ollamaGenerateRequest
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "fixed code", Done: true})
	})

	temp := float32(0.7)
	maxTokens := 128
	out, err := client.Generate(context.Background(), "repair this", GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"```"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "fixed code" {
		t.Errorf("response = %q", out)
	}

	if captured.Model != "test-model" || captured.Prompt != "repair this" {
		t.Errorf("request = %+v", captured)
	}
	if captured.Stream {
		t.Error("stream must be false for one-shot generation")
	}
	if captured.Options["temperature"] != 0.7 {
		t.Errorf("temperature = %v", captured.Options["temperature"])
	}
	if captured.Options["num_predict"] != float64(128) {
		t.Errorf("num_predict = %v", captured.Options["num_predict"])
	}
}

func TestOllamaGenerateDefaultTemperature(t *testing.T) {
	var captured ollamaGenerateRequest
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	})

	if _, err := client.Generate(context.Background(), "p", GenerationParams{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if captured.Options["temperature"] != 0.2 {
		t.Errorf("default temperature = %v, want 0.2", captured.Options["temperature"])
	}
}

func TestOllamaGenerateNon200(t *testing.T) {
	client := newOllamaTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	if _, err := client.Generate(context.Background(), "p", GenerationParams{}); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestNewOllamaClientRequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	if _, err := NewOllamaClient(); err == nil {
		t.Error("expected an error without OLLAMA_BASE_URL")
	}
}

func TestNewClientProviderSelection(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	t.Setenv("OLLAMA_MODEL", "m")

	client, err := NewClient("OLLAMA")
	if err != nil {
		t.Fatalf("NewClient(ollama): %v", err)
	}
	if _, ok := client.(*OllamaClient); !ok {
		t.Errorf("client = %T, want *OllamaClient", client)
	}

	if _, err := NewClient("gemini"); err == nil {
		t.Error("unknown provider must fail")
	}
}
