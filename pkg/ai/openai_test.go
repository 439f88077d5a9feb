package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateImageSendsExpectedRequest(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example.com/out.png"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	url, err := c.GenerateImage(context.Background(), ImageRequest{
		Model:   "dall-e-3",
		Prompt:  "a cat",
		N:       1,
		Size:    "1024x1024",
		Quality: "standard",
	})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if url != "https://img.example.com/out.png" {
		t.Fatalf("url = %q", url)
	}
	if gotPath != "/images/generations" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "dall-e-3" || gotBody["prompt"] != "a cat" {
		t.Fatalf("body = %v", gotBody)
	}
	if gotBody["quality"] != "standard" || gotBody["size"] != "1024x1024" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestGenerateImageOmitsEmptyQuality(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example.com/out.png"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.GenerateImage(context.Background(), ImageRequest{
		Model: "dall-e-2", Prompt: "a dog", Size: "1024x1024",
	}); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if _, ok := gotBody["quality"]; ok {
		t.Fatalf("quality should be omitted, body = %v", gotBody)
	}
}

func TestGenerateTextBuildsMessages(t *testing.T) {
	var gotReq struct {
		Model       string       `json:"model"`
		Messages    []oaiMessage `json:"messages"`
		MaxTokens   int          `json:"max_tokens"`
		Temperature float64      `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "A caption."}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	text, err := c.GenerateText(context.Background(), TextRequest{
		Model:       "gpt-4",
		System:      "You are a helpful AI assistant.",
		Prompt:      "Write a caption",
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if text != "A caption." {
		t.Fatalf("text = %q", text)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("message roles = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 1000 || gotReq.Temperature != 0.7 {
		t.Fatalf("sampling params = %+v", gotReq)
	}
}

func TestProviderErrorMessageSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"message": "Billing hard limit has been reached",
				"type":    "insufficient_quota",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GenerateImage(context.Background(), ImageRequest{Model: "dall-e-3", Prompt: "a cat"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Billing hard limit has been reached" {
		t.Fatalf("error = %q, want bare provider message", err.Error())
	}
}

func TestProviderErrorWithoutBodyFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GenerateText(context.Background(), TextRequest{Model: "gpt-4", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateImageRejectsEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.GenerateImage(context.Background(), ImageRequest{Model: "dall-e-3", Prompt: "a cat"}); err == nil {
		t.Fatal("expected error for empty data")
	}
}
