package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client calls an OpenAI-compatible API for image and text generation.
// Works with the hosted API and self-hosted compatible endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a provider client. baseURL should include the /v1 prefix;
// empty falls back to the hosted OpenAI endpoint.
func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateImage implements ImageGenerator using the images endpoint.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	if req.Model == "" {
		return "", fmt.Errorf("image generation model required")
	}
	n := req.N
	if n <= 0 {
		n = 1
	}
	body := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"n":      n,
		"size":   req.Size,
	}
	if req.Quality != "" {
		body["quality"] = req.Quality
	}

	var resp oaiImageResponse
	if err := c.doJSON(ctx, "/images/generations", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", fmt.Errorf("empty response from image api")
	}
	return resp.Data[0].URL, nil
}

// GenerateText implements TextGenerator using the chat completions endpoint.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if req.Model == "" {
		return "", fmt.Errorf("text generation model required")
	}
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.Prompt})

	body := oaiChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var resp oaiChatResponse
	if err := c.doJSON(ctx, "/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from chat api")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from chat api")
	}
	return text, nil
}

// Ping checks provider reachability by listing models. Used as a startup
// probe; failures are reported, not fatal.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider ping: %s", resp.Status)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("%s", errResp.Error.Message)
		}
		return fmt.Errorf("provider api error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider decode: %w", err)
	}
	return nil
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
