package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Wire types for the generateContent API the assistant frontend speaks.

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content Content `json:"content"`
}

type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
	Error      *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DefaultConfig mirrors the sampling parameters the assistant UI sends.
func DefaultConfig() *GenerationConfig {
	return &GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 2048,
	}
}

// Client calls an upstream generateContent endpoint with the API key held
// server side.
type Client struct {
	upstream string
	apiKey   string
	http     *http.Client
}

func NewClient(upstream, apiKey string) *Client {
	return &Client{
		upstream: upstream,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client. Test hook.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// Generate forwards one request and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := c.forward(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("upstream error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("upstream returned no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) forward(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.upstream+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("call upstream: %w", err)
	}
	defer httpResp.Body.Close()

	var resp GenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return GenerateResponse{}, fmt.Errorf("decode upstream response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK && resp.Error == nil {
		return GenerateResponse{}, fmt.Errorf("upstream status %d", httpResp.StatusCode)
	}
	return resp, nil
}
