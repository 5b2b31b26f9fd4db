// ABOUTME: HTTP client for the Gemini text generation backend
// ABOUTME: Formats turn history into prompts and normalizes backend output and errors

package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quillchat/quill/internal/config"
)

// ErrGeneration is returned for any transport, quota, or backend-side
// failure. The underlying cause is wrapped; the client never silently
// returns empty text.
var ErrGeneration = errors.New("generation failed")

// Turn is one (role, content) pair of conversation history, oldest first
type Turn struct {
	Role    string
	Content string
}

// Client calls the external generation backend. The backend is treated as
// a black box mapping a prompt string to free text; this client owns
// exactly the translation between structured history and backend input.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	model           string
	temperature     float64
	maxOutputTokens int
	logger          *slog.Logger
}

// NewClient creates a generation client from config.
// The API key is sent as a request header and never appears in URLs or logs.
func NewClient(cfg config.GenAIConfig) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		logger:          slog.Default().With("component", "genai"),
	}
}

// Request/response wire types for the Gemini REST API

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *backendError `json:"error"`
}

type backendError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Prompt renders the turn history into a single backend prompt: one
// "Role: content" line per turn, joined by newlines, with a trailing cue
// inviting the assistant's reply.
func Prompt(history []Turn) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(titleRole(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

// titleRole capitalizes the first letter of a role name
func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// Generate formats the history and invokes the backend synchronously,
// returning the generated text verbatim.
func (c *Client) Generate(ctx context.Context, history []Turn) (string, error) {
	resp, err := c.post(ctx, ":generateContent", history)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrGeneration, backendFailure(resp.StatusCode, body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrGeneration, err)
	}

	text := candidateText(&parsed)
	if text == "" {
		return "", fmt.Errorf("%w: backend returned no text", ErrGeneration)
	}

	c.logger.Debug("generated response", "model", c.model, "chars", len(text))
	return text, nil
}

// post builds and sends a generation request for the given API method
func (c *Client) post(ctx context.Context, method string, history []Turn) (*http.Response, error) {
	reqBody := generateRequest{
		Contents: []requestContent{
			{Parts: []contentPart{{Text: Prompt(history)}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrGeneration, err)
	}

	url := fmt.Sprintf("%s/models/%s%s", c.baseURL, c.model, method)
	if method == ":streamGenerateContent" {
		url += "?alt=sse"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return resp, nil
}

// backendFailure extracts a useful failure description from an error response body
func backendFailure(status int, body []byte) string {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return fmt.Sprintf("backend returned %d: %s", status, parsed.Error.Message)
	}
	return fmt.Sprintf("backend returned %d", status)
}

// candidateText concatenates the text parts of the first candidate
func candidateText(resp *generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}
