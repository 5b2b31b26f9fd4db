// ABOUTME: Tests for the generation client against a fake HTTP backend
// ABOUTME: Covers prompt formatting, generation, streaming, and error normalization

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillchat/quill/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GenAIConfig{
		APIKey:          "test-api-key",
		Model:           "gemini-pro",
		BaseURL:         baseURL,
		Temperature:     0.7,
		MaxOutputTokens: 1024,
	})
}

func generateBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestPrompt_Format(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you?"},
	}

	want := "User: hi\nAssistant: hello\nUser: how are you?\nAssistant:"
	assert.Equal(t, want, Prompt(history))
}

func TestPrompt_Empty(t *testing.T) {
	assert.Equal(t, "Assistant:", Prompt(nil))
}

func TestGenerate_Success(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, generateBody("hello"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	// The backend receives the rendered prompt and the generation parameters
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 1)
	assert.Equal(t, "User: hi\nAssistant:", gotReq.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.7, gotReq.GenerationConfig.Temperature)
	assert.Equal(t, 1024, gotReq.GenerationConfig.MaxOutputTokens)
}

func TestGenerate_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerate_TransportError(t *testing.T) {
	// Point at a server that is already closed
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerateStream_ChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-pro:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Hel", "lo ", "world"} {
			fmt.Fprintf(w, "data: %s\n\n", generateBody(text))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	stream, err := client.GenerateStream(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var full string
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		full += chunk.Text
	}
	assert.Equal(t, "Hello world", full)
}

func TestGenerateStream_MidStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", generateBody("partial"))
		fmt.Fprint(w, `data: {"error":{"code":500,"message":"backend exploded","status":"INTERNAL"}}`+"\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	stream, err := client.GenerateStream(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var texts []string
	var streamErr error
	for chunk := range stream {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		texts = append(texts, chunk.Text)
	}

	// Chunks yielded before the failure are not retracted
	assert.Equal(t, []string{"partial"}, texts)
	require.Error(t, streamErr)
	assert.ErrorIs(t, streamErr, ErrGeneration)
	assert.Contains(t, streamErr.Error(), "backend exploded")
}

func TestGenerateStream_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GenerateStream(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerateStream_CancelReleasesStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", generateBody("first"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hold the connection open until the test is done
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(server.URL)
	stream, err := client.GenerateStream(ctx, []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	chunk := <-stream
	require.NoError(t, chunk.Err)
	assert.Equal(t, "first", chunk.Text)

	cancel()

	// The channel must close promptly after cancellation
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel did not close after cancellation")
		}
	}
}
