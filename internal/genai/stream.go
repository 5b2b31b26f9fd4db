// ABOUTME: Streaming variant of the generation client using SSE
// ABOUTME: Yields text chunks in arrival order over a channel, released on every exit path

package genai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Chunk is one fragment of a streamed generation. A chunk with a non-nil
// Err terminates the stream; chunks already delivered are not retracted.
type Chunk struct {
	Text string
	Err  error
}

// GenerateStream formats the history and asks the backend for incremental
// output. The returned channel is lazy, finite, and non-restartable: it is
// closed after the final chunk (or after a chunk carrying the error that
// ended the stream). Cancelling ctx releases the underlying connection and
// closes the channel.
func (c *Client) GenerateStream(ctx context.Context, history []Turn) (<-chan Chunk, error) {
	resp, err := c.post(ctx, ":streamGenerateContent", history)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrGeneration, backendFailure(resp.StatusCode, body))
	}

	out := make(chan Chunk)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// readStream parses SSE events from the response body and forwards text
// chunks until the stream ends, fails, or the context is cancelled.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, out chan<- Chunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var parsed generateResponse
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			c.send(ctx, out, Chunk{Err: fmt.Errorf("%w: decoding stream event: %v", ErrGeneration, err)})
			return
		}
		if parsed.Error != nil {
			c.send(ctx, out, Chunk{Err: fmt.Errorf("%w: %s", ErrGeneration, parsed.Error.Message)})
			return
		}

		text := candidateText(&parsed)
		if text == "" {
			continue
		}
		if !c.send(ctx, out, Chunk{Text: text}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Cancellation surfaces as a read error on the closed body; report
		// it as the caller's context error rather than a backend failure
		if ctx.Err() != nil {
			c.send(ctx, out, Chunk{Err: ctx.Err()})
			return
		}
		c.send(ctx, out, Chunk{Err: fmt.Errorf("%w: reading stream: %v", ErrGeneration, err)})
	}
}

// send delivers a chunk unless the consumer is gone. Returns false when the
// context was cancelled before delivery.
func (c *Client) send(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
