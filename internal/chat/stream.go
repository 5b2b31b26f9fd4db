// ABOUTME: Streaming variant of the chat turn - chunks forwarded as they arrive
// ABOUTME: Accumulates streamed text and persists the assistant turn on clean completion

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/quillchat/quill/internal/genai"
	"github.com/quillchat/quill/internal/store"
)

// persistTimeout bounds the store writes that happen after the request
// context may already be cancelled or expired.
const persistTimeout = 5 * time.Second

// StreamResult contains the durable user message id and the live chunk stream
type StreamResult struct {
	UserMessageID string
	Stream        <-chan genai.Chunk
}

// SendMessageStream handles one chat turn with incremental output. The
// persistence contract matches SendMessage: the user turn is durable before
// the backend is called, and the assistant turn is recorded only when the
// stream completes cleanly. A mid-stream failure or caller cancellation
// leaves the orphan user turn in place and persists nothing assistant-side.
func (s *Service) SendMessageStream(ctx context.Context, userID, conversationID, text string) (*StreamResult, error) {
	history, userMessageID, err := s.beginTurn(ctx, userID, conversationID, text)
	if err != nil {
		return nil, err
	}

	stream, err := s.generator.GenerateStream(ctx, history)
	if err != nil {
		s.logger.Warn("stream start failed, user turn remains durable",
			"conversation_id", conversationID, "error", err)
		return nil, err
	}

	out := make(chan genai.Chunk, 16)
	go s.persistStream(ctx, userID, conversationID, stream, out)

	return &StreamResult{UserMessageID: userMessageID, Stream: out}, nil
}

// persistStream forwards chunks while accumulating the full reply, then
// records the assistant turn once the backend stream ends cleanly. Store
// writes use a detached timeout context so persistence survives the caller
// going away between the final chunk and the write.
func (s *Service) persistStream(ctx context.Context, userID, conversationID string, in <-chan genai.Chunk, out chan<- genai.Chunk) {
	defer close(out)

	var textBuffer string
	failed := false

	for chunk := range in {
		if chunk.Err != nil {
			failed = true
		} else {
			textBuffer += chunk.Text
		}

		select {
		case out <- chunk:
		case <-ctx.Done():
			s.logger.Debug("caller gone during stream, draining backend",
				"conversation_id", conversationID)
			// Drain so the generator's goroutine can finish and release
			for range in {
			}
			return
		}
	}

	if failed {
		return
	}

	// A clean stream with no text is a backend failure, same as the
	// synchronous path; surface it instead of a silent empty reply
	if textBuffer == "" {
		err := fmt.Errorf("%w: backend returned no text", genai.ErrGeneration)
		s.logger.Warn("stream completed without text",
			"conversation_id", conversationID)
		select {
		case out <- genai.Chunk{Err: err}:
		case <-ctx.Done():
		}
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	msg, err := s.store.AppendMessage(saveCtx, userID, conversationID, store.RoleAssistant, textBuffer)
	if err != nil {
		s.logger.Error("failed to record streamed assistant turn",
			"conversation_id", conversationID, "error", err)
		return
	}
	if err := s.store.TouchConversation(saveCtx, conversationID); err != nil {
		s.logger.Error("failed to update conversation recency",
			"conversation_id", conversationID, "error", err)
		return
	}

	s.logger.Debug("streamed assistant turn recorded",
		"conversation_id", conversationID, "message_id", msg.ID, "chars", len(textBuffer))
}
