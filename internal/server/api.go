// ABOUTME: HTTP API handlers for auth and conversation endpoints
// ABOUTME: Thin JSON adapters over the chat service, plus SSE streaming for replies

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/chat"
	"github.com/quillchat/quill/internal/genai"
	"github.com/quillchat/quill/internal/store"
)

// RegisterRequest is the JSON request body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the JSON response for successful auth operations.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// CreateConversationRequest is the JSON request body for POST /chat/conversations.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// ConversationResponse is the JSON shape of a conversation.
type ConversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse is the JSON shape of a single message.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ConversationDetailResponse is the JSON response for GET /chat/conversations/{id}.
type ConversationDetailResponse struct {
	ConversationResponse
	Messages []MessageResponse `json:"messages"`
}

// SendMessageRequest is the JSON request body for message endpoints.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the JSON response for POST .../messages.
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

func conversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func messageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// handleRegister handles POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	creds, err := s.chat.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, TokenResponse{Token: creds.Token, UserID: creds.UserID})
}

// handleLogin handles POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	creds, err := s.chat.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, TokenResponse{Token: creds.Token, UserID: creds.UserID})
}

// handleConversations routes /chat/conversations by HTTP method.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateConversation(w, r)
	case http.MethodGet:
		s.handleListConversations(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	// An empty body is fine, the service falls back to the default title
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := s.chat.CreateConversation(r.Context(), userID, req.Title)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, conversationResponse(conv))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	convs, err := s.chat.ListConversations(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]ConversationResponse, len(convs))
	for i, c := range convs {
		response[i] = conversationResponse(c)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleConversationRoutes dispatches /chat/conversations/{id}[/messages[/stream]].
func (s *Server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/chat/conversations/")
	convID, tail, _ := strings.Cut(rest, "/")
	if convID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	switch tail {
	case "":
		s.handleConversationByID(w, r, convID)
	case "messages":
		s.handleSendMessage(w, r, convID)
	case "messages/stream":
		s.handleSendMessageStream(w, r, convID)
	default:
		s.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, convID string) {
	userID := auth.UserFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		conv, messages, err := s.chat.GetConversation(r.Context(), userID, convID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		response := ConversationDetailResponse{
			ConversationResponse: conversationResponse(conv),
			Messages:             make([]MessageResponse, len(messages)),
		}
		for i, m := range messages {
			response.Messages[i] = messageResponse(m)
		}
		s.writeJSON(w, http.StatusOK, response)

	case http.MethodDelete:
		if err := s.chat.DeleteConversation(r.Context(), userID, convID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSendMessage handles POST /chat/conversations/{id}/messages.
// The full assistant reply is returned once generation completes.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, convID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := auth.UserFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.chat.SendMessage(r.Context(), userID, convID, req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, SendMessageResponse{
		MessageID: result.MessageID,
		Role:      store.RoleAssistant,
		Content:   result.AssistantText,
	})
}

// handleSendMessageStream handles POST /chat/conversations/{id}/messages/stream.
// The assistant reply streams back as SSE text events, terminated by a done
// event carrying the full reply, or an error event if generation fails.
func (s *Server) handleSendMessageStream(w http.ResponseWriter, r *http.Request, convID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := auth.UserFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Check streaming support before starting the turn (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	result, err := s.chat.SendMessageStream(r.Context(), userID, convID, req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "started", map[string]string{"user_message_id": result.UserMessageID})
	flusher.Flush()

	s.streamReply(r.Context(), w, flusher, result.Stream)
}

// streamReply reads generation chunks and writes SSE events.
// Persistence is handled by the chat service which wraps the channel.
func (s *Server) streamReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, chunks <-chan genai.Chunk) {
	var full strings.Builder
	for {
		select {
		case <-ctx.Done():
			s.writeSSEEvent(w, "error", map[string]string{"error": "request cancelled"})
			flusher.Flush()
			return

		case chunk, ok := <-chunks:
			if !ok {
				s.writeSSEEvent(w, "done", map[string]string{"full_response": full.String()})
				flusher.Flush()
				return
			}
			if chunk.Err != nil {
				s.writeSSEEvent(w, "error", map[string]string{"error": chunk.Err.Error()})
				flusher.Flush()
				return
			}
			full.WriteString(chunk.Text)
			s.writeSSEEvent(w, "text", map[string]string{"text": chunk.Text})
			flusher.Flush()
		}
	}
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidCredentials):
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, chat.ErrInactiveAccount):
		s.sendJSONError(w, http.StatusForbidden, "account is inactive")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrDuplicateUser):
		s.sendJSONError(w, http.StatusConflict, "username or email already registered")
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidRegistration):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, genai.ErrGeneration):
		s.sendJSONError(w, http.StatusBadGateway, "generation backend failed")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
