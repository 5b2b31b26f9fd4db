// ABOUTME: Chat orchestration service composing credential, store, and generation layers
// ABOUTME: All message turns flow through here - the user turn is durable before generation runs

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/genai"
	"github.com/quillchat/quill/internal/store"
)

// ErrInvalidCredentials is returned when login email or password is wrong
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInactiveAccount is returned when a deactivated account attempts to log in
var ErrInactiveAccount = errors.New("account is inactive")

// ErrEmptyMessage is returned when a turn is submitted with no text
var ErrEmptyMessage = errors.New("message text is required")

// ErrInvalidRegistration is returned when registration fields are missing
var ErrInvalidRegistration = errors.New("username, email, and password are required")

// DefaultTitle is used when a conversation is created without one
const DefaultTitle = "New Conversation"

// Store defines what the service needs from persistence
type Store interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	CreateConversation(ctx context.Context, userID, title string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	TouchConversation(ctx context.Context, conversationID string) error

	AppendMessage(ctx context.Context, userID, conversationID, role, content string) (*store.Message, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// Generator defines what the service needs from the generation backend
type Generator interface {
	Generate(ctx context.Context, history []genai.Turn) (string, error)
	GenerateStream(ctx context.Context, history []genai.Turn) (<-chan genai.Chunk, error)
}

// TokenIssuer defines what the service needs from the credential layer
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service orchestrates chat requests: identity, ownership, persistence,
// and the external generation call.
type Service struct {
	store     Store
	generator Generator
	tokens    TokenIssuer
	logger    *slog.Logger
}

// New creates a new chat service
func New(st Store, generator Generator, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		generator: generator,
		tokens:    tokens,
		logger:    logger.With("component", "chat"),
	}
}

// Credentials is the result of a successful register or login
type Credentials struct {
	Token  string
	UserID string
}

// Register creates a new account and returns a signed token for it.
// Returns store.ErrDuplicateUser if the username or email is taken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Credentials, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidRegistration
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return &Credentials{Token: token, UserID: user.ID}, nil
}

// Login verifies the email/password pair and returns a signed token.
// Unknown emails and wrong passwords are indistinguishable; the password
// comparison runs either way so timing stays flat.
func (s *Service) Login(ctx context.Context, email, password string) (*Credentials, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.VerifyPassword(password, "")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrInactiveAccount
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &Credentials{Token: token, UserID: user.ID}, nil
}

// CreateConversation creates a new conversation for the user.
// An empty title falls back to DefaultTitle.
func (s *Service) CreateConversation(ctx context.Context, userID, title string) (*store.Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}
	return s.store.CreateConversation(ctx, userID, title)
}

// ListConversations returns the user's conversations, most recently active first
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// GetConversation returns a conversation the user owns along with its
// ordered messages.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID string) (*store.Conversation, []*store.Message, error) {
	conv, err := s.store.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	return conv, messages, nil
}

// DeleteConversation removes a conversation the user owns, along with all
// its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	return s.store.DeleteConversation(ctx, userID, conversationID)
}

// TurnResult contains the outcome of a completed message turn
type TurnResult struct {
	AssistantText string
	MessageID     string // ID of the saved assistant message
}

// SendMessage handles one chat turn.
//
// Key principle: record first, then act. The user turn is persisted BEFORE
// the generation call, so a record exists even if the backend fails. On
// generation failure the user turn is not rolled back; retrying is a new
// request that finds the prior turn already in history.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID, text string) (*TurnResult, error) {
	history, _, err := s.beginTurn(ctx, userID, conversationID, text)
	if err != nil {
		return nil, err
	}

	reply, err := s.generator.Generate(ctx, history)
	if err != nil {
		s.logger.Warn("generation failed, user turn remains durable",
			"conversation_id", conversationID, "error", err)
		return nil, err
	}

	msg, err := s.completeTurn(ctx, userID, conversationID, reply)
	if err != nil {
		return nil, err
	}

	return &TurnResult{AssistantText: reply, MessageID: msg.ID}, nil
}

// beginTurn validates the request, persists the user turn, and returns the
// full ordered history including the just-appended turn plus its message id.
func (s *Service) beginTurn(ctx context.Context, userID, conversationID, text string) ([]genai.Turn, string, error) {
	if text == "" {
		return nil, "", ErrEmptyMessage
	}

	// Ownership check; absent and not-owned are the same ErrNotFound
	if _, err := s.store.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, "", err
	}

	userMsg, err := s.store.AppendMessage(ctx, userID, conversationID, store.RoleUser, text)
	if err != nil {
		return nil, "", fmt.Errorf("recording user turn: %w", err)
	}
	s.logger.Debug("user turn recorded",
		"conversation_id", conversationID, "message_id", userMsg.ID)

	messages, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, "", fmt.Errorf("loading history: %w", err)
	}

	history := make([]genai.Turn, len(messages))
	for i, msg := range messages {
		history[i] = genai.Turn{Role: msg.Role, Content: msg.Content}
	}
	return history, userMsg.ID, nil
}

// completeTurn persists the assistant reply and bumps conversation recency
func (s *Service) completeTurn(ctx context.Context, userID, conversationID, reply string) (*store.Message, error) {
	msg, err := s.store.AppendMessage(ctx, userID, conversationID, store.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("recording assistant turn: %w", err)
	}

	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("updating conversation recency: %w", err)
	}

	s.logger.Debug("assistant turn recorded",
		"conversation_id", conversationID, "message_id", msg.ID)
	return msg, nil
}
