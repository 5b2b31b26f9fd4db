// ABOUTME: Store interface and data types for quill persistence
// ABOUTME: Defines User, Conversation, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// owned by the acting user. The two cases are deliberately indistinguishable
// so callers cannot probe for the existence of other users' conversations.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when registering a username or email that is already taken
var ErrDuplicateUser = errors.New("user already exists")

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User represents a registered account
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Conversation represents a named chat session owned by a single user.
// UpdatedAt is the only mutable field; it is bumped once per completed
// message exchange via TouchConversation.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a single turn within a conversation.
// Messages are immutable once created.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	CreatedAt      time.Time
}

// Store defines the interface for user, conversation, and message persistence.
// All conversation operations take the acting user's id and enforce ownership.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Conversations
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	TouchConversation(ctx context.Context, conversationID string) error

	// Messages
	AppendMessage(ctx context.Context, userID, conversationID, role, content string) (*Message, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
