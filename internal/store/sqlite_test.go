// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user/conversation CRUD, ownership scoping, message ordering, and cascade delete

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func newTestUser(t *testing.T, s *SQLiteStore, username, email string) *User {
	t.Helper()
	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$fakehashfortesting",
		Active:       true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user := newTestUser(t, s, "ana", "ana@x.com")

	got, err := s.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	if got.Username != "ana" {
		t.Errorf("Username = %q, want %q", got.Username, "ana")
	}
	if got.Email != "ana@x.com" {
		t.Errorf("Email = %q, want %q", got.Email, "ana@x.com")
	}
	if !got.Active {
		t.Error("Active = false, want true")
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestGetUserByEmail(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user := newTestUser(t, s, "ana", "ana@x.com")

	got, err := s.GetUserByEmail(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}

	_, err = s.GetUserByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail for unknown email = %v, want ErrNotFound", err)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	newTestUser(t, s, "ana", "ana@x.com")

	dup := &User{
		ID:           uuid.New().String(),
		Username:     "ana",
		Email:        "other@x.com",
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.CreateUser(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("CreateUser with duplicate username = %v, want ErrDuplicateUser", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	newTestUser(t, s, "ana", "ana@x.com")

	dup := &User{
		ID:           uuid.New().String(),
		Username:     "bea",
		Email:        "ana@x.com",
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.CreateUser(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("CreateUser with duplicate email = %v, want ErrDuplicateUser", err)
	}
}

func TestCreateConversation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(context.Background(), user.ID, "trip")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if conv.ID == "" {
		t.Error("conversation ID should not be empty")
	}
	if conv.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", conv.UserID, user.ID)
	}
	if conv.Title != "trip" {
		t.Errorf("Title = %q, want %q", conv.Title, "trip")
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreateConversation_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.CreateConversation(context.Background(), "no-such-user", "trip")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateConversation for unknown user = %v, want ErrNotFound", err)
	}
}

func TestCreateConversation_InactiveUser(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user := &User{
		ID:           uuid.New().String(),
		Username:     "ghost",
		Email:        "ghost@x.com",
		PasswordHash: "hash",
		Active:       false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err := s.CreateConversation(context.Background(), user.ID, "trip")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateConversation for inactive user = %v, want ErrNotFound", err)
	}
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	first, err := s.CreateConversation(ctx, user.ID, "first")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	second, err := s.CreateConversation(ctx, user.ID, "second")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Push first's updated_at past second's (RFC3339 stores whole seconds)
	time.Sleep(1100 * time.Millisecond)
	if err := s.TouchConversation(ctx, first.ID); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}

	convs, err := s.ListConversations(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != first.ID {
		t.Errorf("most recently touched conversation should be first, got %q", convs[0].Title)
	}
	if convs[1].ID != second.ID {
		t.Errorf("second conversation should be %q, got %q", second.ID, convs[1].ID)
	}
}

func TestListConversations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	for i := 0; i < 3; i++ {
		if _, err := s.CreateConversation(ctx, user.ID, fmt.Sprintf("conv-%d", i)); err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}
	}

	first, err := s.ListConversations(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	second, err := s.ListConversations(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("list lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d differs: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestGetConversation_OwnershipIsolation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	ana := newTestUser(t, s, "ana", "ana@x.com")
	bea := newTestUser(t, s, "bea", "bea@x.com")

	conv, err := s.CreateConversation(ctx, ana.ID, "private")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Owner can read it
	if _, err := s.GetConversation(ctx, ana.ID, conv.ID); err != nil {
		t.Fatalf("owner GetConversation failed: %v", err)
	}

	// Another user gets the same error as for a nonexistent conversation
	_, errOther := s.GetConversation(ctx, bea.ID, conv.ID)
	_, errMissing := s.GetConversation(ctx, bea.ID, "no-such-conversation")

	if !errors.Is(errOther, ErrNotFound) {
		t.Errorf("other user's GetConversation = %v, want ErrNotFound", errOther)
	}
	if !errors.Is(errMissing, ErrNotFound) {
		t.Errorf("missing GetConversation = %v, want ErrNotFound", errMissing)
	}
}

func TestAppendMessage_OwnershipIsolation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	ana := newTestUser(t, s, "ana", "ana@x.com")
	bea := newTestUser(t, s, "bea", "bea@x.com")

	conv, err := s.CreateConversation(ctx, ana.ID, "private")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	_, err = s.AppendMessage(ctx, bea.ID, conv.ID, RoleUser, "sneaky")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's AppendMessage = %v, want ErrNotFound", err)
	}

	msgs, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationMessages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("conversation should have no messages, got %d", len(msgs))
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user := newTestUser(t, s, "ana", "ana@x.com")

	_, err := s.AppendMessage(context.Background(), user.ID, "no-such-conv", RoleUser, "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendMessage to unknown conversation = %v, want ErrNotFound", err)
	}
}

func TestGetConversationMessages_OrderingWithTies(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(ctx, user.ID, "fast")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Insert quickly so some messages share a timestamp; rowid must break ties
	var want []string
	for i := 0; i < 20; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		content := fmt.Sprintf("message-%02d", i)
		if _, err := s.AppendMessage(ctx, user.ID, conv.ID, role, content); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		want = append(want, content)
	}

	msgs, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationMessages failed: %v", err)
	}

	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, msg := range msgs {
		if msg.Content != want[i] {
			t.Errorf("position %d: got %q, want %q", i, msg.Content, want[i])
		}
	}
}

func TestGetConversationMessages_SubSecondOrdering(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(ctx, user.ID, "precision")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Sub-second timestamps whose trimmed renderings would not sort as
	// text: .1 is a string prefix of .15, and a whole second carries no
	// fraction at all. The fixed-width column format must keep these in
	// chronological order.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(100 * time.Millisecond),
		base.Add(150 * time.Millisecond),
		base.Add(time.Second),
	}

	for i, ts := range times {
		_, err := s.db.Exec(
			`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			fmt.Sprintf("msg-%d", i), conv.ID, RoleUser, fmt.Sprintf("content-%d", i),
			ts.Format(messageTimeFormat),
		)
		if err != nil {
			t.Fatalf("inserting message %d: %v", i, err)
		}
	}

	msgs, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationMessages failed: %v", err)
	}

	if len(msgs) != len(times) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(times))
	}
	for i, msg := range msgs {
		want := fmt.Sprintf("content-%d", i)
		if msg.Content != want {
			t.Errorf("position %d: got %q, want %q", i, msg.Content, want)
		}
		if !msg.CreatedAt.Equal(times[i]) {
			t.Errorf("position %d: created_at = %v, want %v", i, msg.CreatedAt, times[i])
		}
	}
}

func TestGetConversationMessages_RolesAlternate(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(ctx, user.ID, "chat")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := s.AppendMessage(ctx, user.ID, conv.ID, RoleUser, "hi"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if _, err := s.AppendMessage(ctx, user.ID, conv.ID, RoleAssistant, "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	msgs, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationMessages failed: %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hi" {
		t.Errorf("first message = {%s %q}, want {user \"hi\"}", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hello" {
		t.Errorf("second message = {%s %q}, want {assistant \"hello\"}", msgs[1].Role, msgs[1].Content)
	}
}

func TestDeleteConversation_Cascade(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(ctx, user.ID, "doomed")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := s.AppendMessage(ctx, user.ID, conv.ID, RoleUser, "msg"); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	if err := s.DeleteConversation(ctx, user.ID, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	_, err = s.GetConversation(ctx, user.ID, conv.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConversation after delete = %v, want ErrNotFound", err)
	}

	// No orphan messages may exist
	msgs, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationMessages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages should cascade on delete, got %d orphans", len(msgs))
	}
}

func TestDeleteConversation_OwnershipIsolation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	ana := newTestUser(t, s, "ana", "ana@x.com")
	bea := newTestUser(t, s, "bea", "bea@x.com")

	conv, err := s.CreateConversation(ctx, ana.ID, "private")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	err = s.DeleteConversation(ctx, bea.ID, conv.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's DeleteConversation = %v, want ErrNotFound", err)
	}

	// Still there for the owner
	if _, err := s.GetConversation(ctx, ana.ID, conv.ID); err != nil {
		t.Errorf("conversation should survive unauthorized delete: %v", err)
	}
}

func TestTouchConversation_UpdatesTimestamp(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	user := newTestUser(t, s, "ana", "ana@x.com")

	conv, err := s.CreateConversation(ctx, user.ID, "chat")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)
	if err := s.TouchConversation(ctx, conv.ID); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, user.ID, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !got.UpdatedAt.After(conv.UpdatedAt) {
		t.Errorf("UpdatedAt should advance after touch: %v vs %v", got.UpdatedAt, conv.UpdatedAt)
	}
	if !got.CreatedAt.Equal(conv.CreatedAt) {
		t.Errorf("CreatedAt must not change: %v vs %v", got.CreatedAt, conv.CreatedAt)
	}
}

func TestTouchConversation_Unknown(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	err := s.TouchConversation(context.Background(), "no-such-conv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TouchConversation for unknown conversation = %v, want ErrNotFound", err)
	}
}
