// Package chat is the orchestration layer for quill.
//
// # Overview
//
// Service composes the three lower layers: the credential layer (token
// issuing, password verification), the store (ownership-scoped
// persistence), and the generation client (the external backend). Each
// boundary operation maps to one method: Register, Login,
// CreateConversation, ListConversations, GetConversation,
// DeleteConversation, SendMessage, and SendMessageStream.
//
// # Turn Lifecycle
//
// A message turn moves through a fixed sequence: ownership check, user
// turn persisted, full history assembled, generation call, assistant turn
// persisted, conversation recency bumped. The user turn is durable before
// the backend is invoked and is never rolled back: a generation failure
// surfaces to the caller with the user message already in history, and a
// retry is simply a new turn.
//
// # Concurrency
//
// Requests are handled independently; there is no shared mutable state
// outside the store. Concurrent turns against the same conversation may
// interleave message pairs - each individual append is atomic, but no
// cross-request ordering is promised beyond store-assigned timestamps.
package chat
