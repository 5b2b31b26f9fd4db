// Package store provides persistence for users, conversations, and messages.
//
// # Overview
//
// The Store interface owns all durable state: registered users, their
// conversations, and the ordered message log inside each conversation.
// Every conversation operation takes the acting user's id and enforces
// ownership in the query itself; a conversation that exists but belongs
// to someone else is reported as ErrNotFound, identical to one that does
// not exist at all.
//
// # Ordering
//
// Messages are returned in creation order: (created_at, rowid). Message
// timestamps are stored with nanosecond precision and rowid breaks the
// remaining ties, so the sequence read back always reproduces insertion
// order exactly.
//
// # SQLite Implementation
//
// SQLiteStore is the production implementation, using modernc.org/sqlite
// (pure Go, no cgo). WAL mode is enabled for concurrent readers, and
// foreign keys are enforced so deleting a conversation cascades to its
// messages atomically.
package store
