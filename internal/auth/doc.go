// Package auth provides credential handling for quill: bcrypt password
// hashing, HS256 JWT issuing/verification, and request-context helpers.
//
// Tokens carry the user id in the "sub" claim and an absolute expiry set
// to issue-time plus a fixed TTL. Verification distinguishes expired
// tokens (ErrExpiredToken) from forged or malformed ones (ErrInvalidToken)
// but does not check that the subject still exists; that happens at the
// store, where every operation is scoped to the acting user.
package auth
