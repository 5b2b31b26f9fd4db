// Package server exposes the chat service over HTTP.
//
// All /chat routes require a Bearer token; /auth and /health do not.
// Service errors map onto HTTP statuses in one place (writeServiceError)
// so handlers stay thin. Assistant replies stream to clients as
// Server-Sent Events on the /messages/stream endpoint.
package server
