// Package config handles configuration loading for the quill server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from QUILL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/quill/server.yaml
//  3. ~/.config/quill/server.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${QUILL_JWT_SECRET}"
//	genai:
//	  api_key: "${GOOGLE_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database settings:
//
//	database:
//	  path: "/var/lib/quill/quill.db"
//
// Auth settings (token_ttl defaults to 24h):
//
//	auth:
//	  jwt_secret: "${QUILL_JWT_SECRET}"
//	  token_ttl: "24h"
//
// Generation backend settings (model, base_url, temperature and
// max_output_tokens are optional):
//
//	genai:
//	  api_key: "${GOOGLE_API_KEY}"
//	  model: "gemini-pro"
//	  temperature: 0.7
//	  max_output_tokens: 1024
//
// Logging settings:
//
//	logging:
//	  level: "info"
//	  format: "text"
package config
