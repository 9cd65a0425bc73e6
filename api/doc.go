// Package api defines the HTTP wire types of the PromptGate service.
//
// # API Overview
//
// PromptGate exposes a single generation route that forwards a prompt to
// Vertex AI Gemini with provider-side safety settings:
//
//	GET|POST /                 prompt, moderation_level, format
//	GET|POST /api/v1/generate  alias of /
//	GET      /ui               HTML form
//	GET      /health, /healthz, /ready, /version
//
// The metrics endpoint is served on a separate port:
//
//	GET /metrics
//
// # Output formats
//
// format=text (default) returns text/plain, format=json returns a
// GenerateResponse object and format=html returns a rendered page. When no
// format is given, "Accept: application/json" selects JSON.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
