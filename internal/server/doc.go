// Package server provides the HTTP API, its middleware, and the OAuth callback used by the CLI.
//
// # Router
//
// [NewServer] builds a chi router. Every request gets a request id, real IP
// resolution, panic recovery, CORS handling and a structured log line. Routes
// other than /health and POST /auth/spotify require a session token in the
// Authorization header; [RequireSession] verifies it and stores the user id in
// the request context.
//
// # Handlers
//
// Handlers implement [Handler] and mount their own routes:
//   - [AuthHandler] : login with an authorization code, session refresh, current user
//   - [TagHandler] : the caller's tags and the tracks carrying them
//   - [TrackHandler] : the tags attached to one track
//
// All request bodies are JSON, validated with go-playground/validator. Errors
// are written as {"error": {"type": ..., "message": ...}} with the status
// chosen by [StatusFor].
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the provider redirect during `moodring auth login`.
// It validates the state parameter and hands the authorization code to the
// CLI through a channel. It only processes one callback.
package server
