// Package tasks orchestrates the authentication workflows.
//
// # Core Operations
//
// [Authenticator] drives two workflows over the identity provider, the
// identity store and the session issuer:
//
//  1. [Authenticator.Authenticate] : first login or re-login
//     - Exchanges the authorization code and PKCE verifier for tokens
//     - Fetches the provider profile
//     - Upserts the user keyed by the provider id
//     - Issues a session credential
//
//  2. [Authenticator.RefreshSession] : token refresh for a known user
//     - Loads the user and its stored refresh token
//     - Refreshes the access token, keeping the stored refresh token unless rotated
//     - Persists the new tokens and issues a new session credential
//
// Each workflow moves through a fixed sequence of [State] values. A failure
// stops the workflow and is returned as a [StepError] naming the state that
// failed. Nothing is persisted before the profile has been fetched, and no
// session is issued when persistence fails.
//
// # Export
//
// [ExportTags] gathers a user's tags and their tracks for the formatter
// package, fetching track lists with a bounded worker pool.
//
// # Progress Reporting
//
// Callers may pass a channel to receive a [ProgressUpdate] per state.
// Updates use select with default so reporting never blocks a workflow.
package tasks
