// Package models defines the domain entities of the moodring service.
//
// Persistent entities:
//   - [User] : a linked Spotify account together with its current provider tokens
//   - [Tag] : a user-owned label with an optional display colour
//   - [SongTag] : the association of one tag with one external track id
//
// Identity provider payloads:
//   - [TokenPair] : tokens returned by the provider token endpoint
//   - [Profile] : the provider's view of the authenticated account
package models
