// Package services implements the identity provider client.
//
// # Identity Provider
//
// [IdentityProvider] abstracts the three provider calls the authentication
// workflows need: exchanging an authorization code (PKCE), refreshing an
// access token, and fetching the account profile. [SpotifyService] implements
// it against the Spotify accounts and Web API hosts.
//
// Token endpoint calls go through [oauth2.Config] with HTTP Basic client
// authentication. Profile calls are plain Bearer requests.
//
// # Error Handling
//
// Every failure is one of three typed errors:
//   - [TransportError] : the request never produced a response (wraps [shared.ErrTransport])
//   - [ProviderError] : the provider answered with a non-2xx status (wraps [shared.ErrProvider])
//   - [DecodeError] : the response body did not have the expected shape (wraps [shared.ErrDecode])
//
// Calls are never retried. An optional outbound rate limit paces requests.
package services
