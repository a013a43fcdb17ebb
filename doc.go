// Package auth provides the authentication core of the task management API:
// password hashing, HS256 access/refresh tokens, a user directory backed by
// Bun, and the request authenticators that resolve a bearer credential into
// the active user behind it.
//
// Tokens:
//   - TokenCodec signs and verifies JWTs with a single shared secret. Access
//     and refresh tokens carry a "type" claim and are never interchangeable.
//   - TokenService layers refresh and revocation on top of the codec. Revoked
//     tokens are tracked by a RevocationStore until they would expire anyway.
//
// Authentication:
//   - Authenticator exposes three entry points: RequireUser, RequireSuperuser
//     and OptionalUser. Missing, unknown and inactive users all fail with the
//     same client message; the precise reason only reaches logs and the
//     ActivitySink.
//   - RouteAuthenticator adapts those entry points to go-router middleware and
//     stores the resolved user in the request locals and context.
//
// Activity sinks:
//   - ActivitySink receives login, token and account events. Sinks run best
//     effort (errors are logged) so auditing never blocks a request.
package auth
