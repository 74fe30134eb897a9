// Package auth provides user authentication for Hearth Cloud.
//
// User-origin requests carry short-lived JWT access tokens scoped to a
// household. Tokens are validated by signature only; no database hit on
// the hot path. Passwords are hashed with Argon2id (OWASP 2025
// recommendation).
//
// Edge-origin requests do not use this package; they are authenticated
// per request with the shared-secret HMAC scheme in internal/signature.
package auth
