// Package auth provides authentication and authorisation for the AMS backend.
//
// It covers:
//   - Argon2id password hashing, with verification of legacy bcrypt hashes
//   - Short-lived HS256 access tokens carrying an identity snapshot
//   - Long-lived refresh tokens, rotated on use, one live record per user
//   - A permission gate driven by per-route required-permission metadata
//
// Access tokens are trusted as issued: permission changes on a user record
// take effect at the next refresh, not on the next request.
package auth
