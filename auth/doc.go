// Package auth provides the credential primitives used by the community
// service: HS256 access tokens and bcrypt hashed service API keys.
package auth
