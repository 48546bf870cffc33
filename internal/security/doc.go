// Package security provides the Control Surface's bearer-token validation,
// role-based route gating, and request-parameter sanitization. Token
// issuance is out of scope for the core; JWTHandler only ever validates
// tokens presented by callers (SPEC_FULL §1, §4.9).
package security
