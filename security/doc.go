// Package security implements the two trust boundaries agentmesh
// accepts requests across: HMAC-signed webhook bodies and short-lived
// bearer tokens for the internal API. Both verification paths compare
// the signature digest in constant time; the webhook path first rejects
// an empty or malformed header, and the bearer path first parses the
// token and checks its signing algorithm.
package security
