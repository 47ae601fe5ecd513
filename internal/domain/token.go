package domain

import "encoding/base64"

// File tokens are the opaque, reversible addressing scheme used in button
// callback data. Padded base64url keeps tokens transport-safe and matches
// the identifiers issued by earlier deployments, so stale buttons keep
// resolving.

// EncodeFileToken encodes a filename into a transport-safe token.
func EncodeFileToken(name string) string {
	return base64.URLEncoding.EncodeToString([]byte(name))
}

// DecodeFileToken reverses EncodeFileToken. Malformed input is returned
// unchanged rather than reported: a stale or corrupted token must never
// crash the caller, it only ever resolves to a missing file downstream.
func DecodeFileToken(token string) string {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return token
	}
	return string(b)
}
