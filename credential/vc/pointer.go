package vc

import (
	"net/url"
	"strings"
)

// VerificationPointer builds the deterministic verification URI for a
// credential id. The pointer is an opaque locator (QR payload); it carries no
// trust on its own.
func VerificationPointer(baseURL, credentialID string) string {
	return strings.TrimRight(baseURL, "/") + "/verify/" + url.PathEscape(credentialID)
}
