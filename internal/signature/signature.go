package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

// Header names carried by every edge-origin request.
const (
	HeaderEdgeID    = "x-edge-id"
	HeaderTimestamp = "x-timestamp"
	HeaderSignature = "x-signature"
)

// emptyBody is signed in place of a missing request body so that GET
// requests and empty POSTs canonicalize identically on both sides.
const emptyBody = "{}"

// Authentication errors.
var (
	// ErrMissingHeaders indicates one or more required headers are absent.
	ErrMissingHeaders = errors.New("signature: missing authentication headers")

	// ErrInvalidSignature indicates the recomputed signature did not match.
	ErrInvalidSignature = errors.New("signature: invalid signature")
)

// Codec signs and verifies edge-origin requests with a pre-shared secret.
//
// The canonical base string is:
//
//	METHOD "|" PATH "|" TIMESTAMP "|" SHA256_HEX(BODY)
//
// PATH is the request path only, with no scheme, host, or query, and must
// exclude any mount prefix the server's router adds. Signer and verifier
// have to agree byte-for-byte on the path or verification fails even with
// the correct secret.
//
// The timestamp is carried verbatim and is not checked for freshness, so
// captured requests are replayable. Deployments that need replay
// protection must layer it on top (network isolation, TLS, short-lived
// secrets).
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec using the given shared secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 signature for a request.
//
// Parameters:
//   - method: HTTP verb (uppercased by the caller)
//   - path: Canonical request path, excluding any mount prefix
//   - timestamp: Producer-chosen timestamp string, sent verbatim
//   - body: Exact serialized request body bytes (nil or empty signs "{}")
//
// Returns:
//   - string: Lowercase hex signature
func (c *Codec) Sign(method, path, timestamp string, body []byte) string {
	if len(body) == 0 {
		body = []byte(emptyBody)
	}

	bodyHash := sha256.Sum256(body)

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(method))
	mac.Write([]byte("|"))
	mac.Write([]byte(path))
	mac.Write([]byte("|"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("|"))
	mac.Write([]byte(hex.EncodeToString(bodyHash[:])))

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature headers of an inbound request against the
// recomputed signature. The comparison is constant-time.
//
// Parameters:
//   - method: HTTP verb from the request
//   - path: Canonical path with the mount prefix already stripped
//   - body: Exact body bytes as received
//   - headers: Request headers carrying edge id, timestamp, and signature
//
// Returns:
//   - string: The claimed edge id, when verification succeeds
//   - error: ErrMissingHeaders or ErrInvalidSignature
func (c *Codec) Verify(method, path string, body []byte, headers http.Header) (string, error) {
	edgeID := headers.Get(HeaderEdgeID)
	timestamp := headers.Get(HeaderTimestamp)
	sig := headers.Get(HeaderSignature)

	if edgeID == "" || timestamp == "" || sig == "" {
		return "", ErrMissingHeaders
	}

	expected := c.Sign(method, path, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", ErrInvalidSignature
	}

	return edgeID, nil
}
