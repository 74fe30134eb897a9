// Package signature implements the HMAC-SHA256 request authentication
// used by the edge synchronization protocol.
//
// Every edge-origin request carries x-edge-id, x-timestamp, and
// x-signature headers. The signature covers the method, the canonical
// path (excluding the server's mount prefix), the timestamp, and a
// SHA-256 digest of the exact body bytes.
package signature
