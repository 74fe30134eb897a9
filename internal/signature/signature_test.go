package signature

import (
	"errors"
	"net/http"
	"testing"
)

func TestSign_Deterministic(t *testing.T) {
	codec := NewCodec("test-secret")

	body := []byte(`{"edgeId":"edge-1"}`)
	sig1 := codec.Sign("POST", "/heartbeat", "1755259200", body)
	sig2 := codec.Sign("POST", "/heartbeat", "1755259200", body)

	if sig1 != sig2 {
		t.Errorf("Sign() not deterministic: %s != %s", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Errorf("Sign() length = %d, want 64 hex chars", len(sig1))
	}
}

func TestSign_EmptyBodySignsEmptyObject(t *testing.T) {
	codec := NewCodec("test-secret")

	fromNil := codec.Sign("GET", "/commands", "1755259200", nil)
	fromEmpty := codec.Sign("GET", "/commands", "1755259200", []byte{})
	fromLiteral := codec.Sign("GET", "/commands", "1755259200", []byte("{}"))

	if fromNil != fromLiteral {
		t.Error("nil body should sign identically to literal {}")
	}
	if fromEmpty != fromLiteral {
		t.Error("empty body should sign identically to literal {}")
	}
}

func TestVerify_ValidSignature(t *testing.T) {
	codec := NewCodec("test-secret")
	body := []byte(`{"siteId":"site-1"}`)

	headers := http.Header{}
	headers.Set(HeaderEdgeID, "edge-1")
	headers.Set(HeaderTimestamp, "1755259200")
	headers.Set(HeaderSignature, codec.Sign("POST", "/devices/register", "1755259200", body))

	edgeID, err := codec.Verify("POST", "/devices/register", body, headers)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if edgeID != "edge-1" {
		t.Errorf("Verify() edgeID = %q, want %q", edgeID, "edge-1")
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	codec := NewCodec("test-secret")

	tests := []struct {
		name string
		omit string
	}{
		{"no edge id", HeaderEdgeID},
		{"no timestamp", HeaderTimestamp},
		{"no signature", HeaderSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(HeaderEdgeID, "edge-1")
			headers.Set(HeaderTimestamp, "1755259200")
			headers.Set(HeaderSignature, "deadbeef")
			headers.Del(tt.omit)

			_, err := codec.Verify("POST", "/heartbeat", nil, headers)
			if !errors.Is(err, ErrMissingHeaders) {
				t.Errorf("Verify() error = %v, want ErrMissingHeaders", err)
			}
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	signer := NewCodec("edge-secret")
	verifier := NewCodec("different-secret")
	body := []byte(`{"edgeId":"edge-1"}`)

	headers := http.Header{}
	headers.Set(HeaderEdgeID, "edge-1")
	headers.Set(HeaderTimestamp, "1755259200")
	headers.Set(HeaderSignature, signer.Sign("POST", "/heartbeat", "1755259200", body))

	if _, err := verifier.Verify("POST", "/heartbeat", body, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify() error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	codec := NewCodec("test-secret")

	headers := http.Header{}
	headers.Set(HeaderEdgeID, "edge-1")
	headers.Set(HeaderTimestamp, "1755259200")
	headers.Set(HeaderSignature, codec.Sign("POST", "/sensors/latest", "1755259200", []byte(`{"value":1}`)))

	if _, err := codec.Verify("POST", "/sensors/latest", []byte(`{"value":99}`), headers); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify() error = %v, want ErrInvalidSignature", err)
	}
}

// A signature computed over the path with a mount prefix included fails
// against a verifier that canonicalizes without it. Both sides have to
// agree byte-for-byte on the signed path.
func TestVerify_PathPrefixMismatch(t *testing.T) {
	codec := NewCodec("test-secret")
	body := []byte(`{"edgeId":"edge-1"}`)

	headers := http.Header{}
	headers.Set(HeaderEdgeID, "edge-1")
	headers.Set(HeaderTimestamp, "1755259200")
	headers.Set(HeaderSignature, codec.Sign("POST", "/edge/heartbeat", "1755259200", body))

	if _, err := codec.Verify("POST", "/heartbeat", body, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify() with prefixed signed path: error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_TimestampCoveredBySignature(t *testing.T) {
	codec := NewCodec("test-secret")
	body := []byte(`{"edgeId":"edge-1"}`)

	headers := http.Header{}
	headers.Set(HeaderEdgeID, "edge-1")
	headers.Set(HeaderTimestamp, "9999999999") // Differs from the signed value
	headers.Set(HeaderSignature, codec.Sign("POST", "/heartbeat", "1755259200", body))

	if _, err := codec.Verify("POST", "/heartbeat", body, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify() with altered timestamp: error = %v, want ErrInvalidSignature", err)
	}
}
