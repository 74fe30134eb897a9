package edge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/signature"
)

func TestPush_SignsAndDelivers(t *testing.T) {
	codec := signature.NewCodec("test-secret")

	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body) //nolint:errcheck // Test server
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck // Test server
	}))
	defer server.Close()

	client := NewClient(codec, 5*time.Second, logging.Default())
	node := &Node{ID: "edge-1", BaseURL: server.URL}

	resp, err := client.Push(context.Background(), node, "cmd-1", json.RawMessage(`{"type":"light.on"}`))
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !resp.OK {
		t.Error("Push() response OK = false, want true")
	}

	// The signature must verify against the exact transmitted bytes.
	if _, err := codec.Verify("POST", "/api/command", gotBody, gotHeaders); err != nil {
		t.Errorf("pushed request does not verify: %v", err)
	}
	if gotHeaders.Get(signature.HeaderEdgeID) != "edge-1" {
		t.Errorf("x-edge-id = %q, want edge-1", gotHeaders.Get(signature.HeaderEdgeID))
	}

	var req PushRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("unmarshalling pushed body: %v", err)
	}
	if req.ID != "cmd-1" {
		t.Errorf("pushed command id = %q, want cmd-1", req.ID)
	}
}

func TestPush_NoBaseURL(t *testing.T) {
	client := NewClient(signature.NewCodec("s"), time.Second, logging.Default())

	_, err := client.Push(context.Background(), &Node{ID: "edge-1"}, "cmd-1", json.RawMessage(`{}`))
	if !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("Push() error = %v, want ErrNoBaseURL", err)
	}
}

func TestPush_EdgeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(signature.NewCodec("s"), time.Second, logging.Default())
	node := &Node{ID: "edge-1", BaseURL: server.URL}

	if _, err := client.Push(context.Background(), node, "cmd-1", json.RawMessage(`{}`)); err == nil {
		t.Error("Push() against erroring edge should fail")
	}
}

func TestPush_Unreachable(t *testing.T) {
	client := NewClient(signature.NewCodec("s"), 500*time.Millisecond, logging.Default())
	node := &Node{ID: "edge-1", BaseURL: "http://127.0.0.1:1"}

	if _, err := client.Push(context.Background(), node, "cmd-1", json.RawMessage(`{}`)); err == nil {
		t.Error("Push() against unreachable edge should fail")
	}
}
