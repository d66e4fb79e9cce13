package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSignPayload_RoundTrip(t *testing.T) {
	payload := []byte(`{"case_id":"abc"}`)
	sig := SignPayload(payload, "secret")
	if !VerifySignature(payload, "secret", sig) {
		t.Error("signature did not verify")
	}
	if VerifySignature(payload, "wrong-secret", sig) {
		t.Error("signature verified with wrong secret")
	}
	if VerifySignature([]byte(`{"case_id":"xyz"}`), "secret", sig) {
		t.Error("signature verified for different payload")
	}
}

func TestNotifier_Deliver(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "secret", zerolog.Nop())
	event := Event{
		ID:         "evt-1",
		Type:       EventCaseCompleted,
		Resource:   "surgical_case",
		ResourceID: "case-1",
		Payload:    json.RawMessage(`{"status":"completed"}`),
		Timestamp:  time.Now().UTC(),
	}
	if err := n.Deliver(context.Background(), event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotEvent != EventCaseCompleted {
		t.Errorf("event header = %q", gotEvent)
	}
	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Fatalf("signature header = %q", gotSig)
	}
	if !VerifySignature(gotBody, "secret", strings.TrimPrefix(gotSig, "sha256=")) {
		t.Error("delivered signature does not verify against body")
	}
}

func TestNotifier_DeliverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "secret", zerolog.Nop(), WithRetryDelay(time.Millisecond))
	err := n.Deliver(context.Background(), Event{ID: "evt-1", Type: EventStayDischarged})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNotifier_DeliverExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(srv.URL, "secret", zerolog.Nop(), WithRetryDelay(time.Millisecond), WithMaxRetries(2))
	err := n.Deliver(context.Background(), Event{ID: "evt-1", Type: EventCaseCompleted})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestNotifier_DisabledDropsEvents(t *testing.T) {
	n := New("", "secret", zerolog.Nop())
	if n.Enabled() {
		t.Error("Enabled() = true with empty URL")
	}
	// Must not panic or block.
	n.Emit(EventCaseCompleted, "surgical_case", "case-1", map[string]string{"status": "completed"})
}
