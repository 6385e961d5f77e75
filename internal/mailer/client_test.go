package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/providerdesk/backoffice/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("test", "error", io.Discard)
}

func TestSend_DeliversPayload(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer api-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "api-key", FromAddress: "noreply@example.com"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := c.Send(context.Background(), "ops@example.com", "Billing run", "2 transactions"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.From != "noreply@example.com" || got.To != "ops@example.com" || got.Subject != "Billing run" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, FromAddress: "noreply@example.com", MaxRetries: 3}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Send(context.Background(), "a@b.c", "s", "b"); err != nil {
		t.Fatalf("send should succeed after retries: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSend_ClientErrorFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, FromAddress: "noreply@example.com", MaxRetries: 3}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Send(context.Background(), "a@b.c", "s", "b"); err == nil {
		t.Fatal("4xx responses must not succeed")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls)
	}
}

func TestSend_HonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, FromAddress: "noreply@example.com", MaxRetries: 5}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, "a@b.c", "s", "b"); err == nil {
		t.Fatal("cancelled context should abort retries")
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{FromAddress: "x@y.z"}, testLogger()); err == nil {
		t.Fatal("missing base URL must be rejected")
	}
}
