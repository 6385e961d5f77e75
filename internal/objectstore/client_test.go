package objectstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/providerdesk/backoffice/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("test", "error", io.Discard)
}

func TestUpload_SendsObjectWithUpsert(t *testing.T) {
	var gotPath, gotUpsert, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "svc-key", Bucket: "contracts"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := c.Upload(context.Background(), "org1/contracts/c1/1.pdf", []byte("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/object/contracts/org1%2Fcontracts%2Fc1%2F1.pdf" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotUpsert != "true" {
		t.Fatalf("upload should upsert, got %q", gotUpsert)
	}
	if gotAuth != "Bearer svc-key" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if string(gotBody) != "%PDF-1.4" {
		t.Fatalf("body not forwarded: %q", gotBody)
	}
}

func TestCreateSignedURL_ResolvesAgainstBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ExpiresIn int `json:"expiresIn"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.ExpiresIn != 900 {
			t.Errorf("unexpected expiry: %d", payload.ExpiresIn)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/object/sign/contracts/key?token=abc",
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Bucket: "contracts"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	signed, err := c.CreateSignedURL(context.Background(), "key", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	want := srv.URL + "/object/sign/contracts/key?token=abc"
	if signed != want {
		t.Fatalf("signed URL %s, want %s", signed, want)
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("object-bytes"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Bucket: "contracts"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	data, err := c.Download(context.Background(), "key")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "object-bytes" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestUpload_SurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "bucket not accessible"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Bucket: "contracts"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.Upload(context.Background(), "key", []byte("x"), "")
	if err == nil {
		t.Fatal("4xx must surface an error")
	}
	if got := err.Error(); !strings.Contains(got, "bucket not accessible") {
		t.Fatalf("provider message lost: %s", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Bucket: "b"}, testLogger()); err == nil {
		t.Fatal("missing base URL must be rejected")
	}
	if _, err := New(Config{BaseURL: "http://x"}, testLogger()); err == nil {
		t.Fatal("missing bucket must be rejected")
	}
}
