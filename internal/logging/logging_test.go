package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithContextAttachesIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	log := New("test", "debug", &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	ctx = context.WithValue(ctx, OrgIDKey, "org-1")

	log.WithContext(ctx).Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("parse log line: %v", err)
	}
	if line["trace_id"] != "trace-1" || line["user_id"] != "user-1" || line["org_id"] != "org-1" {
		t.Fatalf("missing identifiers: %v", line)
	}
	if line["service"] != "test" {
		t.Fatalf("missing service field: %v", line)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetUserID(ctx) != "" || GetRole(ctx) != "" {
		t.Fatal("expected empty identifiers")
	}
}
