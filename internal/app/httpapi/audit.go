package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// auditEntry records one mutating API request. Resource, ResourceID and
// Action are parsed from the request so the trail reads in back-office
// terms (a contract was transitioned, a claim was exported) rather than
// raw URLs.
type auditEntry struct {
	Time       time.Time `json:"time"`
	User       string    `json:"user"`
	Role       string    `json:"role"`
	Org        string    `json:"org"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// Routes whose second path segment is an operation, not a resource ID.
var flatAuditRoutes = map[string]bool{
	"auth":       true,
	"automation": true,
	"cron":       true,
}

// describeRequest maps a mutating API request onto resource, resource ID
// and action. Collection-level writes derive the action from the method.
func describeRequest(method, path string) (resource, id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/"), "/")
	parts := strings.Split(rest, "/")
	resource = parts[0]

	if flatAuditRoutes[resource] {
		if len(parts) > 1 {
			action = parts[1]
		}
		return resource, "", action
	}

	if len(parts) > 1 {
		id = parts[1]
	}
	if len(parts) > 2 {
		return resource, id, parts[2]
	}
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPatch, http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return resource, id, action
}

// auditLog is a bounded in-memory trail of mutating requests with an
// optional persistent sink behind it.
type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
	sink    auditSink
}

type auditSink interface {
	Write(entry auditEntry) error
}

func newAuditLog(max int, sink auditSink) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max, sink: sink}
}

func (l *auditLog) add(entry auditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; ignore errors to avoid impacting request flow.
		_ = l.sink.Write(entry)
	}
}

// listOrg returns an organization's entries, newest first. Entries from
// other tenants are never exposed.
func (l *auditLog) listOrg(org string, limit int) []auditEntry {
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]auditEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].Org == org {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// fileAuditSink appends audit entries as JSONL.
type fileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

func newFileAuditSink(path string) (*fileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &fileAuditSink{file: f}, nil
}

func (s *fileAuditSink) Write(entry auditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}
