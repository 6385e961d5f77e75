package users

import (
	"context"
	"testing"
	"time"

	"github.com/providerdesk/backoffice/internal/app/domain/org"
	"github.com/providerdesk/backoffice/internal/app/domain/user"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
	"github.com/providerdesk/backoffice/internal/errors"
)

type stubIssuer struct {
	lastUserID string
	lastRole   string
}

func (s *stubIssuer) IssueToken(userID, orgID, email, role string, ttl time.Duration) (string, error) {
	s.lastUserID = userID
	s.lastRole = role
	return "token-" + userID, nil
}

func newFixture(t *testing.T) (*Service, *memory.Store, *stubIssuer, string) {
	t.Helper()
	store := memory.New()
	o, err := store.CreateOrg(context.Background(), org.Organization{Name: "Harbour Care"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	issuer := &stubIssuer{}
	return New(store, store, issuer, nil, time.Hour, nil), store, issuer, o.ID
}

func TestSignup_DefaultsToMemberRole(t *testing.T) {
	svc, _, _, orgID := newFixture(t)

	u, err := svc.Signup(context.Background(), orgID, "  Jamie@Example.COM ", "Jamie Lee", "correct horse", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "jamie@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.Role != user.RoleMember {
		t.Fatalf("expected member role, got %q", u.Role)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Fatalf("password not hashed")
	}
}

func TestSignup_DuplicateEmailRejected(t *testing.T) {
	svc, _, _, orgID := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, orgID, "jamie@example.com", "Jamie", "password123", user.RoleAdmin); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(ctx, orgID, "JAMIE@example.com", "Other Jamie", "password456", "")
	if err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}
	if se := errors.GetServiceError(err); se == nil || se.Code != errors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignup_RejectsBadInput(t *testing.T) {
	svc, _, _, orgID := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		orgID    string
		email    string
		fullName string
		password string
		role     user.Role
	}{
		{"missing org", "", "a@b.com", "A", "password123", ""},
		{"bad email", orgID, "not-an-email", "A", "password123", ""},
		{"missing name", orgID, "a@b.com", "  ", "password123", ""},
		{"short password", orgID, "a@b.com", "A", "short", ""},
		{"unknown role", orgID, "a@b.com", "A", "password123", user.Role("owner")},
	}
	for _, tc := range cases {
		_, err := svc.Signup(ctx, tc.orgID, tc.email, tc.fullName, tc.password, tc.role)
		if se := errors.GetServiceError(err); se == nil || se.Code != errors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestSignup_UnknownOrg(t *testing.T) {
	svc, _, _, _ := newFixture(t)

	_, err := svc.Signup(context.Background(), "missing-org", "a@b.com", "A", "password123", "")
	if se := errors.GetServiceError(err); se == nil || se.Code != errors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLogin_IssuesToken(t *testing.T) {
	svc, _, issuer, orgID := newFixture(t)
	ctx := context.Background()

	created, err := svc.Signup(ctx, orgID, "ops@example.com", "Ops", "password123", user.RoleAdmin)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	u, token, err := svc.Login(ctx, "OPS@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != created.ID {
		t.Fatalf("wrong user returned")
	}
	if token != "token-"+created.ID {
		t.Fatalf("unexpected token %q", token)
	}
	if issuer.lastRole != string(user.RoleAdmin) {
		t.Fatalf("issuer saw role %q", issuer.lastRole)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, orgID := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, orgID, "ops@example.com", "Ops", "password123", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := svc.Login(ctx, "ops@example.com", "password124")
	if se := errors.GetServiceError(err); se == nil || se.Code != errors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	svc, _, _, _ := newFixture(t)

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	if se := errors.GetServiceError(err); se == nil || se.Code != errors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
