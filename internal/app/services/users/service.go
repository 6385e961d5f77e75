// Package users manages operator accounts and login.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/providerdesk/backoffice/internal/app/domain/notification"
	"github.com/providerdesk/backoffice/internal/app/domain/user"
	"github.com/providerdesk/backoffice/internal/app/services/notifications"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// TokenIssuer mints a signed session token for an authenticated user.
type TokenIssuer interface {
	IssueToken(userID, orgID, email, role string, ttl time.Duration) (string, error)
}

// Service coordinates user accounts and authentication.
type Service struct {
	store    storage.UserStore
	orgs     storage.OrgStore
	issuer   TokenIssuer
	notifier *notifications.Service
	tokenTTL time.Duration
	log      *logging.Logger
}

// New creates a configured user service.
func New(store storage.UserStore, orgs storage.OrgStore, issuer TokenIssuer, notifier *notifications.Service, tokenTTL time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Service{
		store:    store,
		orgs:     orgs,
		issuer:   issuer,
		notifier: notifier,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// Signup creates a user within an existing organization and sends the
// welcome email. Delivery failure does not fail the signup.
func (s *Service) Signup(ctx context.Context, orgID, email, name, password string, role user.Role) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if orgID == "" {
		return user.User{}, errors.Validation("org_id is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, errors.Validation("a valid email is required")
	}
	if name == "" {
		return user.User{}, errors.Validation("name is required")
	}
	if len(password) < 8 {
		return user.User{}, errors.Validation("password must be at least 8 characters")
	}
	if role == "" {
		role = user.RoleMember
	}
	if role != user.RoleAdmin && role != user.RoleMember {
		return user.User{}, errors.Validation("unknown role " + string(role))
	}

	o, err := s.orgs.GetOrg(ctx, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, errors.NotFound("organization", orgID)
		}
		return user.User{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, errors.Conflict("user with email " + email + " already exists")
	} else if err != sql.ErrNoRows {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Internal("Failed to hash password", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		OrgID:        orgID,
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return user.User{}, err
	}

	if s.notifier != nil {
		subject := fmt.Sprintf("Welcome to %s", o.Name)
		body := fmt.Sprintf("Hi %s,\n\nYour account for %s is ready. Sign in with %s.\n", name, o.Name, email)
		if _, err := s.notifier.Send(ctx, orgID, notification.TypeSignup, email, subject, body); err != nil {
			s.log.WithError(err).WithField("user_id", created.ID).Warn("signup notification failed")
		}
	}

	s.log.WithField("user_id", created.ID).
		WithField("org_id", orgID).
		Info("user created")
	return created, nil
}

// Login verifies credentials and returns the user with a session token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return user.User{}, "", errors.Validation("email and password are required")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, "", errors.Unauthorized("Invalid credentials")
		}
		return user.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("email", email).Warn("failed login attempt")
		return user.User{}, "", errors.Unauthorized("Invalid credentials")
	}

	if s.issuer == nil {
		return user.User{}, "", errors.Internal("No token issuer configured", nil)
	}
	token, err := s.issuer.IssueToken(u.ID, u.OrgID, u.Email, string(u.Role), s.tokenTTL)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns the users of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]user.User, error) {
	return s.store.ListUsers(ctx, orgID)
}
