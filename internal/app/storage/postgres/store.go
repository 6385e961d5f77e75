package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/providerdesk/backoffice/internal/app/domain/org"
	"github.com/providerdesk/backoffice/internal/app/domain/user"
	"github.com/providerdesk/backoffice/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.OrgStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.HouseStore = (*Store)(nil)
var _ storage.ResidentStore = (*Store)(nil)
var _ storage.ContractStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.ClaimStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.DocumentStore = (*Store)(nil)
var _ storage.AutomationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- OrgStore ---------------------------------------------------------------

func (s *Store) CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	metadataJSON, err := json.Marshal(o.Metadata)
	if err != nil {
		return org.Organization{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_organizations (id, name, abn, contact_email, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.Name, o.ABN, o.ContactEmail, metadataJSON, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return org.Organization{}, err
	}
	return o, nil
}

func (s *Store) UpdateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	existing, err := s.GetOrg(ctx, o.ID)
	if err != nil {
		return org.Organization{}, err
	}

	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(o.Metadata)
	if err != nil {
		return org.Organization{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_organizations
		SET name = $2, abn = $3, contact_email = $4, metadata = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.Name, o.ABN, o.ContactEmail, metadataJSON, o.UpdatedAt)
	if err != nil {
		return org.Organization{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return org.Organization{}, sql.ErrNoRows
	}
	return o, nil
}

func (s *Store) GetOrg(ctx context.Context, id string) (org.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, abn, contact_email, metadata, created_at, updated_at
		FROM app_organizations
		WHERE id = $1
	`, id)

	var (
		o           org.Organization
		metadataRaw []byte
	)
	if err := row.Scan(&o.ID, &o.Name, &o.ABN, &o.ContactEmail, &metadataRaw, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return org.Organization{}, err
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &o.Metadata)
	}
	return o, nil
}

func (s *Store) ListOrgs(ctx context.Context) ([]org.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, abn, contact_email, metadata, created_at, updated_at
		FROM app_organizations
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []org.Organization
	for rows.Next() {
		var (
			o           org.Organization
			metadataRaw []byte
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.ABN, &o.ContactEmail, &metadataRaw, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &o.Metadata)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) DeleteOrg(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_organizations WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, org_id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8)
	`, u.ID, u.OrgID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		FROM app_users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		FROM app_users
		WHERE email = lower($1)
	`, email))
}

func (s *Store) ListUsers(ctx context.Context, orgID string) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		FROM app_users
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var (
			u    user.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = user.Role(role)
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var (
		u    user.User
		role string
	)
	if err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
