package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/providerdesk/backoffice/internal/app/domain/automation"
	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/document"
	"github.com/providerdesk/backoffice/internal/app/domain/notification"
)

// --- ClaimStore -------------------------------------------------------------

func (s *Store) CreateClaim(ctx context.Context, c claim.Claim) (claim.Claim, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_claims (id, org_id, reference, status, total_amount, transaction_count,
			exported_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.OrgID, c.Reference, string(c.Status), c.TotalAmount, c.TransactionCount,
		toNullTime(c.ExportedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return claim.Claim{}, err
	}
	return c, nil
}

func (s *Store) UpdateClaim(ctx context.Context, c claim.Claim) (claim.Claim, error) {
	existing, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		return claim.Claim{}, err
	}

	c.OrgID = existing.OrgID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_claims
		SET reference = $2, status = $3, total_amount = $4, transaction_count = $5,
			exported_at = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Reference, string(c.Status), c.TotalAmount, c.TransactionCount,
		toNullTime(c.ExportedAt), c.UpdatedAt)
	if err != nil {
		return claim.Claim{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return claim.Claim{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetClaim(ctx context.Context, id string) (claim.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, reference, status, total_amount, transaction_count, exported_at, created_at, updated_at
		FROM app_claims
		WHERE id = $1
	`, id)
	return scanClaim(row.Scan)
}

func (s *Store) ListClaims(ctx context.Context, orgID string) ([]claim.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, reference, status, total_amount, transaction_count, exported_at, created_at, updated_at
		FROM app_claims
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []claim.Claim
	for rows.Next() {
		c, err := scanClaim(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanClaim(scan func(dest ...any) error) (claim.Claim, error) {
	var (
		c          claim.Claim
		status     string
		exportedAt sql.NullTime
	)
	if err := scan(&c.ID, &c.OrgID, &c.Reference, &status, &c.TotalAmount, &c.TransactionCount,
		&exportedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return claim.Claim{}, err
	}
	c.Status = claim.Status(status)
	if exportedAt.Valid {
		c.ExportedAt = exportedAt.Time.UTC()
	}
	return c, nil
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_notifications (id, org_id, type, recipient, subject, body, status, error,
			sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, n.ID, n.OrgID, string(n.Type), n.Recipient, n.Subject, n.Body, string(n.Status), n.Error,
		toNullTime(n.SentAt), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_notifications
		SET status = $2, error = $3, sent_at = $4, updated_at = $5
		WHERE id = $1
	`, n.ID, string(n.Status), n.Error, toNullTime(n.SentAt), n.UpdatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.Notification{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, orgID string) ([]notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, type, recipient, subject, body, status, error, sent_at, created_at, updated_at
		FROM app_notifications
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		var (
			n      notification.Notification
			typ    string
			status string
			sentAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.OrgID, &typ, &n.Recipient, &n.Subject, &n.Body, &status,
			&n.Error, &sentAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.Type = notification.Type(typ)
		n.Status = notification.Status(status)
		if sentAt.Valid {
			n.SentAt = sentAt.Time.UTC()
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// --- DocumentStore ----------------------------------------------------------

func (s *Store) CreateDocument(ctx context.Context, d document.Document) (document.Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_documents (id, org_id, contract_id, storage_key, sha256, size_bytes,
			render_millis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.OrgID, d.ContractID, d.StorageKey, d.SHA256, d.SizeBytes, d.RenderMillis, d.CreatedAt)
	if err != nil {
		return document.Document{}, err
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (document.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, contract_id, storage_key, sha256, size_bytes, render_millis, created_at
		FROM app_documents
		WHERE id = $1
	`, id)

	var d document.Document
	if err := row.Scan(&d.ID, &d.OrgID, &d.ContractID, &d.StorageKey, &d.SHA256, &d.SizeBytes,
		&d.RenderMillis, &d.CreatedAt); err != nil {
		return document.Document{}, err
	}
	return d, nil
}

func (s *Store) ListDocumentsByContract(ctx context.Context, contractID string) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, contract_id, storage_key, sha256, size_bytes, render_millis, created_at
		FROM app_documents
		WHERE contract_id = $1
		ORDER BY created_at DESC
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []document.Document
	for rows.Next() {
		var d document.Document
		if err := rows.Scan(&d.ID, &d.OrgID, &d.ContractID, &d.StorageKey, &d.SHA256, &d.SizeBytes,
			&d.RenderMillis, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// --- AutomationStore --------------------------------------------------------

func (s *Store) GetAutomationSettings(ctx context.Context, orgID string) (automation.Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT org_id, enabled, run_hour_utc, catch_up_enabled, notify_email, last_run_at,
			last_run_status, created_at, updated_at
		FROM app_automation_settings
		WHERE org_id = $1
	`, orgID)
	return scanAutomationSettings(row.Scan)
}

func (s *Store) UpsertAutomationSettings(ctx context.Context, cfg automation.Settings) (automation.Settings, error) {
	now := time.Now().UTC()
	cfg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_automation_settings (org_id, enabled, run_hour_utc, catch_up_enabled,
			notify_email, last_run_at, last_run_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (org_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
			run_hour_utc = EXCLUDED.run_hour_utc,
			catch_up_enabled = EXCLUDED.catch_up_enabled,
			notify_email = EXCLUDED.notify_email,
			last_run_at = EXCLUDED.last_run_at,
			last_run_status = EXCLUDED.last_run_status,
			updated_at = EXCLUDED.updated_at
	`, cfg.OrgID, cfg.Enabled, cfg.RunHourUTC, cfg.CatchUpEnabled, cfg.NotifyEmail,
		toNullTime(cfg.LastRunAt), string(cfg.LastRunStatus), now)
	if err != nil {
		return automation.Settings{}, err
	}
	return s.GetAutomationSettings(ctx, cfg.OrgID)
}

func (s *Store) ListEnabledAutomation(ctx context.Context) ([]automation.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, enabled, run_hour_utc, catch_up_enabled, notify_email, last_run_at,
			last_run_status, created_at, updated_at
		FROM app_automation_settings
		WHERE enabled
		ORDER BY org_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []automation.Settings
	for rows.Next() {
		cfg, err := scanAutomationSettings(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func scanAutomationSettings(scan func(dest ...any) error) (automation.Settings, error) {
	var (
		cfg       automation.Settings
		lastRunAt sql.NullTime
		status    sql.NullString
	)
	if err := scan(&cfg.OrgID, &cfg.Enabled, &cfg.RunHourUTC, &cfg.CatchUpEnabled, &cfg.NotifyEmail,
		&lastRunAt, &status, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return automation.Settings{}, err
	}
	if lastRunAt.Valid {
		cfg.LastRunAt = lastRunAt.Time.UTC()
	}
	if status.Valid {
		cfg.LastRunStatus = automation.RunStatus(status.String)
	}
	return cfg, nil
}
