// Package migrations applies the embedded database schema. Statements are
// idempotent (IF NOT EXISTS) and executed in order on startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS app_organizations (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		abn TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_users (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_houses (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		design_category TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_residents (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		house_id UUID REFERENCES app_houses(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		ndis_number TEXT NOT NULL DEFAULT '',
		date_of_birth DATE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_contracts (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		resident_id UUID NOT NULL REFERENCES app_residents(id),
		house_id UUID REFERENCES app_houses(id),
		status TEXT NOT NULL DEFAULT 'Draft',
		frequency TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		original_amount NUMERIC(14,2) NOT NULL,
		current_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
		insufficient_funds BOOLEAN NOT NULL DEFAULT FALSE,
		start_date DATE NOT NULL,
		end_date DATE,
		last_drawdown_date DATE,
		renewed_from_id UUID,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_transactions (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		contract_id UUID NOT NULL REFERENCES app_contracts(id),
		resident_id UUID NOT NULL,
		service_date DATE NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		claim_status TEXT NOT NULL DEFAULT 'unclaimed',
		claim_id UUID,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_claims (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES app_organizations(id) ON DELETE CASCADE,
		reference TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		transaction_count INTEGER NOT NULL DEFAULT 0,
		exported_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_notifications (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		type TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_documents (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		contract_id UUID NOT NULL REFERENCES app_contracts(id) ON DELETE CASCADE,
		storage_key TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		render_millis BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_automation_settings (
		org_id UUID PRIMARY KEY REFERENCES app_organizations(id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		run_hour_utc INTEGER NOT NULL DEFAULT 0,
		catch_up_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		notify_email TEXT NOT NULL DEFAULT '',
		last_run_at TIMESTAMPTZ,
		last_run_status TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_due
		ON app_contracts (org_id, status, last_drawdown_date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_claim
		ON app_transactions (claim_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_service_date
		ON app_transactions (org_id, service_date)`,
}

// Apply executes every migration statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Count reports how many statements Apply will execute.
func Count() int { return len(statements) }
