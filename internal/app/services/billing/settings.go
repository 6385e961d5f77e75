package billing

import (
	"context"
	"database/sql"
	"strings"

	"github.com/providerdesk/backoffice/internal/app/domain/automation"
	"github.com/providerdesk/backoffice/internal/errors"
)

// GetSettings returns the automation settings for an organization,
// defaulting to a disabled configuration when none have been saved.
func (s *Service) GetSettings(ctx context.Context, orgID string) (automation.Settings, error) {
	set, err := s.settings.GetAutomationSettings(ctx, orgID)
	if err == sql.ErrNoRows {
		return automation.Settings{OrgID: orgID, CatchUpEnabled: true}, nil
	}
	return set, err
}

// UpdateSettings saves the automation configuration for an organization.
func (s *Service) UpdateSettings(ctx context.Context, orgID string, enabled, catchUpEnabled *bool, runHourUTC *int, notifyEmail *string) (automation.Settings, error) {
	if orgID == "" {
		return automation.Settings{}, errors.Validation("org_id is required")
	}

	current, err := s.GetSettings(ctx, orgID)
	if err != nil {
		return automation.Settings{}, err
	}

	if enabled != nil {
		current.Enabled = *enabled
	}
	if catchUpEnabled != nil {
		current.CatchUpEnabled = *catchUpEnabled
	}
	if runHourUTC != nil {
		if *runHourUTC < 0 || *runHourUTC > 23 {
			return automation.Settings{}, errors.Validation("run_hour_utc must be between 0 and 23")
		}
		current.RunHourUTC = *runHourUTC
	}
	if notifyEmail != nil {
		trimmed := strings.TrimSpace(*notifyEmail)
		if trimmed != "" && !strings.Contains(trimmed, "@") {
			return automation.Settings{}, errors.Validation("notify_email is not a valid address")
		}
		current.NotifyEmail = trimmed
	}

	saved, err := s.settings.UpsertAutomationSettings(ctx, current)
	if err != nil {
		return automation.Settings{}, err
	}
	s.log.WithField("org_id", orgID).
		WithField("enabled", saved.Enabled).
		Info("automation settings updated")
	return saved, nil
}
