package automation

import "time"

// RunStatus summarises the outcome of an organization's last billing run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Settings configures the automated billing engine for one organization.
type Settings struct {
	OrgID          string
	Enabled        bool
	RunHourUTC     int
	CatchUpEnabled bool
	NotifyEmail    string
	LastRunAt      time.Time
	LastRunStatus  RunStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
