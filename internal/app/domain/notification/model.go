package notification

import "time"

// Type identifies why a notification was produced.
type Type string

const (
	TypeSignup         Type = "signup"
	TypeBillingSummary Type = "billing_summary"
	TypeBillingError   Type = "billing_error"
)

// Status tracks delivery of a notification email.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification records a single email send attempt.
type Notification struct {
	ID        string
	OrgID     string
	Type      Type
	Recipient string
	Subject   string
	Body      string
	Status    Status
	Error     string
	SentAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
