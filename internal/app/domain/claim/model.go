package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a claim batch through submission and payment.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusInProgress    Status = "in_progress"
	StatusPaid          Status = "paid"
	StatusRejected      Status = "rejected"
	StatusPartiallyPaid Status = "partially_paid"
)

// Claim is a batch of transactions packaged for submission to the
// funding body.
type Claim struct {
	ID               string
	OrgID            string
	Reference        string
	Status           Status
	TotalAmount      decimal.Decimal
	TransactionCount int
	ExportedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
