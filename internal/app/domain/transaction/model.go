package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the ledger lifecycle of a transaction.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoided Status = "voided"
)

// ClaimStatus tracks a posted transaction's journey through claiming.
type ClaimStatus string

const (
	ClaimUnclaimed ClaimStatus = "unclaimed"
	ClaimPickedUp  ClaimStatus = "picked_up"
	ClaimClaimed   ClaimStatus = "claimed"
	ClaimPaid      ClaimStatus = "paid"
	ClaimRejected  ClaimStatus = "rejected"
)

// CreatedByAutomation marks transactions generated by the billing engine
// rather than a user.
const CreatedByAutomation = "automation"

// Transaction is a single dated drawdown (or manual charge) against a
// funding contract.
type Transaction struct {
	ID          string
	OrgID       string
	ContractID  string
	ResidentID  string
	ServiceDate time.Time
	Amount      decimal.Decimal
	Description string
	Status      Status
	ClaimStatus ClaimStatus
	ClaimID     string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
