package contract

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the funding contract lifecycle.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusActive    Status = "Active"
	StatusExpired   Status = "Expired"
	StatusCancelled Status = "Cancelled"
	StatusRenewed   Status = "Renewed"
)

// Frequency is the cadence the contracted Amount is expressed in.
type Frequency string

const (
	FrequencyDaily       Frequency = "daily"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
)

// Contract is an NDIS funding contract for a resident's placement in a
// house. CurrentBalance is drawn down by generated transactions and must
// never go negative; a shortfall sets InsufficientFunds instead.
type Contract struct {
	ID                string
	OrgID             string
	ResidentID        string
	HouseID           string
	Status            Status
	Frequency         Frequency
	Amount            decimal.Decimal
	OriginalAmount    decimal.Decimal
	CurrentBalance    decimal.Decimal
	InsufficientFunds bool
	StartDate         time.Time
	EndDate           time.Time
	LastDrawdownDate  time.Time
	RenewedFromID     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var transitions = map[Status][]Status{
	StatusDraft:   {StatusActive, StatusCancelled},
	StatusActive:  {StatusExpired, StatusCancelled, StatusRenewed},
	StatusExpired: {StatusRenewed},
}

// CanTransition reports whether moving from one lifecycle status to
// another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s names a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusExpired, StatusCancelled, StatusRenewed:
		return true
	}
	return false
}

// ValidFrequency reports whether f names a known drawdown cadence.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyFortnightly:
		return true
	}
	return false
}
