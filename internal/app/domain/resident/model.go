package resident

import "time"

// Resident is an NDIS participant housed by a provider. HouseID is empty
// while the resident is unplaced.
type Resident struct {
	ID          string
	OrgID       string
	HouseID     string
	Name        string
	NDISNumber  string
	DateOfBirth time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
