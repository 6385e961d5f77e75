package house

import "time"

// House is an SDA dwelling operated by a provider.
type House struct {
	ID             string
	OrgID          string
	Name           string
	Address        string
	DesignCategory string
	Capacity       int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
