package org

import "time"

// Organization represents an SDA provider tenant. Every other record in the
// system is scoped to exactly one organization.
type Organization struct {
	ID           string
	Name         string
	ABN          string
	ContactEmail string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
