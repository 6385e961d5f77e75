// Package residents manages NDIS participants and their house placements.
package residents

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/providerdesk/backoffice/internal/app/domain/resident"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates resident management.
type Service struct {
	store  storage.ResidentStore
	houses storage.HouseStore
	log    *logging.Logger
}

// New creates a configured resident service.
func New(store storage.ResidentStore, houses storage.HouseStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("residents")
	}
	return &Service{store: store, houses: houses, log: log}
}

// Create registers a new resident, optionally placed into a house.
func (s *Service) Create(ctx context.Context, orgID, houseID, name, ndisNumber string, dateOfBirth time.Time) (resident.Resident, error) {
	name = strings.TrimSpace(name)
	if orgID == "" {
		return resident.Resident{}, errors.Validation("org_id is required")
	}
	if name == "" {
		return resident.Resident{}, errors.Validation("name is required")
	}

	if houseID != "" {
		if err := s.checkPlacement(ctx, orgID, houseID, ""); err != nil {
			return resident.Resident{}, err
		}
	}

	created, err := s.store.CreateResident(ctx, resident.Resident{
		OrgID:       orgID,
		HouseID:     houseID,
		Name:        name,
		NDISNumber:  strings.TrimSpace(ndisNumber),
		DateOfBirth: dateOfBirth,
		Active:      true,
	})
	if err != nil {
		return resident.Resident{}, err
	}
	s.log.WithField("resident_id", created.ID).
		WithField("org_id", orgID).
		Info("resident created")
	return created, nil
}

// Update applies modifications to a resident. Passing a houseID pointer to
// an empty string unplaces the resident.
func (s *Service) Update(ctx context.Context, id string, name, ndisNumber, houseID *string, active *bool) (resident.Resident, error) {
	current, err := s.store.GetResident(ctx, id)
	if err != nil {
		return resident.Resident{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return resident.Resident{}, errors.Validation("name cannot be empty")
		}
		current.Name = trimmed
	}
	if ndisNumber != nil {
		current.NDISNumber = strings.TrimSpace(*ndisNumber)
	}
	if houseID != nil && *houseID != current.HouseID {
		if *houseID != "" {
			if err := s.checkPlacement(ctx, current.OrgID, *houseID, current.ID); err != nil {
				return resident.Resident{}, err
			}
		}
		current.HouseID = *houseID
	}
	if active != nil {
		current.Active = *active
	}

	updated, err := s.store.UpdateResident(ctx, current)
	if err != nil {
		return resident.Resident{}, err
	}
	s.log.WithField("resident_id", updated.ID).Info("resident updated")
	return updated, nil
}

// Get fetches a resident by identifier.
func (s *Service) Get(ctx context.Context, id string) (resident.Resident, error) {
	return s.store.GetResident(ctx, id)
}

// List returns the residents of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]resident.Resident, error) {
	return s.store.ListResidents(ctx, orgID)
}

// ListByHouse returns the residents placed in a house.
func (s *Service) ListByHouse(ctx context.Context, houseID string) ([]resident.Resident, error) {
	return s.store.ListResidentsByHouse(ctx, houseID)
}

// checkPlacement validates a target house: it must exist, belong to the
// same organization, be active and have spare capacity.
func (s *Service) checkPlacement(ctx context.Context, orgID, houseID, residentID string) error {
	if s.houses == nil {
		return nil
	}
	h, err := s.houses.GetHouse(ctx, houseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("house", houseID)
		}
		return err
	}
	if h.OrgID != orgID {
		return errors.Validation("house belongs to a different organization")
	}
	if !h.Active {
		return errors.Validation("house is not active")
	}
	if h.Capacity > 0 {
		occupants, err := s.store.ListResidentsByHouse(ctx, houseID)
		if err != nil {
			return err
		}
		count := 0
		for _, r := range occupants {
			if r.ID != residentID && r.Active {
				count++
			}
		}
		if count >= h.Capacity {
			return errors.Conflict("house is at capacity").WithDetails("capacity", h.Capacity)
		}
	}
	return nil
}
