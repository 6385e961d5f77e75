// Package houses manages SDA dwellings.
package houses

import (
	"context"
	"strings"

	"github.com/providerdesk/backoffice/internal/app/domain/house"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates house management.
type Service struct {
	store     storage.HouseStore
	residents storage.ResidentStore
	log       *logging.Logger
}

// New creates a configured house service.
func New(store storage.HouseStore, residents storage.ResidentStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("houses")
	}
	return &Service{store: store, residents: residents, log: log}
}

// Create registers a new house for an organization.
func (s *Service) Create(ctx context.Context, orgID, name, address, designCategory string, capacity int) (house.House, error) {
	name = strings.TrimSpace(name)
	if orgID == "" {
		return house.House{}, errors.Validation("org_id is required")
	}
	if name == "" {
		return house.House{}, errors.Validation("name is required")
	}
	if capacity < 0 {
		return house.House{}, errors.Validation("capacity cannot be negative")
	}

	created, err := s.store.CreateHouse(ctx, house.House{
		OrgID:          orgID,
		Name:           name,
		Address:        strings.TrimSpace(address),
		DesignCategory: strings.TrimSpace(designCategory),
		Capacity:       capacity,
		Active:         true,
	})
	if err != nil {
		return house.House{}, err
	}
	s.log.WithField("house_id", created.ID).
		WithField("org_id", orgID).
		Info("house created")
	return created, nil
}

// Update applies modifications to a house.
func (s *Service) Update(ctx context.Context, id string, name, address, designCategory *string, capacity *int, active *bool) (house.House, error) {
	current, err := s.store.GetHouse(ctx, id)
	if err != nil {
		return house.House{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return house.House{}, errors.Validation("name cannot be empty")
		}
		current.Name = trimmed
	}
	if address != nil {
		current.Address = strings.TrimSpace(*address)
	}
	if designCategory != nil {
		current.DesignCategory = strings.TrimSpace(*designCategory)
	}
	if capacity != nil {
		if *capacity < 0 {
			return house.House{}, errors.Validation("capacity cannot be negative")
		}
		current.Capacity = *capacity
	}
	if active != nil {
		current.Active = *active
	}

	updated, err := s.store.UpdateHouse(ctx, current)
	if err != nil {
		return house.House{}, err
	}
	s.log.WithField("house_id", updated.ID).Info("house updated")
	return updated, nil
}

// Get fetches a house by identifier.
func (s *Service) Get(ctx context.Context, id string) (house.House, error) {
	return s.store.GetHouse(ctx, id)
}

// List returns the houses of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]house.House, error) {
	return s.store.ListHouses(ctx, orgID)
}

// Delete removes an empty house. Houses with residents still placed in
// them cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.residents != nil {
		occupants, err := s.residents.ListResidentsByHouse(ctx, id)
		if err != nil {
			return err
		}
		if len(occupants) > 0 {
			return errors.Conflict("house still has residents placed in it").
				WithDetails("residents", len(occupants))
		}
	}
	if err := s.store.DeleteHouse(ctx, id); err != nil {
		return err
	}
	s.log.WithField("house_id", id).Info("house deleted")
	return nil
}
