// Package orgs manages provider organizations, the tenancy root for
// every other record in the system.
package orgs

import (
	"context"
	"strings"

	"github.com/providerdesk/backoffice/internal/app/domain/org"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates organization management.
type Service struct {
	store storage.OrgStore
	log   *logging.Logger
}

// New creates a configured organization service.
func New(store storage.OrgStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("orgs")
	}
	return &Service{store: store, log: log}
}

// Create provisions a new organization.
func (s *Service) Create(ctx context.Context, name, abn, contactEmail string, metadata map[string]string) (org.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return org.Organization{}, errors.Validation("name is required")
	}

	existing, err := s.store.ListOrgs(ctx)
	if err != nil {
		return org.Organization{}, err
	}
	for _, o := range existing {
		if strings.EqualFold(o.Name, name) {
			return org.Organization{}, errors.Conflict("organization with name " + name + " already exists")
		}
	}

	created, err := s.store.CreateOrg(ctx, org.Organization{
		Name:         name,
		ABN:          strings.TrimSpace(abn),
		ContactEmail: strings.TrimSpace(contactEmail),
		Metadata:     metadata,
	})
	if err != nil {
		return org.Organization{}, err
	}
	s.log.WithField("org_id", created.ID).Info("organization created")
	return created, nil
}

// Update applies modifications to an organization.
func (s *Service) Update(ctx context.Context, id string, name, abn, contactEmail *string, metadata map[string]string) (org.Organization, error) {
	current, err := s.store.GetOrg(ctx, id)
	if err != nil {
		return org.Organization{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return org.Organization{}, errors.Validation("name cannot be empty")
		}
		current.Name = trimmed
	}
	if abn != nil {
		current.ABN = strings.TrimSpace(*abn)
	}
	if contactEmail != nil {
		current.ContactEmail = strings.TrimSpace(*contactEmail)
	}
	if metadata != nil {
		current.Metadata = metadata
	}

	updated, err := s.store.UpdateOrg(ctx, current)
	if err != nil {
		return org.Organization{}, err
	}
	s.log.WithField("org_id", updated.ID).Info("organization updated")
	return updated, nil
}

// Get fetches an organization by identifier.
func (s *Service) Get(ctx context.Context, id string) (org.Organization, error) {
	return s.store.GetOrg(ctx, id)
}

// List returns all organizations.
func (s *Service) List(ctx context.Context) ([]org.Organization, error) {
	return s.store.ListOrgs(ctx)
}

// Delete removes an organization and, through the schema's cascade rules,
// everything scoped to it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteOrg(ctx, id); err != nil {
		return err
	}
	s.log.WithField("org_id", id).Info("organization deleted")
	return nil
}
