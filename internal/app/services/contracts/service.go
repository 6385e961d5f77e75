// Package contracts manages NDIS funding contracts and their lifecycle.
package contracts

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates funding contract management.
type Service struct {
	store     storage.ContractStore
	residents storage.ResidentStore
	log       *logging.Logger
}

// New creates a configured contract service.
func New(store storage.ContractStore, residents storage.ResidentStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("contracts")
	}
	return &Service{store: store, residents: residents, log: log}
}

// Create provisions a new contract in Draft status. The balance stays zero
// until activation.
func (s *Service) Create(ctx context.Context, orgID, residentID, houseID string, frequency contract.Frequency, amount decimal.Decimal, startDate, endDate time.Time) (contract.Contract, error) {
	if orgID == "" {
		return contract.Contract{}, errors.Validation("org_id is required")
	}
	if residentID == "" {
		return contract.Contract{}, errors.Validation("resident_id is required")
	}
	if !contract.ValidFrequency(frequency) {
		return contract.Contract{}, errors.Validation("unknown frequency " + string(frequency))
	}
	if !amount.IsPositive() {
		return contract.Contract{}, errors.Validation("amount must be positive")
	}
	if startDate.IsZero() {
		return contract.Contract{}, errors.Validation("start_date is required")
	}
	if !endDate.IsZero() && endDate.Before(startDate) {
		return contract.Contract{}, errors.Validation("end_date cannot precede start_date")
	}

	if s.residents != nil {
		r, err := s.residents.GetResident(ctx, residentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return contract.Contract{}, errors.NotFound("resident", residentID)
			}
			return contract.Contract{}, err
		}
		if r.OrgID != orgID {
			return contract.Contract{}, errors.Validation("resident belongs to a different organization")
		}
	}

	created, err := s.store.CreateContract(ctx, contract.Contract{
		OrgID:          orgID,
		ResidentID:     residentID,
		HouseID:        houseID,
		Status:         contract.StatusDraft,
		Frequency:      frequency,
		Amount:         amount,
		OriginalAmount: amount,
		CurrentBalance: decimal.Zero,
		StartDate:      dateOnly(startDate),
		EndDate:        dateOnly(endDate),
	})
	if err != nil {
		return contract.Contract{}, err
	}
	s.log.WithField("contract_id", created.ID).
		WithField("org_id", orgID).
		Info("contract created")
	return created, nil
}

// Update modifies a Draft contract's financial terms. Active and later
// contracts are immutable apart from lifecycle transitions.
func (s *Service) Update(ctx context.Context, id string, frequency *contract.Frequency, amount *decimal.Decimal, startDate, endDate *time.Time) (contract.Contract, error) {
	current, err := s.store.GetContract(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	if current.Status != contract.StatusDraft {
		return contract.Contract{}, errors.InvalidState("only Draft contracts can be edited")
	}

	if frequency != nil {
		if !contract.ValidFrequency(*frequency) {
			return contract.Contract{}, errors.Validation("unknown frequency " + string(*frequency))
		}
		current.Frequency = *frequency
	}
	if amount != nil {
		if !amount.IsPositive() {
			return contract.Contract{}, errors.Validation("amount must be positive")
		}
		current.Amount = *amount
		current.OriginalAmount = *amount
	}
	if startDate != nil {
		current.StartDate = dateOnly(*startDate)
	}
	if endDate != nil {
		current.EndDate = dateOnly(*endDate)
	}
	if !current.EndDate.IsZero() && current.EndDate.Before(current.StartDate) {
		return contract.Contract{}, errors.Validation("end_date cannot precede start_date")
	}

	updated, err := s.store.UpdateContract(ctx, current)
	if err != nil {
		return contract.Contract{}, err
	}
	s.log.WithField("contract_id", updated.ID).Info("contract updated")
	return updated, nil
}

// Transition moves a contract to a new lifecycle status. Activation seeds
// the drawdown balance from the original amount.
func (s *Service) Transition(ctx context.Context, id string, to contract.Status) (contract.Contract, error) {
	if !contract.ValidStatus(to) {
		return contract.Contract{}, errors.Validation("unknown status " + string(to))
	}

	current, err := s.store.GetContract(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	if !contract.CanTransition(current.Status, to) {
		return contract.Contract{}, errors.InvalidState("cannot transition from "+string(current.Status)+" to "+string(to)).
			WithDetails("from", string(current.Status)).
			WithDetails("to", string(to))
	}

	if to == contract.StatusActive {
		current.CurrentBalance = current.OriginalAmount
		current.InsufficientFunds = false
	}
	current.Status = to

	updated, err := s.store.UpdateContract(ctx, current)
	if err != nil {
		return contract.Contract{}, err
	}
	s.log.WithField("contract_id", updated.ID).
		WithField("status", string(to)).
		Info("contract transitioned")
	return updated, nil
}

// Renew marks the contract Renewed and creates a successor Draft carrying
// the same terms, linked back through RenewedFromID.
func (s *Service) Renew(ctx context.Context, id string, amount *decimal.Decimal, startDate, endDate time.Time) (contract.Contract, error) {
	current, err := s.store.GetContract(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	if !contract.CanTransition(current.Status, contract.StatusRenewed) {
		return contract.Contract{}, errors.InvalidState("cannot renew a " + string(current.Status) + " contract")
	}

	newAmount := current.Amount
	if amount != nil {
		if !amount.IsPositive() {
			return contract.Contract{}, errors.Validation("amount must be positive")
		}
		newAmount = *amount
	}
	if startDate.IsZero() {
		return contract.Contract{}, errors.Validation("start_date is required")
	}
	if !endDate.IsZero() && endDate.Before(startDate) {
		return contract.Contract{}, errors.Validation("end_date cannot precede start_date")
	}

	current.Status = contract.StatusRenewed
	if _, err := s.store.UpdateContract(ctx, current); err != nil {
		return contract.Contract{}, err
	}

	successor, err := s.store.CreateContract(ctx, contract.Contract{
		OrgID:          current.OrgID,
		ResidentID:     current.ResidentID,
		HouseID:        current.HouseID,
		Status:         contract.StatusDraft,
		Frequency:      current.Frequency,
		Amount:         newAmount,
		OriginalAmount: newAmount,
		CurrentBalance: decimal.Zero,
		StartDate:      dateOnly(startDate),
		EndDate:        dateOnly(endDate),
		RenewedFromID:  current.ID,
	})
	if err != nil {
		return contract.Contract{}, err
	}
	s.log.WithField("contract_id", successor.ID).
		WithField("renewed_from", current.ID).
		Info("contract renewed")
	return successor, nil
}

// Get fetches a contract by identifier.
func (s *Service) Get(ctx context.Context, id string) (contract.Contract, error) {
	return s.store.GetContract(ctx, id)
}

// List returns the contracts of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]contract.Contract, error) {
	return s.store.ListContracts(ctx, orgID)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
