// Package transactions manages the drawdown and manual-charge ledger.
package transactions

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates the transaction ledger.
type Service struct {
	store     storage.TransactionStore
	contracts storage.ContractStore
	log       *logging.Logger
}

// New creates a configured transaction service.
func New(store storage.TransactionStore, contractStore storage.ContractStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("transactions")
	}
	return &Service{store: store, contracts: contractStore, log: log}
}

// Create records a manual charge in draft status. Nothing is deducted from
// the contract balance until the transaction is posted.
func (s *Service) Create(ctx context.Context, orgID, contractID, createdBy string, serviceDate time.Time, amount decimal.Decimal, description string) (transaction.Transaction, error) {
	if orgID == "" {
		return transaction.Transaction{}, errors.Validation("org_id is required")
	}
	if contractID == "" {
		return transaction.Transaction{}, errors.Validation("contract_id is required")
	}
	if !amount.IsPositive() {
		return transaction.Transaction{}, errors.Validation("amount must be positive")
	}
	if serviceDate.IsZero() {
		return transaction.Transaction{}, errors.Validation("service_date is required")
	}

	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		if err == sql.ErrNoRows {
			return transaction.Transaction{}, errors.NotFound("contract", contractID)
		}
		return transaction.Transaction{}, err
	}
	if c.OrgID != orgID {
		return transaction.Transaction{}, errors.Validation("contract belongs to a different organization")
	}
	if c.Status != contract.StatusActive {
		return transaction.Transaction{}, errors.InvalidState("contract is not Active")
	}

	created, err := s.store.CreateTransaction(ctx, transaction.Transaction{
		OrgID:       orgID,
		ContractID:  contractID,
		ResidentID:  c.ResidentID,
		ServiceDate: dateOnly(serviceDate),
		Amount:      amount.Round(2),
		Description: strings.TrimSpace(description),
		Status:      transaction.StatusDraft,
		ClaimStatus: transaction.ClaimUnclaimed,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.log.WithField("transaction_id", created.ID).
		WithField("contract_id", contractID).
		Info("transaction created")
	return created, nil
}

// Post moves a draft transaction to posted and deducts the amount from the
// contract balance. A balance that cannot cover the amount flags the
// contract instead of going negative.
func (s *Service) Post(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if tx.Status != transaction.StatusDraft {
		return transaction.Transaction{}, errors.InvalidState("only draft transactions can be posted")
	}

	c, err := s.contracts.GetContract(ctx, tx.ContractID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if c.CurrentBalance.LessThan(tx.Amount) {
		c.InsufficientFunds = true
		if _, err := s.contracts.UpdateContract(ctx, c); err != nil {
			return transaction.Transaction{}, err
		}
		return transaction.Transaction{}, errors.InvalidState("contract balance cannot cover this transaction").
			WithDetails("balance", c.CurrentBalance.String()).
			WithDetails("amount", tx.Amount.String())
	}

	c.CurrentBalance = c.CurrentBalance.Sub(tx.Amount)
	if _, err := s.contracts.UpdateContract(ctx, c); err != nil {
		return transaction.Transaction{}, err
	}

	tx.Status = transaction.StatusPosted
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.log.WithField("transaction_id", id).Info("transaction posted")
	return updated, nil
}

// Void cancels a transaction. Voiding a posted transaction refunds its
// amount to the contract balance; transactions already picked up into a
// claim cannot be voided.
func (s *Service) Void(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if tx.Status == transaction.StatusVoided {
		return transaction.Transaction{}, errors.InvalidState("transaction is already voided")
	}
	if tx.ClaimStatus != transaction.ClaimUnclaimed {
		return transaction.Transaction{}, errors.InvalidState("transaction is in a claim and cannot be voided")
	}

	if tx.Status == transaction.StatusPosted {
		c, err := s.contracts.GetContract(ctx, tx.ContractID)
		if err != nil {
			return transaction.Transaction{}, err
		}
		c.CurrentBalance = c.CurrentBalance.Add(tx.Amount)
		if c.InsufficientFunds && c.CurrentBalance.IsPositive() {
			c.InsufficientFunds = false
		}
		if _, err := s.contracts.UpdateContract(ctx, c); err != nil {
			return transaction.Transaction{}, err
		}
	}

	tx.Status = transaction.StatusVoided
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.log.WithField("transaction_id", id).Info("transaction voided")
	return updated, nil
}

// Pickup marks a posted, unclaimed transaction as picked up for claiming.
func (s *Service) Pickup(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if tx.Status != transaction.StatusPosted {
		return transaction.Transaction{}, errors.InvalidState("only posted transactions can be picked up")
	}
	if tx.ClaimStatus != transaction.ClaimUnclaimed {
		return transaction.Transaction{}, errors.InvalidState("transaction is already " + string(tx.ClaimStatus))
	}

	tx.ClaimStatus = transaction.ClaimPickedUp
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.log.WithField("transaction_id", id).Info("transaction picked up")
	return updated, nil
}

// Release returns a picked-up transaction to the unclaimed pool.
func (s *Service) Release(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if tx.ClaimStatus != transaction.ClaimPickedUp {
		return transaction.Transaction{}, errors.InvalidState("only picked up transactions can be released")
	}

	tx.ClaimStatus = transaction.ClaimUnclaimed
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.log.WithField("transaction_id", id).Info("transaction released")
	return updated, nil
}

// Get fetches a transaction by identifier.
func (s *Service) Get(ctx context.Context, id string) (transaction.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns the transactions of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]transaction.Transaction, error) {
	return s.store.ListTransactions(ctx, orgID)
}

// ListByContract returns the transactions of a contract.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]transaction.Transaction, error) {
	return s.store.ListTransactionsByContract(ctx, contractID)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
