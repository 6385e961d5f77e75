// Package claims batches picked-up transactions for submission to the
// funding body and reconciles the payment outcome.
package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Service coordinates claim batches.
type Service struct {
	store        storage.ClaimStore
	transactions storage.TransactionStore
	residents    storage.ResidentStore
	log          *logging.Logger
}

// New creates a configured claim service.
func New(store storage.ClaimStore, txStore storage.TransactionStore, residents storage.ResidentStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("claims")
	}
	return &Service{store: store, transactions: txStore, residents: residents, log: log}
}

// Create batches the given transactions into a draft claim. Every
// transaction must be posted, picked up and belong to the organization.
func (s *Service) Create(ctx context.Context, orgID string, transactionIDs []string) (claim.Claim, error) {
	if orgID == "" {
		return claim.Claim{}, errors.Validation("org_id is required")
	}
	if len(transactionIDs) == 0 {
		return claim.Claim{}, errors.Validation("at least one transaction is required")
	}

	txs := make([]transaction.Transaction, 0, len(transactionIDs))
	for _, id := range transactionIDs {
		tx, err := s.transactions.GetTransaction(ctx, id)
		if err != nil {
			return claim.Claim{}, errors.NotFound("transaction", id)
		}
		if tx.OrgID != orgID {
			return claim.Claim{}, errors.Validation("transaction " + id + " belongs to a different organization")
		}
		if tx.Status != transaction.StatusPosted || tx.ClaimStatus != transaction.ClaimPickedUp {
			return claim.Claim{}, errors.Validation("transaction "+id+" is not picked up").
				WithDetails("status", string(tx.Status)).
				WithDetails("claim_status", string(tx.ClaimStatus))
		}
		txs = append(txs, tx)
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}

	created, err := s.store.CreateClaim(ctx, claim.Claim{
		OrgID:            orgID,
		Reference:        fmt.Sprintf("CLM-%s", time.Now().UTC().Format("20060102-150405")),
		Status:           claim.StatusDraft,
		TotalAmount:      total,
		TransactionCount: len(txs),
	})
	if err != nil {
		return claim.Claim{}, err
	}

	for _, tx := range txs {
		tx.ClaimStatus = transaction.ClaimClaimed
		tx.ClaimID = created.ID
		if _, err := s.transactions.UpdateTransaction(ctx, tx); err != nil {
			return claim.Claim{}, err
		}
	}

	s.log.WithField("claim_id", created.ID).
		WithField("org_id", orgID).
		WithField("transactions", len(txs)).
		Info("claim created")
	return created, nil
}

// Get fetches a claim by identifier.
func (s *Service) Get(ctx context.Context, id string) (claim.Claim, error) {
	return s.store.GetClaim(ctx, id)
}

// List returns the claims of an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]claim.Claim, error) {
	return s.store.ListClaims(ctx, orgID)
}

// Transactions returns the transactions batched into a claim.
func (s *Service) Transactions(ctx context.Context, claimID string) ([]transaction.Transaction, error) {
	return s.transactions.ListTransactionsByClaim(ctx, claimID)
}
