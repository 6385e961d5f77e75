// Package dashboard aggregates per-organization operational statistics,
// with a short-lived Redis cache in front of the queries.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Stats is the dashboard payload for one organization.
type Stats struct {
	OrgID                  string          `json:"org_id"`
	Houses                 int             `json:"houses"`
	ActiveResidents        int             `json:"active_residents"`
	ActiveContracts        int             `json:"active_contracts"`
	TotalCurrentBalance    decimal.Decimal `json:"total_current_balance"`
	InsufficientFundsCount int             `json:"insufficient_funds_count"`
	MonthTransactions      int             `json:"month_transactions"`
	MonthAmount            decimal.Decimal `json:"month_amount"`
	ClaimsByStatus         map[string]int  `json:"claims_by_status"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

// Service computes dashboard statistics.
type Service struct {
	houses       storage.HouseStore
	residents    storage.ResidentStore
	contracts    storage.ContractStore
	transactions storage.TransactionStore
	claims       storage.ClaimStore
	cache        *redis.Client
	cacheTTL     time.Duration
	log          *logging.Logger
	now          func() time.Time
}

// New creates a configured dashboard service. A nil cache disables
// caching.
func New(houses storage.HouseStore, residents storage.ResidentStore, contractStore storage.ContractStore, txStore storage.TransactionStore, claimStore storage.ClaimStore, cache *redis.Client, cacheTTL time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("dashboard")
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		houses:       houses,
		residents:    residents,
		contracts:    contractStore,
		transactions: txStore,
		claims:       claimStore,
		cache:        cache,
		cacheTTL:     cacheTTL,
		log:          log,
		now:          time.Now,
	}
}

// Stats returns the dashboard for an organization, served from cache when
// fresh. Cache failures fall back to a direct computation.
func (s *Service) Stats(ctx context.Context, orgID string) (Stats, error) {
	if orgID == "" {
		return Stats{}, errors.Validation("org_id is required")
	}

	cacheKey := "dashboard:" + orgID
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Stats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			s.log.WithError(err).Warn("dashboard cache read failed")
		}
	}

	stats, err := s.compute(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.log.WithError(err).Warn("dashboard cache write failed")
			}
		}
	}
	return stats, nil
}

// Invalidate drops the cached dashboard for an organization.
func (s *Service) Invalidate(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "dashboard:"+orgID).Err(); err != nil {
		s.log.WithError(err).Warn("dashboard cache invalidation failed")
	}
}

func (s *Service) compute(ctx context.Context, orgID string) (Stats, error) {
	now := s.now().UTC()
	stats := Stats{
		OrgID:               orgID,
		TotalCurrentBalance: decimal.Zero,
		MonthAmount:         decimal.Zero,
		ClaimsByStatus:      map[string]int{},
		GeneratedAt:         now,
	}

	houses, err := s.houses.ListHouses(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}
	stats.Houses = len(houses)

	residents, err := s.residents.ListResidents(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}
	for _, r := range residents {
		if r.Active {
			stats.ActiveResidents++
		}
	}

	contractsList, err := s.contracts.ListContracts(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}
	for _, c := range contractsList {
		if c.Status == contract.StatusActive {
			stats.ActiveContracts++
			stats.TotalCurrentBalance = stats.TotalCurrentBalance.Add(c.CurrentBalance)
		}
		if c.InsufficientFunds {
			stats.InsufficientFundsCount++
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	txs, err := s.transactions.ListTransactionsInRange(ctx, orgID, monthStart, now)
	if err != nil {
		return Stats{}, err
	}
	for _, tx := range txs {
		if tx.Status == transaction.StatusVoided {
			continue
		}
		stats.MonthTransactions++
		stats.MonthAmount = stats.MonthAmount.Add(tx.Amount)
	}

	claimsList, err := s.claims.ListClaims(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}
	for _, c := range claimsList {
		stats.ClaimsByStatus[string(c.Status)]++
	}

	return stats, nil
}
