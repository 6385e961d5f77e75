// Package billing implements the automated contract drawdown engine. A
// run walks every enabled organization, generates dated drawdown
// transactions for contracts that are behind, keeps balances non-negative
// and emails each organization a summary.
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/automation"
	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/notification"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/metrics"
	"github.com/providerdesk/backoffice/internal/app/services/contracts"
	"github.com/providerdesk/backoffice/internal/app/services/notifications"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Run triggers. Schedule ticks fire hourly and respect each org's
// configured run hour; the cron endpoint and manual trigger do not.
const (
	TriggerCron     = "cron"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// ContractResult captures the outcome for a single contract within a run.
type ContractResult struct {
	ContractID        string          `json:"contract_id"`
	Transactions      int             `json:"transactions"`
	Amount            decimal.Decimal `json:"amount"`
	InsufficientFunds bool            `json:"insufficient_funds,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// OrgResult captures the outcome for one organization within a run.
type OrgResult struct {
	OrgID        string           `json:"org_id"`
	Contracts    []ContractResult `json:"contracts"`
	Transactions int              `json:"transactions"`
	Total        decimal.Decimal  `json:"total"`
	Errors       int              `json:"errors"`
}

// RunSummary is the aggregate outcome of a drawdown run.
type RunSummary struct {
	RanAt        time.Time   `json:"ran_at"`
	Trigger      string      `json:"trigger"`
	Orgs         []OrgResult `json:"orgs"`
	Transactions int         `json:"transactions"`
	Errors       int         `json:"errors"`
}

// Service is the drawdown engine.
type Service struct {
	contracts    storage.ContractStore
	transactions storage.TransactionStore
	settings     storage.AutomationStore
	notifier     *notifications.Service
	log          *logging.Logger

	// catchUpLimitDays bounds how many missed days one contract may be
	// billed for in a single run.
	catchUpLimitDays int
	now              func() time.Time
}

// New creates a configured billing service.
func New(contractStore storage.ContractStore, txStore storage.TransactionStore, settings storage.AutomationStore, notifier *notifications.Service, catchUpLimitDays int, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("billing")
	}
	if catchUpLimitDays <= 0 {
		catchUpLimitDays = 90
	}
	return &Service{
		contracts:        contractStore,
		transactions:     txStore,
		settings:         settings,
		notifier:         notifier,
		log:              log,
		catchUpLimitDays: catchUpLimitDays,
		now:              time.Now,
	}
}

// Run executes a drawdown run across every enabled organization. A failure
// inside one organization is recorded and does not abort the others.
func (s *Service) Run(ctx context.Context, trigger string) (RunSummary, error) {
	start := s.now()
	today := dateOnly(start.UTC())

	summary := RunSummary{RanAt: start.UTC(), Trigger: trigger}

	enabled, err := s.settings.ListEnabledAutomation(ctx)
	if err != nil {
		metrics.RecordBillingRun(trigger, s.now().Sub(start), false)
		return summary, err
	}

	for _, set := range enabled {
		// Hourly schedule ticks only bill the orgs whose configured
		// run hour has arrived; the HTTP cron endpoint bills them all.
		if trigger == TriggerSchedule && set.RunHourUTC != start.UTC().Hour() {
			continue
		}
		orgResult := s.runOrg(ctx, set, today)
		summary.Orgs = append(summary.Orgs, orgResult)
		summary.Transactions += orgResult.Transactions
		summary.Errors += orgResult.Errors
	}

	metrics.RecordBillingRun(trigger, s.now().Sub(start), summary.Errors == 0)
	s.log.WithField("trigger", trigger).
		WithField("orgs", len(summary.Orgs)).
		WithField("transactions", summary.Transactions).
		WithField("errors", summary.Errors).
		Info("billing run completed")
	return summary, nil
}

// RunOrg executes a drawdown run for a single organization regardless of
// its enabled flag. Used by the manual trigger endpoint.
func (s *Service) RunOrg(ctx context.Context, orgID, trigger string) (OrgResult, error) {
	set, err := s.settings.GetAutomationSettings(ctx, orgID)
	if err != nil {
		set = automation.Settings{OrgID: orgID, CatchUpEnabled: true}
	}
	start := s.now()
	result := s.runOrg(ctx, set, dateOnly(start.UTC()))
	metrics.RecordBillingRun(trigger, s.now().Sub(start), result.Errors == 0)
	return result, nil
}

func (s *Service) runOrg(ctx context.Context, set automation.Settings, today time.Time) OrgResult {
	result := OrgResult{OrgID: set.OrgID, Total: decimal.Zero}

	due, err := s.contracts.ListContractsDueForDrawdown(ctx, set.OrgID, today)
	if err != nil {
		s.log.WithError(err).WithField("org_id", set.OrgID).Warn("listing due contracts failed")
		result.Errors++
		s.recordRun(ctx, set, automation.RunFailed)
		return result
	}

	for _, c := range due {
		cr := s.drawdownContract(ctx, c, today, set.CatchUpEnabled)
		result.Contracts = append(result.Contracts, cr)
		result.Transactions += cr.Transactions
		result.Total = result.Total.Add(cr.Amount)
		if cr.Error != "" {
			result.Errors++
		}
	}

	status := automation.RunSucceeded
	if result.Errors > 0 {
		status = automation.RunPartial
		if result.Transactions == 0 {
			status = automation.RunFailed
		}
	}
	s.recordRun(ctx, set, status)
	s.sendSummary(ctx, set, result, status)
	return result
}

// drawdownContract bills every outstanding day for one contract. It stops
// at the first day the balance cannot cover and flags the contract rather
// than letting the balance go negative.
func (s *Service) drawdownContract(ctx context.Context, c contract.Contract, today time.Time, catchUp bool) ContractResult {
	result := ContractResult{ContractID: c.ID, Amount: decimal.Zero}

	days := s.billableDays(c, today, catchUp)
	if len(days) == 0 {
		return result
	}

	rate := contracts.DailyRate(c)
	changed := false

	for _, day := range days {
		if c.CurrentBalance.LessThan(rate) {
			c.InsufficientFunds = true
			result.InsufficientFunds = true
			changed = true
			s.log.WithField("contract_id", c.ID).
				WithField("balance", c.CurrentBalance.String()).
				WithField("rate", rate.String()).
				Warn("insufficient funds; drawdown halted")
			break
		}

		_, err := s.transactions.CreateTransaction(ctx, transaction.Transaction{
			OrgID:       c.OrgID,
			ContractID:  c.ID,
			ResidentID:  c.ResidentID,
			ServiceDate: day,
			Amount:      rate,
			Description: fmt.Sprintf("Drawdown %s", day.Format("2006-01-02")),
			Status:      transaction.StatusPosted,
			ClaimStatus: transaction.ClaimUnclaimed,
			CreatedBy:   transaction.CreatedByAutomation,
		})
		if err != nil {
			result.Error = err.Error()
			break
		}

		c.CurrentBalance = c.CurrentBalance.Sub(rate)
		c.LastDrawdownDate = day
		changed = true
		result.Transactions++
		result.Amount = result.Amount.Add(rate)
		metrics.RecordDrawdown(string(c.Frequency))
	}

	if !c.EndDate.IsZero() && !c.LastDrawdownDate.IsZero() && !c.LastDrawdownDate.Before(dateOnly(c.EndDate)) {
		if contract.CanTransition(c.Status, contract.StatusExpired) {
			c.Status = contract.StatusExpired
			changed = true
		}
	}

	if changed {
		if _, err := s.contracts.UpdateContract(ctx, c); err != nil {
			if result.Error == "" {
				result.Error = err.Error()
			}
			s.log.WithError(err).WithField("contract_id", c.ID).Warn("persisting drawdown result failed")
		}
	}
	return result
}

// billableDays returns the ordered list of days this run should bill for
// the contract. Without catch-up only the most recent outstanding day is
// billed; with it, every missed day since the last drawdown, bounded by
// the catch-up limit.
func (s *Service) billableDays(c contract.Contract, today time.Time, catchUp bool) []time.Time {
	startDate := dateOnly(c.StartDate)
	if startDate.After(today) {
		return nil
	}

	first := startDate
	if !c.LastDrawdownDate.IsZero() {
		first = dateOnly(c.LastDrawdownDate).AddDate(0, 0, 1)
	}

	last := today
	if !c.EndDate.IsZero() && dateOnly(c.EndDate).Before(last) {
		last = dateOnly(c.EndDate)
	}
	if first.After(last) {
		return nil
	}

	if !catchUp {
		return []time.Time{last}
	}

	limit := last.AddDate(0, 0, -(s.catchUpLimitDays - 1))
	if first.Before(limit) {
		first = limit
	}

	var days []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

func (s *Service) recordRun(ctx context.Context, set automation.Settings, status automation.RunStatus) {
	if set.OrgID == "" {
		return
	}
	set.LastRunAt = s.now().UTC()
	set.LastRunStatus = status
	if _, err := s.settings.UpsertAutomationSettings(ctx, set); err != nil {
		s.log.WithError(err).WithField("org_id", set.OrgID).Warn("recording run outcome failed")
	}
}

func (s *Service) sendSummary(ctx context.Context, set automation.Settings, result OrgResult, status automation.RunStatus) {
	if s.notifier == nil || set.NotifyEmail == "" {
		return
	}

	nType := notification.TypeBillingSummary
	if status == automation.RunFailed {
		nType = notification.TypeBillingError
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Billing run finished with status %s.\n\n", status)
	fmt.Fprintf(&b, "Transactions created: %d\nTotal drawn down: %s\n", result.Transactions, result.Total.StringFixed(2))
	for _, cr := range result.Contracts {
		if cr.InsufficientFunds {
			fmt.Fprintf(&b, "Contract %s has insufficient funds.\n", cr.ContractID)
		}
		if cr.Error != "" {
			fmt.Fprintf(&b, "Contract %s failed: %s\n", cr.ContractID, cr.Error)
		}
	}

	subject := fmt.Sprintf("Billing run %s: %d transactions", status, result.Transactions)
	if _, err := s.notifier.Send(ctx, set.OrgID, nType, set.NotifyEmail, subject, b.String()); err != nil {
		s.log.WithError(err).WithField("org_id", set.OrgID).Warn("billing summary email failed")
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
