package claims

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/metrics"
	"github.com/providerdesk/backoffice/internal/errors"
)

// csvHeader is the fixed column schema the funding body expects. Order
// matters and must not change.
var csvHeader = []string{
	"Claim ID",
	"Transaction ID",
	"Resident Name",
	"Contract ID",
	"Service Date",
	"Amount",
	"Description",
	"Status",
	"Org ID",
	"Exported At",
}

// ExportCSV writes the claim's transactions as CSV and moves the claim to
// in_progress, stamping ExportedAt.
func (s *Service) ExportCSV(ctx context.Context, claimID string, w io.Writer) (claim.Claim, error) {
	c, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, err
	}
	if c.Status != claim.StatusDraft && c.Status != claim.StatusInProgress {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, errors.InvalidState("claim in status " + string(c.Status) + " cannot be exported")
	}

	txs, err := s.transactions.ListTransactionsByClaim(ctx, claimID)
	if err != nil {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, err
	}
	for _, tx := range txs {
		if tx.ClaimStatus != transaction.ClaimClaimed {
			metrics.RecordClaimExport(false)
			return claim.Claim{}, errors.Validation("transaction "+tx.ID+" is not in a claimable state").
				WithDetails("claim_status", string(tx.ClaimStatus))
		}
	}

	exportedAt := time.Now().UTC()
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, err
	}
	for _, tx := range txs {
		name := ""
		if s.residents != nil {
			if r, err := s.residents.GetResident(ctx, tx.ResidentID); err == nil {
				name = r.Name
			}
		}
		record := []string{
			c.ID,
			tx.ID,
			name,
			tx.ContractID,
			tx.ServiceDate.Format("2006-01-02"),
			tx.Amount.StringFixed(2),
			tx.Description,
			string(tx.ClaimStatus),
			tx.OrgID,
			exportedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			metrics.RecordClaimExport(false)
			return claim.Claim{}, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, err
	}

	c.Status = claim.StatusInProgress
	c.ExportedAt = exportedAt
	updated, err := s.store.UpdateClaim(ctx, c)
	if err != nil {
		metrics.RecordClaimExport(false)
		return claim.Claim{}, err
	}

	metrics.RecordClaimExport(true)
	s.log.WithField("claim_id", claimID).
		WithField("transactions", len(txs)).
		Info("claim exported")
	return updated, nil
}

// ImportResult summarises a reconciliation import.
type ImportResult struct {
	Claim    claim.Claim `json:"claim"`
	Paid     int         `json:"paid"`
	Rejected int         `json:"rejected"`
	Skipped  int         `json:"skipped"`
}

// ImportCSV reconciles an exported claim against the remittance file the
// funding body returns. Rows mark individual transactions paid or
// rejected; the claim status follows from the mix.
func (s *Service) ImportCSV(ctx context.Context, claimID string, r io.Reader) (ImportResult, error) {
	c, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return ImportResult{}, err
	}
	if c.Status != claim.StatusInProgress {
		return ImportResult{}, errors.InvalidState("only in_progress claims can be reconciled")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return ImportResult{}, errors.Validation("file is not a valid claim CSV")
	}
	for i, col := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return ImportResult{}, errors.Validation("unexpected CSV header").
				WithDetails("column", i).
				WithDetails("got", header[i]).
				WithDetails("want", col)
		}
	}

	byID := map[string]transaction.Transaction{}
	txs, err := s.transactions.ListTransactionsByClaim(ctx, claimID)
	if err != nil {
		return ImportResult{}, err
	}
	for _, tx := range txs {
		byID[tx.ID] = tx
	}

	result := ImportResult{}
	paidTotal := decimal.Zero

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ImportResult{}, errors.Validation("malformed CSV row: " + err.Error())
		}

		txID := strings.TrimSpace(record[1])
		status := strings.ToLower(strings.TrimSpace(record[7]))

		tx, ok := byID[txID]
		if !ok {
			result.Skipped++
			continue
		}

		switch status {
		case string(transaction.ClaimPaid):
			tx.ClaimStatus = transaction.ClaimPaid
			paidTotal = paidTotal.Add(tx.Amount)
			result.Paid++
		case string(transaction.ClaimRejected):
			tx.ClaimStatus = transaction.ClaimRejected
			result.Rejected++
		default:
			result.Skipped++
			continue
		}

		if _, err := s.transactions.UpdateTransaction(ctx, tx); err != nil {
			return ImportResult{}, err
		}
		delete(byID, txID)
	}

	switch {
	case result.Paid > 0 && result.Rejected == 0 && len(byID) == 0:
		c.Status = claim.StatusPaid
	case result.Paid == 0 && result.Rejected > 0 && len(byID) == 0:
		c.Status = claim.StatusRejected
	case result.Paid > 0 || result.Rejected > 0:
		c.Status = claim.StatusPartiallyPaid
	}

	updated, err := s.store.UpdateClaim(ctx, c)
	if err != nil {
		return ImportResult{}, err
	}
	result.Claim = updated

	s.log.WithField("claim_id", claimID).
		WithField("paid", result.Paid).
		WithField("rejected", result.Rejected).
		WithField("skipped", result.Skipped).
		Info("claim reconciled")
	return result, nil
}
