package claims

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/resident"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
)

func seedPickedUpTx(t *testing.T, store *memory.Store, orgID string, amount int64) transaction.Transaction {
	t.Helper()
	tx, err := store.CreateTransaction(context.Background(), transaction.Transaction{
		OrgID:       orgID,
		ContractID:  "contract1",
		ResidentID:  "res1",
		ServiceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(amount),
		Description: "Drawdown 2024-03-10",
		Status:      transaction.StatusPosted,
		ClaimStatus: transaction.ClaimPickedUp,
		CreatedBy:   transaction.CreatedByAutomation,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

func TestCreate_BatchesPickedUpTransactions(t *testing.T) {
	store := memory.New()
	tx1 := seedPickedUpTx(t, store, "org1", 100)
	tx2 := seedPickedUpTx(t, store, "org1", 150)

	svc := New(store, store, store, nil)
	c, err := svc.Create(context.Background(), "org1", []string{tx1.ID, tx2.ID})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if c.Status != claim.StatusDraft {
		t.Fatalf("new claims start draft, got %s", c.Status)
	}
	if !c.TotalAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected total: %s", c.TotalAmount)
	}
	if c.TransactionCount != 2 {
		t.Fatalf("unexpected count: %d", c.TransactionCount)
	}
	if !strings.HasPrefix(c.Reference, "CLM-") {
		t.Fatalf("reference not generated: %s", c.Reference)
	}

	got, _ := store.GetTransaction(context.Background(), tx1.ID)
	if got.ClaimStatus != transaction.ClaimClaimed || got.ClaimID != c.ID {
		t.Fatalf("transaction not attached to claim: %s / %s", got.ClaimStatus, got.ClaimID)
	}
}

func TestCreate_RejectsUnpickedTransactions(t *testing.T) {
	store := memory.New()
	tx, err := store.CreateTransaction(context.Background(), transaction.Transaction{
		OrgID:       "org1",
		ServiceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(100),
		Status:      transaction.StatusPosted,
		ClaimStatus: transaction.ClaimUnclaimed,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(store, store, store, nil)
	if _, err := svc.Create(context.Background(), "org1", []string{tx.ID}); err == nil {
		t.Fatal("only picked_up transactions are claimable")
	}
}

func TestCreate_RejectsCrossOrgTransactions(t *testing.T) {
	store := memory.New()
	tx := seedPickedUpTx(t, store, "other-org", 100)

	svc := New(store, store, store, nil)
	if _, err := svc.Create(context.Background(), "org1", []string{tx.ID}); err == nil {
		t.Fatal("cross-org transactions must be rejected")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if _, err := store.CreateResident(ctx, resident.Resident{ID: "res1", OrgID: "org1", Name: "Alex Rivers"}); err != nil {
		t.Fatalf("seed resident: %v", err)
	}
	tx1 := seedPickedUpTx(t, store, "org1", 100)
	tx2 := seedPickedUpTx(t, store, "org1", 150)
	tx3 := seedPickedUpTx(t, store, "org1", 200)

	svc := New(store, store, store, nil)
	c, err := svc.Create(ctx, "org1", []string{tx1.ID, tx2.ID, tx3.ID})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}

	var buf bytes.Buffer
	exported, err := svc.ExportCSV(ctx, c.ID, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Status != claim.StatusInProgress {
		t.Fatalf("export should move the claim to in_progress, got %s", exported.Status)
	}
	if exported.ExportedAt.IsZero() {
		t.Fatal("exported_at not stamped")
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("parse exported CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	wantHeader := "Claim ID,Transaction ID,Resident Name,Contract ID,Service Date,Amount,Description,Status,Org ID,Exported At"
	if strings.Join(records[0], ",") != wantHeader {
		t.Fatalf("header mismatch: %s", strings.Join(records[0], ","))
	}
	amounts := map[string]bool{}
	for _, row := range records[1:] {
		if row[0] != c.ID || row[2] != "Alex Rivers" || row[4] != "2024-03-10" || row[8] != "org1" {
			t.Fatalf("unexpected row content: %v", row)
		}
		amounts[row[5]] = true
	}
	for _, want := range []string{"100.00", "150.00", "200.00"} {
		if !amounts[want] {
			t.Fatalf("amount %s missing; amounts must carry two decimals", want)
		}
	}

	// Simulate the remittance: reject the 200.00 line, pay the rest.
	for _, row := range records[1:] {
		if row[5] == "200.00" {
			row[7] = "rejected"
		} else {
			row[7] = "paid"
		}
	}
	var back bytes.Buffer
	if err := csv.NewWriter(&back).WriteAll(records); err != nil {
		t.Fatalf("rebuild CSV: %v", err)
	}

	result, err := svc.ImportCSV(ctx, c.ID, &back)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Paid != 2 || result.Rejected != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected reconciliation: %+v", result)
	}
	if result.Claim.Status != claim.StatusPartiallyPaid {
		t.Fatalf("mixed outcomes should mark the claim partially_paid, got %s", result.Claim.Status)
	}

	got, _ := store.GetTransaction(ctx, tx3.ID)
	if got.ClaimStatus != transaction.ClaimRejected {
		t.Fatalf("rejected row not applied: %s", got.ClaimStatus)
	}
}

func TestImport_AllPaidMarksClaimPaid(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	tx := seedPickedUpTx(t, store, "org1", 100)

	svc := New(store, store, store, nil)
	c, err := svc.Create(ctx, "org1", []string{tx.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var buf bytes.Buffer
	if _, err := svc.ExportCSV(ctx, c.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	content := strings.Replace(buf.String(), ",claimed,", ",paid,", 1)
	result, err := svc.ImportCSV(ctx, c.ID, strings.NewReader(content))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Claim.Status != claim.StatusPaid {
		t.Fatalf("all-paid claim should finish paid, got %s", result.Claim.Status)
	}
}

func TestImport_UnknownRowsSkipped(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	tx := seedPickedUpTx(t, store, "org1", 100)

	svc := New(store, store, store, nil)
	c, err := svc.Create(ctx, "org1", []string{tx.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var buf bytes.Buffer
	if _, err := svc.ExportCSV(ctx, c.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	records, _ := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	records[1][7] = "paid"
	ghost := make([]string, len(records[1]))
	copy(ghost, records[1])
	ghost[1] = "no-such-transaction"
	records = append(records, ghost)

	var back bytes.Buffer
	if err := csv.NewWriter(&back).WriteAll(records); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	result, err := svc.ImportCSV(ctx, c.ID, &back)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("unknown transaction IDs should be skipped, got %d", result.Skipped)
	}
	if result.Claim.Status != claim.StatusPaid {
		t.Fatalf("known rows all paid, got %s", result.Claim.Status)
	}
}

func TestImport_RequiresExportFirst(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	tx := seedPickedUpTx(t, store, "org1", 100)

	svc := New(store, store, store, nil)
	c, err := svc.Create(ctx, "org1", []string{tx.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ImportCSV(ctx, c.ID, strings.NewReader("")); err == nil {
		t.Fatal("draft claims cannot be reconciled")
	}
}

func TestImport_RejectsWrongHeader(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	tx := seedPickedUpTx(t, store, "org1", 100)

	svc := New(store, store, store, nil)
	c, err := svc.Create(ctx, "org1", []string{tx.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var buf bytes.Buffer
	if _, err := svc.ExportCSV(ctx, c.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	bad := "A,B,C,D,E,F,G,H,I,J\n"
	if _, err := svc.ImportCSV(ctx, c.ID, strings.NewReader(bad)); err == nil {
		t.Fatal("wrong header must be rejected")
	}
}
