package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/house"
	"github.com/providerdesk/backoffice/internal/app/domain/resident"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
)

func TestStats_ComputesPerOrgCounts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := store.CreateHouse(ctx, house.House{OrgID: "org1", Name: "House", Active: true}); err != nil {
			t.Fatalf("create house: %v", err)
		}
	}
	if _, err := store.CreateHouse(ctx, house.House{OrgID: "org2", Name: "Other"}); err != nil {
		t.Fatalf("create house: %v", err)
	}
	if _, err := store.CreateResident(ctx, resident.Resident{OrgID: "org1", Name: "A", Active: true}); err != nil {
		t.Fatalf("create resident: %v", err)
	}
	if _, err := store.CreateResident(ctx, resident.Resident{OrgID: "org1", Name: "B", Active: false}); err != nil {
		t.Fatalf("create resident: %v", err)
	}

	if _, err := store.CreateContract(ctx, contract.Contract{
		OrgID:          "org1",
		Status:         contract.StatusActive,
		CurrentBalance: decimal.NewFromInt(400),
	}); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	if _, err := store.CreateContract(ctx, contract.Contract{
		OrgID:             "org1",
		Status:            contract.StatusExpired,
		CurrentBalance:    decimal.NewFromInt(999),
		InsufficientFunds: true,
	}); err != nil {
		t.Fatalf("create contract: %v", err)
	}

	// One posted transaction this month, one voided, one from last month.
	txs := []transaction.Transaction{
		{OrgID: "org1", ServiceDate: now.AddDate(0, 0, -1), Amount: decimal.NewFromInt(100), Status: transaction.StatusPosted},
		{OrgID: "org1", ServiceDate: now.AddDate(0, 0, -2), Amount: decimal.NewFromInt(100), Status: transaction.StatusVoided},
		{OrgID: "org1", ServiceDate: now.AddDate(0, -1, 0), Amount: decimal.NewFromInt(100), Status: transaction.StatusPosted},
	}
	for _, tx := range txs {
		if _, err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	if _, err := store.CreateClaim(ctx, claim.Claim{OrgID: "org1", Status: claim.StatusDraft}); err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if _, err := store.CreateClaim(ctx, claim.Claim{OrgID: "org1", Status: claim.StatusPaid}); err != nil {
		t.Fatalf("create claim: %v", err)
	}

	svc := New(store, store, store, store, store, nil, 0, nil)
	svc.now = func() time.Time { return now }

	stats, err := svc.Stats(ctx, "org1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Houses != 2 {
		t.Fatalf("houses = %d, want 2", stats.Houses)
	}
	if stats.ActiveResidents != 1 {
		t.Fatalf("active residents = %d, want 1", stats.ActiveResidents)
	}
	if stats.ActiveContracts != 1 {
		t.Fatalf("active contracts = %d, want 1", stats.ActiveContracts)
	}
	if !stats.TotalCurrentBalance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("total balance = %s, want 400", stats.TotalCurrentBalance)
	}
	if stats.InsufficientFundsCount != 1 {
		t.Fatalf("insufficient funds count = %d, want 1", stats.InsufficientFundsCount)
	}
	if stats.MonthTransactions != 1 {
		t.Fatalf("month transactions = %d, want 1 (voided and prior-month excluded)", stats.MonthTransactions)
	}
	if !stats.MonthAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("month amount = %s, want 100", stats.MonthAmount)
	}
	if stats.ClaimsByStatus["draft"] != 1 || stats.ClaimsByStatus["paid"] != 1 {
		t.Fatalf("claims by status = %v", stats.ClaimsByStatus)
	}
}

func TestStats_RequiresOrg(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, store, nil, 0, nil)
	if _, err := svc.Stats(context.Background(), ""); err == nil {
		t.Fatal("expected validation error for missing org")
	}
}
