package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
)

func seedActiveContract(t *testing.T, store *memory.Store, balance int64) contract.Contract {
	t.Helper()
	c, err := store.CreateContract(context.Background(), contract.Contract{
		OrgID:          "org1",
		ResidentID:     "res1",
		Status:         contract.StatusActive,
		Frequency:      contract.FrequencyDaily,
		Amount:         decimal.NewFromInt(100),
		OriginalAmount: decimal.NewFromInt(balance),
		CurrentBalance: decimal.NewFromInt(balance),
		StartDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	return c
}

func TestCreatePost_DeductsOnPostOnly(t *testing.T) {
	store := memory.New()
	c := seedActiveContract(t, store, 1000)
	svc := New(store, store, nil)
	ctx := context.Background()

	tx, err := svc.Create(ctx, "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("99.999"), "extra support  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != transaction.StatusDraft {
		t.Fatalf("manual charges start draft, got %s", tx.Status)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("amount should round to cents, got %s", tx.Amount)
	}
	if tx.Description != "extra support" {
		t.Fatalf("description not trimmed: %q", tx.Description)
	}

	before, _ := store.GetContract(ctx, c.ID)
	if !before.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("draft must not touch the balance: %s", before.CurrentBalance)
	}

	posted, err := svc.Post(ctx, tx.ID)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if posted.Status != transaction.StatusPosted {
		t.Fatalf("unexpected status: %s", posted.Status)
	}
	after, _ := store.GetContract(ctx, c.ID)
	if !after.CurrentBalance.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("posting should deduct: %s", after.CurrentBalance)
	}

	if _, err := svc.Post(ctx, tx.ID); err == nil {
		t.Fatal("double post must fail")
	}
}

func TestCreate_RequiresActiveContract(t *testing.T) {
	store := memory.New()
	c, err := store.CreateContract(context.Background(), contract.Contract{
		OrgID:     "org1",
		Status:    contract.StatusDraft,
		Frequency: contract.FrequencyDaily,
		Amount:    decimal.NewFromInt(100),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(store, store, nil)
	if _, err := svc.Create(context.Background(), "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(50), ""); err == nil {
		t.Fatal("charges against non-Active contracts must fail")
	}
}

func TestPost_InsufficientBalanceFlagsContract(t *testing.T) {
	store := memory.New()
	c := seedActiveContract(t, store, 40)
	svc := New(store, store, nil)
	ctx := context.Background()

	tx, err := svc.Create(ctx, "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(50), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Post(ctx, tx.ID); err == nil {
		t.Fatal("posting beyond the balance must fail")
	}

	after, _ := store.GetContract(ctx, c.ID)
	if !after.InsufficientFunds {
		t.Fatal("contract should be flagged")
	}
	if !after.CurrentBalance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balance must be untouched: %s", after.CurrentBalance)
	}

	got, _ := store.GetTransaction(ctx, tx.ID)
	if got.Status != transaction.StatusDraft {
		t.Fatalf("failed post should leave the transaction draft, got %s", got.Status)
	}
}

func TestVoid_RefundsPostedAndClearsFlag(t *testing.T) {
	store := memory.New()
	c := seedActiveContract(t, store, 100)
	svc := New(store, store, nil)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(100), "")
	if _, err := svc.Post(ctx, tx.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	// Exhausted; mark the flag the way a failed follow-up post would.
	mid, _ := store.GetContract(ctx, c.ID)
	mid.InsufficientFunds = true
	if _, err := store.UpdateContract(ctx, mid); err != nil {
		t.Fatalf("flag contract: %v", err)
	}

	voided, err := svc.Void(ctx, tx.ID)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.Status != transaction.StatusVoided {
		t.Fatalf("unexpected status: %s", voided.Status)
	}

	after, _ := store.GetContract(ctx, c.ID)
	if !after.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("void should refund the balance: %s", after.CurrentBalance)
	}
	if after.InsufficientFunds {
		t.Fatal("refund should clear the insufficient funds flag")
	}
}

func TestVoid_DraftDoesNotTouchBalance(t *testing.T) {
	store := memory.New()
	c := seedActiveContract(t, store, 500)
	svc := New(store, store, nil)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(100), "")
	if _, err := svc.Void(ctx, tx.ID); err != nil {
		t.Fatalf("void draft: %v", err)
	}

	after, _ := store.GetContract(ctx, c.ID)
	if !after.CurrentBalance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("voiding a draft must not refund anything: %s", after.CurrentBalance)
	}
}

func TestPickupRelease_Lifecycle(t *testing.T) {
	store := memory.New()
	c := seedActiveContract(t, store, 500)
	svc := New(store, store, nil)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, "org1", c.ID, "user1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(100), "")

	if _, err := svc.Pickup(ctx, tx.ID); err == nil {
		t.Fatal("draft transactions cannot be picked up")
	}

	if _, err := svc.Post(ctx, tx.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	picked, err := svc.Pickup(ctx, tx.ID)
	if err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if picked.ClaimStatus != transaction.ClaimPickedUp {
		t.Fatalf("unexpected claim status: %s", picked.ClaimStatus)
	}

	if _, err := svc.Void(ctx, tx.ID); err == nil {
		t.Fatal("picked up transactions cannot be voided")
	}

	released, err := svc.Release(ctx, tx.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.ClaimStatus != transaction.ClaimUnclaimed {
		t.Fatalf("release should return to unclaimed, got %s", released.ClaimStatus)
	}
}
