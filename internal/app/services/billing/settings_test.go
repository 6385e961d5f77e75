package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/automation"
	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
	"github.com/providerdesk/backoffice/internal/errors"
)

func TestGetSettings_DefaultsWhenUnsaved(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, 90, nil)

	set, err := svc.GetSettings(context.Background(), "org1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if set.Enabled {
		t.Fatal("automation should default to disabled")
	}
	if !set.CatchUpEnabled {
		t.Fatal("catch-up should default to enabled")
	}
	if set.OrgID != "org1" {
		t.Fatalf("wrong org on defaults: %q", set.OrgID)
	}
}

func TestUpdateSettings_PartialUpdatePreservesRest(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, 90, nil)
	ctx := context.Background()

	enabled := true
	hour := 5
	email := "ops@example.com"
	if _, err := svc.UpdateSettings(ctx, "org1", &enabled, nil, &hour, &email); err != nil {
		t.Fatalf("update: %v", err)
	}

	catchUp := false
	saved, err := svc.UpdateSettings(ctx, "org1", nil, &catchUp, nil, nil)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !saved.Enabled || saved.CatchUpEnabled {
		t.Fatalf("unexpected flags: enabled=%v catchUp=%v", saved.Enabled, saved.CatchUpEnabled)
	}
	if saved.RunHourUTC != 5 || saved.NotifyEmail != "ops@example.com" {
		t.Fatalf("earlier fields lost: %+v", saved)
	}
}

func TestRun_ScheduleTriggerRespectsRunHour(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if _, err := store.UpsertAutomationSettings(ctx, automation.Settings{
		OrgID:          "org1",
		Enabled:        true,
		CatchUpEnabled: true,
		RunHourUTC:     2,
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	seedContract(t, store, contract.Contract{
		OrgID:          "org1",
		ResidentID:     "res1",
		Status:         contract.StatusActive,
		Frequency:      contract.FrequencyDaily,
		Amount:         decimal.NewFromInt(100),
		CurrentBalance: decimal.NewFromInt(1000),
		StartDate:      day(2024, time.March, 1),
		EndDate:        day(2024, time.December, 31),
	})

	svc := New(store, store, store, nil, 90, nil)
	svc.now = fixedNow(time.Date(2024, time.March, 10, 5, 0, 0, 0, time.UTC))

	summary, err := svc.Run(ctx, TriggerSchedule)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Transactions != 0 {
		t.Fatalf("org billed outside its run hour: %d transactions", summary.Transactions)
	}

	svc.now = fixedNow(time.Date(2024, time.March, 10, 2, 0, 0, 0, time.UTC))
	summary, err = svc.Run(ctx, TriggerSchedule)
	if err != nil {
		t.Fatalf("run at configured hour: %v", err)
	}
	if summary.Transactions == 0 {
		t.Fatal("org not billed at its configured hour")
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, 90, nil)
	ctx := context.Background()

	badHour := 24
	if _, err := svc.UpdateSettings(ctx, "org1", nil, nil, &badHour, nil); errors.GetServiceError(err) == nil {
		t.Fatalf("expected validation error for run hour, got %v", err)
	}

	badEmail := "not-an-address"
	if _, err := svc.UpdateSettings(ctx, "org1", nil, nil, nil, &badEmail); errors.GetServiceError(err) == nil {
		t.Fatalf("expected validation error for email, got %v", err)
	}

	if _, err := svc.UpdateSettings(ctx, "", nil, nil, nil, nil); errors.GetServiceError(err) == nil {
		t.Fatalf("expected validation error for missing org, got %v", err)
	}
}
