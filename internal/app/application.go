// Package app assembles the back-office services and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/providerdesk/backoffice/internal/logging"

	"github.com/providerdesk/backoffice/internal/app/services/billing"
	"github.com/providerdesk/backoffice/internal/app/services/claims"
	"github.com/providerdesk/backoffice/internal/app/services/contracts"
	"github.com/providerdesk/backoffice/internal/app/services/dashboard"
	"github.com/providerdesk/backoffice/internal/app/services/documents"
	"github.com/providerdesk/backoffice/internal/app/services/houses"
	"github.com/providerdesk/backoffice/internal/app/services/notifications"
	"github.com/providerdesk/backoffice/internal/app/services/orgs"
	"github.com/providerdesk/backoffice/internal/app/services/residents"
	"github.com/providerdesk/backoffice/internal/app/services/transactions"
	"github.com/providerdesk/backoffice/internal/app/services/users"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/app/storage/memory"
	"github.com/providerdesk/backoffice/internal/app/system"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Orgs          storage.OrgStore
	Users         storage.UserStore
	Houses        storage.HouseStore
	Residents     storage.ResidentStore
	Contracts     storage.ContractStore
	Transactions  storage.TransactionStore
	Claims        storage.ClaimStore
	Notifications storage.NotificationStore
	Documents     storage.DocumentStore
	Automation    storage.AutomationStore
}

// Dependencies carries the external collaborators services are wired with.
// Every field is optional; missing ones degrade the related feature rather
// than failing construction.
type Dependencies struct {
	// TokenIssuer mints session tokens on login.
	TokenIssuer users.TokenIssuer
	// Mailer delivers outbound email. Nil leaves notifications pending.
	Mailer notifications.Sender
	// Objects stores rendered contract PDFs. Nil disables document
	// rendering.
	Objects documents.ObjectStore
	// Cache backs dashboard stats. Nil computes on every request.
	Cache *redis.Client

	TokenTTL         time.Duration
	SignedURLTTL     time.Duration
	CacheTTL         time.Duration
	CatchUpLimitDays int
	BillingSchedule  string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	Log     *logging.Logger

	Orgs          *orgs.Service
	Users         *users.Service
	Houses        *houses.Service
	Residents     *residents.Service
	Contracts     *contracts.Service
	Transactions  *transactions.Service
	Claims        *claims.Service
	Billing       *billing.Service
	Documents     *documents.Service
	Dashboard     *dashboard.Service
	Notifications *notifications.Service
}

// New builds a fully initialised application with the provided stores and
// dependencies.
func New(stores Stores, deps Dependencies, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Orgs == nil {
		stores.Orgs = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Houses == nil {
		stores.Houses = mem
	}
	if stores.Residents == nil {
		stores.Residents = mem
	}
	if stores.Contracts == nil {
		stores.Contracts = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Claims == nil {
		stores.Claims = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Documents == nil {
		stores.Documents = mem
	}
	if stores.Automation == nil {
		stores.Automation = mem
	}

	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 24 * time.Hour
	}
	if deps.SignedURLTTL <= 0 {
		deps.SignedURLTTL = 15 * time.Minute
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Minute
	}

	manager := system.NewManager()

	orgService := orgs.New(stores.Orgs, log)
	notificationService := notifications.New(stores.Notifications, deps.Mailer, log)
	userService := users.New(stores.Users, stores.Orgs, deps.TokenIssuer, notificationService, deps.TokenTTL, log)
	houseService := houses.New(stores.Houses, stores.Residents, log)
	residentService := residents.New(stores.Residents, stores.Houses, log)
	contractService := contracts.New(stores.Contracts, stores.Residents, log)
	transactionService := transactions.New(stores.Transactions, stores.Contracts, log)
	claimService := claims.New(stores.Claims, stores.Transactions, stores.Residents, log)
	billingService := billing.New(stores.Contracts, stores.Transactions, stores.Automation, notificationService, deps.CatchUpLimitDays, log)
	documentService := documents.New(stores.Documents, stores.Contracts, stores.Residents, stores.Houses, deps.Objects, deps.SignedURLTTL, log)
	dashboardService := dashboard.New(stores.Houses, stores.Residents, stores.Contracts, stores.Transactions, stores.Claims, deps.Cache, deps.CacheTTL, log)

	scheduler := billing.NewScheduler(billingService, deps.BillingSchedule, log)
	if err := manager.Register(scheduler); err != nil {
		return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
	}

	return &Application{
		manager:       manager,
		Log:           log,
		Orgs:          orgService,
		Users:         userService,
		Houses:        houseService,
		Residents:     residentService,
		Contracts:     contractService,
		Transactions:  transactionService,
		Claims:        claimService,
		Billing:       billingService,
		Documents:     documentService,
		Dashboard:     dashboardService,
		Notifications: notificationService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
