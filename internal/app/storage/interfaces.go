package storage

import (
	"context"
	"time"

	"github.com/providerdesk/backoffice/internal/app/domain/automation"
	"github.com/providerdesk/backoffice/internal/app/domain/claim"
	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/document"
	"github.com/providerdesk/backoffice/internal/app/domain/house"
	"github.com/providerdesk/backoffice/internal/app/domain/notification"
	"github.com/providerdesk/backoffice/internal/app/domain/org"
	"github.com/providerdesk/backoffice/internal/app/domain/resident"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
	"github.com/providerdesk/backoffice/internal/app/domain/user"
)

// OrgStore persists organizations.
type OrgStore interface {
	CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error)
	UpdateOrg(ctx context.Context, o org.Organization) (org.Organization, error)
	GetOrg(ctx context.Context, id string) (org.Organization, error)
	ListOrgs(ctx context.Context) ([]org.Organization, error)
	DeleteOrg(ctx context.Context, id string) error
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, orgID string) ([]user.User, error)
}

// HouseStore persists houses.
type HouseStore interface {
	CreateHouse(ctx context.Context, h house.House) (house.House, error)
	UpdateHouse(ctx context.Context, h house.House) (house.House, error)
	GetHouse(ctx context.Context, id string) (house.House, error)
	ListHouses(ctx context.Context, orgID string) ([]house.House, error)
	DeleteHouse(ctx context.Context, id string) error
}

// ResidentStore persists residents.
type ResidentStore interface {
	CreateResident(ctx context.Context, r resident.Resident) (resident.Resident, error)
	UpdateResident(ctx context.Context, r resident.Resident) (resident.Resident, error)
	GetResident(ctx context.Context, id string) (resident.Resident, error)
	ListResidents(ctx context.Context, orgID string) ([]resident.Resident, error)
	ListResidentsByHouse(ctx context.Context, houseID string) ([]resident.Resident, error)
}

// ContractStore persists funding contracts.
type ContractStore interface {
	CreateContract(ctx context.Context, c contract.Contract) (contract.Contract, error)
	UpdateContract(ctx context.Context, c contract.Contract) (contract.Contract, error)
	GetContract(ctx context.Context, id string) (contract.Contract, error)
	ListContracts(ctx context.Context, orgID string) ([]contract.Contract, error)
	// ListContractsDueForDrawdown returns Active contracts whose
	// LastDrawdownDate precedes asOf and whose date range covers at least
	// one billable day on or before asOf.
	ListContractsDueForDrawdown(ctx context.Context, orgID string, asOf time.Time) ([]contract.Contract, error)
}

// TransactionStore persists billing transactions.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, orgID string) ([]transaction.Transaction, error)
	ListTransactionsByContract(ctx context.Context, contractID string) ([]transaction.Transaction, error)
	ListTransactionsByClaim(ctx context.Context, claimID string) ([]transaction.Transaction, error)
	ListTransactionsInRange(ctx context.Context, orgID string, from, to time.Time) ([]transaction.Transaction, error)
}

// ClaimStore persists claims.
type ClaimStore interface {
	CreateClaim(ctx context.Context, c claim.Claim) (claim.Claim, error)
	UpdateClaim(ctx context.Context, c claim.Claim) (claim.Claim, error)
	GetClaim(ctx context.Context, id string) (claim.Claim, error)
	ListClaims(ctx context.Context, orgID string) ([]claim.Claim, error)
}

// NotificationStore persists email send records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotifications(ctx context.Context, orgID string) ([]notification.Notification, error)
}

// DocumentStore persists contract PDF audit records.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d document.Document) (document.Document, error)
	GetDocument(ctx context.Context, id string) (document.Document, error)
	ListDocumentsByContract(ctx context.Context, contractID string) ([]document.Document, error)
}

// AutomationStore persists per-organization billing automation settings.
type AutomationStore interface {
	GetAutomationSettings(ctx context.Context, orgID string) (automation.Settings, error)
	UpsertAutomationSettings(ctx context.Context, s automation.Settings) (automation.Settings, error)
	ListEnabledAutomation(ctx context.Context) ([]automation.Settings, error)
}
