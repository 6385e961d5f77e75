package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
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
	"github.com/providerdesk/backoffice/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	orgs          map[string]org.Organization
	users         map[string]user.User
	usersByEmail  map[string]string
	houses        map[string]house.House
	residents     map[string]resident.Resident
	contracts     map[string]contract.Contract
	transactions  map[string]transaction.Transaction
	claims        map[string]claim.Claim
	notifications map[string]notification.Notification
	documents     map[string]document.Document
	automation    map[string]automation.Settings
}

var _ storage.OrgStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.HouseStore = (*Store)(nil)
var _ storage.ResidentStore = (*Store)(nil)
var _ storage.ContractStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.ClaimStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.DocumentStore = (*Store)(nil)
var _ storage.AutomationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		orgs:          make(map[string]org.Organization),
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		houses:        make(map[string]house.House),
		residents:     make(map[string]resident.Resident),
		contracts:     make(map[string]contract.Contract),
		transactions:  make(map[string]transaction.Transaction),
		claims:        make(map[string]claim.Claim),
		notifications: make(map[string]notification.Notification),
		documents:     make(map[string]document.Document),
		automation:    make(map[string]automation.Settings),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// OrgStore implementation ----------------------------------------------------

func (s *Store) CreateOrg(_ context.Context, o org.Organization) (org.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	} else if _, exists := s.orgs[o.ID]; exists {
		return org.Organization{}, fmt.Errorf("organization %s already exists", o.ID)
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Metadata = cloneMap(o.Metadata)

	s.orgs[o.ID] = o
	return o, nil
}

func (s *Store) UpdateOrg(_ context.Context, o org.Organization) (org.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.orgs[o.ID]
	if !ok {
		return org.Organization{}, sql.ErrNoRows
	}

	o.CreatedAt = original.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	o.Metadata = cloneMap(o.Metadata)

	s.orgs[o.ID] = o
	return o, nil
}

func (s *Store) GetOrg(_ context.Context, id string) (org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return org.Organization{}, sql.ErrNoRows
	}
	o.Metadata = cloneMap(o.Metadata)
	return o, nil
}

func (s *Store) ListOrgs(_ context.Context) ([]org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]org.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		o.Metadata = cloneMap(o.Metadata)
		out = append(out, o)
	}
	sortByCreated(out, func(o org.Organization) time.Time { return o.CreatedAt })
	return out, nil
}

func (s *Store) DeleteOrg(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.orgs, id)
	return nil
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := s.usersByEmail[key]; exists {
		return user.User{}, fmt.Errorf("user with email %s already exists", u.Email)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[key] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context, orgID string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []user.User
	for _, u := range s.users {
		if orgID == "" || u.OrgID == orgID {
			out = append(out, u)
		}
	}
	sortByCreated(out, func(u user.User) time.Time { return u.CreatedAt })
	return out, nil
}

// HouseStore implementation --------------------------------------------------

func (s *Store) CreateHouse(_ context.Context, h house.House) (house.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = s.nextIDLocked()
	} else if _, exists := s.houses[h.ID]; exists {
		return house.House{}, fmt.Errorf("house %s already exists", h.ID)
	}

	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	s.houses[h.ID] = h
	return h, nil
}

func (s *Store) UpdateHouse(_ context.Context, h house.House) (house.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.houses[h.ID]
	if !ok {
		return house.House{}, sql.ErrNoRows
	}

	h.OrgID = original.OrgID
	h.CreatedAt = original.CreatedAt
	h.UpdatedAt = time.Now().UTC()

	s.houses[h.ID] = h
	return h, nil
}

func (s *Store) GetHouse(_ context.Context, id string) (house.House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.houses[id]
	if !ok {
		return house.House{}, sql.ErrNoRows
	}
	return h, nil
}

func (s *Store) ListHouses(_ context.Context, orgID string) ([]house.House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []house.House
	for _, h := range s.houses {
		if orgID == "" || h.OrgID == orgID {
			out = append(out, h)
		}
	}
	sortByCreated(out, func(h house.House) time.Time { return h.CreatedAt })
	return out, nil
}

func (s *Store) DeleteHouse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.houses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.houses, id)
	return nil
}

// ResidentStore implementation -----------------------------------------------

func (s *Store) CreateResident(_ context.Context, r resident.Resident) (resident.Resident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.residents[r.ID]; exists {
		return resident.Resident{}, fmt.Errorf("resident %s already exists", r.ID)
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	s.residents[r.ID] = r
	return r, nil
}

func (s *Store) UpdateResident(_ context.Context, r resident.Resident) (resident.Resident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.residents[r.ID]
	if !ok {
		return resident.Resident{}, sql.ErrNoRows
	}

	r.OrgID = original.OrgID
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	s.residents[r.ID] = r
	return r, nil
}

func (s *Store) GetResident(_ context.Context, id string) (resident.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.residents[id]
	if !ok {
		return resident.Resident{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *Store) ListResidents(_ context.Context, orgID string) ([]resident.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []resident.Resident
	for _, r := range s.residents {
		if orgID == "" || r.OrgID == orgID {
			out = append(out, r)
		}
	}
	sortByCreated(out, func(r resident.Resident) time.Time { return r.CreatedAt })
	return out, nil
}

func (s *Store) ListResidentsByHouse(_ context.Context, houseID string) ([]resident.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []resident.Resident
	for _, r := range s.residents {
		if r.HouseID == houseID {
			out = append(out, r)
		}
	}
	sortByCreated(out, func(r resident.Resident) time.Time { return r.CreatedAt })
	return out, nil
}

// ContractStore implementation -----------------------------------------------

func (s *Store) CreateContract(_ context.Context, c contract.Contract) (contract.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.contracts[c.ID]; exists {
		return contract.Contract{}, fmt.Errorf("contract %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.contracts[c.ID] = c
	return c, nil
}

func (s *Store) UpdateContract(_ context.Context, c contract.Contract) (contract.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.contracts[c.ID]
	if !ok {
		return contract.Contract{}, sql.ErrNoRows
	}

	c.OrgID = original.OrgID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.contracts[c.ID] = c
	return c, nil
}

func (s *Store) GetContract(_ context.Context, id string) (contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return contract.Contract{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) ListContracts(_ context.Context, orgID string) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contract.Contract
	for _, c := range s.contracts {
		if orgID == "" || c.OrgID == orgID {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c contract.Contract) time.Time { return c.CreatedAt })
	return out, nil
}

func (s *Store) ListContractsDueForDrawdown(_ context.Context, orgID string, asOf time.Time) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := asOf.UTC().Truncate(24 * time.Hour)
	var out []contract.Contract
	for _, c := range s.contracts {
		if orgID != "" && c.OrgID != orgID {
			continue
		}
		if c.Status != contract.StatusActive {
			continue
		}
		if c.StartDate.After(day) {
			continue
		}
		if !c.EndDate.IsZero() && c.EndDate.Before(day) && !c.LastDrawdownDate.Before(c.EndDate) {
			continue
		}
		if !c.LastDrawdownDate.IsZero() && !c.LastDrawdownDate.Before(day) {
			continue
		}
		out = append(out, c)
	}
	sortByCreated(out, func(c contract.Contract) time.Time { return c.CreatedAt })
	return out, nil
}

// TransactionStore implementation --------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return transaction.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return transaction.Transaction{}, sql.ErrNoRows
	}

	tx.OrgID = original.OrgID
	tx.ContractID = original.ContractID
	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return transaction.Transaction{}, sql.ErrNoRows
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, orgID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []transaction.Transaction
	for _, tx := range s.transactions {
		if orgID == "" || tx.OrgID == orgID {
			out = append(out, tx)
		}
	}
	sortByCreated(out, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return out, nil
}

func (s *Store) ListTransactionsByContract(_ context.Context, contractID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []transaction.Transaction
	for _, tx := range s.transactions {
		if tx.ContractID == contractID {
			out = append(out, tx)
		}
	}
	sortByCreated(out, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return out, nil
}

func (s *Store) ListTransactionsByClaim(_ context.Context, claimID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []transaction.Transaction
	for _, tx := range s.transactions {
		if tx.ClaimID == claimID {
			out = append(out, tx)
		}
	}
	sortByCreated(out, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return out, nil
}

func (s *Store) ListTransactionsInRange(_ context.Context, orgID string, from, to time.Time) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []transaction.Transaction
	for _, tx := range s.transactions {
		if orgID != "" && tx.OrgID != orgID {
			continue
		}
		if tx.ServiceDate.Before(from) || tx.ServiceDate.After(to) {
			continue
		}
		out = append(out, tx)
	}
	sortByCreated(out, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return out, nil
}

// ClaimStore implementation --------------------------------------------------

func (s *Store) CreateClaim(_ context.Context, c claim.Claim) (claim.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.claims[c.ID]; exists {
		return claim.Claim{}, fmt.Errorf("claim %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.claims[c.ID] = c
	return c, nil
}

func (s *Store) UpdateClaim(_ context.Context, c claim.Claim) (claim.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.claims[c.ID]
	if !ok {
		return claim.Claim{}, sql.ErrNoRows
	}

	c.OrgID = original.OrgID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.claims[c.ID] = c
	return c, nil
}

func (s *Store) GetClaim(_ context.Context, id string) (claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return claim.Claim{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) ListClaims(_ context.Context, orgID string) ([]claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []claim.Claim
	for _, c := range s.claims {
		if orgID == "" || c.OrgID == orgID {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c claim.Claim) time.Time { return c.CreatedAt })
	return out, nil
}

// NotificationStore implementation -------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}

	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.notifications[n.ID]
	if !ok {
		return notification.Notification{}, sql.ErrNoRows
	}

	n.OrgID = original.OrgID
	n.CreatedAt = original.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, orgID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []notification.Notification
	for _, n := range s.notifications {
		if orgID == "" || n.OrgID == orgID {
			out = append(out, n)
		}
	}
	sortByCreated(out, func(n notification.Notification) time.Time { return n.CreatedAt })
	return out, nil
}

// DocumentStore implementation -----------------------------------------------

func (s *Store) CreateDocument(_ context.Context, d document.Document) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	}
	d.CreatedAt = time.Now().UTC()

	s.documents[d.ID] = d
	return d, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return document.Document{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *Store) ListDocumentsByContract(_ context.Context, contractID string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []document.Document
	for _, d := range s.documents {
		if d.ContractID == contractID {
			out = append(out, d)
		}
	}
	sortByCreated(out, func(d document.Document) time.Time { return d.CreatedAt })
	return out, nil
}

// AutomationStore implementation ---------------------------------------------

func (s *Store) GetAutomationSettings(_ context.Context, orgID string) (automation.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.automation[orgID]
	if !ok {
		return automation.Settings{}, sql.ErrNoRows
	}
	return cfg, nil
}

func (s *Store) UpsertAutomationSettings(_ context.Context, cfg automation.Settings) (automation.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if original, ok := s.automation[cfg.OrgID]; ok {
		cfg.CreatedAt = original.CreatedAt
	} else {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	s.automation[cfg.OrgID] = cfg
	return cfg, nil
}

func (s *Store) ListEnabledAutomation(_ context.Context) ([]automation.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []automation.Settings
	for _, cfg := range s.automation {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

func sortByCreated[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).Before(createdAt(items[j]))
	})
}
