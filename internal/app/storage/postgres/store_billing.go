package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/transaction"
)

// --- ContractStore ----------------------------------------------------------

func (s *Store) CreateContract(ctx context.Context, c contract.Contract) (contract.Contract, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_contracts (id, org_id, resident_id, house_id, status, frequency, amount,
			original_amount, current_balance, insufficient_funds, start_date, end_date,
			last_drawdown_date, renewed_from_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.ID, c.OrgID, c.ResidentID, toNullString(c.HouseID), string(c.Status), string(c.Frequency),
		c.Amount, c.OriginalAmount, c.CurrentBalance, c.InsufficientFunds, c.StartDate,
		toNullTime(c.EndDate), toNullTime(c.LastDrawdownDate), toNullString(c.RenewedFromID),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

func (s *Store) UpdateContract(ctx context.Context, c contract.Contract) (contract.Contract, error) {
	existing, err := s.GetContract(ctx, c.ID)
	if err != nil {
		return contract.Contract{}, err
	}

	c.OrgID = existing.OrgID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_contracts
		SET resident_id = $2, house_id = $3, status = $4, frequency = $5, amount = $6,
			original_amount = $7, current_balance = $8, insufficient_funds = $9,
			start_date = $10, end_date = $11, last_drawdown_date = $12, renewed_from_id = $13,
			updated_at = $14
		WHERE id = $1
	`, c.ID, c.ResidentID, toNullString(c.HouseID), string(c.Status), string(c.Frequency),
		c.Amount, c.OriginalAmount, c.CurrentBalance, c.InsufficientFunds, c.StartDate,
		toNullTime(c.EndDate), toNullTime(c.LastDrawdownDate), toNullString(c.RenewedFromID),
		c.UpdatedAt)
	if err != nil {
		return contract.Contract{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return contract.Contract{}, sql.ErrNoRows
	}
	return c, nil
}

const contractColumns = `id, org_id, resident_id, house_id, status, frequency, amount,
	original_amount, current_balance, insufficient_funds, start_date, end_date,
	last_drawdown_date, renewed_from_id, created_at, updated_at`

func (s *Store) GetContract(ctx context.Context, id string) (contract.Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+`
		FROM app_contracts
		WHERE id = $1
	`, id)
	return scanContract(row.Scan)
}

func (s *Store) ListContracts(ctx context.Context, orgID string) ([]contract.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM app_contracts
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

func (s *Store) ListContractsDueForDrawdown(ctx context.Context, orgID string, asOf time.Time) ([]contract.Contract, error) {
	day := asOf.UTC().Truncate(24 * time.Hour)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM app_contracts
		WHERE ($1 = '' OR org_id = $1)
		  AND status = 'Active'
		  AND start_date <= $2
		  AND (last_drawdown_date IS NULL OR last_drawdown_date < $2)
		  AND (end_date IS NULL OR last_drawdown_date IS NULL OR last_drawdown_date < end_date)
		ORDER BY created_at
	`, orgID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

func collectContracts(rows *sql.Rows) ([]contract.Contract, error) {
	var result []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanContract(scan func(dest ...any) error) (contract.Contract, error) {
	var (
		c             contract.Contract
		status        string
		frequency     string
		houseID       sql.NullString
		endDate       sql.NullTime
		lastDrawdown  sql.NullTime
		renewedFromID sql.NullString
	)
	if err := scan(&c.ID, &c.OrgID, &c.ResidentID, &houseID, &status, &frequency, &c.Amount,
		&c.OriginalAmount, &c.CurrentBalance, &c.InsufficientFunds, &c.StartDate, &endDate,
		&lastDrawdown, &renewedFromID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return contract.Contract{}, err
	}
	c.Status = contract.Status(status)
	c.Frequency = contract.Frequency(frequency)
	if houseID.Valid {
		c.HouseID = houseID.String
	}
	if endDate.Valid {
		c.EndDate = endDate.Time.UTC()
	}
	if lastDrawdown.Valid {
		c.LastDrawdownDate = lastDrawdown.Time.UTC()
	}
	if renewedFromID.Valid {
		c.RenewedFromID = renewedFromID.String
	}
	return c, nil
}

// --- TransactionStore -------------------------------------------------------

const transactionColumns = `id, org_id, contract_id, resident_id, service_date, amount,
	description, status, claim_status, claim_id, created_by, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_transactions (id, org_id, contract_id, resident_id, service_date, amount,
			description, status, claim_status, claim_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, tx.ID, tx.OrgID, tx.ContractID, tx.ResidentID, tx.ServiceDate, tx.Amount, tx.Description,
		string(tx.Status), string(tx.ClaimStatus), toNullString(tx.ClaimID), tx.CreatedBy,
		tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	existing, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	tx.OrgID = existing.OrgID
	tx.ContractID = existing.ContractID
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_transactions
		SET resident_id = $2, service_date = $3, amount = $4, description = $5, status = $6,
			claim_status = $7, claim_id = $8, created_by = $9, updated_at = $10
		WHERE id = $1
	`, tx.ID, tx.ResidentID, tx.ServiceDate, tx.Amount, tx.Description, string(tx.Status),
		string(tx.ClaimStatus), toNullString(tx.ClaimID), tx.CreatedBy, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return transaction.Transaction{}, sql.ErrNoRows
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM app_transactions
		WHERE id = $1
	`, id)
	return scanTransaction(row.Scan)
}

func (s *Store) ListTransactions(ctx context.Context, orgID string) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM app_transactions
		WHERE $1 = '' OR org_id = $1
		ORDER BY service_date DESC, created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListTransactionsByContract(ctx context.Context, contractID string) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM app_transactions
		WHERE contract_id = $1
		ORDER BY service_date
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListTransactionsByClaim(ctx context.Context, claimID string) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM app_transactions
		WHERE claim_id = $1
		ORDER BY service_date
	`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListTransactionsInRange(ctx context.Context, orgID string, from, to time.Time) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM app_transactions
		WHERE ($1 = '' OR org_id = $1) AND service_date >= $2 AND service_date <= $3
		ORDER BY service_date
	`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]transaction.Transaction, error) {
	var result []transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (transaction.Transaction, error) {
	var (
		tx          transaction.Transaction
		status      string
		claimStatus string
		claimID     sql.NullString
	)
	if err := scan(&tx.ID, &tx.OrgID, &tx.ContractID, &tx.ResidentID, &tx.ServiceDate, &tx.Amount,
		&tx.Description, &status, &claimStatus, &claimID, &tx.CreatedBy, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return transaction.Transaction{}, err
	}
	tx.Status = transaction.Status(status)
	tx.ClaimStatus = transaction.ClaimStatus(claimStatus)
	if claimID.Valid {
		tx.ClaimID = claimID.String
	}
	return tx, nil
}
