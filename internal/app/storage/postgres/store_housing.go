package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/providerdesk/backoffice/internal/app/domain/house"
	"github.com/providerdesk/backoffice/internal/app/domain/resident"
)

// --- HouseStore -------------------------------------------------------------

func (s *Store) CreateHouse(ctx context.Context, h house.House) (house.House, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_houses (id, org_id, name, address, design_category, capacity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.OrgID, h.Name, h.Address, h.DesignCategory, h.Capacity, h.Active, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return house.House{}, err
	}
	return h, nil
}

func (s *Store) UpdateHouse(ctx context.Context, h house.House) (house.House, error) {
	existing, err := s.GetHouse(ctx, h.ID)
	if err != nil {
		return house.House{}, err
	}

	h.OrgID = existing.OrgID
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_houses
		SET name = $2, address = $3, design_category = $4, capacity = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, h.ID, h.Name, h.Address, h.DesignCategory, h.Capacity, h.Active, h.UpdatedAt)
	if err != nil {
		return house.House{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return house.House{}, sql.ErrNoRows
	}
	return h, nil
}

func (s *Store) GetHouse(ctx context.Context, id string) (house.House, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, address, design_category, capacity, active, created_at, updated_at
		FROM app_houses
		WHERE id = $1
	`, id)

	var h house.House
	if err := row.Scan(&h.ID, &h.OrgID, &h.Name, &h.Address, &h.DesignCategory, &h.Capacity, &h.Active, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return house.House{}, err
	}
	return h, nil
}

func (s *Store) ListHouses(ctx context.Context, orgID string) ([]house.House, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, name, address, design_category, capacity, active, created_at, updated_at
		FROM app_houses
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []house.House
	for rows.Next() {
		var h house.House
		if err := rows.Scan(&h.ID, &h.OrgID, &h.Name, &h.Address, &h.DesignCategory, &h.Capacity, &h.Active, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (s *Store) DeleteHouse(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_houses WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- ResidentStore ----------------------------------------------------------

func (s *Store) CreateResident(ctx context.Context, r resident.Resident) (resident.Resident, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_residents (id, org_id, house_id, name, ndis_number, date_of_birth, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.OrgID, toNullString(r.HouseID), r.Name, r.NDISNumber, toNullTime(r.DateOfBirth), r.Active, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return resident.Resident{}, err
	}
	return r, nil
}

func (s *Store) UpdateResident(ctx context.Context, r resident.Resident) (resident.Resident, error) {
	existing, err := s.GetResident(ctx, r.ID)
	if err != nil {
		return resident.Resident{}, err
	}

	r.OrgID = existing.OrgID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_residents
		SET house_id = $2, name = $3, ndis_number = $4, date_of_birth = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, r.ID, toNullString(r.HouseID), r.Name, r.NDISNumber, toNullTime(r.DateOfBirth), r.Active, r.UpdatedAt)
	if err != nil {
		return resident.Resident{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return resident.Resident{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *Store) GetResident(ctx context.Context, id string) (resident.Resident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, house_id, name, ndis_number, date_of_birth, active, created_at, updated_at
		FROM app_residents
		WHERE id = $1
	`, id)
	return scanResident(row.Scan)
}

func (s *Store) ListResidents(ctx context.Context, orgID string) ([]resident.Resident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, house_id, name, ndis_number, date_of_birth, active, created_at, updated_at
		FROM app_residents
		WHERE $1 = '' OR org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResidents(rows)
}

func (s *Store) ListResidentsByHouse(ctx context.Context, houseID string) ([]resident.Resident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, house_id, name, ndis_number, date_of_birth, active, created_at, updated_at
		FROM app_residents
		WHERE house_id = $1
		ORDER BY created_at
	`, houseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResidents(rows)
}

func collectResidents(rows *sql.Rows) ([]resident.Resident, error) {
	var result []resident.Resident
	for rows.Next() {
		r, err := scanResident(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanResident(scan func(dest ...any) error) (resident.Resident, error) {
	var (
		r       resident.Resident
		houseID sql.NullString
		dob     sql.NullTime
	)
	if err := scan(&r.ID, &r.OrgID, &houseID, &r.Name, &r.NDISNumber, &dob, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return resident.Resident{}, err
	}
	if houseID.Valid {
		r.HouseID = houseID.String
	}
	if dob.Valid {
		r.DateOfBirth = dob.Time.UTC()
	}
	return r, nil
}
