package claims

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Find(ctx context.Context, tenantID, claimID string) (*Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`select claim_id, tenant_id, hospital_id, original_filename, status, error_message, created_at, updated_at
		 from claims where tenant_id=$1 and claim_id=$2`,
		tenantID, claimID,
	)
	return scanClaim(row.Scan)
}

func (s *PGStore) List(ctx context.Context, tenantID string) ([]*Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`select claim_id, tenant_id, hospital_id, original_filename, status, error_message, created_at, updated_at
		 from claims where tenant_id=$1 order by created_at desc`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Claim
	for rows.Next() {
		c, err := scanClaim(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, tenantID, claimID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update claims set status=$3, updated_at=now() where tenant_id=$1 and claim_id=$2`,
		tenantID, claimID, status,
	)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *PGStore) MarkManualReview(ctx context.Context, tenantID, claimID, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`update claims set status=$3, error_message=$4, updated_at=now() where tenant_id=$1 and claim_id=$2`,
		tenantID, claimID, StatusManualReview, errorMessage,
	)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func scanClaim(scan func(dest ...any) error) (*Claim, error) {
	var (
		c        Claim
		filename sql.NullString
		errMsg   sql.NullString
	)
	if err := scan(&c.ID, &c.TenantID, &c.HospitalID, &filename, &c.Status, &errMsg, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Filename = filename.String
	c.ErrorMessage = errMsg.String
	return &c, nil
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
