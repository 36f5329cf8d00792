package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenant-platform/backend/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const membershipColumns = `id, principal_id, org_id, role, created_at`

// GetMembershipByID returns the membership for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetMembershipByID(ctx context.Context, id string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

// GetMembershipByPrincipalAndOrg returns the membership linking the given
// principal and org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE principal_id = $1 AND org_id = $2`,
		principalID, orgID)
	return scanMembership(row)
}

// ListMembershipsByOrg returns all memberships for the org, oldest first.
func (r *PostgresRepository) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		var (
			m    domain.Membership
			role string
		)
		if err := rows.Scan(&m.ID, &m.PrincipalID, &m.OrgID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CountMembershipsByOrg returns the number of memberships in the org.
func (r *PostgresRepository) CountMembershipsByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE org_id = $1`, orgID).Scan(&n)
	return n, err
}

// CountOwnersByOrg returns the number of owner memberships in the org.
func (r *PostgresRepository) CountOwnersByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE org_id = $1 AND role = 'owner'`, orgID).Scan(&n)
	return n, err
}

// CreateMembership persists the membership. The membership must have ID set.
func (r *PostgresRepository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, principal_id, org_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.PrincipalID, m.OrgID, string(m.Role), m.CreatedAt,
	)
	return err
}

// UpdateRole sets the role on the membership linking principal and org and
// returns the updated membership, or nil if no such membership exists.
func (r *PostgresRepository) UpdateRole(ctx context.Context, principalID, orgID string, role domain.Role) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE memberships SET role = $3 WHERE principal_id = $1 AND org_id = $2
		 RETURNING `+membershipColumns,
		principalID, orgID, string(role))
	return scanMembership(row)
}

// DeleteByPrincipalAndOrg removes the membership linking principal and org.
// Deleting a missing membership is not an error.
func (r *PostgresRepository) DeleteByPrincipalAndOrg(ctx context.Context, principalID, orgID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE principal_id = $1 AND org_id = $2`,
		principalID, orgID)
	return err
}

func scanMembership(row *sql.Row) (*domain.Membership, error) {
	var (
		m    domain.Membership
		role string
	)
	err := row.Scan(&m.ID, &m.PrincipalID, &m.OrgID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}
