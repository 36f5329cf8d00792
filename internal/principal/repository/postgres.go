package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-platform/backend/internal/principal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a principal repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const principalColumns = `id, email, username, role, org_id, token_version, current_refresh_hash, status, created_at, updated_at`

// GetByID returns the principal for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	return scanPrincipal(row)
}

// GetByEmail returns the principal with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = $1`, email)
	return scanPrincipal(row)
}

// Create persists the principal. The principal must have ID set; it is not
// assigned by this method. Session fields start at their zero state.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO principals (id, email, username, role, org_id, token_version, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Email, p.Username, string(p.Role),
		sql.NullString{String: p.OrgID, Valid: p.OrgID != ""},
		p.TokenVersion, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// Update updates the principal's profile fields. Session-control fields are
// deliberately not touched here; those belong to the session store.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE principals SET email = $2, username = $3, role = $4, org_id = $5, status = $6, updated_at = $7
		 WHERE id = $1`,
		p.ID, p.Email, p.Username, string(p.Role),
		sql.NullString{String: p.OrgID, Valid: p.OrgID != ""},
		string(p.Status), time.Now().UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*domain.Principal, error) {
	var (
		p       domain.Principal
		role    string
		status  string
		orgID   sql.NullString
		refresh sql.NullString
	)
	err := row.Scan(&p.ID, &p.Email, &p.Username, &role, &orgID,
		&p.TokenVersion, &refresh, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Role = domain.Role(role)
	p.Status = domain.Status(status)
	if orgID.Valid {
		p.OrgID = orgID.String
	}
	if refresh.Valid {
		p.CurrentRefreshHash = refresh.String
	}
	return &p, nil
}
