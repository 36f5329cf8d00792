package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenant-platform/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const identityColumns = `id, principal_id, provider, provider_id, password_hash, created_at`

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// GetByPrincipalAndProvider returns the identity for the given principal and
// provider, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByPrincipalAndProvider(ctx context.Context, principalID string, provider domain.Provider) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE principal_id = $1 AND provider = $2`,
		principalID, string(provider))
	return scanIdentity(row)
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, principal_id, provider, provider_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.PrincipalID, string(i.Provider), i.ProviderID,
		sql.NullString{String: i.PasswordHash, Valid: i.PasswordHash != ""},
		i.CreatedAt,
	)
	return err
}

// UpdatePasswordHash replaces the password hash for the identity with the given id.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2 WHERE id = $1`,
		id, sql.NullString{String: passwordHash, Valid: passwordHash != ""},
	)
	return err
}

func scanIdentity(row *sql.Row) (*domain.Identity, error) {
	var (
		i  domain.Identity
		pr string
		ph sql.NullString
	)
	err := row.Scan(&i.ID, &i.PrincipalID, &pr, &i.ProviderID, &ph, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Provider = domain.Provider(pr)
	if ph.Valid {
		i.PasswordHash = ph.String
	}
	return &i, nil
}
