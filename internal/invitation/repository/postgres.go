package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-platform/backend/internal/invitation/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an invitation repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const invitationColumns = `id, org_id, email, role, token_hash, invited_by, expires_at, accepted_at, created_at`

// GetByTokenHash returns the invitation whose stored hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_hash = $1`, tokenHash)
	return scanInvitation(row)
}

// GetPendingByOrgAndEmail returns an unaccepted, unexpired invitation for the
// org and email, or nil if none exists.
func (r *PostgresRepository) GetPendingByOrgAndEmail(ctx context.Context, orgID, email string) (*domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE org_id = $1 AND email = $2 AND accepted_at IS NULL AND expires_at > now()
		 ORDER BY created_at DESC LIMIT 1`,
		orgID, email)
	return scanInvitation(row)
}

// ListByOrg returns all invitations for the org, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Create persists the invitation. The invitation must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, org_id, email, role, token_hash, invited_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.OrgID, i.Email, i.Role, i.TokenHash, i.InvitedBy, i.ExpiresAt, i.CreatedAt,
	)
	return err
}

// MarkAccepted records the acceptance time for the invitation.
func (r *PostgresRepository) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL`,
		id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row *sql.Row) (*domain.Invitation, error) {
	inv, err := scanInvitationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

func scanInvitationRow(row rowScanner) (*domain.Invitation, error) {
	var (
		i        domain.Invitation
		accepted sql.NullTime
	)
	err := row.Scan(&i.ID, &i.OrgID, &i.Email, &i.Role, &i.TokenHash,
		&i.InvitedBy, &i.ExpiresAt, &accepted, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	if accepted.Valid {
		t := accepted.Time
		i.AcceptedAt = &t
	}
	return &i, nil
}
