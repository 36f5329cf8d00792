package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps session state on the principals table, so the version
// check and hash swap ride on the same row the principal profile lives in.
// Atomicity comes from single-statement conditional updates; there is never a
// read-then-write from the caller's side.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store backed by the given db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ReadTokenVersion returns the principal's current token version.
func (s *PostgresStore) ReadTokenVersion(ctx context.Context, principalID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT token_version FROM principals WHERE id = $1`, principalID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("principal %s not found", principalID)
		}
		return 0, err
	}
	return version, nil
}

// ReadCurrentRefreshHash returns the stored refresh hash; ok=false when the
// principal has no active session.
func (s *PostgresStore) ReadCurrentRefreshHash(ctx context.Context, principalID string) (string, bool, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current_refresh_hash FROM principals WHERE id = $1`, principalID,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, fmt.Errorf("principal %s not found", principalID)
		}
		return "", false, err
	}
	if !hash.Valid {
		return "", false, nil
	}
	return hash.String, true, nil
}

// CASRotate swaps the stored hash in a single conditional UPDATE. The WHERE
// clause carries the expected hash, so concurrent rotations of the same token
// serialize at the row: exactly one statement reports an affected row.
func (s *PostgresStore) CASRotate(ctx context.Context, principalID, expectedOldHash, newHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE principals SET current_refresh_hash = $3, updated_at = now()
		 WHERE id = $1 AND current_refresh_hash = $2`,
		principalID, expectedOldHash, newHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvalidateAll bumps the token version and clears the hash in one statement.
func (s *PostgresStore) InvalidateAll(ctx context.Context, principalID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE principals SET token_version = token_version + 1,
		 current_refresh_hash = NULL, updated_at = now()
		 WHERE id = $1`,
		principalID,
	)
	return err
}

// SetInitialSession unconditionally sets the refresh hash.
func (s *PostgresStore) SetInitialSession(ctx context.Context, principalID, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE principals SET current_refresh_hash = $2, updated_at = now()
		 WHERE id = $1`,
		principalID, hash,
	)
	return err
}
