// Package session owns the authentication session lifecycle: issuance of
// access/refresh token pairs, atomic refresh rotation, reuse detection, and
// server-side invalidation. All per-principal mutable state lives behind the
// Store contract; the manager itself is stateless and safe for concurrent use.
package session

import "context"

// Store is the contract for the one piece of per-principal mutable session
// state: the token version (a monotonic counter) and the hash of the single
// currently valid refresh token. Implementations must make every method
// atomic at the storage layer; in particular CASRotate is a single
// compare-and-swap, never a read-then-write.
type Store interface {
	// ReadTokenVersion returns the principal's current token version.
	ReadTokenVersion(ctx context.Context, principalID string) (int64, error)

	// ReadCurrentRefreshHash returns the stored refresh token hash, with
	// ok=false when the principal has no active session.
	ReadCurrentRefreshHash(ctx context.Context, principalID string) (hash string, ok bool, err error)

	// CASRotate atomically swaps the stored refresh hash to newHash if and
	// only if it currently equals expectedOldHash. Returns false without any
	// side effect when the stored hash differs. This single primitive is what
	// makes concurrent refresh attempts with the same token safe: exactly one
	// caller wins.
	CASRotate(ctx context.Context, principalID, expectedOldHash, newHash string) (bool, error)

	// InvalidateAll atomically increments the token version and clears the
	// refresh hash, invalidating every outstanding token for the principal.
	InvalidateAll(ctx context.Context, principalID string) error

	// SetInitialSession unconditionally sets the refresh hash, superseding
	// any previous session. The token version is left unchanged.
	SetInitialSession(ctx context.Context, principalID, hash string) error
}
