package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenant-platform/backend/internal/security"
)

// Sentinel errors for session operations. Token-intrinsic failures
// (security.ErrTokenExpired, ErrTokenMalformed, ErrTokenSignatureInvalid)
// pass through unchanged and never mutate state.
var (
	// ErrSessionInvalidated is returned when a token's version or refresh
	// hash no longer matches the store: the caller must re-authenticate.
	// Always safe to surface as "please log in again".
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrStoreUnavailable is returned when the backing store fails. It is
	// retryable and is never conflated with token reuse.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// TokenPair is the result of IssueInitial and Rotate.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresInSeconds int64  `json:"expires_in"`
}

// Principal carries the identity fields the manager needs at initial issuance.
// TokenVersion must be the principal's current stored value; Claims are
// snapshotted into the access token and not kept fresh afterwards.
type Principal struct {
	ID           string
	TokenVersion int64
	Claims       security.ContextClaims
}

// ContextResolver supplies current context claims for a principal when a new
// access token is minted during rotation. Mirrors the profile re-read the
// route layer would otherwise do. May be nil; then rotated access tokens
// carry no context claims.
type ContextResolver interface {
	ResolveContext(ctx context.Context, principalID string) (security.ContextClaims, error)
}

// EventSink receives security-relevant events. Implementations must be
// best-effort and non-blocking; the manager does not check for errors.
type EventSink interface {
	// TokenRotated fires after a successful refresh rotation.
	TokenRotated(ctx context.Context, principalID string)
	// TokenReuseDetected fires when a refresh token is presented after it was
	// already rotated away, which is treated as presumptive compromise.
	TokenReuseDetected(ctx context.Context, principalID string)
}

// Manager orchestrates token issuance, verification, rotation, and
// invalidation. It holds no mutable state of its own; every mutation goes
// through the Store's atomic primitives, so a single Manager is safe for
// concurrent use from any number of request handlers.
type Manager struct {
	tokens   *security.TokenProvider
	store    Store
	resolver ContextResolver
	events   EventSink
}

// NewManager returns a Manager using the given signer and store. resolver and
// events may be nil.
func NewManager(tokens *security.TokenProvider, store Store, resolver ContextResolver, events EventSink) *Manager {
	return &Manager{tokens: tokens, store: store, resolver: resolver, events: events}
}

// IssueInitial creates a fresh token pair after authentication has succeeded
// (password or OAuth; authentication itself is the caller's concern). The
// new refresh hash unconditionally supersedes any previous session.
func (m *Manager) IssueInitial(ctx context.Context, p Principal) (*TokenPair, error) {
	access, accessExp, err := m.tokens.IssueAccess(p.ID, p.TokenVersion, p.Claims, 0)
	if err != nil {
		return nil, err
	}
	refresh, _, err := m.tokens.IssueRefresh(p.ID, p.TokenVersion)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetInitialSession(ctx, p.ID, security.HashToken(refresh)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresInSeconds: int64(time.Until(accessExp).Seconds()),
	}, nil
}

// VerifyAccess verifies the token's signature and expiry, then checks that
// its embedded token version equals the principal's current stored version.
// Any mismatch, higher or lower, fails with ErrSessionInvalidated: a
// principal can only present tokens minted under the current version.
func (m *Manager) VerifyAccess(ctx context.Context, signedToken string) (*security.AccessClaims, error) {
	claims, err := m.tokens.VerifyAccess(signedToken)
	if err != nil {
		return nil, err
	}
	version, err := m.store.ReadTokenVersion(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if version != claims.TokenVersion {
		return nil, ErrSessionInvalidated
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a new token pair, atomically
// superseding the presented token. Presenting a refresh token that was
// already rotated away poisons the whole session family: the token version is
// bumped, every outstanding token dies, and a security event is emitted.
// Store failures surface as ErrStoreUnavailable and never trigger
// invalidation.
func (m *Manager) Rotate(ctx context.Context, presentedRefreshToken string) (*TokenPair, error) {
	claims, err := m.tokens.VerifyRefresh(presentedRefreshToken)
	if err != nil {
		return nil, err
	}
	principalID := claims.Subject
	presentedHash := security.HashToken(presentedRefreshToken)

	version, err := m.store.ReadTokenVersion(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if version != claims.TokenVersion {
		// Token minted under a superseded version: same response as a
		// confirmed replay.
		return nil, m.handleReuse(ctx, principalID)
	}

	newRefresh, _, err := m.tokens.IssueRefresh(principalID, version)
	if err != nil {
		return nil, err
	}
	swapped, err := m.store.CASRotate(ctx, principalID, presentedHash, security.HashToken(newRefresh))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !swapped {
		// The stored hash moved away from this token: it was already used
		// once, so this call is a replay.
		return nil, m.handleReuse(ctx, principalID)
	}

	cc := security.ContextClaims{}
	if m.resolver != nil {
		cc, err = m.resolver.ResolveContext(ctx, principalID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	access, accessExp, err := m.tokens.IssueAccess(principalID, version, cc, 0)
	if err != nil {
		return nil, err
	}
	if m.events != nil {
		m.events.TokenRotated(ctx, principalID)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     newRefresh,
		ExpiresInSeconds: int64(time.Until(accessExp).Seconds()),
	}, nil
}

// handleReuse invalidates the principal's whole session family and emits a
// security event. One confirmed reuse of a refresh token is treated as
// presumptive compromise; a lone network retry that resends an
// already-rotated token gets the same treatment on purpose.
func (m *Manager) handleReuse(ctx context.Context, principalID string) error {
	if err := m.store.InvalidateAll(ctx, principalID); err != nil {
		// The replayed token is rejected either way, but the family is not
		// poisoned yet; report retryable so the caller comes back.
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if m.events != nil {
		m.events.TokenReuseDetected(ctx, principalID)
	}
	return ErrSessionInvalidated
}

// Logout invalidates all of the principal's tokens. Idempotent: logging out
// an already logged-out principal bumps the version again and succeeds.
func (m *Manager) Logout(ctx context.Context, principalID string) error {
	if err := m.store.InvalidateAll(ctx, principalID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
