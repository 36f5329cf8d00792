package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures. Each kind is distinct so callers can react
// differently to an expired token versus a tampered one. None of these imply
// any store state change.
var (
	// ErrTokenExpired is returned when a token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token cannot be decoded at all.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when the signature does not verify.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// AccessClaims holds JWT claims for the access token. TokenVersion is copied
// from the principal at issuance and must equal the principal's current stored
// version for the token to be honored. Role, OrgID, and OrgName are snapshots
// taken at issuance and are not refreshed on later principal updates; callers
// needing the current role or org must re-fetch the principal.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenVersion int64  `json:"token_version"`
	Role         string `json:"role,omitempty"`
	OrgID        string `json:"org_id,omitempty"`
	OrgName      string `json:"org_name,omitempty"`
}

// RefreshClaims holds JWT claims for the refresh token. The jti is an opaque
// random secret from GenerateOpaque, so the token is unguessable independent
// of the signature.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenVersion int64 `json:"token_version"`
}

// ContextClaims are the caller-supplied claims snapshotted into access tokens.
type ContextClaims struct {
	Role    string
	OrgID   string
	OrgName string
}

// TokenProvider issues and verifies JWT access and refresh tokens using RS256
// or ES256. Access and refresh tokens are signed with separate key pairs so a
// refresh token can never be presented where an access token is expected.
// Verification is pure: it never consults any store.
type TokenProvider struct {
	accessKey     crypto.Signer
	accessPublic  crypto.PublicKey
	refreshKey    crypto.Signer
	refreshPublic crypto.PublicKey
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider signing access tokens with
// accessKey and refresh tokens with refreshKey (each RS256 or ES256).
func NewTokenProvider(accessKey crypto.Signer, accessPublic crypto.PublicKey, refreshKey crypto.Signer, refreshPublic crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		accessKey:     accessKey,
		accessPublic:  accessPublic,
		refreshKey:    refreshKey,
		refreshPublic: refreshPublic,
		issuer:        issuer,
		audience:      audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT for the principal with the given
// token version and snapshotted context claims. ttl overrides the configured
// access TTL when positive.
func (p *TokenProvider) IssueAccess(principalID string, tokenVersion int64, cc ContextClaims, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if ttl <= 0 {
		ttl = p.accessTTL
	}
	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenVersion: tokenVersion,
		Role:         cc.Role,
		OrgID:        cc.OrgID,
		OrgName:      cc.OrgName,
	}
	token, err = p.sign(p.accessKey, claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT bound to the given token
// version. The jti carries an opaque random secret so the token's storage
// hash is unguessable independent of the signature.
func (p *TokenProvider) IssueRefresh(principalID string, tokenVersion int64) (token string, expiresAt time.Time, err error) {
	secret, _, err := GenerateOpaque()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        secret,
			Subject:   principalID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenVersion: tokenVersion,
	}
	token, err = p.sign(p.refreshKey, claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(key crypto.Signer, claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch key.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrTokenMalformed
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(key)
}

// VerifyAccess parses and verifies an access token (signature, exp, iss, aud)
// against the access key. Returns the claims; freshness against the store is
// layered on top by the session manager.
func (p *TokenProvider) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims, p.accessPublic); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh parses and verifies a refresh token against the refresh key
// with the same discipline as access tokens.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims, p.refreshPublic); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims, pub crypto.PublicKey) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return pub, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return pub, nil
		}
		return nil, ErrTokenSignatureInvalid
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return classifyJWTError(err)
	}
	if !token.Valid {
		return ErrTokenSignatureInvalid
	}
	return nil
}

// classifyJWTError maps jwt/v5 errors onto the three token failure kinds.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
