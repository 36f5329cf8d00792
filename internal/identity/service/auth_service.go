package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	identitydomain "tenant-platform/backend/internal/identity/domain"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	principaldomain "tenant-platform/backend/internal/principal/domain"
	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/session"
)

// Sentinel errors for auth service; handler maps them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDisabled        = errors.New("account disabled")
)

// PrincipalRepo is the minimal principal repository needed by the auth service.
type PrincipalRepo interface {
	GetByID(ctx context.Context, id string) (*principaldomain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*principaldomain.Principal, error)
	Create(ctx context.Context, p *principaldomain.Principal) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByPrincipalAndProvider(ctx context.Context, principalID string, provider identitydomain.Provider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// OrgRepo is the minimal organization repository needed to stamp org context
// into access tokens.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// VerifiedPrincipal is what an OAuth provider attests about the caller after
// the provider-side token exchange, which happens outside this service.
type VerifiedPrincipal struct {
	Subject string
	Email   string
	Name    string
}

// OAuthVerifier validates a provider-issued credential and returns the
// attested identity. Implementations talk to the provider; the auth service
// only trusts the result.
type OAuthVerifier interface {
	Verify(ctx context.Context, provider identitydomain.Provider, providerToken string) (*VerifiedPrincipal, error)
}

// AuthService implements register, password login, OAuth login/link, and logout.
// Token issuance and invalidation are delegated to the session manager.
type AuthService struct {
	principals PrincipalRepo
	identities IdentityRepo
	orgs       OrgRepo
	hasher     *security.Hasher
	sessions   *session.Manager
	oauth      OAuthVerifier
}

// NewAuthService returns an AuthService with the given dependencies.
// oauth may be nil when no external providers are configured.
func NewAuthService(
	principals PrincipalRepo,
	identities IdentityRepo,
	orgs OrgRepo,
	hasher *security.Hasher,
	sessions *session.Manager,
	oauth OAuthVerifier,
) *AuthService {
	return &AuthService{
		principals: principals,
		identities: identities,
		orgs:       orgs,
		hasher:     hasher,
		sessions:   sessions,
		oauth:      oauth,
	}
}

// Register creates a principal and local identity with the given email and
// password. Returns the new principal's ID; the caller must Login to get tokens.
func (s *AuthService) Register(ctx context.Context, email, password, username string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	existing, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrEmailAlreadyRegistered
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email[:strings.IndexByte(email, '@')]
	}
	now := time.Now().UTC()
	p := &principaldomain.Principal{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		Role:      principaldomain.RoleMember,
		Status:    principaldomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return "", err
	}
	ident := &identitydomain.Identity{
		ID:           uuid.New().String(),
		PrincipalID:  p.ID,
		Provider:     identitydomain.ProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return "", err
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Login authenticates with email/password and returns a fresh token pair.
// Any previously active session for the principal is superseded.
func (s *AuthService) Login(ctx context.Context, email, password string) (*session.TokenPair, *principaldomain.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}
	p, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if p.Status != principaldomain.StatusActive {
		return nil, nil, ErrAccountDisabled
	}
	ident, err := s.identities.GetByPrincipalAndProvider(ctx, p.ID, identitydomain.ProviderLocal)
	if err != nil {
		return nil, nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	return s.issueFor(ctx, p)
}

// LoginOAuth authenticates via an external provider credential. An unknown
// email registers a new principal; a known principal without an identity for
// the provider gets one linked.
func (s *AuthService) LoginOAuth(ctx context.Context, provider identitydomain.Provider, providerToken string) (*session.TokenPair, *principaldomain.Principal, error) {
	if s.oauth == nil {
		return nil, nil, ErrInvalidCredentials
	}
	verified, err := s.oauth.Verify(ctx, provider, providerToken)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	email := strings.TrimSpace(strings.ToLower(verified.Email))
	if err := validateEmail(email); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	p, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	if p == nil {
		username := strings.TrimSpace(verified.Name)
		if username == "" {
			username = email[:strings.IndexByte(email, '@')]
		}
		p = &principaldomain.Principal{
			ID:        uuid.New().String(),
			Email:     email,
			Username:  username,
			Role:      principaldomain.RoleMember,
			Status:    principaldomain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.principals.Create(ctx, p); err != nil {
			return nil, nil, err
		}
	}
	if p.Status != principaldomain.StatusActive {
		return nil, nil, ErrAccountDisabled
	}
	ident, err := s.identities.GetByPrincipalAndProvider(ctx, p.ID, provider)
	if err != nil {
		return nil, nil, err
	}
	if ident == nil {
		ident = &identitydomain.Identity{
			ID:          uuid.New().String(),
			PrincipalID: p.ID,
			Provider:    provider,
			ProviderID:  verified.Subject,
			CreatedAt:   now,
		}
		if err := s.identities.Create(ctx, ident); err != nil {
			return nil, nil, err
		}
	} else if ident.ProviderID != verified.Subject {
		return nil, nil, ErrInvalidCredentials
	}
	return s.issueFor(ctx, p)
}

// Logout invalidates every outstanding token for the principal. Safe to call
// when no session is active.
func (s *AuthService) Logout(ctx context.Context, principalID string) error {
	return s.sessions.Logout(ctx, principalID)
}

func (s *AuthService) issueFor(ctx context.Context, p *principaldomain.Principal) (*session.TokenPair, *principaldomain.Principal, error) {
	cc := security.ContextClaims{Role: string(p.Role), OrgID: p.OrgID}
	if p.OrgID != "" && s.orgs != nil {
		org, err := s.orgs.GetOrganizationByID(ctx, p.OrgID)
		if err != nil {
			return nil, nil, err
		}
		if org != nil {
			cc.OrgName = org.Name
		}
	}
	pair, err := s.sessions.IssueInitial(ctx, session.Principal{
		ID:           p.ID,
		TokenVersion: p.TokenVersion,
		Claims:       cc,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}
	return pair, p, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
