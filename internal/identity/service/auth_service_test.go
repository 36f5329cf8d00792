package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	identitydomain "tenant-platform/backend/internal/identity/domain"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	principaldomain "tenant-platform/backend/internal/principal/domain"
	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/session"
	sessionrepo "tenant-platform/backend/internal/session/repository"
)

type memPrincipalRepo struct {
	mu      sync.Mutex
	byID    map[string]*principaldomain.Principal
	byEmail map[string]*principaldomain.Principal
}

func newMemPrincipalRepo() *memPrincipalRepo {
	return &memPrincipalRepo{
		byID:    make(map[string]*principaldomain.Principal),
		byEmail: make(map[string]*principaldomain.Principal),
	}
}

func (r *memPrincipalRepo) GetByID(ctx context.Context, id string) (*principaldomain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memPrincipalRepo) GetByEmail(ctx context.Context, email string) (*principaldomain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memPrincipalRepo) Create(ctx context.Context, p *principaldomain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	r.byEmail[p.Email] = p
	return nil
}

type memIdentityRepo struct {
	mu sync.Mutex
	m  map[string]*identitydomain.Identity
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{m: make(map[string]*identitydomain.Identity)}
}

func (r *memIdentityRepo) GetByPrincipalAndProvider(ctx context.Context, principalID string, provider identitydomain.Provider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if i.PrincipalID == principalID && i.Provider == provider {
			return i, nil
		}
	}
	return nil, nil
}

func (r *memIdentityRepo) Create(ctx context.Context, i *identitydomain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[i.ID] = i
	return nil
}

type memOrgRepo struct {
	mu sync.Mutex
	m  map[string]*orgdomain.Org
}

func (r *memOrgRepo) GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

type staticVerifier struct {
	subject string
	email   string
	name    string
	err     error
}

func (v *staticVerifier) Verify(ctx context.Context, provider identitydomain.Provider, providerToken string) (*VerifiedPrincipal, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &VerifiedPrincipal{Subject: v.subject, Email: v.email, Name: v.name}, nil
}

type authFixture struct {
	svc        *AuthService
	principals *memPrincipalRepo
	identities *memIdentityRepo
	orgs       *memOrgRepo
	sessions   *session.Manager
	tokens     *security.TokenProvider
}

func newAuthFixture(t *testing.T, oauth OAuthVerifier) *authFixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	principals := newMemPrincipalRepo()
	identities := newMemIdentityRepo()
	orgs := &memOrgRepo{m: make(map[string]*orgdomain.Org)}
	store := sessionrepo.NewMemoryStore()
	mgr := session.NewManager(tokens, store, NewClaimsResolver(principals, orgs), nil)
	svc := NewAuthService(principals, identities, orgs, security.NewHasher(4), mgr, oauth)
	return &authFixture{svc: svc, principals: principals, identities: identities, orgs: orgs, sessions: mgr, tokens: tokens}
}

const goodPassword = "Sup3r-secret-pw!"

func TestRegisterThenLogin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, "Alice@Example.com", goodPassword, "alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatal("Register returned empty principal id")
	}

	pair, p, err := f.svc.Login(ctx, "alice@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if p.ID != id {
		t.Fatalf("Login principal = %s, want %s", p.ID, id)
	}
	claims, err := f.sessions.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess on fresh login token: %v", err)
	}
	if claims.Subject != id {
		t.Fatalf("access subject = %s, want %s", claims.Subject, id)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "bob@example.com", goodPassword, "bob"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.svc.Register(ctx, "bob@example.com", goodPassword, "bob2")
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("second Register error = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"bad email", "not-an-email", goodPassword},
		{"short password", "a@example.com", "Short1!"},
		{"no symbol", "a@example.com", "NoSymbolsHere123"},
		{"no upper", "a@example.com", "lowercase-only-123!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Register(ctx, tc.email, tc.password, "x"); err == nil {
				t.Fatal("Register accepted invalid input")
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "carol@example.com", goodPassword, "carol"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, _, err := f.svc.Login(ctx, "carol@example.com", "Wrong-password-99!")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, _, err := f.svc.Login(context.Background(), "nobody@example.com", goodPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, "dave@example.com", goodPassword, "dave")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.principals.byID[id].Status = principaldomain.StatusDisabled

	_, _, err = f.svc.Login(ctx, "dave@example.com", goodPassword)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("Login error = %v, want ErrAccountDisabled", err)
	}
}

func TestLoginStampsOrgContext(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	f.orgs.m["org-1"] = &orgdomain.Org{ID: "org-1", Name: "Acme", Slug: "acme", CreatedAt: time.Now().UTC()}
	id, err := f.svc.Register(ctx, "erin@example.com", goodPassword, "erin")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	p := f.principals.byID[id]
	p.OrgID = "org-1"
	p.Role = principaldomain.RoleAdmin

	pair, _, err := f.svc.Login(ctx, "erin@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := f.sessions.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.OrgID != "org-1" || claims.OrgName != "Acme" || claims.Role != "admin" {
		t.Fatalf("claims = %+v, want org-1/Acme/admin", claims)
	}
}

func TestLoginSupersedesSession(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "frank@example.com", goodPassword, "frank"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	first, _, err := f.svc.Login(ctx, "frank@example.com", goodPassword)
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "frank@example.com", goodPassword); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if _, err := f.sessions.Rotate(ctx, first.RefreshToken); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("Rotate with superseded refresh token error = %v, want ErrSessionInvalidated", err)
	}
}

func TestLogoutInvalidatesTokens(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, "gina@example.com", goodPassword, "gina")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, _, err := f.svc.Login(ctx, "gina@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Logout(ctx, id); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.sessions.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("VerifyAccess after Logout error = %v, want ErrSessionInvalidated", err)
	}
}

func TestLoginOAuthRegistersNewPrincipal(t *testing.T) {
	v := &staticVerifier{subject: "google-sub-1", email: "henry@example.com", name: "henry"}
	f := newAuthFixture(t, v)
	ctx := context.Background()

	pair, p, err := f.svc.LoginOAuth(ctx, identitydomain.ProviderGoogle, "provider-token")
	if err != nil {
		t.Fatalf("LoginOAuth: %v", err)
	}
	if p.Email != "henry@example.com" {
		t.Fatalf("principal email = %s", p.Email)
	}
	if _, err := f.sessions.VerifyAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	ident, err := f.identities.GetByPrincipalAndProvider(ctx, p.ID, identitydomain.ProviderGoogle)
	if err != nil || ident == nil {
		t.Fatalf("google identity not created: %v", err)
	}
	if ident.ProviderID != "google-sub-1" {
		t.Fatalf("identity provider id = %s", ident.ProviderID)
	}
}

func TestLoginOAuthLinksExistingPrincipal(t *testing.T) {
	v := &staticVerifier{subject: "google-sub-2", email: "iris@example.com"}
	f := newAuthFixture(t, v)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, "iris@example.com", goodPassword, "iris")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, p, err := f.svc.LoginOAuth(ctx, identitydomain.ProviderGoogle, "provider-token")
	if err != nil {
		t.Fatalf("LoginOAuth: %v", err)
	}
	if p.ID != id {
		t.Fatalf("LoginOAuth principal = %s, want existing %s", p.ID, id)
	}
}

func TestLoginOAuthSubjectMismatch(t *testing.T) {
	v := &staticVerifier{subject: "sub-a", email: "judy@example.com"}
	f := newAuthFixture(t, v)
	ctx := context.Background()

	if _, _, err := f.svc.LoginOAuth(ctx, identitydomain.ProviderGoogle, "t"); err != nil {
		t.Fatalf("first LoginOAuth: %v", err)
	}
	v.subject = "sub-b"
	_, _, err := f.svc.LoginOAuth(ctx, identitydomain.ProviderGoogle, "t")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("LoginOAuth with changed subject error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginOAuthVerifierFailure(t *testing.T) {
	v := &staticVerifier{err: errors.New("provider said no")}
	f := newAuthFixture(t, v)
	_, _, err := f.svc.LoginOAuth(context.Background(), identitydomain.ProviderGoogle, "bad")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("LoginOAuth error = %v, want ErrInvalidCredentials", err)
	}
}

func TestClaimsResolverFreshRole(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, "kate@example.com", goodPassword, "kate")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, _, err := f.svc.Login(ctx, "kate@example.com", goodPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.principals.byID[id].Role = principaldomain.RoleOwner

	rotated, err := f.sessions.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	claims, err := f.sessions.VerifyAccess(ctx, rotated.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Role != "owner" {
		t.Fatalf("rotated role = %q, want owner (role change picked up on rotation)", claims.Role)
	}
}

func TestRegisterDerivesUsername(t *testing.T) {
	f := newAuthFixture(t, nil)
	id, err := f.svc.Register(context.Background(), "luke.s@example.com", goodPassword, "  ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got := f.principals.byID[id].Username
	if got != "luke.s" || strings.Contains(got, "@") {
		t.Fatalf("derived username = %q, want luke.s", got)
	}
}
