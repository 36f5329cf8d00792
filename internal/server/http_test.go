package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/health"
	identitydomain "tenant-platform/backend/internal/identity/domain"
	identityhandler "tenant-platform/backend/internal/identity/handler"
	identityservice "tenant-platform/backend/internal/identity/service"
	invitationdomain "tenant-platform/backend/internal/invitation/domain"
	invitationhandler "tenant-platform/backend/internal/invitation/handler"
	invitationservice "tenant-platform/backend/internal/invitation/service"
	membershipdomain "tenant-platform/backend/internal/membership/domain"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	organizationhandler "tenant-platform/backend/internal/organization/handler"
	organizationservice "tenant-platform/backend/internal/organization/service"
	principaldomain "tenant-platform/backend/internal/principal/domain"
	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/session"
	sessionrepo "tenant-platform/backend/internal/session/repository"
	"tenant-platform/backend/internal/validate"
)

// In-memory repositories backing the full HTTP stack under test.

type memStore struct {
	mu          sync.Mutex
	principals  map[string]*principaldomain.Principal
	identities  map[string]*identitydomain.Identity
	orgs        map[string]*orgdomain.Org
	memberships map[string]*membershipdomain.Membership
	invitations map[string]*invitationdomain.Invitation
}

func newMemStore() *memStore {
	return &memStore{
		principals:  make(map[string]*principaldomain.Principal),
		identities:  make(map[string]*identitydomain.Identity),
		orgs:        make(map[string]*orgdomain.Org),
		memberships: make(map[string]*membershipdomain.Membership),
		invitations: make(map[string]*invitationdomain.Invitation),
	}
}

func (s *memStore) GetByID(ctx context.Context, id string) (*principaldomain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principals[id], nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*principaldomain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.principals {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memStore) Create(ctx context.Context, p *principaldomain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
	return nil
}

func (s *memStore) Update(ctx context.Context, p *principaldomain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
	return nil
}

func (s *memStore) GetByPrincipalAndProvider(ctx context.Context, principalID string, provider identitydomain.Provider) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.PrincipalID == principalID && i.Provider == provider {
			return i, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateIdentity(ctx context.Context, i *identitydomain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[i.ID] = i
	return nil
}

func (s *memStore) GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orgs[id], nil
}

func (s *memStore) GetOrganizationBySlug(ctx context.Context, slug string) (*orgdomain.Org, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orgs {
		if o.Slug == slug {
			return o, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateOrganization(ctx context.Context, o *orgdomain.Org) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
	return nil
}

func (s *memStore) UpdateOrganization(ctx context.Context, o *orgdomain.Org) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
	return nil
}

func (s *memStore) GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.PrincipalID == principalID && m.OrgID == orgID {
			return m, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*membershipdomain.Membership
	for _, m := range s.memberships {
		if m.OrgID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) CountOwnersByOrg(ctx context.Context, orgID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.Role == membershipdomain.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CreateMembership(ctx context.Context, m *membershipdomain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.ID] = m
	return nil
}

func (s *memStore) UpdateRole(ctx context.Context, principalID, orgID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.PrincipalID == principalID && m.OrgID == orgID {
			m.Role = role
			return m, nil
		}
	}
	return nil, nil
}

func (s *memStore) DeleteByPrincipalAndOrg(ctx context.Context, principalID, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.memberships {
		if m.PrincipalID == principalID && m.OrgID == orgID {
			delete(s.memberships, id)
		}
	}
	return nil
}

func (s *memStore) GetByTokenHash(ctx context.Context, tokenHash string) (*invitationdomain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invitations {
		if i.TokenHash == tokenHash {
			return i, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetPendingByOrgAndEmail(ctx context.Context, orgID, email string) (*invitationdomain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, i := range s.invitations {
		if i.OrgID == orgID && i.Email == email && i.Pending(now) {
			return i, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateInvitation(ctx context.Context, i *invitationdomain.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[i.ID] = i
	return nil
}

func (s *memStore) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.invitations[id]; ok && i.AcceptedAt == nil {
		t := at
		i.AcceptedAt = &t
	}
	return nil
}

// Interface adapters: the services take narrow repo interfaces with
// method names that collide across entities (Create).

type identityRepoAdapter struct{ *memStore }

func (a identityRepoAdapter) Create(ctx context.Context, i *identitydomain.Identity) error {
	return a.CreateIdentity(ctx, i)
}

type invitationRepoAdapter struct{ *memStore }

func (a invitationRepoAdapter) Create(ctx context.Context, i *invitationdomain.Invitation) error {
	return a.CreateInvitation(ctx, i)
}

type sinkSender struct {
	mu   sync.Mutex
	urls []string
}

func (s *sinkSender) SendInvitation(ctx context.Context, to, orgName, inviterName, acceptURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, acceptURL)
	return nil
}

func newTestApp(t *testing.T) (*appFixture, *memStore) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	store := newMemStore()
	sessStore := sessionrepo.NewMemoryStore()
	resolver := identityservice.NewClaimsResolver(store, store)
	sessions := session.NewManager(tokens, sessStore, resolver, nil)
	v := validate.New()

	authSvc := identityservice.NewAuthService(store, identityRepoAdapter{store}, store, security.NewHasher(4), sessions, nil)
	orgSvc := organizationservice.NewService(store, store, store)
	sender := &sinkSender{}
	inviteSvc := invitationservice.NewService(invitationRepoAdapter{store}, store, store, store, sender, nil,
		"https://app.example.com/invites/accept", time.Hour)

	app := New(Deps{
		Sessions:    sessions,
		Memberships: store,
		Auth:        identityhandler.NewAuthHandler(authSvc, sessions, v, nil, nil),
		Orgs:        organizationhandler.NewOrgHandler(orgSvc, v, nil, nil),
		Invites:     invitationhandler.NewInviteHandler(inviteSvc, v, nil, nil),
		Health:      health.NewHandler(nil, nil),
		Proxy:       nil,
	})
	return &appFixture{t: t, app: app, sender: sender}, store
}

type appFixture struct {
	t      *testing.T
	app    *fiber.App
	sender *sinkSender
}

func (f *appFixture) do(method, path, token string, body any) (int, map[string]any) {
	f.t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		f.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			f.t.Fatalf("%s %s: decoding %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

const testPassword = "Sup3r-secret-pw!"

func register(f *appFixture, email string) {
	f.t.Helper()
	code, body := f.do("POST", "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": testPassword, "username": "user",
	})
	if code != http.StatusCreated {
		f.t.Fatalf("register %s: status %d body %v", email, code, body)
	}
}

func login(f *appFixture, email string) (access, refresh string) {
	f.t.Helper()
	code, body := f.do("POST", "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": testPassword,
	})
	if code != http.StatusOK {
		f.t.Fatalf("login %s: status %d body %v", email, code, body)
	}
	access, _ = body["access_token"].(string)
	refresh, _ = body["refresh_token"].(string)
	if access == "" || refresh == "" {
		f.t.Fatalf("login %s: missing tokens in %v", email, body)
	}
	return access, refresh
}

func TestHealthEndpoint(t *testing.T) {
	f, _ := newTestApp(t)
	code, body := f.do("GET", "/health", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", code, body)
	}
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	f, _ := newTestApp(t)
	register(f, "alice@example.com")
	access, _ := login(f, "alice@example.com")

	code, _ := f.do("POST", "/api/v1/auth/logout", access, nil)
	if code != http.StatusOK {
		t.Fatalf("logout: status %d", code)
	}
	// The access token is dead after logout.
	code, body := f.do("POST", "/api/v1/auth/logout", access, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("logout with invalidated token: status %d body %v", code, body)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	f, _ := newTestApp(t)
	register(f, "bob@example.com")
	_, refresh := login(f, "bob@example.com")

	code, body := f.do("POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if code != http.StatusOK {
		t.Fatalf("refresh: status %d body %v", code, body)
	}
	newAccess, _ := body["access_token"].(string)
	if newAccess == "" {
		t.Fatalf("refresh response missing access token: %v", body)
	}

	// Replaying the now-rotated token poisons the family.
	code, _ = f.do("POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: status %d, want 401", code)
	}
	// The freshly rotated access token is dead too.
	code, _ = f.do("POST", "/api/v1/auth/logout", newAccess, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("access token after replay: status %d, want 401", code)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	f, _ := newTestApp(t)
	code, _ := f.do("POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": "garbage"})
	if code != http.StatusUnauthorized {
		t.Fatalf("garbage refresh: status %d, want 401", code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	f, _ := newTestApp(t)
	code, _ := f.do("POST", "/api/v1/orgs/", "", map[string]string{"name": "Acme", "slug": "acme"})
	if code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated org create: status %d, want 401", code)
	}
}

func TestOrgAndInvitationFlow(t *testing.T) {
	f, store := newTestApp(t)
	register(f, "owner@example.com")
	register(f, "member@example.com")
	ownerAccess, _ := login(f, "owner@example.com")

	code, body := f.do("POST", "/api/v1/orgs/", ownerAccess, map[string]string{
		"name": "Acme Corp", "slug": "acme",
	})
	if code != http.StatusCreated {
		t.Fatalf("create org: status %d body %v", code, body)
	}
	orgID, _ := body["id"].(string)
	if orgID == "" {
		t.Fatalf("org response missing id: %v", body)
	}

	code, body = f.do("POST", "/api/v1/orgs/"+orgID+"/invitations", ownerAccess, map[string]string{
		"email": "member@example.com", "role": "member",
	})
	if code != http.StatusCreated {
		t.Fatalf("create invite: status %d body %v", code, body)
	}
	if len(f.sender.urls) != 1 {
		t.Fatalf("expected 1 invitation email, got %d", len(f.sender.urls))
	}
	u, err := url.Parse(f.sender.urls[0])
	if err != nil {
		t.Fatalf("parsing accept URL: %v", err)
	}
	token := u.Query().Get("token")

	memberAccess, _ := login(f, "member@example.com")
	code, body = f.do("POST", "/api/v1/invitations/accept", memberAccess, map[string]string{"token": token})
	if code != http.StatusOK {
		t.Fatalf("accept invite: status %d body %v", code, body)
	}
	if body["org_id"] != orgID || body["role"] != "member" {
		t.Fatalf("accept response = %v", body)
	}

	code, body = f.do("GET", "/api/v1/orgs/"+orgID+"/members", ownerAccess, nil)
	if code != http.StatusOK {
		t.Fatalf("list members: status %d", code)
	}
	members, _ := body["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("member count = %d, want 2", len(members))
	}

	// The membership actually landed in storage.
	var invited *membershipdomain.Membership
	for _, m := range store.memberships {
		if m.OrgID == orgID && m.Role == membershipdomain.RoleMember {
			invited = m
		}
	}
	if invited == nil {
		t.Fatal("member membership not persisted")
	}
}

func TestOrgRoutesEnforceRoles(t *testing.T) {
	f, _ := newTestApp(t)
	register(f, "owner@example.com")
	register(f, "outsider@example.com")
	register(f, "member@example.com")
	ownerAccess, _ := login(f, "owner@example.com")

	code, body := f.do("POST", "/api/v1/orgs/", ownerAccess, map[string]string{
		"name": "Acme Corp", "slug": "acme",
	})
	if code != http.StatusCreated {
		t.Fatalf("create org: status %d body %v", code, body)
	}
	orgID, _ := body["id"].(string)

	// Non-members see nothing, not even the org itself.
	outsiderAccess, _ := login(f, "outsider@example.com")
	code, _ = f.do("GET", "/api/v1/orgs/"+orgID, outsiderAccess, nil)
	if code != http.StatusForbidden {
		t.Fatalf("outsider org get: status %d, want 403", code)
	}

	code, _ = f.do("POST", "/api/v1/orgs/"+orgID+"/invitations", ownerAccess, map[string]string{
		"email": "member@example.com", "role": "member",
	})
	if code != http.StatusCreated {
		t.Fatalf("create invite: status %d", code)
	}
	u, err := url.Parse(f.sender.urls[0])
	if err != nil {
		t.Fatalf("parsing accept URL: %v", err)
	}
	memberAccess, _ := login(f, "member@example.com")
	code, _ = f.do("POST", "/api/v1/invitations/accept", memberAccess, map[string]string{
		"token": u.Query().Get("token"),
	})
	if code != http.StatusOK {
		t.Fatalf("accept invite: status %d", code)
	}

	// Plain members can read but not administer.
	code, _ = f.do("GET", "/api/v1/orgs/"+orgID+"/members", memberAccess, nil)
	if code != http.StatusOK {
		t.Fatalf("member list members: status %d, want 200", code)
	}
	code, _ = f.do("POST", "/api/v1/orgs/"+orgID+"/invitations", memberAccess, map[string]string{
		"email": "other@example.com", "role": "member",
	})
	if code != http.StatusForbidden {
		t.Fatalf("member create invite: status %d, want 403", code)
	}
	code, _ = f.do("GET", "/api/v1/orgs/"+orgID+"/audit-logs", memberAccess, nil)
	if code != http.StatusForbidden {
		t.Fatalf("member audit logs: status %d, want 403", code)
	}
}
