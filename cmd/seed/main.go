// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev principal (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"tenant-platform/backend/internal/config"
	"tenant-platform/backend/internal/db"
	identitydomain "tenant-platform/backend/internal/identity/domain"
	identityrepo "tenant-platform/backend/internal/identity/repository"
	membershipdomain "tenant-platform/backend/internal/membership/domain"
	membershiprepo "tenant-platform/backend/internal/membership/repository"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	organizationrepo "tenant-platform/backend/internal/organization/repository"
	principaldomain "tenant-platform/backend/internal/principal/domain"
	principalrepo "tenant-platform/backend/internal/principal/repository"
	"tenant-platform/backend/internal/security"
)

const (
	devEmail         = "dev@example.com"
	devPassword      = "Dev-password-123!"
	memberEmail      = "member@example.com"
	devPrincipalID   = "dev-principal-001"
	devPrincipal2ID  = "dev-principal-002"
	devIdentityID    = "dev-identity-001"
	devIdentity2ID   = "dev-identity-002"
	devOrgID         = "dev-org-001"
	devMembershipID  = "dev-membership-001"
	devMembership2ID = "dev-membership-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	principals := principalrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	orgs := organizationrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)

	existing, err := principals.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	if err := orgs.CreateOrganization(ctx, &orgdomain.Org{
		ID:        devOrgID,
		Name:      "Acme Dev",
		Slug:      "acme-dev",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create org: %v", err)
	}

	if err := principals.Create(ctx, &principaldomain.Principal{
		ID:        devPrincipalID,
		Email:     devEmail,
		Username:  "dev",
		Role:      principaldomain.RoleOwner,
		OrgID:     devOrgID,
		Status:    principaldomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create dev principal: %v", err)
	}

	if err := principals.Create(ctx, &principaldomain.Principal{
		ID:        devPrincipal2ID,
		Email:     memberEmail,
		Username:  "member",
		Role:      principaldomain.RoleMember,
		OrgID:     devOrgID,
		Status:    principaldomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create member principal: %v", err)
	}

	if err := identities.Create(ctx, &identitydomain.Identity{
		ID:           devIdentityID,
		PrincipalID:  devPrincipalID,
		Provider:     identitydomain.ProviderLocal,
		ProviderID:   devEmail,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}); err != nil {
		log.Fatalf("create dev identity: %v", err)
	}

	if err := identities.Create(ctx, &identitydomain.Identity{
		ID:           devIdentity2ID,
		PrincipalID:  devPrincipal2ID,
		Provider:     identitydomain.ProviderLocal,
		ProviderID:   memberEmail,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}); err != nil {
		log.Fatalf("create member identity: %v", err)
	}

	if err := memberships.CreateMembership(ctx, &membershipdomain.Membership{
		ID:          devMembershipID,
		PrincipalID: devPrincipalID,
		OrgID:       devOrgID,
		Role:        membershipdomain.RoleOwner,
		CreatedAt:   now,
	}); err != nil {
		log.Fatalf("create dev membership: %v", err)
	}

	if err := memberships.CreateMembership(ctx, &membershipdomain.Membership{
		ID:          devMembership2ID,
		PrincipalID: devPrincipal2ID,
		OrgID:       devOrgID,
		Role:        membershipdomain.RoleMember,
		CreatedAt:   now,
	}); err != nil {
		log.Fatalf("create member membership: %v", err)
	}

	log.Printf("Seed complete: org %s with %s (owner) and %s (member); password %q", devOrgID, devEmail, memberEmail, devPassword)
}
