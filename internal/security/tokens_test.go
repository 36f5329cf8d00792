package security

import (
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndVerifyAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	cc := ContextClaims{Role: "admin", OrgID: "org-1", OrgName: "Acme"}

	token, exp, err := p.IssueAccess("user-1", 3, cc, 0)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("access token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("token version = %d, want 3", claims.TokenVersion)
	}
	if claims.Role != "admin" || claims.OrgID != "org-1" || claims.OrgName != "Acme" {
		t.Errorf("context claims = %q/%q/%q", claims.Role, claims.OrgID, claims.OrgName)
	}
}

func TestTokenProvider_IssueAccessCustomTTL(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, exp, err := p.IssueAccess("user-1", 0, ContextClaims{}, 2*time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if got := time.Until(exp); got < 115*time.Minute || got > 125*time.Minute {
		t.Errorf("custom TTL not honored: expires in %v", got)
	}
}

func TestTokenProvider_IssueAndVerifyRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, exp, err := p.IssueRefresh("user-1", 7)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("refresh expires at in the past")
	}
	claims, err := p.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.TokenVersion != 7 {
		t.Errorf("token version = %d, want 7", claims.TokenVersion)
	}
	if claims.ID == "" {
		t.Error("refresh jti empty")
	}
}

func TestTokenProvider_RefreshJtiUnique(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	t1, _, err := p.IssueRefresh("user-1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	t2, _, err := p.IssueRefresh("user-1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if t1 == t2 {
		t.Error("two refresh tokens for same principal are identical")
	}
}

func TestTokenProvider_VerifyAccessRejectsRefreshToken(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	refresh, _, err := p.IssueRefresh("user-1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	// Signed with the refresh key; must not verify under the access key.
	if _, err := p.VerifyAccess(refresh); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Errorf("VerifyAccess(refresh token): want ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestTokenProvider_VerifyMalformed(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.VerifyAccess("not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("VerifyAccess malformed: want ErrTokenMalformed, got %v", err)
	}
	if _, err := p.VerifyRefresh(""); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("VerifyRefresh empty: want ErrTokenMalformed, got %v", err)
	}
}

func TestTokenProvider_VerifyExpired(t *testing.T) {
	p, err := NewTestTokenProviderTTL(-1*time.Minute, -1*time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTL: %v", err)
	}
	access, _, err := p.IssueAccess("user-1", 0, ContextClaims{}, -1*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(access); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccess expired: want ErrTokenExpired, got %v", err)
	}
	refresh, _, err := p.IssueRefresh("user-1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := p.VerifyRefresh(refresh); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyRefresh expired: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_VerifyWrongIssuer(t *testing.T) {
	p1, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	accessKey, _ := ParsePrivateKey(testPrivateKeyPEM)
	accessPub, _ := ParsePublicKey(testPublicKeyPEM)
	p2 := NewTokenProvider(accessKey, accessPub, accessKey, accessPub, "other-issuer", "test-audience", 15*time.Minute, 24*time.Hour)

	token, _, err := p2.IssueAccess("user-1", 0, ContextClaims{}, 0)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p1.VerifyAccess(token); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Errorf("wrong issuer: want ErrTokenSignatureInvalid, got %v", err)
	}
}
