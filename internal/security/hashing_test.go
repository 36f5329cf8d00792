package security

import (
	"strings"
	"testing"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash([]byte("correct horse battery"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash %q is not bcrypt", hash)
	}
	if err := h.Compare(hash, []byte("correct horse battery")); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong password")); err == nil {
		t.Fatal("Compare accepted wrong password")
	}
}

func TestHasherClampsCost(t *testing.T) {
	if got := NewHasher(0).Cost; got < 4 {
		t.Errorf("zero cost clamped to %d, want >= MinCost", got)
	}
	if got := NewHasher(99).Cost; got > 31 {
		t.Errorf("oversized cost clamped to %d, want <= MaxCost", got)
	}
	if got := NewHasher(12).Cost; got != 12 {
		t.Errorf("cost = %d, want 12", got)
	}
}
