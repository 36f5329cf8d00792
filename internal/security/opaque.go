package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// opaqueSecretBytes is the entropy of generated opaque secrets (256 bits).
const opaqueSecretBytes = 32

// GenerateOpaque returns a fresh opaque secret and its storage hash. The
// plaintext comes from crypto/rand, base64url-encoded; only the hash is ever
// persisted.
func GenerateOpaque() (plaintext, storageHash string, err error) {
	b := make([]byte, opaqueSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(b)
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the SHA-256 hash of the token string, hex-encoded. It is
// deterministic so a presented token can be compared against the stored hash
// by recomputation, without storing anything reversible.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's
// hash with the stored hash. Returns true only if they match.
func TokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
