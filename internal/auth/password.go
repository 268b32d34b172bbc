package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored bcrypt hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// FingerprintToken returns the one-way fingerprint stored for a refresh token.
// Signed JWTs exceed bcrypt's 72-byte input limit, so fingerprints use sha256.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyFingerprint reports whether the presented token matches the stored
// fingerprint. The comparison is constant time.
func VerifyFingerprint(token, storedFingerprint string) bool {
	if storedFingerprint == "" {
		return false
	}
	actual := FingerprintToken(token)
	if len(actual) != len(storedFingerprint) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(actual), []byte(storedFingerprint)) == 1
}
