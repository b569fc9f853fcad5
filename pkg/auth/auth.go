// Package auth provides pairing-code hashing and session JWT
// generation/parsing. It is a leaf package with no domain dependencies,
// used by internal/domain/auth and internal/api/middleware.
package auth

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the work factor for bcrypt. Pairing happens once per UI
// install, so a deliberately slow hash costs nothing in practice.
const BCryptCost = 12

// DefaultSessionExpiry is the session lifetime in hours when
// HEARTH_SESSION_EXPIRY is not set. Desktop sessions are long-lived; the UI
// should not demand re-pairing between app launches.
const DefaultSessionExpiry = 24 * 30

const (
	envSessionSecret = "HEARTH_SESSION_SECRET"
	envSessionExpiry = "HEARTH_SESSION_EXPIRY"
)

// getSessionSecret reads HEARTH_SESSION_SECRET from the environment. Panics if
// not set: the daemon seeds a random secret at startup, so an empty value here
// is a wiring bug, not a user error.
func getSessionSecret() []byte {
	secret := os.Getenv(envSessionSecret)
	if secret == "" {
		panic(envSessionSecret + " environment variable not set — cannot initialize auth")
	}
	return []byte(secret)
}

// parseSessionExpiry parses an expiry string (hours) into a Duration.
// Returns DefaultSessionExpiry for an empty or invalid value.
func parseSessionExpiry(expiryStr string) time.Duration {
	if expiryStr == "" {
		return time.Duration(DefaultSessionExpiry) * time.Hour
	}
	hours, err := strconv.Atoi(expiryStr)
	if err != nil {
		return time.Duration(DefaultSessionExpiry) * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

func getSessionExpiry() time.Duration {
	return parseSessionExpiry(os.Getenv(envSessionExpiry))
}

// HashPairingCode hashes a plaintext pairing code using bcrypt.
func HashPairingCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pairing code: %w", err)
	}
	return string(hash), nil
}

// VerifyPairingCode verifies a plaintext pairing code against a bcrypt hash.
// Returns false (not error) for malformed hashes so responses never leak hash
// format details.
func VerifyPairingCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// Claims are the session JWT claims. ClientID identifies one paired UI
// process; the rest are standard JWT claims.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed session token for a paired client.
func GenerateJWT(clientID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getSessionExpiry())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(getSessionSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ParseJWT validates and parses a session token, extracting claims.
// Returns an error for invalid, expired, or malformed tokens.
func ParseJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC-SHA256 is accepted (prevents algorithm substitution).
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getSessionSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}
	return claims, nil
}
