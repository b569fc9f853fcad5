// Package auth implements UI pairing: a one-time code displayed by the daemon
// is exchanged for a long-lived session JWT. The code is kept only as a bcrypt
// hash in memory; pairing state does not survive a daemon restart.
package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgauth "github.com/hearthchat/hearth/pkg/auth"
)

// ErrInvalidCode is returned by Pair for a wrong pairing code. A single error
// regardless of failure detail keeps responses uniform.
var ErrInvalidCode = errors.New("invalid pairing code")

// PairResult is returned after a successful pairing.
type PairResult struct {
	Token    string
	ClientID string
}

// Service verifies pairing codes and issues session tokens.
type Service struct {
	codeHash string
}

// NewService hashes the pairing code and returns a ready service.
func NewService(pairingCode string) (*Service, error) {
	if pairingCode == "" {
		return nil, fmt.Errorf("auth: pairing code is empty")
	}
	hash, err := pkgauth.HashPairingCode(pairingCode)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return &Service{codeHash: hash}, nil
}

// Pair exchanges a pairing code for a session token. Each successful pairing
// mints a fresh client id; multiple UI processes can pair independently.
func (s *Service) Pair(code string) (*PairResult, error) {
	if !pkgauth.VerifyPairingCode(s.codeHash, code) {
		return nil, ErrInvalidCode
	}

	clientID := uuid.NewString()
	token, err := pkgauth.GenerateJWT(clientID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue session token: %w", err)
	}
	return &PairResult{Token: token, ClientID: clientID}, nil
}
