// Credential sealing: scrypt key derivation + XChaCha20-Poly1305 AEAD.
// Envelope layout (base64, standard encoding): salt(16) || nonce(24) || ciphertext.
// A fresh salt and nonce are drawn per seal, so re-encrypting the same key
// never produces the same envelope.
package backends

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const saltSize = 16

// scrypt parameters: interactive-grade (the secret is unlocked once per launch).
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrNoSecret is returned when sealing or unsealing is attempted without a
// master secret configured (HEARTH_CREDENTIAL_SECRET).
var ErrNoSecret = errors.New("credential secret not configured")

// encrypt seals plaintext under the master secret and returns the base64 envelope.
func encrypt(plaintext, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("draw salt: %w", err)
	}

	aead, err := newAEAD(secret, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("draw nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	envelope := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, sealed...)
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// decrypt unseals a base64 envelope produced by encrypt.
func decrypt(envelope, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("envelope too short (%d bytes)", len(raw))
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := raw[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := newAEAD(secret, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open envelope: %w", err)
	}
	return string(plaintext), nil
}

// newAEAD derives a 32-byte key from secret+salt and builds the XChaCha20 AEAD.
func newAEAD(secret string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
