// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import "os"

// Config holds runtime configuration for the hearthd core process.
type Config struct {
	// Storage
	DBPath         string // HEARTH_DB_PATH — default: "./data/hearth.db"
	BackendsPath   string // HEARTH_BACKENDS_PATH — default: "./data/backends.yaml"
	AttachmentsDir string // HEARTH_ATTACHMENTS_DIR — default: "./data/attachments"

	// CredentialSecret is the master secret used to encrypt API keys at rest.
	// HEARTH_CREDENTIAL_SECRET — no default; credential decryption fails without it.
	CredentialSecret string

	// PairingCode is the code the UI must present to pair with the daemon.
	// HEARTH_PAIRING_CODE — no default; the daemon generates and prints a
	// random code when unset.
	PairingCode string
}

const (
	envKeyDBPath           = "HEARTH_DB_PATH"
	envKeyBackendsPath     = "HEARTH_BACKENDS_PATH"
	envKeyAttachmentsDir   = "HEARTH_ATTACHMENTS_DIR"
	envKeyCredentialSecret = "HEARTH_CREDENTIAL_SECRET"
	envKeyPairingCode      = "HEARTH_PAIRING_CODE"
)

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return Config{
		DBPath:           envOr(envKeyDBPath, "./data/hearth.db"),
		BackendsPath:     envOr(envKeyBackendsPath, "./data/backends.yaml"),
		AttachmentsDir:   envOr(envKeyAttachmentsDir, "./data/attachments"),
		CredentialSecret: os.Getenv(envKeyCredentialSecret),
		PairingCode:      os.Getenv(envKeyPairingCode),
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
