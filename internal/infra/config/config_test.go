package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HEARTH_DB_PATH", "")
	t.Setenv("HEARTH_BACKENDS_PATH", "")
	t.Setenv("HEARTH_CREDENTIAL_SECRET", "")

	cfg := Load()

	if cfg.DBPath != "./data/hearth.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.BackendsPath != "./data/backends.yaml" {
		t.Errorf("BackendsPath = %q, want default", cfg.BackendsPath)
	}
	if cfg.CredentialSecret != "" {
		t.Errorf("CredentialSecret = %q, want empty (no default)", cfg.CredentialSecret)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HEARTH_DB_PATH", "/tmp/custom.db")
	t.Setenv("HEARTH_CREDENTIAL_SECRET", "s3cret")

	cfg := Load()

	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("DBPath = %q, want /tmp/custom.db", cfg.DBPath)
	}
	if cfg.CredentialSecret != "s3cret" {
		t.Errorf("CredentialSecret = %q, want s3cret", cfg.CredentialSecret)
	}
}
