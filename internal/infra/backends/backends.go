// Package backends is the registry of configured LLM backends and their
// credentials. Backends live in a YAML file next to the database; API keys are
// stored encrypted (scrypt-derived key + XChaCha20-Poly1305) and only decrypted
// at call time, so the plaintext never touches the conversation store or logs.
package backends

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Backend describes one configured LLM backend.
type Backend struct {
	ID      string   `yaml:"id"`
	Kind    string   `yaml:"kind"` // "anthropic" | "openai" | "gemini"
	Name    string   `yaml:"name"`
	BaseURL string   `yaml:"base_url"`
	Models  []string `yaml:"models"`
	// APIKey is the base64 encryption envelope, never the plaintext.
	APIKey string `yaml:"api_key,omitempty"`
}

var (
	// ErrNotFound is returned when no backend exists under the requested id.
	ErrNotFound = errors.New("backend not found")
	// ErrNoCredential is returned when a backend has no stored API key.
	ErrNoCredential = errors.New("backend has no credential configured")
)

// Registry loads and serves backend descriptors from a YAML file.
type Registry struct {
	mu     sync.RWMutex
	path   string
	secret string
	items  []Backend
}

// registryFile is the on-disk YAML document shape.
type registryFile struct {
	Backends []Backend `yaml:"backends"`
}

// Load reads the registry file at path. A missing file yields an empty
// registry (first launch), not an error. secret is the master secret used to
// seal and unseal API keys.
func Load(path, secret string) (*Registry, error) {
	r := &Registry{path: path, secret: secret}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backends: read %q: %w", path, err)
	}

	var doc registryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("backends: parse %q: %w", path, err)
	}
	r.items = doc.Backends
	return r, nil
}

// List returns all configured backends. API key envelopes are blanked out —
// callers that need the plaintext go through DecryptCredential.
func (r *Registry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, len(r.items))
	copy(out, r.items)
	for i := range out {
		out[i].APIKey = ""
	}
	return out
}

// Get returns the backend under id, or ErrNotFound.
// The returned copy has its API key envelope blanked out.
func (r *Registry) Get(id string) (*Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.items {
		if b.ID == id {
			b.APIKey = ""
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

// DecryptCredential unseals and returns the plaintext API key for backend id.
func (r *Registry) DecryptCredential(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.items {
		if b.ID != id {
			continue
		}
		if b.APIKey == "" {
			return "", ErrNoCredential
		}
		plaintext, err := decrypt(b.APIKey, r.secret)
		if err != nil {
			return "", fmt.Errorf("backends: decrypt credential for %q: %w", id, err)
		}
		return plaintext, nil
	}
	return "", ErrNotFound
}

// SetCredential seals plaintext under the master secret, stores it on backend
// id, and persists the registry file.
func (r *Registry) SetCredential(id, plaintext string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID != id {
			continue
		}
		envelope, err := encrypt(plaintext, r.secret)
		if err != nil {
			return fmt.Errorf("backends: encrypt credential for %q: %w", id, err)
		}
		r.items[i].APIKey = envelope
		return r.save()
	}
	return ErrNotFound
}

// Upsert adds or replaces a backend descriptor (matched by ID) and persists
// the registry file. A stored credential survives a descriptor update.
func (r *Registry) Upsert(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == b.ID {
			if b.APIKey == "" {
				b.APIKey = r.items[i].APIKey
			}
			r.items[i] = b
			return r.save()
		}
	}
	r.items = append(r.items, b)
	return r.save()
}

// save writes the registry file atomically (temp file + rename).
// Caller must hold the write lock.
func (r *Registry) save() error {
	data, err := yaml.Marshal(registryFile{Backends: r.items})
	if err != nil {
		return fmt.Errorf("backends: marshal: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backends: create dir %q: %w", dir, err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("backends: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("backends: rename %q: %w", tmp, err)
	}
	return nil
}
