package payments

import (
	"encoding/json"
	"fmt"

	"github.com/yussieik/pazpaz-sub015/models"
	"github.com/yussieik/pazpaz-sub015/utils"
)

// Registry resolves a workspace's configured provider name to its adapter. The set
// of adapters is fixed at construction; there is no dynamic lookup.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(adapters ...Provider) *Registry {
	m := make(map[string]Provider, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{providers: m}
}

// Adapter returns the adapter registered under name, without touching credentials.
func (r *Registry) Adapter(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return p, nil
}

// Resolve returns the workspace's adapter together with its decrypted credentials.
// Credentials are decrypted here, at use time, and must not outlive the call chain
// they are handed to.
func (r *Registry) Resolve(cfg *models.WorkspacePaymentSettings) (Provider, Credentials, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, Credentials{}, ErrProviderNotConfigured
	}
	p, err := r.Adapter(cfg.Provider)
	if err != nil {
		return nil, Credentials{}, err
	}
	if cfg.CredentialsEnc == "" {
		return nil, Credentials{}, ErrProviderNotConfigured
	}
	plain, err := utils.Open(cfg.CredentialsEnc)
	if err != nil {
		return nil, Credentials{}, fmt.Errorf("decrypt provider credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, Credentials{}, fmt.Errorf("parse provider credentials: %w", err)
	}
	return p, creds, nil
}
