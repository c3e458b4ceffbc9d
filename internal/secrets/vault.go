// Package secrets holds the credentials that can be rotated without a
// restart. The serve command reloads them on SIGHUP.
package secrets

import (
	"fmt"
	"sort"
	"sync"
)

// Credential names.
const (
	LiteLLMMasterKey = "litellm.master_key"
	MCPAPIKey        = "mcp.api_key"
)

// Loader retrieves the current credential values.
type Loader func() (map[string]string, error)

// Vault holds credential values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the value of key, or an empty string if unset.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Source returns a func that reads key on every call, so holders observe
// reloads.
func (v *Vault) Source(key string) func() string {
	return func() string { return v.Get(key) }
}

// Redacted returns a loggable form of key's value: the first two characters
// followed by "****", fully masked when four characters or fewer.
func (v *Vault) Redacted(key string) string {
	val := v.Get(key)
	switch {
	case val == "":
		return ""
	case len(val) <= 4:
		return "****"
	default:
		return val[:2] + "****"
	}
}

// Keys returns the names that currently hold a value, sorted.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	vals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	return nil
}
