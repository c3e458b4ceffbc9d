package secrets_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Strob0t/ReviewForge/internal/config"
	"github.com/Strob0t/ReviewForge/internal/secrets"
)

func TestNewVault_InitialLoad(t *testing.T) {
	v, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{secrets.MCPAPIKey: "val_a", secrets.LiteLLMMasterKey: "val_b"}, nil
	})
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}

	if got := v.Get(secrets.MCPAPIKey); got != "val_a" {
		t.Fatalf("expected 'val_a', got %q", got)
	}
	if got := v.Get(secrets.LiteLLMMasterKey); got != "val_b" {
		t.Fatalf("expected 'val_b', got %q", got)
	}
}

func TestNewVault_LoaderError(t *testing.T) {
	_, err := secrets.NewVault(func() (map[string]string, error) {
		return nil, errors.New("config unreadable")
	})
	if err == nil {
		t.Fatal("expected error from failing loader")
	}
}

func TestVault_GetMissingKey(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"EXIST": "yes"}, nil
	})
	if got := v.Get("MISSING"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
}

func TestVault_SourceObservesReload(t *testing.T) {
	callCount := 0
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		callCount++
		if callCount == 1 {
			return map[string]string{secrets.MCPAPIKey: "old"}, nil
		}
		return map[string]string{secrets.MCPAPIKey: "new"}, nil
	})
	key := v.Source(secrets.MCPAPIKey)

	if got := key(); got != "old" {
		t.Fatalf("expected 'old', got %q", got)
	}
	if err := v.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := key(); got != "new" {
		t.Fatalf("expected 'new' after reload, got %q", got)
	}
}

func TestVault_ReloadErrorPreservesValues(t *testing.T) {
	callCount := 0
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		callCount++
		if callCount == 1 {
			return map[string]string{"KEY": "original"}, nil
		}
		return nil, errors.New("config unreadable")
	})

	if err := v.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := v.Get("KEY"); got != "original" {
		t.Fatalf("expected 'original' after failed reload, got %q", got)
	}
}

func TestVault_ConcurrentAccess(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"K": "V"}, nil
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.Get("K")
		}()
		go func() {
			defer wg.Done()
			_ = v.Reload()
		}()
	}
	wg.Wait()
}

func TestVault_Redacted(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"API_KEY": "sk-abcdef123456", "SHORT": "ab"}, nil
	})

	if got := v.Redacted("API_KEY"); got != "sk****" {
		t.Errorf("expected 'sk****', got %q", got)
	}
	if got := v.Redacted("SHORT"); got != "****" {
		t.Errorf("expected '****', got %q", got)
	}
	if got := v.Redacted("MISSING"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestVault_KeysSorted(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"b": "2", "a": "1"}, nil
	})
	keys := v.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected [a b], got %v", keys)
	}
}

func TestFromConfigOmitsEmpty(t *testing.T) {
	cfg := config.Defaults()
	cfg.MCP.APIKey = "mcp-secret"

	vals := secrets.FromConfig(&cfg)
	if vals[secrets.MCPAPIKey] != "mcp-secret" {
		t.Fatalf("expected mcp key, got %q", vals[secrets.MCPAPIKey])
	}
	if _, ok := vals[secrets.LiteLLMMasterKey]; ok {
		t.Fatal("expected empty master key to be omitted")
	}
}

func TestConfigLoaderRereadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewforge.yaml")
	if err := os.WriteFile(path, []byte("mcp:\n  api_key: from-yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LITELLM_MASTER_KEY", "from-env")

	v, err := secrets.NewVault(secrets.ConfigLoader(path))
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	if got := v.Get(secrets.MCPAPIKey); got != "from-yaml" {
		t.Fatalf("expected 'from-yaml', got %q", got)
	}
	if got := v.Get(secrets.LiteLLMMasterKey); got != "from-env" {
		t.Fatalf("expected 'from-env', got %q", got)
	}

	if err := os.WriteFile(path, []byte("mcp:\n  api_key: rotated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := v.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := v.Get(secrets.MCPAPIKey); got != "rotated" {
		t.Fatalf("expected 'rotated', got %q", got)
	}
}

func TestConfigLoaderInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewforge.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := secrets.NewVault(secrets.ConfigLoader(path)); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
