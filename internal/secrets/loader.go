package secrets

import "github.com/Strob0t/ReviewForge/internal/config"

// ConfigLoader re-reads the configuration hierarchy (defaults, the YAML file
// at path, environment) and extracts the rotatable credentials.
func ConfigLoader(path string) Loader {
	return func() (map[string]string, error) {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return nil, err
		}
		return FromConfig(cfg), nil
	}
}

// FromConfig returns the non-empty credentials of cfg.
func FromConfig(cfg *config.Config) map[string]string {
	vals := make(map[string]string, 2)
	if cfg.LiteLLM.MasterKey != "" {
		vals[LiteLLMMasterKey] = cfg.LiteLLM.MasterKey
	}
	if cfg.MCP.APIKey != "" {
		vals[MCPAPIKey] = cfg.MCP.APIKey
	}
	return vals
}
