package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "TTSU_SYNC_CONFIG"
	EnvClientID     = "TTSU_SYNC_CLIENT_ID"
	EnvClientSecret = "TTSU_SYNC_CLIENT_SECRET" //nolint:gosec // G101: variable name, not a credential
	EnvStatePath    = "TTSU_SYNC_STATE_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // TTSU_SYNC_CONFIG: override config file path
	ClientID     string // TTSU_SYNC_CLIENT_ID: OAuth client ID
	ClientSecret string // TTSU_SYNC_CLIENT_SECRET: OAuth client secret
	StatePath    string // TTSU_SYNC_STATE_PATH: state database path
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify a Config; Apply does that.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		StatePath:    os.Getenv(EnvStatePath),
	}
}

// Apply copies every non-empty override onto cfg.
func (e EnvOverrides) Apply(cfg *Config) {
	if e.ClientID != "" {
		cfg.Auth.ClientID = e.ClientID
	}

	if e.ClientSecret != "" {
		cfg.Auth.ClientSecret = e.ClientSecret
	}

	if e.StatePath != "" {
		cfg.StatePath = e.StatePath
	}
}
