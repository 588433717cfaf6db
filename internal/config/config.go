// Package config reads the client configuration from IDENTITY_* environment variables.
package config

import "time"

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetBaseURL() string
	GetAPIBaseURL() string
	GetDataFolder() string
	GetKeyringService() string
	GetLogLevel() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
}

func New() Config {
	return mainConfig{}
}
