package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	baseURLVar        = "IDENTITY_BASE_URL"
	apiBaseURLVar     = "IDENTITY_API_BASE_URL"
	dataFolderVar     = "IDENTITY_DATA_FOLDER"
	keyringServiceVar = "IDENTITY_KEYRING_SERVICE"
	logLevelVar       = "IDENTITY_LOG_LEVEL"
	httpTimeoutVar    = "IDENTITY_HTTP_TIMEOUT"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetBaseURL returns the identity server base URL (e.g., "https://id.example.com").
// Every OAuth and device trust endpoint hangs off it.
func (EnvVars) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:5000"), "/")
}

// GetAPIBaseURL returns the base URL of the account API, which defaults to the identity server.
func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, e.GetBaseURL()), "/")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(dataFolderVar, "./data")
}

func (EnvVars) GetKeyringService() string {
	return GetEnv(keyringServiceVar, "go-identity-client")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	return GetDuration(httpTimeoutVar, 30*time.Second)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt reads an integer, falling back to defaultValue when unset or invalid.
func GetInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Ignoring invalid integer")
		return defaultValue
	}
	return n
}

// GetDuration reads a time.ParseDuration value, falling back to defaultValue when unset or invalid.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Ignoring invalid duration")
		return defaultValue
	}
	return d
}

// GetBool reads a strconv.ParseBool value, falling back to defaultValue when unset or invalid.
func GetBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Ignoring invalid boolean")
		return defaultValue
	}
	return b
}
