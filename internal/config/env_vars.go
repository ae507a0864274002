package config

import "os"

const (
	appNameVar   = "APP_NAME"
	storePathVar = "STORE_PATH"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Auth Demo")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetStorePath returns the SQLite credential store location. Empty means
// use the in-memory store.
func (EnvVars) GetStorePath() string {
	return GetEnv(storePathVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
