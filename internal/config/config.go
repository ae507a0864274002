package config

type Config interface {
	EnvConfig
	OAuth2Config
	MockConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetStorePath() string
}

type mainConfig struct {
	EnvVars
	OAuth2
	Mock
}

func New() Config {
	return mainConfig{}
}
