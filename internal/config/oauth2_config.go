package config

// OAuth2Config is the fixed client configuration for the
// authorization-code strategy. It is process-wide and immutable.
type OAuth2Config interface {
	GetClientID() string
	GetRedirectURI() string
	GetScope() string
}

type OAuth2 struct{}

var _ OAuth2Config = OAuth2{}

func (OAuth2) GetClientID() string {
	return GetEnv("OAUTH2_CLIENT_ID", "demo-client-id")
}

func (OAuth2) GetRedirectURI() string {
	return GetEnv("OAUTH2_REDIRECT_URI", "authdemo://oauth2/callback")
}

func (OAuth2) GetScope() string {
	return GetEnv("OAUTH2_SCOPE", "openid profile email")
}
