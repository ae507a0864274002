package config

import "time"

// MockConfig tunes the simulated backend used by the demo binary.
type MockConfig interface {
	GetMockLatency() time.Duration
	GetTokenTTL() time.Duration
}

type Mock struct{}

var _ MockConfig = Mock{}

func (Mock) GetMockLatency() time.Duration {
	if raw := GetEnv("MOCK_LATENCY", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return 150 * time.Millisecond
}

func (Mock) GetTokenTTL() time.Duration {
	if raw := GetEnv("TOKEN_TTL", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return time.Hour
}
