package config

import (
	"fmt"
	"time"
)

const (
	GatewayBackendNative = "native"
	GatewayBackendCloud  = "cloud"
	GatewayBackendStub   = "stub"
)

type Config struct {
	Env                        string
	Language                   string
	GatewayBackend             string
	ModelPath                  string
	ModelArchitecture          string
	UpdateIntervalMS           int
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscriptWebhookURL       string
	DiscordToken               string
	DiscordChannelID           string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.UpdateIntervalMS <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_MS must be positive, got %d", c.UpdateIntervalMS)
	}
	switch c.GatewayBackend {
	case GatewayBackendNative:
		if c.ModelPath == "" {
			return fmt.Errorf("MODEL_PATH is required when GATEWAY_BACKEND=native")
		}
	case GatewayBackendCloud:
		if c.GoogleCloudProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when GATEWAY_BACKEND=cloud")
		}
		if c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when GATEWAY_BACKEND=cloud")
		}
	case GatewayBackendStub:
	default:
		return fmt.Errorf("GATEWAY_BACKEND must be one of native, cloud, stub, got %q", c.GatewayBackend)
	}
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DEFAULT_TRANSCRIBE_LANGUAGE", value: c.Language},
		{name: "GATEWAY_BACKEND", value: c.GatewayBackend},
		{name: "DATABASE_URL", value: c.DatabaseURL},
	}
}

// UpdateInterval is the maximum latency before a streaming session surfaces
// fresh partial results.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
