package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitori/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	Language                   string `env:"DEFAULT_TRANSCRIBE_LANGUAGE,required"`
	GatewayBackend             string `env:"GATEWAY_BACKEND" envDefault:"native"`
	ModelPath                  string `env:"MODEL_PATH"`
	ModelArchitecture          string `env:"MODEL_ARCHITECTURE" envDefault:"base"`
	UpdateIntervalMS           int    `env:"UPDATE_INTERVAL_MS" envDefault:"500"`
	DatabaseURL                string `env:"DATABASE_URL,required"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"asia-northeast1"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	TranscriptWebhookURL       string `env:"TRANSCRIPT_WEBHOOK_URL"`
	DiscordToken               string `env:"DISCORD_TOKEN"`
	DiscordChannelID           string `env:"DISCORD_CHANNEL_ID"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		Language:                   raw.Language,
		GatewayBackend:             raw.GatewayBackend,
		ModelPath:                  raw.ModelPath,
		ModelArchitecture:          raw.ModelArchitecture,
		UpdateIntervalMS:           raw.UpdateIntervalMS,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordChannelID:           raw.DiscordChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
