// Package config loads portal configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the portal.
type Config struct {
	Port      string `env:"LOTUSMILES_PORT" envDefault:"8080"`
	DBPath    string `env:"LOTUSMILES_DB_PATH" envDefault:"lotusmiles.db"`
	LogLevel  string `env:"LOTUSMILES_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOTUSMILES_LOG_FORMAT" envDefault:"text"`

	TokenSecret string        `env:"LOTUSMILES_TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"LOTUSMILES_TOKEN_TTL" envDefault:"24h"`

	Evidence EvidenceConfig
	Push     PushConfig
	Email    EmailConfig
}

// EvidenceConfig points at the S3-compatible bucket holding claim evidence.
type EvidenceConfig struct {
	Endpoint   string        `env:"LOTUSMILES_S3_ENDPOINT"`
	Region     string        `env:"LOTUSMILES_S3_REGION" envDefault:"auto"`
	Bucket     string        `env:"LOTUSMILES_S3_BUCKET"`
	AccessKey  string        `env:"LOTUSMILES_S3_ACCESS_KEY"`
	SecretKey  string        `env:"LOTUSMILES_S3_SECRET_KEY"`
	PresignTTL time.Duration `env:"LOTUSMILES_S3_PRESIGN_TTL" envDefault:"5m"`
	MaxBytes   int64         `env:"LOTUSMILES_S3_MAX_UPLOAD_BYTES" envDefault:"20971520"`
}

// PushConfig holds web push VAPID keys. Push is disabled when unset.
type PushConfig struct {
	VAPIDPublicKey  string `env:"LOTUSMILES_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"LOTUSMILES_VAPID_PRIVATE_KEY"`
	Subscriber      string `env:"LOTUSMILES_VAPID_SUBSCRIBER"`
}

// EmailConfig holds the transactional email credentials. Email is disabled
// when the token is unset.
type EmailConfig struct {
	ServerToken string `env:"LOTUSMILES_POSTMARK_TOKEN"`
	FromEmail   string `env:"LOTUSMILES_FROM_EMAIL" envDefault:"noreply@lotusmiles.example"`
	BaseURL     string `env:"LOTUSMILES_POSTMARK_URL" envDefault:"https://api.postmarkapp.com"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
