package services

import (
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Env     string `env:"ENV" envDefault:"local"`
	Address string `env:"ADDRESS" envDefault:":8083"`

	JWTSecret string `env:"JWT_SECRET"`
	SentryDSN string `env:"SENTRY_DSN"`

	BrokerAddress string `env:"ASYNC_BROKER_ADDRESS" envDefault:"localhost:6379"`

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	GoogleAPIKey      string `env:"GOOGLE_API_KEY"`

	// Ordered fallback lists. A "gemini:" prefix routes to the Gemini API, anything else to OpenRouter.
	OutfitModels  []string `env:"OUTFIT_MODELS" envSeparator:"," envDefault:"deepseek/deepseek-chat-v3.1,google/gemini-2.0-flash-001,meta-llama/llama-3.3-70b-instruct"`
	InsightModels []string `env:"INSIGHT_MODELS" envSeparator:"," envDefault:"deepseek/deepseek-chat-v3.1,google/gemini-2.0-flash-001,meta-llama/llama-3.3-70b-instruct"`
	PhotoModels   []string `env:"PHOTO_MODELS" envSeparator:"," envDefault:"gemini:gemini-2.0-flash,google/gemini-2.0-flash-001"`

	OutfitCount int `env:"OUTFIT_COUNT" envDefault:"5"`

	WeatherBaseURL string `env:"WEATHER_BASE_URL" envDefault:"https://api.open-meteo.com"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`

	PushEnabled bool `env:"PUSH_ENABLED" envDefault:"false"`
}

// LoadConfig loads .env (if present) and parses environment variables into Config.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.OutfitCount <= 0 {
		cfg.OutfitCount = 5
	}
	return cfg, nil
}
