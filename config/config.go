// Package config loads application configuration from environment variables.
package config

import (
	"os"

	"github.com/pkg/errors"
)

// DefaultAIBaseURL points at Groq's OpenAI-compatible endpoint, the text
// service the bot was built against. Any OpenAI-compatible service works.
const DefaultAIBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	BotToken    string // Telegram bot token
	DatabaseURL string // Postgres connection string
	AIAPIKey    string // empty disables the AI agent mode
	AIBaseURL   string
	AIModel     string
	APIAddr     string // mini-app HTTP API listen address; empty disables it
}

// Load reads configuration from the environment. BOT_TOKEN and DATABASE_URL
// are required; everything else has a default or disables its feature.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AIAPIKey:    os.Getenv("AI_API_KEY"),
		AIBaseURL:   getEnv("AI_BASE_URL", DefaultAIBaseURL),
		AIModel:     os.Getenv("AI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
