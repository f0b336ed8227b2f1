package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":5200"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	GatewayToken   string   `env:"GATEWAY_TOKEN"`

	MatchmakingInterval     time.Duration `env:"MATCHMAKING_INTERVAL" envDefault:"10s"`
	RoundMonitorInterval    time.Duration `env:"ROUND_MONITOR_INTERVAL" envDefault:"1m"`
	TournamentCheckInterval time.Duration `env:"TOURNAMENT_CHECK_INTERVAL" envDefault:"1m"`
	ScorePollInterval       time.Duration `env:"SCORE_POLL_INTERVAL" envDefault:"30s"`
	RatingTolerance         int           `env:"RATING_TOLERANCE" envDefault:"200"`
	RatedBattleTypes        []string      `env:"RATED_BATTLE_TYPES" envSeparator:"," envDefault:"ladder"`
	EventBuffer             int           `env:"EVENT_BUFFER" envDefault:"64"`

	ScoreFeedURL   string `env:"SCORE_FEED_URL"`
	ScoreFeedToken string `env:"SCORE_FEED_TOKEN"`

	R2 R2Config
}

// R2Config enables the battle archive when every field is set.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MatchmakingInterval <= 0 || cfg.RoundMonitorInterval <= 0 || cfg.TournamentCheckInterval <= 0 || cfg.ScorePollInterval <= 0 {
		return nil, fmt.Errorf("job intervals must be positive")
	}
	return &cfg, nil
}
