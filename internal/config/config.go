package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"PORT" default:"8080"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	DiscordToken string `env:"DISCORD_TOKEN"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`

	// XP accounting
	MaxXP         int           `env:"MAX_XP" default:"1500"`
	BucketSeconds int64         `env:"BUCKET_SECONDS" default:"60"`
	PerBucketCap  int           `env:"PER_BUCKET_CAP" default:"2"`
	ChatXP        int           `env:"CHAT_XP" default:"1"`
	ChatMinChars  int           `env:"CHAT_MIN_CHARS" default:"5"`
	ChatCooldown  time.Duration `env:"CHAT_COOLDOWN" default:"60s"`

	// Voice accrual
	VoiceXP           int           `env:"VOICE_XP" default:"1"`
	VoiceTickInterval time.Duration `env:"VOICE_TICK_INTERVAL" default:"1m"`
	VoiceThresholdMin int           `env:"VOICE_THRESHOLD_MINUTES" default:"5"`

	// Decay
	DecayInterval time.Duration `env:"DECAY_INTERVAL" default:"24h"`
	DecayRate     float64       `env:"DECAY_RATE" default:"0.01"`
	MinDecay      int           `env:"MIN_DECAY" default:"1"`
	DecayFloor    int           `env:"DECAY_FLOOR" default:"3"`
	DecayGrace    time.Duration `env:"DECAY_GRACE" default:"72h"`
	DecayBatch    int           `env:"DECAY_BATCH" default:"200"`
	BatchPause    time.Duration `env:"BATCH_PAUSE" default:"50ms"`

	// Ranking
	ExitThreshold int `env:"EXIT_THRESHOLD" default:"3"`
	TopN          int `env:"TOP_N" default:"5"`
	NextM         int `env:"NEXT_M" default:"5"`

	// Reconciliation
	ReconcileQuiet    time.Duration `env:"RECONCILE_QUIET" default:"30s"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" default:"6h"`
	LabelOpsPerSec    float64       `env:"LABEL_OPS_PER_SEC" default:"2"`

	// Polls
	PollMinDuration   time.Duration `env:"POLL_MIN_DURATION" default:"1m"`
	PollMaxDuration   time.Duration `env:"POLL_MAX_DURATION" default:"168h"`
	PollSweepInterval time.Duration `env:"POLL_SWEEP_INTERVAL" default:"30s"`

	// External label bindings
	RoleEntry  string   `env:"ROLE_ENTRY"`
	RoleMid    string   `env:"ROLE_MID"`
	RoleUpper  string   `env:"ROLE_UPPER"`
	RoleTop    string   `env:"ROLE_TOP"`
	AdminRoles []string `env:"ADMIN_ROLES"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.AdminRoles = trimNonEmpty(cfg.AdminRoles)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":  cfg.DatabaseURL,
		"DISCORD_TOKEN": cfg.DiscordToken,
		"ROLE_ENTRY":    cfg.RoleEntry,
		"ROLE_MID":      cfg.RoleMid,
		"ROLE_UPPER":    cfg.RoleUpper,
		"ROLE_TOP":      cfg.RoleTop,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxXP <= 0 {
		return fmt.Errorf("MAX_XP must be positive")
	}
	if cfg.BucketSeconds <= 0 {
		return fmt.Errorf("BUCKET_SECONDS must be positive")
	}
	if cfg.PerBucketCap <= 0 {
		return fmt.Errorf("PER_BUCKET_CAP must be positive")
	}
	if cfg.DecayRate < 0 || cfg.DecayRate > 1 {
		return fmt.Errorf("DECAY_RATE must be within [0, 1]")
	}
	if cfg.TopN < 0 || cfg.NextM < 0 {
		return fmt.Errorf("TOP_N and NEXT_M must not be negative")
	}
	if cfg.PollMinDuration > cfg.PollMaxDuration {
		return fmt.Errorf("POLL_MIN_DURATION must not exceed POLL_MAX_DURATION")
	}

	return nil
}

// trimNonEmpty normalizes a comma-split list: surrounding whitespace is
// stripped and blank entries are dropped.
func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
