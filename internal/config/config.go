package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/plandrop/plandrop/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Bot       BotConfig
	Admin     AdminConfig
	Store     StoreConfig
	Broadcast BroadcastConfig
	Sweep     SweepConfig
	Server    ServerConfig
	Archive   ArchiveConfig
	OTEL      OTELConfig

	// Categories is the static, admin-defined content enumeration.
	Categories []domain.Category
}

// BotConfig holds chat transport configuration
type BotConfig struct {
	Token        string
	AdminContact string // shown on the contact-admin screen
	DonateText   string // shown on the donate screen
}

// AdminConfig holds the privileged-operator surface
type AdminConfig struct {
	PIN               string
	SuperIDs          []int64 // always-authorized operator identities
	SessionTTLMinutes int
}

// StoreConfig holds content store paths
type StoreConfig struct {
	DataDir   string // per-category directories live under here
	UsersFile string // recipient directory JSON file
}

// BroadcastConfig holds fan-out pacing
type BroadcastConfig struct {
	DelaySeconds float64 // inter-send delay honoring transport rate limits
}

// SweepConfig holds the expiry garbage collector schedule
type SweepConfig struct {
	IntervalSeconds int
}

// ServerConfig holds the ops HTTP surface configuration
type ServerConfig struct {
	Port string
}

// ArchiveConfig holds the optional S3-compatible archive for expired files.
// Disabled unless an endpoint and bucket are configured.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// OTELConfig holds OpenTelemetry export configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	InstanceID     string
	Token          string
}

// defaultCategories mirrors the enumeration the first deployment shipped
// with; real deployments override it via CATEGORIES.
const defaultCategories = "dtac_game_plan=DTAC GAME PLAN;dtac_zivpn=DTAC ZIVPN;dtac_nopro=DTAC NOPRO;true_twitter=TRUE TWITTER PLAN;true_viber=TRUE VIBER PLAN;ais_v2ray_64=V2RAY 64KBPS"

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Bot: BotConfig{
			Token:        getEnv("BOT_TOKEN", ""),
			AdminContact: getEnv("ADMIN_CONTACT", ""),
			DonateText:   getEnv("DONATE_TEXT", ""),
		},
		Admin: AdminConfig{
			PIN:               getEnv("ADMIN_PIN", "1234"),
			SuperIDs:          parseIDList(getEnv("ADMIN_IDS", "")),
			SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 120),
		},
		Store: StoreConfig{
			DataDir:   getEnv("DATA_DIR", "files"),
			UsersFile: getEnv("USERS_FILE", "users.json"),
		},
		Broadcast: BroadcastConfig{
			DelaySeconds: getEnvAsFloat("BROADCAST_DELAY_SECONDS", 0.05),
		},
		Sweep: SweepConfig{
			IntervalSeconds: getEnvAsInt("SWEEP_INTERVAL_SECONDS", 3600),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", "any"),
			SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", "any"),
		},
		OTEL: OTELConfig{
			Enabled:        getEnv("OTEL_ENABLED", "false") == "true",
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "plandrop"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "production"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
	}
	cfg.Archive.Enabled = cfg.Archive.Endpoint != "" && cfg.Archive.Bucket != ""

	categories, err := parseCategories(getEnv("CATEGORIES", defaultCategories))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg.Categories = categories

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Admin.PIN == "" {
		return fmt.Errorf("ADMIN_PIN must not be empty")
	}
	if c.Admin.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if c.Sweep.IntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("CATEGORIES must define at least one category")
	}
	return nil
}

// parseCategories parses "key=Label;key2=Label2" into the ordered category
// enumeration.
func parseCategories(s string) ([]domain.Category, error) {
	var out []domain.Category
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, label, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed category entry %q", pair)
		}
		out = append(out, domain.Category{
			Key:   strings.TrimSpace(key),
			Label: strings.TrimSpace(label),
		})
	}
	return out, nil
}

// parseIDList parses a comma-separated list of numeric identities, skipping
// malformed entries.
func parseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
