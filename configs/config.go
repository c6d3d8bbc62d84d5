package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signalhub/internal/utils"
	"signalhub/pkg/logger"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       logger.Config   `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Providers ProvidersConfig `yaml:"providers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Signals   SignalsConfig   `yaml:"signals"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" default:"8080"`
	Env             string        `yaml:"env" default:"development" validate:"oneof=development staging production"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"5s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns" default:"10" validate:"gte=1"`
	MinConns int32  `yaml:"min_conns" default:"2" validate:"gte=0"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PriceTTL time.Duration `yaml:"price_ttl" default:"15s"`
	FearTTL  time.Duration `yaml:"sentiment_ttl" default:"10m"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" validate:"required,min=16"`
	TokenTTL  time.Duration `yaml:"token_ttl" default:"24h"`
}

type TelegramConfig struct {
	BotToken        string  `yaml:"bot_token"`
	SendRatePerSec  float64 `yaml:"send_rate_per_sec" default:"25" validate:"gt=0"`
	CommandsPerMin  int     `yaml:"commands_per_min" default:"3" validate:"gte=1"`
	PollTimeoutSecs int     `yaml:"poll_timeout_secs" default:"60"`
}

// Enabled reports whether the bot channel has credentials.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

type ProvidersConfig struct {
	Timeout        time.Duration `yaml:"timeout" default:"10s"`
	RetryMax       int           `yaml:"retry_max" default:"3" validate:"gte=0,lte=5"`
	BackoffMin     time.Duration `yaml:"backoff_min" default:"200ms"`
	BackoffMax     time.Duration `yaml:"backoff_max" default:"2s"`
	LeaderboardURL string        `yaml:"leaderboard_url" default:"https://www.binance.com/bapi/futures/v3/public/future/leaderboard/searchLeaderboard"`
	PositionsURL   string        `yaml:"positions_url" default:"https://www.binance.com/bapi/futures/v1/public/future/leaderboard/getOtherPosition"`
	FearGreedURL   string        `yaml:"fear_greed_url" default:"https://api.alternative.me/fng/"`
	BinanceAPIKey  string        `yaml:"binance_api_key"`
	BinanceSecret  string        `yaml:"binance_secret"`
}

// SchedulerConfig sets the cron specs. The leaderboard job runs often and
// skips until the update_interval setting has elapsed.
type SchedulerConfig struct {
	Enabled                bool   `yaml:"enabled" default:"true"`
	LeaderboardRefreshSpec string `yaml:"leaderboard_refresh" default:"@every 1m"`
	PriceMonitorSpec       string `yaml:"price_monitor" default:"@every 1m"`
}

type SignalsConfig struct {
	// Timezone of the daily cap boundary.
	Timezone string `yaml:"timezone" default:"UTC"`
}

type CryptoConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":9090"`
}

type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" default:"admin"`
	AdminPassword string `yaml:"admin_password"`
}

var validate = validator.New()

// Load reads the optional .env file, the YAML file at path (may be empty),
// applies defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Env, "APP_ENV")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		c.Redis.Enabled, _ = strconv.ParseBool(v)
	}
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Providers.BinanceAPIKey, "BINANCE_API_KEY")
	setString(&c.Providers.BinanceSecret, "BINANCE_SECRET_KEY")
	setString(&c.Scheduler.LeaderboardRefreshSpec, "LEADERBOARD_REFRESH")
	setString(&c.Signals.Timezone, "SIGNALS_TZ")
	setString(&c.Crypto.EncryptionKey, "ENCRYPTION_KEY")
	setString(&c.Metrics.Addr, "METRICS_ADDR")
	setString(&c.Bootstrap.AdminUsername, "ADMIN_USERNAME")
	setString(&c.Bootstrap.AdminPassword, "ADMIN_PASSWORD")
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Providers.BackoffMin > c.Providers.BackoffMax {
		return fmt.Errorf("providers.backoff_min must not exceed providers.backoff_max")
	}
	if _, err := time.LoadLocation(c.Signals.Timezone); err != nil {
		return fmt.Errorf("signals.timezone: %w", err)
	}
	if c.Server.Env == "production" && strings.TrimSpace(c.Crypto.EncryptionKey) == "" {
		return fmt.Errorf("crypto.encryption_key is required in production")
	}
	return nil
}

// Location returns the daily cap boundary timezone.
func (c *Config) Location() *time.Location {
	return utils.LoadLocation(c.Signals.Timezone)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
