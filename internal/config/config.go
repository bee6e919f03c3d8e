package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Policies for the ledger's open behaviours.
const (
	OverpaymentClamp  = "clamp"
	OverpaymentReject = "reject"

	LoanDeleteRestrict = "restrict"
	LoanDeleteCascade  = "cascade"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"REDIS_ENABLED"`
	Host     string        `mapstructure:"REDIS_HOST"`
	Port     string        `mapstructure:"REDIS_PORT"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"REDIS_DB"`
	CacheTTL time.Duration `mapstructure:"REDIS_CACHE_TTL"`
}

type SchedulerConfig struct {
	ReconcileSpec    string `mapstructure:"SCHEDULER_RECONCILE_SPEC"`
	DailySummarySpec string `mapstructure:"SCHEDULER_DAILY_SUMMARY_SPEC"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	Timezone                string `mapstructure:"BUSINESS_TIMEZONE"`
	DefaultInstallmentCount int    `mapstructure:"DEFAULT_INSTALLMENT_COUNT"`
	MaxInterestRate         string `mapstructure:"MAX_INTEREST_RATE"`
	OverpaymentPolicy       string `mapstructure:"OVERPAYMENT_POLICY"`
	LoanDeletePolicy        string `mapstructure:"LOAN_DELETE_POLICY"`
	EnforcePaymentBorrower  bool   `mapstructure:"ENFORCE_PAYMENT_BORROWER"`
	AgentRequiredModes      string `mapstructure:"AGENT_REQUIRED_MODES"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	TokenTTL         time.Duration `mapstructure:"JWT_TTL"`
	RegistrationCode string        `mapstructure:"REGISTRATION_CODE"`
	LoginRatePerMin  int           `mapstructure:"LOGIN_RATE_PER_MINUTE"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CACHE_TTL", "10m")

	v.SetDefault("SCHEDULER_RECONCILE_SPEC", "0 30 2 * * *")
	v.SetDefault("SCHEDULER_DAILY_SUMMARY_SPEC", "0 0 7 * * *")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BUSINESS_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("DEFAULT_INSTALLMENT_COUNT", 100)
	v.SetDefault("MAX_INTEREST_RATE", "100")
	v.SetDefault("OVERPAYMENT_POLICY", OverpaymentClamp)
	v.SetDefault("LOAN_DELETE_POLICY", LoanDeleteRestrict)
	v.SetDefault("ENFORCE_PAYMENT_BORROWER", true)
	v.SetDefault("AGENT_REQUIRED_MODES", "")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("REGISTRATION_CODE", "1289")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be greater than 0")
	}

	if c.Auth.LoginRatePerMin <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be greater than 0")
	}

	if c.Business.DefaultInstallmentCount <= 0 {
		return fmt.Errorf("DEFAULT_INSTALLMENT_COUNT must be greater than 0")
	}

	if _, err := decimal.NewFromString(c.Business.MaxInterestRate); err != nil {
		return fmt.Errorf("MAX_INTEREST_RATE must be a valid decimal: %w", err)
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE must be a valid IANA zone: %w", err)
	}

	switch c.Business.OverpaymentPolicy {
	case OverpaymentClamp, OverpaymentReject:
	default:
		return fmt.Errorf("OVERPAYMENT_POLICY must be %q or %q", OverpaymentClamp, OverpaymentReject)
	}

	switch c.Business.LoanDeletePolicy {
	case LoanDeleteRestrict, LoanDeleteCascade:
	default:
		return fmt.Errorf("LOAN_DELETE_POLICY must be %q or %q", LoanDeleteRestrict, LoanDeleteCascade)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// GetLocation returns the calendar timezone used for day windows.
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetMaxInterestRate returns the highest accepted rate-based interest percentage.
func (c *Config) GetMaxInterestRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.MaxInterestRate)
	return rate
}

// GetAgentRequiredModes returns the loan modes that must name an agent.
func (c *Config) GetAgentRequiredModes() map[string]bool {
	modes := make(map[string]bool)
	for _, m := range strings.Split(c.Business.AgentRequiredModes, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modes[m] = true
		}
	}
	return modes
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
