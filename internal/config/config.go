package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Every value has a default so the service can be
// started locally with an empty environment; production deployments are
// expected to override at least the secrets.
type Config struct {
	Env  string // application environment (development, production)
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name
	DBPool int    // max open connections

	JWTSecret          string // secret used to sign JWTs
	JWTAlgorithm       string // HS256, HS384 or HS512
	AccessTTLMin       int    // access token lifetime in minutes
	RefreshTTLDays     int    // refresh token lifetime in days
	RefreshTokenSecret string // HMAC key for refresh tokens at rest
	BcryptCost         int    // bcrypt cost for password hashing
	CodeLength         int    // length of reset/verify codes

	RequestTimeout time.Duration // upper bound for DB work in one request
	LogLevel       string

	MailSender     string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	FrontendAppURL string
	RabbitMQURL    string // empty disables the mail queue and sends inline
	MailQueue      string

	MetricsEnabled  bool          // expose GET /metrics
	ShutdownTimeout time.Duration // grace period for in-flight requests
	ReapSchedule    string        // cron spec of the expired-token reaper

	SuperadminEmail    string // seeded by the install command
	SuperadminPassword string
}

// Load reads configuration values from the process environment, after
// loading a .env file from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load() // a missing .env is not an error

	cfg := Config{
		Env:  envStr("APP_ENV", "development"),
		Port: envStr("APP_PORT", "8000"),

		DBUser: envStr("DB_USER", "root"),
		DBPass: envStr("DB_PASS", ""),
		DBHost: envStr("DB_HOST", "127.0.0.1"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: envStr("DB_NAME", "rbac"),
		DBPool: envInt("DB_MAX_OPEN_CONNS", 25),

		JWTSecret:          envStr("JWT_SECRET_KEY", "your_jwt_secret_key_here"),
		JWTAlgorithm:       strings.ToUpper(envStr("JWT_ALGORITHM", "HS256")),
		AccessTTLMin:       envInt("JWT_TOKEN_DURATION_MINUTES", 10),
		RefreshTTLDays:     envInt("JWT_REFRESH_TOKEN_DURATION_DAYS", 7),
		RefreshTokenSecret: envStr("REFRESH_TOKEN_SECRET", ""),
		BcryptCost:         envInt("BCRYPT_COST", 12),
		CodeLength:         envInt("CODE_LENGTH", 6),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		LogLevel:       envStr("LOG_LEVEL", "info"),

		MailSender:     envStr("MAIL_SENDER", "noreply@example.ai"),
		SMTPHost:       envStr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       envStr("SMTP_PORT", "465"),
		SMTPUser:       envStr("SMTP_USER", "example@gmail.com"),
		SMTPPassword:   envStr("SMTP_PASSWORD", "your_password"),
		FrontendAppURL: envStr("FRONTEND_APP_URL", "http://localhost:5173"),
		RabbitMQURL:    envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),
		MailQueue:      envStr("MAIL_QUEUE", "mail.outbound"),

		MetricsEnabled:  envBool("METRICS_ENABLED", true),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		ReapSchedule:    envStr("REAP_SCHEDULE", "@hourly"),

		SuperadminEmail:    envStr("SUPERADMIN_EMAIL", "superadmin@example.ai"),
		SuperadminPassword: envStr("SUPERADMIN_PASSWORD", ""),
	}
	if cfg.RefreshTokenSecret == "" {
		cfg.RefreshTokenSecret = cfg.JWTSecret
	}
	return cfg
}

// IsProduction reports whether error details must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks values that cannot be defaulted into something sane.
func (c Config) Validate() error {
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	if c.AccessTTLMin <= 0 || c.RefreshTTLDays <= 0 {
		return errors.New("token durations must be positive")
	}
	if c.CodeLength <= 0 || c.CodeLength > 20 {
		return errors.New("CODE_LENGTH must be between 1 and 20")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == "your_jwt_secret_key_here") {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	return nil
}
