package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	SMTP         SMTPConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VELOSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"VELOSTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VELOSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELOSTORE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"VELOSTORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VELOSTORE_DB_DSN"`
	Driver string `envconfig:"VELOSTORE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VELOSTORE_DB_HOST"`
	Port     int    `envconfig:"VELOSTORE_DB_PORT" default:"5432"`
	User     string `envconfig:"VELOSTORE_DB_USER"`
	Password string `envconfig:"VELOSTORE_DB_PASSWORD"`
	Name     string `envconfig:"VELOSTORE_DB_NAME"`
	SSLMode  string `envconfig:"VELOSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELOSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELOSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELOSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELOSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELOSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELOSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"VELOSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELOSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELOSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELOSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELOSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELOSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELOSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VELOSTORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VELOSTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VELOSTORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RazorpayConfig carries both gateway secrets. KeySecret signs the client
// confirmation payload; WebhookSecret signs webhook bodies. They are distinct
// and must never be swapped.
type RazorpayConfig struct {
	KeyID         string `envconfig:"VELOSTORE_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"VELOSTORE_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"VELOSTORE_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	Currency      string `envconfig:"VELOSTORE_RAZORPAY_CURRENCY" default:"INR"`
}

type CheckoutConfig struct {
	ReservationHold time.Duration `envconfig:"VELOSTORE_CHECKOUT_RESERVATION_HOLD" default:"15m"`
}

type CronConfig struct {
	SweepInterval time.Duration `envconfig:"VELOSTORE_CRON_SWEEP_INTERVAL" default:"5m"`
}

type SMTPConfig struct {
	Host        string `envconfig:"VELOSTORE_SMTP_HOST"`
	Port        int    `envconfig:"VELOSTORE_SMTP_PORT" default:"587"`
	Username    string `envconfig:"VELOSTORE_SMTP_USERNAME"`
	Password    string `envconfig:"VELOSTORE_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"VELOSTORE_SMTP_FROM_EMAIL"`
}

// Enabled reports whether outbound mail is configured at all.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VELOSTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VELOSTORE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"VELOSTORE_DB_HOST": db.Host,
		"VELOSTORE_DB_USER": db.User,
		"VELOSTORE_DB_NAME": db.Name,
	}
	for _, key := range []string{"VELOSTORE_DB_HOST", "VELOSTORE_DB_USER", "VELOSTORE_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either VELOSTORE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
