package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr                       string        `env:"APP_ADDR" envDefault:":8080"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	JWTSecret                  string        `env:"JWT_SECRET"`
	JWTTTL                     time.Duration `env:"JWT_TTL" envDefault:"12h"`
	DataEncryptionKey          string        `env:"DATA_ENCRYPTION_KEY"`
	Environment                string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                   string        `env:"LOG_LEVEL" envDefault:"info"`
	SeedTenantName             string        `env:"SEED_TENANT_NAME" envDefault:"Default Tenant"`
	SeedAdminEmail             string        `env:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword          string        `env:"SEED_ADMIN_PASSWORD"`
	RunMigrations              bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	RunSeed                    bool          `env:"RUN_SEED" envDefault:"true"`
	MigrationsDir              string        `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	MaxBodyBytes               int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimitPerMinute         int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	AccountRequestLimitPerHour int           `env:"ACCOUNT_REQUEST_LIMIT_PER_HOUR" envDefault:"5"`
	EmailFrom                  string        `env:"EMAIL_FROM" envDefault:"no-reply@example.com"`
	EmailEnabled               bool          `env:"EMAIL_ENABLED" envDefault:"false"`
	SMTPHost                   string        `env:"SMTP_HOST"`
	SMTPPort                   int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser                   string        `env:"SMTP_USER"`
	SMTPPassword               string        `env:"SMTP_PASSWORD"`
	SMTPUseTLS                 bool          `env:"SMTP_USE_TLS" envDefault:"true"`
	WeeklyOvertimeHours        float64       `env:"PAYROLL_WEEKLY_OVERTIME_HOURS" envDefault:"40"`
	WorkdayHours               float64       `env:"PAYROLL_WORKDAY_HOURS" envDefault:"8"`
	PayrollWorkers             int           `env:"PAYROLL_WORKERS" envDefault:"4"`
	PayslipDir                 string        `env:"PAYSLIP_DIR" envDefault:"storage/payslips"`
	IdempotencyTTL             time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	MaintenanceInterval        time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"1h"`
	OTelServiceName            string        `env:"OTEL_SERVICE_NAME" envDefault:"timeledger"`
	OTelEndpoint               string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure               bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for payslip encryption")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.AccountRequestLimitPerHour <= 0 {
		return fmt.Errorf("ACCOUNT_REQUEST_LIMIT_PER_HOUR must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.WeeklyOvertimeHours <= 0 {
		return fmt.Errorf("PAYROLL_WEEKLY_OVERTIME_HOURS must be positive")
	}
	if c.WorkdayHours <= 0 || c.WorkdayHours > 24 {
		return fmt.Errorf("PAYROLL_WORKDAY_HOURS must be between 0 and 24")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	return nil
}
