package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/timeledger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.WeeklyOvertimeHours != 40 {
		t.Fatalf("expected 40 overtime hours, got %v", cfg.WeeklyOvertimeHours)
	}
	if cfg.JWTTTL != 12*time.Hour {
		t.Fatalf("expected 12h jwt ttl, got %v", cfg.JWTTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PAYROLL_WORKERS", "many")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for non-numeric PAYROLL_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL:                "postgres://localhost/timeledger",
		MaxBodyBytes:               4096,
		RateLimitPerMinute:         60,
		AccountRequestLimitPerHour: 5,
		WeeklyOvertimeHours:        40,
		WorkdayHours:               8,
		PayrollWorkers:             2,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "production without secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "tiny body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "email without smtp host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
		{name: "zero overtime threshold", mutate: func(c *Config) { c.WeeklyOvertimeHours = 0 }, wantErr: true},
		{name: "workday too long", mutate: func(c *Config) { c.WorkdayHours = 25 }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.PayrollWorkers = 0 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
