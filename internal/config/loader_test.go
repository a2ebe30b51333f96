package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"BOOKING_HTTP_ADDR",
	"BOOKING_SQLITE_PATH",
	"BOOKING_JWT_SECRET",
	"BOOKING_JWT_ISSUER",
	"BOOKING_TOKEN_TTL",
	"BOOKING_LOGIN_RATE",
	"BOOKING_LOGIN_BURST",
	"BOOKING_LOG_LEVEL",
	"BOOKING_ADMIN_EMAIL",
	"BOOKING_ADMIN_PASSWORD",
}

// clearEnv blanks every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "super-secret"
		t.Setenv("BOOKING_JWT_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPAddr != ":8080" {
			t.Fatalf("expected default address :8080, got %q", cfg.HTTPAddr)
		}
		if cfg.SQLitePath != "booking.db" {
			t.Fatalf("unexpected default path: %q", cfg.SQLitePath)
		}
		if cfg.TokenTTL != 7*24*time.Hour {
			t.Fatalf("expected seven day token TTL, got %s", cfg.TokenTTL)
		}
		if cfg.JWTSecret != secret {
			t.Fatalf("expected secret to be %q, got %q", secret, cfg.JWTSecret)
		}
		if cfg.BootstrapAdmin() {
			t.Fatalf("expected no bootstrap admin")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: BOOKING_JWT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_JWT_SECRET", "secret")
		t.Setenv("BOOKING_TOKEN_TTL", "soon")
		t.Setenv("BOOKING_LOGIN_BURST", "0")
		t.Setenv("BOOKING_ADMIN_EMAIL", "admin@example.com")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "環境変数の値が不正です: BOOKING_TOKEN_TTL, BOOKING_LOGIN_BURST, BOOKING_ADMIN_EMAIL/BOOKING_ADMIN_PASSWORD"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_JWT_SECRET", "secret-value")
		t.Setenv("BOOKING_HTTP_ADDR", "127.0.0.1:9090")
		t.Setenv("BOOKING_SQLITE_PATH", "/tmp/booking.db")
		t.Setenv("BOOKING_TOKEN_TTL", "24h")
		t.Setenv("BOOKING_LOGIN_RATE", "2.5")
		t.Setenv("BOOKING_LOGIN_BURST", "4")
		t.Setenv("BOOKING_LOG_LEVEL", "DEBUG")
		t.Setenv("BOOKING_ADMIN_EMAIL", "admin@example.com")
		t.Setenv("BOOKING_ADMIN_PASSWORD", "changeme")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.TokenTTL != 24*time.Hour {
			t.Fatalf("expected token TTL 24h, got %s", cfg.TokenTTL)
		}
		if cfg.LoginRate != 2.5 || cfg.LoginBurst != 4 {
			t.Fatalf("unexpected rate limit %v/%d", cfg.LoginRate, cfg.LoginBurst)
		}
		if cfg.HTTPAddr != "127.0.0.1:9090" {
			t.Fatalf("unexpected address %q", cfg.HTTPAddr)
		}
		if cfg.SQLitePath != "/tmp/booking.db" {
			t.Fatalf("unexpected path: %q", cfg.SQLitePath)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected lower-cased log level, got %q", cfg.LogLevel)
		}
		if !cfg.BootstrapAdmin() {
			t.Fatalf("expected bootstrap admin to be configured")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {

	t.Run("ignores a missing default file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		if err := LoadEnvFile(""); err != nil {
			t.Fatalf("expected missing default file to be ignored, got %v", err)
		}
	})

	t.Run("fails for a missing explicit file", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err == nil {
			t.Fatalf("expected error for missing explicit file")
		}
	})

	t.Run("fills unset variables without overriding", func(t *testing.T) {
		t.Setenv("BOOKING_JWT_ISSUER", "from-process")
		t.Setenv("BOOKING_SQLITE_PATH", "")
		if err := os.Unsetenv("BOOKING_SQLITE_PATH"); err != nil {
			t.Fatalf("unsetenv: %v", err)
		}

		path := filepath.Join(t.TempDir(), "test.env")
		content := "BOOKING_SQLITE_PATH=/data/from-file.db\nBOOKING_JWT_ISSUER=from-file\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}

		if err := LoadEnvFile(path); err != nil {
			t.Fatalf("LoadEnvFile: %v", err)
		}
		if got := os.Getenv("BOOKING_SQLITE_PATH"); got != "/data/from-file.db" {
			t.Fatalf("expected value from file, got %q", got)
		}
		if got := os.Getenv("BOOKING_JWT_ISSUER"); got != "from-process" {
			t.Fatalf("expected process value to win, got %q", got)
		}
	})
}
