package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read by LoadEnvFile when no explicit path is given.
const DefaultEnvFile = ".env"

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPAddr      string
	SQLitePath    string
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	LoginRate     float64
	LoginBurst    int
	LogLevel      string
	AdminEmail    string
	AdminPassword string
}

// LoadEnvFile copies variables from a dotenv file into the process environment
// without overriding values that are already set. A missing default file is
// ignored; a missing explicit file is an error.
func LoadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("環境ファイルを読み込めません (%s): %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:   ":8080",
		SQLitePath: "booking.db",
		JWTIssuer:  "room-booking",
		TokenTTL:   7 * 24 * time.Hour,
		LoginRate:  5,
		LoginBurst: 10,
		LogLevel:   "info",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if addr := env("BOOKING_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if path := env("BOOKING_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if secret := env("BOOKING_JWT_SECRET"); secret == "" {
		missing = append(missing, "BOOKING_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if issuer := env("BOOKING_JWT_ISSUER"); issuer != "" {
		cfg.JWTIssuer = issuer
	}

	if ttlValue := env("BOOKING_TOKEN_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_TOKEN_TTL")
		} else {
			cfg.TokenTTL = ttl
		}
	}

	if rateValue := env("BOOKING_LOGIN_RATE"); rateValue != "" {
		rate, err := strconv.ParseFloat(rateValue, 64)
		if err != nil || rate <= 0 {
			invalid = append(invalid, "BOOKING_LOGIN_RATE")
		} else {
			cfg.LoginRate = rate
		}
	}

	if burstValue := env("BOOKING_LOGIN_BURST"); burstValue != "" {
		burst, err := strconv.Atoi(burstValue)
		if err != nil || burst <= 0 {
			invalid = append(invalid, "BOOKING_LOGIN_BURST")
		} else {
			cfg.LoginBurst = burst
		}
	}

	if level := env("BOOKING_LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	cfg.AdminEmail = env("BOOKING_ADMIN_EMAIL")
	cfg.AdminPassword = env("BOOKING_ADMIN_PASSWORD")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		invalid = append(invalid, "BOOKING_ADMIN_EMAIL/BOOKING_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// BootstrapAdmin reports whether an initial administrator account is configured.
func (c Config) BootstrapAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
