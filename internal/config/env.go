package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingEnv is returned by Validate when required variables are unset.
var ErrMissingEnv = errors.New("missing required environment variables")

type EnvConfig struct {
	WatchConfigPath string
	WatchID         string
	RunOnce         bool
	PassTimeout     time.Duration
	LogLevel        slog.Level
	Store           StoreEnvConfig
	Telegram        TelegramEnvConfig
	Scrape          ScrapeEnvConfig
	RSS             RSSEnvConfig
	Reddit          RedditEnvConfig
	SMTP            SMTPEnvConfig
	OTel            OTelEnvConfig
}

type StoreEnvConfig struct {
	Driver      string
	DatabaseURL string
	TLS         string
	SQLitePath  string
}

type TelegramEnvConfig struct {
	Token       string
	ChatID      string
	APIEndpoint string
	HTTPTimeout time.Duration
}

type ScrapeEnvConfig struct {
	HTTPTimeout time.Duration
	UserAgent   string
}

type RSSEnvConfig struct {
	HTTPTimeout time.Duration
	UserAgent   string
}

// RedditEnvConfig holds the optional script-app credentials. Without all four
// the read-only API is used.
type RedditEnvConfig struct {
	HTTPTimeout  time.Duration
	UserAgent    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

type SMTPEnvConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124 Safari/537.36"

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	return EnvConfig{
		WatchConfigPath: envString("DEALWATCH_CONFIG", "dealwatch.yaml"),
		WatchID:         envString("WATCH_ID", "watch-1"),
		RunOnce:         envBool("RUN_ONCE", true),
		PassTimeout:     envDuration("PASS_TIMEOUT", 2*time.Minute),
		LogLevel:        envLogLevel("LOG_LEVEL", slog.LevelInfo),
		Store: StoreEnvConfig{
			Driver:      strings.ToLower(envString("SEEN_STORE_DRIVER", "postgres")),
			DatabaseURL: envString("DATABASE_URL", ""),
			TLS:         strings.ToLower(envString("DATABASE_TLS", "require")),
			SQLitePath:  envString("SQLITE_PATH", "data/dealwatch.db"),
		},
		Telegram: TelegramEnvConfig{
			Token:       envString("TELEGRAM_TOKEN", ""),
			ChatID:      envString("TELEGRAM_CHAT_ID", ""),
			APIEndpoint: envString("TELEGRAM_API_ENDPOINT", ""),
			HTTPTimeout: envDuration("TELEGRAM_HTTP_TIMEOUT", 15*time.Second),
		},
		Scrape: ScrapeEnvConfig{
			HTTPTimeout: envDuration("SCRAPE_HTTP_TIMEOUT", 20*time.Second),
			UserAgent:   envString("SCRAPE_USER_AGENT", defaultUserAgent),
		},
		RSS: RSSEnvConfig{
			HTTPTimeout: envDuration("RSS_HTTP_TIMEOUT", 10*time.Second),
			UserAgent:   envString("RSS_USER_AGENT", "dealwatch/0.1"),
		},
		Reddit: RedditEnvConfig{
			HTTPTimeout:  envDuration("REDDIT_HTTP_TIMEOUT", 15*time.Second),
			UserAgent:    envString("REDDIT_USER_AGENT", "dealwatch/0.1"),
			ClientID:     envString("REDDIT_CLIENT_ID", ""),
			ClientSecret: envString("REDDIT_CLIENT_SECRET", ""),
			Username:     envString("REDDIT_USERNAME", ""),
			Password:     envString("REDDIT_PASSWORD", ""),
		},
		SMTP: SMTPEnvConfig{
			Host:               envString("SMTP_HOST", ""),
			Port:               envInt("SMTP_PORT", 587),
			User:               envString("SMTP_USER", ""),
			Password:           envString("SMTP_PASSWORD", ""),
			TLSMode:            envString("SMTP_TLS_MODE", ""),
			InsecureSkipVerify: envBool("SMTP_INSECURE_SKIP_VERIFY", false),
		},
		OTel: OTelEnvConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			ServiceName: strings.TrimSpace(envString("OTEL_SERVICE_NAME", "dealwatch")),
			Endpoint:    otlpEndpoint,
			Protocol:    strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:     parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio: clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
	}
}

// Validate checks the variables the loaded document depends on. Every missing
// variable is named in the returned error.
func (c EnvConfig) Validate(doc *WatchDocument) error {
	var missing []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	default:
		return fmt.Errorf("SEEN_STORE_DRIVER: unsupported driver %q (expected postgres or sqlite)", c.Store.Driver)
	}

	if doc != nil && doc.Watch.Notify.Telegram != nil {
		if c.Telegram.Token == "" {
			missing = append(missing, "TELEGRAM_TOKEN")
		}
		if c.Telegram.ChatID == "" {
			missing = append(missing, "TELEGRAM_CHAT_ID")
		}
	}
	if doc != nil && doc.Watch.Notify.Email != nil && c.SMTP.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	if c.PassTimeout <= 0 {
		return fmt.Errorf("PASS_TIMEOUT must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := parseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envLogLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return level
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
