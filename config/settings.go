package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the typed view of the process environment.
type Settings struct {
	Port               string
	GoEnv              string
	CorsAllowedOrigins []string
	SkipMigrations     bool

	RealtimeWriteTimeout time.Duration
	NotifyTimeout        time.Duration
	OrderLockTTL         time.Duration

	OrderEventsTopic string

	ReportCacheTTL      time.Duration
	ReportSlowThreshold time.Duration
}

// env is built during package variable initialization so every init() in
// this package can read it.
var env = newEnv()

func newEnv() *viper.Viper {
	// Load env from .env
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "")
	v.SetDefault("LOG_LEVEL", "error")

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SECONDS", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)

	v.SetDefault("REDIS_ADDRESS", "localhost:6379")

	v.SetDefault("REALTIME_WRITE_TIMEOUT_SECONDS", 5)
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 10)
	v.SetDefault("ORDER_LOCK_TTL_SECONDS", 15)
	v.SetDefault("ORDER_EVENTS_TOPIC", "order-events")

	v.SetDefault("REPORT_CACHE_TTL_SECONDS", 120)
	v.SetDefault("REPORT_SLOW_MS", 500)
	return v
}

// Env exposes the shared viper instance for keys without a typed accessor.
func Env() *viper.Viper {
	return env
}

func LoadSettings() Settings {
	port := strings.TrimSpace(env.GetString("API_PORT"))
	if port == "" {
		// Cloud Run standard env var.
		port = env.GetString("PORT")
	}
	return Settings{
		Port:                 port,
		GoEnv:                strings.TrimSpace(env.GetString("GO_ENV")),
		CorsAllowedOrigins:   splitAndTrim(env.GetString("CORS_ALLOWED_ORIGINS")),
		SkipMigrations:       env.GetBool("SKIP_MIGRATIONS"),
		RealtimeWriteTimeout: secondsOrDefault("REALTIME_WRITE_TIMEOUT_SECONDS", 5),
		NotifyTimeout:        secondsOrDefault("NOTIFY_TIMEOUT_SECONDS", 10),
		OrderLockTTL:         secondsOrDefault("ORDER_LOCK_TTL_SECONDS", 15),
		OrderEventsTopic:     env.GetString("ORDER_EVENTS_TOPIC"),
		ReportCacheTTL:       secondsOrDefault("REPORT_CACHE_TTL_SECONDS", 120),
		ReportSlowThreshold:  time.Duration(intOrDefault("REPORT_SLOW_MS", 500)) * time.Millisecond,
	}
}

func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.GoEnv, "production")
}

func intOrDefault(key string, def int) int {
	n := env.GetInt(key)
	if n <= 0 {
		return def
	}
	return n
}

func secondsOrDefault(key string, def int) time.Duration {
	return time.Duration(intOrDefault(key, def)) * time.Second
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
