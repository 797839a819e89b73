package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Chat         ChatConfig
	Calendar     CalendarConfig
	Geo          GeoConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the durable backend for the chat state store.
type StoreConfig struct {
	// Backend is one of "memory", "redis", "postgres".
	Backend string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token parameters and the single configured
// agent credential. Full account management lives outside this service.
type AuthConfig struct {
	JWTSecret            string
	AgentTokenTTLMinutes int
	VisitorTokenTTLDays  int
	AgentName            string
	AgentEmail           string
	AgentPassword        string
	AgentPasswordHash    string
	BcryptCost           int
}

// ChatConfig tunes the support-chat engine.
type ChatConfig struct {
	// AliasDomain forms lead alias addresses (lead-<n>@<AliasDomain>).
	AliasDomain string
	// FailureRate is the base probability a simulated delivery fails.
	// Retries run at a quarter of this rate.
	FailureRate float64
	// Delivery latency window for the simulated transport.
	MinDelayMs int
	MaxDelayMs int
	// BotReplyDelayMs is the pause before a scripted bot reply lands.
	BotReplyDelayMs int
	// AttachmentInlineLimit is the largest payload (bytes) allowed to fall
	// back to an inline preview when blob storage is unavailable.
	AttachmentInlineLimit int
}

// CalendarConfig describes the fixed weekly support calendar.
type CalendarConfig struct {
	Timezone         string
	WeekdayOpenHour  int
	WeekdayCloseHour int
	WeekendOpenHour  int
	WeekendCloseHour int
	SundayClosed     bool
}

// GeoConfig configures the best-effort geolocation collaborator.
type GeoConfig struct {
	Endpoint       string
	TimeoutSeconds int
}

// NotificationConfig holds attention-sound notification endpoints.
type NotificationConfig struct {
	SoundWebhookURL string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	failureRate, err := strconv.ParseFloat(getEnv("CHAT_DELIVERY_FAILURE_RATE", "0.12"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_DELIVERY_FAILURE_RATE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-chat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "redis"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AgentTokenTTLMinutes: getEnvAsInt("AUTH_AGENT_TOKEN_TTL_MINUTES", 480),
			VisitorTokenTTLDays:  getEnvAsInt("AUTH_VISITOR_TOKEN_TTL_DAYS", 30),
			AgentName:            getEnv("AGENT_NAME", "Support Agent"),
			AgentEmail:           getEnv("AGENT_EMAIL", "agent@example.com"),
			AgentPassword:        os.Getenv("AGENT_PASSWORD"),
			AgentPasswordHash:    os.Getenv("AGENT_PASSWORD_HASH"),
			BcryptCost:           getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Chat: ChatConfig{
			AliasDomain:           getEnv("CHAT_ALIAS_DOMAIN", "leads.example.com"),
			FailureRate:           failureRate,
			MinDelayMs:            getEnvAsInt("CHAT_DELIVERY_MIN_DELAY_MS", 320),
			MaxDelayMs:            getEnvAsInt("CHAT_DELIVERY_MAX_DELAY_MS", 980),
			BotReplyDelayMs:       getEnvAsInt("CHAT_BOT_REPLY_DELAY_MS", 900),
			AttachmentInlineLimit: getEnvAsInt("CHAT_ATTACHMENT_INLINE_LIMIT", 32*1024),
		},
		Calendar: CalendarConfig{
			Timezone:         getEnv("SUPPORT_TIMEZONE", "America/New_York"),
			WeekdayOpenHour:  getEnvAsInt("SUPPORT_WEEKDAY_OPEN_HOUR", 9),
			WeekdayCloseHour: getEnvAsInt("SUPPORT_WEEKDAY_CLOSE_HOUR", 18),
			WeekendOpenHour:  getEnvAsInt("SUPPORT_WEEKEND_OPEN_HOUR", 10),
			WeekendCloseHour: getEnvAsInt("SUPPORT_WEEKEND_CLOSE_HOUR", 15),
			SundayClosed:     getEnvAsBool("SUPPORT_SUNDAY_CLOSED", true),
		},
		Geo: GeoConfig{
			Endpoint:       getEnv("GEO_ENDPOINT", "http://ip-api.com/json/"),
			TimeoutSeconds: getEnvAsInt("GEO_TIMEOUT_SECONDS", 3),
		},
		Notification: NotificationConfig{
			SoundWebhookURL: getEnv("NOTIFY_SOUND_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MinDelay returns the lower bound of the simulated delivery latency.
func (c ChatConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the upper bound of the simulated delivery latency.
func (c ChatConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// BotReplyDelay returns the scripted reply pause.
func (c ChatConfig) BotReplyDelay() time.Duration {
	return time.Duration(c.BotReplyDelayMs) * time.Millisecond
}

// Timeout returns the geolocation lookup deadline.
func (g GeoConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
