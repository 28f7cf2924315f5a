package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings           `mapstructure:"app"`
	Postgres      PostgresSettings      `mapstructure:"postgres"`
	Redis         RedisSettings         `mapstructure:"redis"`
	Kafka         KafkaSettings         `mapstructure:"kafka"`
	JWT           JWTSettings           `mapstructure:"jwt"`
	Session       SessionSettings       `mapstructure:"session"`
	ProfileCache  ProfileCacheSettings  `mapstructure:"profile_cache"`
	Impersonation ImpersonationSettings `mapstructure:"impersonation"`
	Telemetry     TelemetrySettings     `mapstructure:"telemetry"`
	RateLimit     RateLimitSettings     `mapstructure:"rate_limit"`
	Argon2        Argon2Settings        `mapstructure:"argon2"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	DB                int    `mapstructure:"db"`
	Password          string `mapstructure:"password"`
	TLSEnabled        bool   `mapstructure:"tls_enabled"`
	ProfilePrefix     string `mapstructure:"profile_prefix"`
	ImpersonatePrefix string `mapstructure:"impersonate_prefix"`
	RateLimitPrefix   string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures Kafka producer and the profile invalidation consumer
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	Async         bool     `mapstructure:"async"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration     time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts   int           `mapstructure:"login_max_attempts"`
	RefreshMaxAttempts int           `mapstructure:"refresh_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// SessionSettings governs session lifetime and the token refresh policy.
type SessionSettings struct {
	Lifetime       time.Duration `mapstructure:"lifetime"`
	RefreshMargin  time.Duration `mapstructure:"refresh_margin"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
}

// ProfileCacheSettings governs the profile resolver cache.
type ProfileCacheSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ImpersonationSettings governs impersonation overlay lifetime.
type ImpersonationSettings struct {
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CPIAM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.profile_prefix",
		"redis.impersonate_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"kafka.consumer_group",
		"jwt.key_directory",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"session.lifetime",
		"session.refresh_margin",
		"session.refresh_timeout",
		"profile_cache.ttl",
		"impersonation.max_duration",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.refresh_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "construction-platform-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "cpiam")
	v.SetDefault("postgres.password", "cpiam_password")
	v.SetDefault("postgres.database", "cpiam")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.profile_prefix", "cpiam:profile")
	v.SetDefault("redis.impersonate_prefix", "cpiam:impersonate")
	v.SetDefault("redis.rate_limit_prefix", "cpiam:rate_limit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "cpiam")
	v.SetDefault("kafka.async", true)
	v.SetDefault("kafka.consumer_group", "cpiam-profile-invalidation")

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "construction-platform-iam")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("session.lifetime", "720h")
	v.SetDefault("session.refresh_margin", "5m")
	v.SetDefault("session.refresh_timeout", "10s")

	v.SetDefault("profile_cache.ttl", "30m")

	v.SetDefault("impersonation.max_duration", "1h")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "construction-platform-iam")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.refresh_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "CPIAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
