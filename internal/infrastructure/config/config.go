package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Connectivity  ConnectivityConfig  `mapstructure:"connectivity"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BackendConfig points at the commerce REST backend the queue replays against.
type BackendConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	APIKey                  string        `mapstructure:"api_key"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	// Demo swaps the HTTP client for an in-process mock backend.
	Demo bool `mapstructure:"demo"`
}

type QueueConfig struct {
	Key             string `mapstructure:"key"`
	PersistAttempts uint   `mapstructure:"persist_attempts"`
	ErrorBuffer     int    `mapstructure:"error_buffer"`
	// DeadLetterStream is the Redis stream dropped operations are copied to.
	// Empty disables dead-lettering.
	DeadLetterStream string        `mapstructure:"dead_letter_stream"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type ConnectivityConfig struct {
	// Mode is "probe" (poll the backend health endpoint) or "manual"
	// (state pushed through the local API by the host app).
	Mode          string        `mapstructure:"mode"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	HealthPath    string        `mapstructure:"health_path"`
	InitialOnline bool          `mapstructure:"initial_online"`
}

const (
	ConnectivityProbe  = "probe"
	ConnectivityManual = "manual"
)

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

// STORESYNC_BACKEND_BASE_URL maps to backend.base_url.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Load reads defaults, an optional config.yaml and STORESYNC_* environment
// variables. A .env file in the working directory is loaded first; it never
// overrides variables already set in the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storesync")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}

	if !c.Backend.Demo {
		if c.Backend.BaseURL == "" {
			errs = append(errs, fmt.Errorf("backend.base_url is required"))
		} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
		}
	}
	if c.Backend.RequestTimeout <= 0 || c.Backend.RequestTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("backend.request_timeout must be between 0 and 1m, got %s", c.Backend.RequestTimeout))
	}

	if c.Queue.Key == "" {
		errs = append(errs, fmt.Errorf("queue.key is required"))
	}
	if c.Queue.DeadLetterStream != "" && c.Storage.Driver != DriverRedis {
		errs = append(errs, fmt.Errorf("queue.dead_letter_stream requires storage.driver=redis"))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
		if c.Queue.LeaseTTL <= 0 {
			errs = append(errs, fmt.Errorf("queue.lease_ttl must be positive"))
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be one of sqlite, redis, postgres, memory, got %q", c.Storage.Driver))
	}

	switch c.Connectivity.Mode {
	case ConnectivityProbe:
		if c.Connectivity.ProbeInterval <= 0 {
			errs = append(errs, fmt.Errorf("connectivity.probe_interval must be positive"))
		}
	case ConnectivityManual:
	default:
		errs = append(errs, fmt.Errorf("connectivity.mode must be probe or manual, got %q", c.Connectivity.Mode))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Storage.Driver == DriverPostgres && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.request_timeout", "15s")
	v.SetDefault("backend.circuit_breaker_threshold", 5)
	v.SetDefault("backend.circuit_breaker_timeout", "30s")
	v.SetDefault("backend.demo", false)

	// Queue defaults
	v.SetDefault("queue.key", "offline_queue")
	v.SetDefault("queue.persist_attempts", 3)
	v.SetDefault("queue.error_buffer", 16)
	v.SetDefault("queue.dead_letter_stream", "")
	v.SetDefault("queue.lease_ttl", "30s")

	// Storage defaults
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "./data/storesync.db")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "storesync")
	v.SetDefault("database.database", "storesync")
	v.SetDefault("database.max_connections", 5)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Connectivity defaults
	v.SetDefault("connectivity.mode", ConnectivityProbe)
	v.SetDefault("connectivity.probe_interval", "10s")
	v.SetDefault("connectivity.probe_timeout", "3s")
	v.SetDefault("connectivity.health_path", "/health")
	v.SetDefault("connectivity.initial_online", false)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	v.SetDefault("instance_id", "storesync-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthURL is the endpoint probed for connectivity.
func (c *Config) HealthURL() string {
	return c.Backend.BaseURL + c.Connectivity.HealthPath
}
