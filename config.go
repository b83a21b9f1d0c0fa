package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string             `yaml:"git_commit" envconfig:"LIBP_GIT_COMMIT"`
	GitTag                  string             `yaml:"git_tag" envconfig:"LIBP_GIT_TAG"`
	BuildTime               string             `yaml:"build_time" envconfig:"LIBP_BUILD_TIME"`
	IsProduction            bool               `yaml:"is_production" envconfig:"LIBP_IS_PRODUCTION"`
	LogLevel                zapcore.Level      `yaml:"log_level" envconfig:"LIBP_LOG_LEVEL"`
	LogFolder               string             `yaml:"log_folder" envconfig:"LIBP_LOG_FOLDER"`
	LogMaxSize              int                `yaml:"log_max_size" envconfig:"LIBP_LOG_MAX_SIZE"`
	LogMaxFiles             int                `yaml:"log_max_files" envconfig:"LIBP_LOG_MAX_FILES"`
	OpsEndpointsEnable      bool               `yaml:"ops_endpoints_enable" envconfig:"LIBP_OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool               `yaml:"profiler_endpoints_enable" envconfig:"LIBP_PROFILER_ENDPOINTS_ENABLE"`
	Server                  ServerConfig       `yaml:"server"`
	Redis                   RedisConfig        `yaml:"redis"`
	BoltDB                  BoltDBConfig       `yaml:"boltdb"`
	SQL                     SQLConfig          `yaml:"sql"`
	Auth                    AuthConfig         `yaml:"auth"`
	Cache                   CacheConfig        `yaml:"cache"`
	Outbox                  OutboxConfig       `yaml:"outbox"`
	Notification            NotificationConfig `yaml:"notification"`
	Gateway                 GatewayConfig      `yaml:"gateway"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host" envconfig:"LIBP_SERVER_HOST"`
	Port                    string        `yaml:"port" envconfig:"LIBP_SERVER_PORT"`
	ReadTimeout             time.Duration `yaml:"read_timeout" envconfig:"LIBP_SERVER_READ_TIMEOUT"`
	WriteTimeout            time.Duration `yaml:"write_timeout" envconfig:"LIBP_SERVER_WRITE_TIMEOUT"`
	RequestTimeout          time.Duration `yaml:"request_timeout" envconfig:"LIBP_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	LongRequestWriteTimeout time.Duration `yaml:"long_request_write_timeout" envconfig:"LIBP_SERVER_LONG_REQUEST_WRITE_TIMEOUT"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout" envconfig:"LIBP_SERVER_SHUTDOWN_TIMEOUT"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"LIBP_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"LIBP_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"LIBP_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"LIBP_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"LIBP_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"LIBP_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"LIBP_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"LIBP_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"LIBP_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"LIBP_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath               string        `yaml:"filepath" envconfig:"LIBP_BOLTDB_FILE_PATH"`
	Timeout                time.Duration `yaml:"timeout" envconfig:"LIBP_BOLTDB_TIMEOUT"`
	BucketName             string        `yaml:"bucket_name" envconfig:"LIBP_BOLTDB_BUCKET_NAME"`
	NotificationBucketName string        `yaml:"notification_bucket_name" envconfig:"LIBP_BOLTDB_NOTIFICATION_BUCKET_NAME"`
}

// SQLConfig holds the relational database settings. Driver is one
// of `sqlite3`, `postgres` or `mysql`.
type SQLConfig struct {
	Driver          string        `yaml:"driver" envconfig:"LIBP_SQL_DRIVER"`
	DSN             string        `yaml:"dsn" envconfig:"LIBP_SQL_DSN" json:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"LIBP_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"LIBP_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"LIBP_SQL_CONN_MAX_LIFETIME"`
}

type AuthConfig struct {
	Enable      bool          `yaml:"enable" envconfig:"LIBP_AUTH_ENABLE"`
	Secret      string        `yaml:"secret" envconfig:"LIBP_AUTH_SECRET" json:"-"`
	Issuer      string        `yaml:"issuer" envconfig:"LIBP_AUTH_ISSUER"`
	HeaderName  string        `yaml:"header_name" envconfig:"LIBP_AUTH_HEADER_NAME"`
	TokenPrefix string        `yaml:"token_prefix" envconfig:"LIBP_AUTH_TOKEN_PREFIX"`
	TokenTTL    time.Duration `yaml:"token_ttl" envconfig:"LIBP_AUTH_TOKEN_TTL"`
	// Users maps a username to its bcrypt password hash.
	Users map[string]string `yaml:"users" envconfig:"LIBP_AUTH_USERS" json:"-"`
}

type CacheConfig struct {
	ReviewsTTL time.Duration `yaml:"reviews_ttl" envconfig:"LIBP_CACHE_REVIEWS_TTL"`
	KeyPrefix  string        `yaml:"key_prefix" envconfig:"LIBP_CACHE_KEY_PREFIX"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"LIBP_OUTBOX_POLL_INTERVAL"`
	BatchSize    int           `yaml:"batch_size" envconfig:"LIBP_OUTBOX_BATCH_SIZE"`
	Retention    time.Duration `yaml:"retention" envconfig:"LIBP_OUTBOX_RETENTION"`
}

type NotificationConfig struct {
	AdminRecipient string        `yaml:"admin_recipient" envconfig:"LIBP_NOTIFICATION_ADMIN_RECIPIENT"`
	WebhookURL     string        `yaml:"webhook_url" envconfig:"LIBP_NOTIFICATION_WEBHOOK_URL"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout" envconfig:"LIBP_NOTIFICATION_WEBHOOK_TIMEOUT"`
	MaxAttempts    int           `yaml:"max_attempts" envconfig:"LIBP_NOTIFICATION_MAX_ATTEMPTS"`
}

type GatewayConfig struct {
	Enable      bool              `yaml:"enable" envconfig:"LIBP_GATEWAY_ENABLE"`
	Host        string            `yaml:"host" envconfig:"LIBP_GATEWAY_HOST"`
	Port        string            `yaml:"port" envconfig:"LIBP_GATEWAY_PORT"`
	UpstreamURL string            `yaml:"upstream_url" envconfig:"LIBP_GATEWAY_UPSTREAM_URL"`
	PublicPaths []string          `yaml:"public_paths" envconfig:"LIBP_GATEWAY_PUBLIC_PATHS"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Bulkhead    BulkheadConfig    `yaml:"bulkhead"`
	Retry       RetryConfig       `yaml:"retry"`
	Breaker     CircuitBreakerCfg `yaml:"circuit_breaker"`
}

type RateLimitConfig struct {
	Enable       bool          `yaml:"enable" envconfig:"LIBP_GATEWAY_RATE_LIMIT_ENABLE"`
	RPS          float64       `yaml:"rps" envconfig:"LIBP_GATEWAY_RATE_LIMIT_RPS"`
	Burst        int           `yaml:"burst" envconfig:"LIBP_GATEWAY_RATE_LIMIT_BURST"`
	KeyHeader    string        `yaml:"key_header" envconfig:"LIBP_GATEWAY_RATE_LIMIT_KEY_HEADER"`
	TrustXFF     bool          `yaml:"trust_xff" envconfig:"LIBP_GATEWAY_RATE_LIMIT_TRUST_XFF"`
	RetryAfter   time.Duration `yaml:"retry_after" envconfig:"LIBP_GATEWAY_RATE_LIMIT_RETRY_AFTER"`
	AddHeaders   bool          `yaml:"add_headers" envconfig:"LIBP_GATEWAY_RATE_LIMIT_ADD_HEADERS"`
	IdleTTL      time.Duration `yaml:"idle_ttl" envconfig:"LIBP_GATEWAY_RATE_LIMIT_IDLE_TTL"`
	CleanupEvery time.Duration `yaml:"cleanup_every" envconfig:"LIBP_GATEWAY_RATE_LIMIT_CLEANUP_EVERY"`
	StatsEnable  bool          `yaml:"stats_enable" envconfig:"LIBP_GATEWAY_RATE_LIMIT_STATS_ENABLE"`
	StatsPrefix  string        `yaml:"stats_prefix" envconfig:"LIBP_GATEWAY_RATE_LIMIT_STATS_PREFIX"`
	StatsTTL     time.Duration `yaml:"stats_ttl" envconfig:"LIBP_GATEWAY_RATE_LIMIT_STATS_TTL"`
}

type BulkheadConfig struct {
	MaxConcurrent int64         `yaml:"max_concurrent" envconfig:"LIBP_GATEWAY_BULKHEAD_MAX_CONCURRENT"`
	MaxWait       time.Duration `yaml:"max_wait" envconfig:"LIBP_GATEWAY_BULKHEAD_MAX_WAIT"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" envconfig:"LIBP_GATEWAY_RETRY_MAX_ATTEMPTS"`
	InitialInterval time.Duration `yaml:"initial_interval" envconfig:"LIBP_GATEWAY_RETRY_INITIAL_INTERVAL"`
	MaxInterval     time.Duration `yaml:"max_interval" envconfig:"LIBP_GATEWAY_RETRY_MAX_INTERVAL"`
	Multiplier      float64       `yaml:"multiplier" envconfig:"LIBP_GATEWAY_RETRY_MULTIPLIER"`
}

type CircuitBreakerCfg struct {
	Name                string        `yaml:"name" envconfig:"LIBP_GATEWAY_BREAKER_NAME"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" envconfig:"LIBP_GATEWAY_BREAKER_CONSECUTIVE_FAILURES"`
	OpenTimeout         time.Duration `yaml:"open_timeout" envconfig:"LIBP_GATEWAY_BREAKER_OPEN_TIMEOUT"`
	HalfOpenMaxRequests uint32        `yaml:"half_open_max_requests" envconfig:"LIBP_GATEWAY_BREAKER_HALF_OPEN_MAX_REQUESTS"`
	Interval            time.Duration `yaml:"interval" envconfig:"LIBP_GATEWAY_BREAKER_INTERVAL"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	if config.Auth.Enable && len(config.Auth.Secret) == 0 {
		return errors.New("make sure to set the auth secret when authentication is enabled")
	}

	if config.Gateway.Enable {
		if len(config.Gateway.Port) == 0 {
			return errors.New("make sure to set a valid gateway port in configuration file")
		}
		if len(config.Gateway.UpstreamURL) == 0 {
			return errors.New("make sure to set the gateway upstream url in configuration file")
		}
	}

	setDefaults(config)
	return nil
}

// setDefaults fills zero values with usable settings.
func setDefaults(config *Config) {
	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}
	if config.LogFolder == "" {
		config.LogFolder = "./logs"
	}
	if config.LogMaxFiles == 0 {
		config.LogMaxFiles = 5
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 30 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}
	if config.Server.LongRequestWriteTimeout == 0 {
		config.Server.LongRequestWriteTimeout = time.Minute
	}

	if config.BoltDB.BucketName == "" {
		config.BoltDB.BucketName = "books"
	}
	if config.BoltDB.NotificationBucketName == "" {
		config.BoltDB.NotificationBucketName = "notifications"
	}

	if config.SQL.Driver == "" {
		config.SQL.Driver = "sqlite3"
	}
	if config.SQL.DSN == "" && config.SQL.Driver == "sqlite3" {
		config.SQL.DSN = "file:library.db?_foreign_keys=on"
	}

	if config.Auth.Issuer == "" {
		config.Auth.Issuer = "library-platform"
	}
	if config.Auth.HeaderName == "" {
		config.Auth.HeaderName = "Authorization"
	}
	if config.Auth.TokenPrefix == "" {
		config.Auth.TokenPrefix = "Bearer "
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = time.Hour
	}

	if config.Cache.ReviewsTTL == 0 {
		config.Cache.ReviewsTTL = 10 * time.Minute
	}
	if config.Cache.KeyPrefix == "" {
		config.Cache.KeyPrefix = "reviews:product:"
	}

	if config.Outbox.PollInterval == 0 {
		config.Outbox.PollInterval = 5 * time.Second
	}
	if config.Outbox.BatchSize <= 0 {
		config.Outbox.BatchSize = 50
	}
	if config.Outbox.Retention == 0 {
		config.Outbox.Retention = 7 * 24 * time.Hour
	}

	if config.Notification.WebhookTimeout == 0 {
		config.Notification.WebhookTimeout = 5 * time.Second
	}
	if config.Notification.MaxAttempts <= 0 {
		config.Notification.MaxAttempts = 3
	}

	gw := &config.Gateway
	if gw.Host == "" {
		gw.Host = config.Server.Host
	}
	if gw.RateLimit.RPS <= 0 {
		gw.RateLimit.RPS = 10
	}
	if gw.RateLimit.Burst <= 0 {
		gw.RateLimit.Burst = 20
	}
	if gw.RateLimit.RetryAfter == 0 {
		gw.RateLimit.RetryAfter = time.Second
	}
	if gw.RateLimit.IdleTTL == 0 {
		gw.RateLimit.IdleTTL = 15 * time.Minute
	}
	if gw.RateLimit.CleanupEvery == 0 {
		gw.RateLimit.CleanupEvery = 2 * time.Minute
	}
	if gw.RateLimit.StatsPrefix == "" {
		gw.RateLimit.StatsPrefix = "gateway:ratelimit:stats"
	}
	if gw.RateLimit.StatsTTL == 0 {
		gw.RateLimit.StatsTTL = 24 * time.Hour
	}
	if gw.Bulkhead.MaxConcurrent <= 0 {
		gw.Bulkhead.MaxConcurrent = 10
	}
	if gw.Bulkhead.MaxWait == 0 {
		gw.Bulkhead.MaxWait = 500 * time.Millisecond
	}
	if gw.Retry.MaxAttempts <= 0 {
		gw.Retry.MaxAttempts = 3
	}
	if gw.Retry.InitialInterval == 0 {
		gw.Retry.InitialInterval = 500 * time.Millisecond
	}
	if gw.Retry.MaxInterval == 0 {
		gw.Retry.MaxInterval = 5 * time.Second
	}
	if gw.Retry.Multiplier <= 0 {
		gw.Retry.Multiplier = 2
	}
	if gw.Breaker.Name == "" {
		gw.Breaker.Name = "book-service"
	}
	if gw.Breaker.ConsecutiveFailures == 0 {
		gw.Breaker.ConsecutiveFailures = 5
	}
	if gw.Breaker.OpenTimeout == 0 {
		gw.Breaker.OpenTimeout = 10 * time.Second
	}
	if gw.Breaker.HalfOpenMaxRequests == 0 {
		gw.Breaker.HalfOpenMaxRequests = 1
	}
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration. The file is optional.
	err = godotenv.Load("./config.env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `LIBP`.
	err = LoadConfigEnvs("LIBP", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
