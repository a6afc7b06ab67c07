package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

// Config holds all configuration for the application
type Config struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Security     SecurityConfig     `mapstructure:"security"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Chains       []entities.Chain   `mapstructure:"chains"`
	Scanner      ScannerConfig      `mapstructure:"scanner"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Notification NotificationConfig `mapstructure:"notification"`
	Admin        AdminConfig        `mapstructure:"admin"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig is optional. Without a host or URL the wallet scan lock is
// held in process.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// Enabled reports whether a Redis server is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// GatewayConfig sets the global ceiling on outbound chain calls
type GatewayConfig struct {
	MaxRequestsPerSecond int `mapstructure:"max_requests_per_second"`
	WindowMS             int `mapstructure:"window_ms"`
}

type ScannerConfig struct {
	TokenRefreshInterval time.Duration `mapstructure:"token_refresh_interval"`
	SolanaCommitment     string        `mapstructure:"solana_commitment"`
	BreakerFailures      uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout       time.Duration `mapstructure:"breaker_timeout"`
	EVMDialTimeout       time.Duration `mapstructure:"evm_dial_timeout"`
}

type SchedulerConfig struct {
	HighInterval      time.Duration `mapstructure:"high_interval"`
	MediumInterval    time.Duration `mapstructure:"medium_interval"`
	LowInterval       time.Duration `mapstructure:"low_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchDelayMS      int           `mapstructure:"batch_delay_ms"`
	ScanTimeout       time.Duration `mapstructure:"scan_timeout"`
	RunOnStart        bool          `mapstructure:"run_on_start"`
	DecaySchedule     string        `mapstructure:"decay_schedule"`
	HighToMediumAfter time.Duration `mapstructure:"high_to_medium_after"`
	MediumToLowAfter  time.Duration `mapstructure:"medium_to_low_after"`
	WalletLockTTL     time.Duration `mapstructure:"wallet_lock_ttl"`
}

type NotificationConfig struct {
	MaxAttempts            int           `mapstructure:"max_attempts"`
	InitialBackoff         time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff             time.Duration `mapstructure:"max_backoff"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	Workers                int           `mapstructure:"workers"`
	QueueSize              int           `mapstructure:"queue_size"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	SweepMinAge            time.Duration `mapstructure:"sweep_min_age"`
	SweepLookback          time.Duration `mapstructure:"sweep_lookback"`
	SweepBatchSize         int           `mapstructure:"sweep_batch_size"`
}

// AdminConfig selects the admin alert channel: telegram, email or none
type AdminConfig struct {
	Channel          string `mapstructure:"channel"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
	SendGridAPIKey   string `mapstructure:"sendgrid_api_key"`
	FromEmail        string `mapstructure:"from_email"`
	FromName         string `mapstructure:"from_name"`
	ToEmail          string `mapstructure:"to_email"`
}

// Load reads .env, configs/config.yaml and the environment, in that order of
// increasing precedence
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	applyChainEnv(config.Chains)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit_per_min", 100)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "deposit_monitor")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.migrations_path", "file://migrations")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("jwt.issuer", "deposit_monitor")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 0.1)

	v.SetDefault("gateway.max_requests_per_second", 100)
	v.SetDefault("gateway.window_ms", 1000)

	v.SetDefault("chains", []map[string]interface{}{
		{"id": "solana", "name": "Solana", "family": "SOLANA", "rpc_url": "https://api.mainnet-beta.solana.com"},
	})

	v.SetDefault("scanner.token_refresh_interval", time.Minute)
	v.SetDefault("scanner.solana_commitment", "confirmed")
	v.SetDefault("scanner.breaker_failures", 5)
	v.SetDefault("scanner.breaker_timeout", 30*time.Second)
	v.SetDefault("scanner.evm_dial_timeout", 10*time.Second)

	v.SetDefault("scheduler.high_interval", 30*time.Second)
	v.SetDefault("scheduler.medium_interval", 5*time.Minute)
	v.SetDefault("scheduler.low_interval", 15*time.Minute)
	v.SetDefault("scheduler.batch_size", 50)
	v.SetDefault("scheduler.batch_delay_ms", 1000)
	v.SetDefault("scheduler.scan_timeout", 10*time.Minute)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.decay_schedule", "@every 10m")
	v.SetDefault("scheduler.high_to_medium_after", 30*time.Minute)
	v.SetDefault("scheduler.medium_to_low_after", 60*time.Minute)
	v.SetDefault("scheduler.wallet_lock_ttl", 10*time.Minute)

	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.initial_backoff", 2*time.Second)
	v.SetDefault("notification.max_backoff", 8*time.Second)
	v.SetDefault("notification.request_timeout", 5*time.Second)
	v.SetDefault("notification.max_consecutive_failures", 5)
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.queue_size", 1000)
	v.SetDefault("notification.sweep_interval", time.Minute)
	v.SetDefault("notification.sweep_min_age", 2*time.Minute)
	v.SetDefault("notification.sweep_lookback", 24*time.Hour)
	v.SetDefault("notification.sweep_batch_size", 100)

	v.SetDefault("admin.channel", "none")
	v.SetDefault("admin.from_name", "Deposit Monitor")
}

func overrideFromEnv(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		v.Set("redis.url", redisURL)
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		v.Set("jwt.secret", jwtSecret)
	}

	if encKey := os.Getenv("ENCRYPTION_KEY"); encKey != "" {
		v.Set("security.encryption_key", encKey)
	}

	// Admin alerts
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		v.Set("admin.telegram_bot_token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		v.Set("admin.telegram_chat_id", chatID)
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		v.Set("admin.sendgrid_api_key", key)
	}
	if to := os.Getenv("ADMIN_EMAIL"); to != "" {
		v.Set("admin.to_email", to)
	}
}

// applyChainEnv lets <CHAIN_ID>_RPC_URL, e.g. SOLANA_RPC_URL, replace the
// configured endpoint of a chain
func applyChainEnv(chains []entities.Chain) {
	for i := range chains {
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(chains[i].ID)) + "_RPC_URL"
		if url := os.Getenv(key); url != "" {
			chains[i].RPCURL = url
		}
		chains[i].Family = entities.ChainFamily(strings.ToUpper(string(chains[i].Family)))
	}
}

func validate(config *Config) error {
	if config.Security.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database url or host and name are required")
	}

	if config.Gateway.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("gateway.max_requests_per_second must be positive")
	}
	if config.Gateway.WindowMS <= 0 {
		return fmt.Errorf("gateway.window_ms must be positive")
	}

	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	seen := make(map[string]bool, len(config.Chains))
	for _, c := range config.Chains {
		if c.ID == "" {
			return fmt.Errorf("chain id is required")
		}
		if seen[c.ID] {
			return fmt.Errorf("chain %q is configured twice", c.ID)
		}
		seen[c.ID] = true
		if !c.Family.IsValid() {
			return fmt.Errorf("chain %q has unsupported family %q", c.ID, c.Family)
		}
		if c.RPCURL == "" {
			return fmt.Errorf("chain %q has no rpc_url", c.ID)
		}
	}

	if config.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}

	switch strings.ToLower(config.Admin.Channel) {
	case "", "none":
	case "telegram":
		if config.Admin.TelegramBotToken == "" || config.Admin.TelegramChatID == "" {
			return fmt.Errorf("telegram admin channel requires bot token and chat id")
		}
	case "email":
		if config.Admin.SendGridAPIKey == "" || config.Admin.FromEmail == "" || config.Admin.ToEmail == "" {
			return fmt.Errorf("email admin channel requires sendgrid api key, from and to addresses")
		}
	default:
		return fmt.Errorf("unsupported admin channel %q", config.Admin.Channel)
	}

	return nil
}

// GatewayWindow returns the gateway rate window as a duration
func (c *Config) GatewayWindow() time.Duration {
	return time.Duration(c.Gateway.WindowMS) * time.Millisecond
}

// BatchDelay returns the pause between scheduler batches
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Scheduler.BatchDelayMS) * time.Millisecond
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
