package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// HubConfig describes the chain the engine settles on
type HubConfig struct {
	RPCURL               string        `mapstructure:"rpc_url"`
	ChainID              uint64        `mapstructure:"chain_id"`
	Address              string        `mapstructure:"address"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
	// CustodyKey is the hex private key of the account holding the hub's tokens
	CustodyKey string `mapstructure:"custody_key"`
	// ExecutorKey is the hex private key of the account running swap calls, empty disables swaps
	ExecutorKey         string        `mapstructure:"executor_key"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

// ControllerConfig describes the counterparty controller whose event chain is mirrored
type ControllerConfig struct {
	RPCURL                 string        `mapstructure:"rpc_url"`
	Address                string        `mapstructure:"address"`
	ReceiverImplementation string        `mapstructure:"receiver_implementation"`
	StartBlock             uint64        `mapstructure:"start_block"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	BatchSize              uint64        `mapstructure:"batch_size"`
	MaxBackoff             time.Duration `mapstructure:"max_backoff"`
	BlockHeadTTL           time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow   time.Duration `mapstructure:"block_head_stale_window"`
}

// ProtocolConfig holds the initial protocol parameters and bound identities
type ProtocolConfig struct {
	Owner                   string           `mapstructure:"owner"`
	USDT                    string           `mapstructure:"usdt"`
	TronUSDT                string           `mapstructure:"tron_usdt"`
	TronReader              string           `mapstructure:"tron_reader"`
	FloorPPM                uint32           `mapstructure:"floor_ppm"`
	FloorFlatFee            uint64           `mapstructure:"floor_flat_fee"`
	MaxLeaseDurationSeconds uint64           `mapstructure:"max_lease_duration_seconds"`
	PayoutRateLimit         domain.RateLimit `mapstructure:"payout_rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string  `mapstructure:"host"`
	Port              int     `mapstructure:"port"`
	ReadTimeout       int     `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout      int     `mapstructure:"write_timeout"` // in seconds
	IdleTimeout       int     `mapstructure:"idle_timeout"`  // in seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// MetricsConfig holds prometheus configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EngineConfig holds configuration for the engine daemon
type EngineConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Hub        HubConfig        `mapstructure:"hub"`
	Controller ControllerConfig `mapstructure:"controller"`
	Protocol   ProtocolConfig   `mapstructure:"protocol"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LoadEngineConfig loads the engine configuration from file, .env files and UNTRON_ENGINE_* variables
func LoadEngineConfig(configFile string, envPath string) (*EngineConfig, error) {
	v := configureViper("engine", configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "UNTRON_EVENTS")
	v.SetDefault("nats.subject_prefix", "untron.events")
	v.SetDefault("nats.connection_name", "untron-engine")
	v.SetDefault("hub.block_head_ttl", "2s")
	v.SetDefault("hub.block_head_stale_window", "1m")
	v.SetDefault("hub.receipt_poll_interval", "1s")
	v.SetDefault("hub.receipt_timeout", "2m")
	v.SetDefault("controller.poll_interval", "3s")
	v.SetDefault("controller.batch_size", 2000)
	v.SetDefault("controller.max_backoff", "1m")
	v.SetDefault("controller.block_head_ttl", "3s")
	v.SetDefault("controller.block_head_stale_window", "1m")
	v.SetDefault("protocol.max_lease_duration_seconds", 365*24*60*60)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.requests_per_second", 50)
	v.SetDefault("server.burst", 100)
	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required settings are present and well formed
func (c *EngineConfig) Validate() error {
	if c.Hub.ChainID == 0 {
		return errors.New("hub.chain_id is required")
	}
	addresses := map[string]string{
		"hub.address":    c.Hub.Address,
		"protocol.owner": c.Protocol.Owner,
		"protocol.usdt":  c.Protocol.USDT,
	}
	optional := map[string]string{
		"protocol.tron_usdt":                 c.Protocol.TronUSDT,
		"protocol.tron_reader":               c.Protocol.TronReader,
		"controller.address":                 c.Controller.Address,
		"controller.receiver_implementation": c.Controller.ReceiverImplementation,
	}
	for key, value := range addresses {
		if value == "" {
			return fmt.Errorf("%s is required", key)
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s is not a valid address: %q", key, value)
		}
	}
	for key, value := range optional {
		if value != "" && !common.IsHexAddress(value) {
			return fmt.Errorf("%s is not a valid address: %q", key, value)
		}
	}
	if c.Protocol.PayoutRateLimit.Max == 0 && c.Protocol.PayoutRateLimit.WindowSeconds != 0 ||
		c.Protocol.PayoutRateLimit.Max != 0 && c.Protocol.PayoutRateLimit.WindowSeconds == 0 {
		return errors.New("protocol.payout_rate_limit needs both max and window_seconds")
	}
	return nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("UNTRON_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.enabled",
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Hub
		"hub.rpc_url",
		"hub.chain_id",
		"hub.address",
		"hub.block_head_ttl",
		"hub.block_head_stale_window",
		"hub.custody_key",
		"hub.executor_key",
		"hub.receipt_poll_interval",
		"hub.receipt_timeout",
		// Controller
		"controller.rpc_url",
		"controller.address",
		"controller.receiver_implementation",
		"controller.start_block",
		"controller.poll_interval",
		"controller.batch_size",
		"controller.max_backoff",
		"controller.block_head_ttl",
		"controller.block_head_stale_window",
		// Protocol
		"protocol.owner",
		"protocol.usdt",
		"protocol.tron_usdt",
		"protocol.tron_reader",
		"protocol.floor_ppm",
		"protocol.floor_flat_fee",
		"protocol.max_lease_duration_seconds",
		"protocol.payout_rate_limit.max",
		"protocol.payout_rate_limit.window_seconds",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.requests_per_second",
		"server.burst",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Metrics
		"metrics.enabled",
		"metrics.path",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
