package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalEngineConfig = `
hub:
  chain_id: 42161
  address: "0x00000000000000000000000000000000000000a1"
protocol:
  owner: "0x00000000000000000000000000000000000000b2"
  usdt: "0x00000000000000000000000000000000000000c3"
`

func TestLoadEngineConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *EngineConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
worker:
  pool_size: 8
  queue_size: 512
database:
  host: localhost
  port: 5433
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_EVENTS"
  subject_prefix: "test.events"
  max_reconnects: 5
  reconnect_wait: "5s"
  connection_name: "test-connection"
hub:
  rpc_url: "http://localhost:8545"
  chain_id: 42161
  address: "0x00000000000000000000000000000000000000a1"
  block_head_ttl: "4s"
controller:
  rpc_url: "http://localhost:8546"
  address: "0x00000000000000000000000000000000000000d4"
  receiver_implementation: "0x00000000000000000000000000000000000000e5"
  start_block: 1000
  poll_interval: "10s"
  batch_size: 500
protocol:
  owner: "0x00000000000000000000000000000000000000b2"
  usdt: "0x00000000000000000000000000000000000000c3"
  tron_usdt: "0x00000000000000000000000000000000000000f6"
  floor_ppm: 1000
  floor_flat_fee: 250000
  max_lease_duration_seconds: 86400
  payout_rate_limit:
    max: 3
    window_seconds: 3600
server:
  port: 9090
  requests_per_second: 5
  burst: 10
auth:
  api_keys: ["key-1", "key-2"]
metrics:
  enabled: false
`,
			validate: func(t *testing.T, cfg *EngineConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, 8, cfg.Worker.WorkerPoolSize)
				assert.Equal(t, 512, cfg.Worker.WorkerQueueSize)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "TEST_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "test.events", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, uint64(42161), cfg.Hub.ChainID)
				assert.Equal(t, 4*time.Second, cfg.Hub.BlockHeadTTL)
				assert.Equal(t, uint64(1000), cfg.Controller.StartBlock)
				assert.Equal(t, 10*time.Second, cfg.Controller.PollInterval)
				assert.Equal(t, uint64(500), cfg.Controller.BatchSize)
				assert.Equal(t, uint32(1000), cfg.Protocol.FloorPPM)
				assert.Equal(t, uint64(250000), cfg.Protocol.FloorFlatFee)
				assert.Equal(t, uint64(86400), cfg.Protocol.MaxLeaseDurationSeconds)
				assert.Equal(t, uint64(3), cfg.Protocol.PayoutRateLimit.Max)
				assert.Equal(t, uint64(3600), cfg.Protocol.PayoutRateLimit.WindowSeconds)
				assert.True(t, cfg.Protocol.PayoutRateLimit.Enabled())
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.InDelta(t, 5.0, cfg.Server.RequestsPerSecond, 0.0001)
				assert.Equal(t, 10, cfg.Server.Burst)
				assert.Equal(t, []string{"key-1", "key-2"}, cfg.Auth.APIKeys)
				assert.False(t, cfg.Metrics.Enabled)
			},
		},
		{
			name:       "config with defaults",
			configFile: minimalEngineConfig,
			validate: func(t *testing.T, cfg *EngineConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
				assert.Equal(t, 10, cfg.NATS.MaxReconnects)
				assert.Equal(t, "2s", cfg.NATS.ReconnectWait.String())
				assert.Equal(t, "UNTRON_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "untron.events", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 3*time.Second, cfg.Controller.PollInterval)
				assert.Equal(t, uint64(2000), cfg.Controller.BatchSize)
				assert.Equal(t, uint64(365*24*60*60), cfg.Protocol.MaxLeaseDurationSeconds)
				assert.False(t, cfg.Protocol.PayoutRateLimit.Enabled())
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 100, cfg.Server.Burst)
				assert.Equal(t, "/metrics", cfg.Metrics.Path)
				assert.True(t, cfg.Metrics.Enabled)
			},
		},
		{
			name:        "missing config file fails validation",
			configFile:  "",
			expectError: true,
		},
		{
			name: "missing hub chain id",
			configFile: `
hub:
  address: "0x00000000000000000000000000000000000000a1"
protocol:
  owner: "0x00000000000000000000000000000000000000b2"
  usdt: "0x00000000000000000000000000000000000000c3"
`,
			expectError: true,
		},
		{
			name: "malformed owner address",
			configFile: `
hub:
  chain_id: 1
  address: "0x00000000000000000000000000000000000000a1"
protocol:
  owner: "not-an-address"
  usdt: "0x00000000000000000000000000000000000000c3"
`,
			expectError: true,
		},
		{
			name: "half configured payout rate limit",
			configFile: minimalEngineConfig + `
  payout_rate_limit:
    max: 3
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
				database:
				  host: localhost
				  port: invalid
			`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			var configFile string

			if tt.configFile != "" {
				configFile = filepath.Join(tmpDir, "config.yaml")
				err := os.WriteFile(configFile, []byte(tt.configFile), 0600)
				require.NoError(t, err)
			} else {
				configFile = filepath.Join(tmpDir, "nonexistent.yaml")
			}

			cfg, err := LoadEngineConfig(configFile, tmpDir)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "complete config",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "testpass",
				DBName:   "testdb",
				SSLMode:  "require",
			},
			expected: "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require",
		},
		{
			name: "with special characters in password",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "p@ssw0rd!",
				DBName:   "testdb",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=testuser password=p@ssw0rd! dbname=testdb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()

	envDir := filepath.Join(tmpDir, "env")
	err := os.MkdirAll(envDir, 0750)
	require.NoError(t, err)

	overridden := []string{
		"UNTRON_ENGINE_DEBUG",
		"UNTRON_ENGINE_DATABASE_HOST",
		"UNTRON_ENGINE_DATABASE_PORT",
		"UNTRON_ENGINE_PROTOCOL_FLOOR_PPM",
		"UNTRON_ENGINE_CONTROLLER_POLL_INTERVAL",
	}
	t.Cleanup(func() {
		for _, key := range overridden {
			_ = os.Unsetenv(key)
		}
	})

	// .env.engine.local overrides .env
	err = os.WriteFile(filepath.Join(envDir, ".env"), []byte(`UNTRON_ENGINE_DEBUG=true
UNTRON_ENGINE_DATABASE_HOST=env-host
UNTRON_ENGINE_DATABASE_PORT=3306
UNTRON_ENGINE_PROTOCOL_FLOOR_PPM=500
`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(envDir, ".env.engine.local"), []byte(`UNTRON_ENGINE_PROTOCOL_FLOOR_PPM=750
UNTRON_ENGINE_CONTROLLER_POLL_INTERVAL=15s
`), 0600)
	require.NoError(t, err)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(`
debug: false
database:
  host: file-host
  port: 5432
`+minimalEngineConfig), 0600)
	require.NoError(t, err)

	cfg, err := LoadEngineConfig(configPath, envDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, uint32(750), cfg.Protocol.FloorPPM)
	assert.Equal(t, 15*time.Second, cfg.Controller.PollInterval)
}
