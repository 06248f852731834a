package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestNewBootstrap_Defaults(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :8080
data:
  redis:
    addr: 127.0.0.1:6379
`)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "tcp", bc.Server.Http.Network)
	assert.Equal(t, 30*time.Second, bc.Server.Http.Timeout.AsDuration())
	assert.Equal(t, ":9000", bc.Server.Grpc.Addr)

	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/proxylane", bc.Data.Database.Source)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout.AsDuration())

	assert.Equal(t, []string{"http", "https", "socks5"}, bc.Proxy.Protocols)
	assert.Equal(t, "round_robin", bc.Proxy.DefaultStrategy)
	assert.Equal(t, int32(3), bc.Proxy.MaxFailures)
	assert.Equal(t, 300*time.Second, bc.Proxy.Cooldown.AsDuration())
	assert.Equal(t, int32(1), bc.Proxy.MinPoolSize)

	assert.True(t, bc.HealthCheck.Enabled)
	assert.Equal(t, "https://httpbin.org/ip", bc.HealthCheck.Url)
	assert.Equal(t, int32(200), bc.HealthCheck.ExpectedStatus)
	assert.Equal(t, 10*time.Second, bc.HealthCheck.Timeout.AsDuration())
	assert.Equal(t, int32(3), bc.HealthCheck.MaxFailures)
	assert.Equal(t, 300*time.Second, bc.HealthCheck.Interval.AsDuration())
	assert.Equal(t, int32(20), bc.HealthCheck.Concurrency)

	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
}

func TestNewBootstrap_FileValues(t *testing.T) {
	configPath := writeConfig(t, `proxy:
  protocols: [http, socks5]
  default_strategy: latency
  max_failures: 5
  cooldown: 90s
  seed_file: /etc/proxylane/proxies.txt
health_check:
  url: http://probe.internal/ping
  expected_status: 204
  timeout: 2s
  concurrency: 4
`)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"http", "socks5"}, bc.Proxy.Protocols)
	assert.Equal(t, "latency", bc.Proxy.DefaultStrategy)
	assert.Equal(t, int32(5), bc.Proxy.MaxFailures)
	assert.Equal(t, 90*time.Second, bc.Proxy.Cooldown.AsDuration())
	assert.Equal(t, "/etc/proxylane/proxies.txt", bc.Proxy.SeedFile)
	assert.Equal(t, "http://probe.internal/ping", bc.HealthCheck.Url)
	assert.Equal(t, int32(204), bc.HealthCheck.ExpectedStatus)
	assert.Equal(t, 2*time.Second, bc.HealthCheck.Timeout.AsDuration())
	assert.Equal(t, int32(4), bc.HealthCheck.Concurrency)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectedVal func(*Bootstrap) bool
	}{
		{
			name:        "override_http_addr",
			envVars:     map[string]string{"PROXYLANE_SERVER_HTTP_ADDR": ":9999"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Server.Http.Addr == ":9999" },
		},
		{
			name:        "override_redis_addr_short_name",
			envVars:     map[string]string{"REDIS_ADDR": "redis.example.com:6379"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Data.Redis.Addr == "redis.example.com:6379" },
		},
		{
			name:        "override_health_check_url",
			envVars:     map[string]string{"HEALTH_CHECK_URL": "http://example.com/health"},
			expectedVal: func(bc *Bootstrap) bool { return bc.HealthCheck.Url == "http://example.com/health" },
		},
		{
			name:    "override_protocols_comma_list",
			envVars: map[string]string{"PROXYLANE_PROXY_PROTOCOLS": "http, SOCKS5"},
			expectedVal: func(bc *Bootstrap) bool {
				return assert.ObjectsAreEqual([]string{"http", "socks5"}, bc.Proxy.Protocols)
			},
		},
		{
			name:        "api_token_short_name",
			envVars:     map[string]string{"API_TOKEN": "s3cret"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Server.Http.ApiToken == "s3cret" },
		},
		{
			name:        "override_slow_request",
			envVars:     map[string]string{"PROXYLANE_SERVER_HTTP_SLOW_REQUEST": "500ms"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Server.Http.SlowRequest.AsDuration() == 500*time.Millisecond },
		},
		{
			name:        "override_log_level",
			envVars:     map[string]string{"PROXYLANE_LOG_LEVEL": "debug"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Log.Level == "debug" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, `server:
  http:
    addr: :8080
`)
			t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap(configPath)
			require.NoError(t, err)
			assert.True(t, tt.expectedVal(bc))
		})
	}
}

func TestNewBootstrap_MissingDSN(t *testing.T) {
	configPath := writeConfig(t, "server:\n  http:\n    addr: :8080\n")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("PROXYLANE_DATA_DATABASE_SOURCE", "")

	bc, err := NewBootstrap(configPath)
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "data.database.source (MYSQL_DSN)")
}

func TestNewBootstrap_ConfigFileNotFound(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")

	bc, err := NewBootstrap("/non/existent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewBootstrap_EmptyConfigPath(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")

	bc, err := NewBootstrap("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/proxylane", bc.Data.Database.Source)
}

func TestNewBootstrap_PriorityOrder(t *testing.T) {
	configPath := writeConfig(t, "server:\n  http:\n    addr: :7777\n")
	t.Setenv("PROXYLANE_SERVER_HTTP_ADDR", ":8888")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/proxylane")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	assert.Equal(t, ":8888", bc.Server.Http.Addr, "Environment variable should override config file")
}

func validBootstrap() *Bootstrap {
	return &Bootstrap{
		Data: &Data{Database: &Data_Database{Source: "user:pass@tcp(localhost:3306)/proxylane"}},
		Proxy: &Proxy{
			Protocols:   []string{"http"},
			MaxFailures: 3,
			MinPoolSize: 1,
		},
		HealthCheck: &HealthCheck{
			Url:         "https://httpbin.org/ip",
			MaxFailures: 3,
			Concurrency: 20,
			Timeout:     durationpb.New(10 * time.Second),
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(bc *Bootstrap)
		wantErr string
	}{
		{name: "valid", mutate: func(*Bootstrap) {}},
		{name: "zero_max_failures", mutate: func(bc *Bootstrap) { bc.Proxy.MaxFailures = 0 }, wantErr: "proxy.max_failures"},
		{name: "zero_ban_threshold", mutate: func(bc *Bootstrap) { bc.HealthCheck.MaxFailures = 0 }, wantErr: "health_check.max_failures"},
		{name: "zero_concurrency", mutate: func(bc *Bootstrap) { bc.HealthCheck.Concurrency = 0 }, wantErr: "health_check.concurrency"},
		{name: "zero_timeout", mutate: func(bc *Bootstrap) { bc.HealthCheck.Timeout = durationpb.New(0) }, wantErr: "health_check.timeout"},
		{name: "unknown_protocol", mutate: func(bc *Bootstrap) { bc.Proxy.Protocols = []string{"ftp"} }, wantErr: `unknown protocol "ftp"`},
		{name: "missing_url", mutate: func(bc *Bootstrap) { bc.HealthCheck.Url = "" }, wantErr: "health_check.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := validBootstrap()
			tt.mutate(bc)
			err := Validate(bc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_EmptyBootstrap(t *testing.T) {
	err := Validate(&Bootstrap{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration fields")
}
