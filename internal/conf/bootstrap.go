// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with PROXYLANE_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or PROXYLANE_DATA_DATABASE_SOURCE: MySQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PROXYLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names kept for compatibility with existing deployments
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "PROXYLANE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.database.encryption_key", "ENCRYPTION_KEY", "PROXYLANE_DATA_DATABASE_ENCRYPTION_KEY")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "PROXYLANE_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.redis.password", "REDIS_PASSWORD", "PROXYLANE_DATA_REDIS_PASSWORD")
	_ = v.BindEnv("server.http.api_token", "API_TOKEN", "PROXYLANE_SERVER_HTTP_API_TOKEN")
	_ = v.BindEnv("health_check.url", "HEALTH_CHECK_URL", "PROXYLANE_HEALTH_CHECK_URL")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),

				ApiToken:    v.GetString("server.http.api_token"),
				SlowRequest: durationpb.New(v.GetDuration("server.http.slow_request")),
			},
			Grpc: &Server_GRPC{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: durationpb.New(v.GetDuration("server.grpc.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver:        v.GetString("data.database.driver"),
				Source:        v.GetString("data.database.source"),
				MaxIdleConns:  v.GetInt32("data.database.max_idle_conns"),
				MaxOpenConns:  v.GetInt32("data.database.max_open_conns"),
				EncryptionKey: v.GetString("data.database.encryption_key"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt32("data.redis.db"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
		Proxy: &Proxy{
			Protocols:       splitList(v.GetStringSlice("proxy.protocols")),
			DefaultStrategy: v.GetString("proxy.default_strategy"),
			MaxFailures:     v.GetInt32("proxy.max_failures"),
			Cooldown:        durationpb.New(v.GetDuration("proxy.cooldown")),
			MinPoolSize:     v.GetInt32("proxy.min_pool_size"),
			SeedFile:        v.GetString("proxy.seed_file"),
			FlushInterval:   durationpb.New(v.GetDuration("proxy.flush_interval")),
		},
		HealthCheck: &HealthCheck{
			Enabled:         v.GetBool("health_check.enabled"),
			Url:             v.GetString("health_check.url"),
			ExpectedStatus:  v.GetInt32("health_check.expected_status"),
			Timeout:         durationpb.New(v.GetDuration("health_check.timeout")),
			MaxFailures:     v.GetInt32("health_check.max_failures"),
			Interval:        durationpb.New(v.GetDuration("health_check.interval")),
			Concurrency:     v.GetInt32("health_check.concurrency"),
			ClientCacheSize: v.GetInt32("health_check.client_cache_size"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)
	v.SetDefault("server.http.slow_request", 2*time.Second)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 10*time.Second)

	v.SetDefault("data.database.driver", "mysql")
	v.SetDefault("data.database.max_idle_conns", 10)
	v.SetDefault("data.database.max_open_conns", 50)
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.db", 0)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("proxy.protocols", []string{"http", "https", "socks5"})
	v.SetDefault("proxy.default_strategy", "round_robin")
	v.SetDefault("proxy.max_failures", 3)
	v.SetDefault("proxy.cooldown", 300*time.Second)
	v.SetDefault("proxy.min_pool_size", 1)
	v.SetDefault("proxy.flush_interval", time.Minute)

	v.SetDefault("health_check.enabled", true)
	v.SetDefault("health_check.url", "https://httpbin.org/ip")
	v.SetDefault("health_check.expected_status", 200)
	v.SetDefault("health_check.timeout", 10*time.Second)
	v.SetDefault("health_check.max_failures", 3)
	v.SetDefault("health_check.interval", 300*time.Second)
	v.SetDefault("health_check.concurrency", 20)
	v.SetDefault("health_check.client_cache_size", 1024)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing or invalid fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}
	if bc.HealthCheck == nil || bc.HealthCheck.Url == "" {
		missingFields = append(missingFields, "health_check.url (HEALTH_CHECK_URL)")
	}
	if bc.Proxy == nil || len(bc.Proxy.Protocols) == 0 {
		missingFields = append(missingFields, "proxy.protocols")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	var invalid []string
	if bc.Proxy.MaxFailures < 1 {
		invalid = append(invalid, "proxy.max_failures must be >= 1")
	}
	if bc.Proxy.MinPoolSize < 0 {
		invalid = append(invalid, "proxy.min_pool_size must be >= 0")
	}
	if bc.HealthCheck.MaxFailures < 1 {
		invalid = append(invalid, "health_check.max_failures must be >= 1")
	}
	if bc.HealthCheck.Concurrency < 1 {
		invalid = append(invalid, "health_check.concurrency must be >= 1")
	}
	if bc.HealthCheck.Timeout.AsDuration() <= 0 {
		invalid = append(invalid, "health_check.timeout must be positive")
	}
	for _, p := range bc.Proxy.Protocols {
		switch p {
		case "http", "https", "socks5":
		default:
			invalid = append(invalid, fmt.Sprintf("proxy.protocols: unknown protocol %q", p))
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}

	return nil
}
