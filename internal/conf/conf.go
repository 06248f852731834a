package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the root configuration of the service.
type Bootstrap struct {
	Server      *Server      `json:"server,omitempty"`
	Data        *Data        `json:"data,omitempty"`
	Log         *Log         `json:"log,omitempty"`
	Proxy       *Proxy       `json:"proxy,omitempty"`
	HealthCheck *HealthCheck `json:"health_check,omitempty"`
}

// Server holds the transport listeners.
type Server struct {
	Http *Server_HTTP `json:"http,omitempty"`
	Grpc *Server_GRPC `json:"grpc,omitempty"`
}

// Server_HTTP configures the HTTP API listener.
type Server_HTTP struct {
	Network string               `json:"network,omitempty"`
	Addr    string               `json:"addr,omitempty"`
	Timeout *durationpb.Duration `json:"timeout,omitempty"`
	// ApiToken is required on every API request when set.
	ApiToken    string               `json:"api_token,omitempty"`
	SlowRequest *durationpb.Duration `json:"slow_request,omitempty"`
}

// Server_GRPC configures the gRPC health listener.
type Server_GRPC struct {
	Network string               `json:"network,omitempty"`
	Addr    string               `json:"addr,omitempty"`
	Timeout *durationpb.Duration `json:"timeout,omitempty"`
}

// Data holds the storage backends.
type Data struct {
	Database *Data_Database `json:"database,omitempty"`
	Redis    *Data_Redis    `json:"redis,omitempty"`
}

// Data_Database configures the MySQL snapshot store.
type Data_Database struct {
	Driver       string `json:"driver,omitempty"`
	Source       string `json:"source,omitempty"`
	MaxIdleConns int32  `json:"max_idle_conns,omitempty"`
	MaxOpenConns int32  `json:"max_open_conns,omitempty"`

	// EncryptionKey seals proxy passwords at rest. Empty stores them as given.
	EncryptionKey string `json:"encryption_key,omitempty"`
}

// Data_Redis configures the Redis client used for cooldown markers and cached health results.
type Data_Redis struct {
	Network      string               `json:"network,omitempty"`
	Addr         string               `json:"addr,omitempty"`
	Password     string               `json:"password,omitempty"`
	Db           int32                `json:"db,omitempty"`
	ReadTimeout  *durationpb.Duration `json:"read_timeout,omitempty"`
	WriteTimeout *durationpb.Duration `json:"write_timeout,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	Level      string `json:"level,omitempty"`
	Format     string `json:"format,omitempty"`
	Env        string `json:"env,omitempty"`
	OutputFile string `json:"output_file,omitempty"`
}

// Proxy configures the rotation scheduler and the pool.
type Proxy struct {
	Protocols       []string             `json:"protocols,omitempty"`
	DefaultStrategy string               `json:"default_strategy,omitempty"`
	MaxFailures     int32                `json:"max_failures,omitempty"`
	Cooldown        *durationpb.Duration `json:"cooldown,omitempty"`
	MinPoolSize     int32                `json:"min_pool_size,omitempty"`
	SeedFile        string               `json:"seed_file,omitempty"`
	FlushInterval   *durationpb.Duration `json:"flush_interval,omitempty"`
}

// HealthCheck configures the probing engine.
type HealthCheck struct {
	Enabled         bool                 `json:"enabled,omitempty"`
	Url             string               `json:"url,omitempty"`
	ExpectedStatus  int32                `json:"expected_status,omitempty"`
	Timeout         *durationpb.Duration `json:"timeout,omitempty"`
	MaxFailures     int32                `json:"max_failures,omitempty"`
	Interval        *durationpb.Duration `json:"interval,omitempty"`
	Concurrency     int32                `json:"concurrency,omitempty"`
	ClientCacheSize int32                `json:"client_cache_size,omitempty"`
}

func (x *Bootstrap) GetServer() *Server {
	if x != nil {
		return x.Server
	}
	return nil
}

func (x *Bootstrap) GetData() *Data {
	if x != nil {
		return x.Data
	}
	return nil
}

func (x *Bootstrap) GetLog() *Log {
	if x != nil {
		return x.Log
	}
	return nil
}

func (x *Bootstrap) GetProxy() *Proxy {
	if x != nil {
		return x.Proxy
	}
	return nil
}

func (x *Bootstrap) GetHealthCheck() *HealthCheck {
	if x != nil {
		return x.HealthCheck
	}
	return nil
}
