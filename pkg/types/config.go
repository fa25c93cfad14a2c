package types

import (
	"time"
)

// AppConfig is the root configuration for the gateway and CLI
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	Database DatabaseConfig `key:"database" json:"database"`
	Elastic  ElasticConfig  `key:"elastic" json:"elastic"`
	Index    IndexConfig    `key:"index" json:"index"`
	Cache    CacheConfig    `key:"cache" json:"cache"`
	Gateway  GatewayConfig  `key:"gateway" json:"gateway"`
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis    RedisConfig    `key:"redis" json:"redis"`
	Postgres PostgresConfig `key:"postgres" json:"postgres"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
}

type PostgresConfig struct {
	Host            string        `key:"host" json:"host"`
	Port            int           `key:"port" json:"port"`
	User            string        `key:"user" json:"user"`
	Password        string        `key:"password" json:"password"`
	Database        string        `key:"database" json:"database"`
	SSLMode         string        `key:"sslMode" json:"ssl_mode"`
	MaxOpenConns    int           `key:"maxOpenConns" json:"max_open_conns"`
	MaxIdleConns    int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
}

// ----------------------------------------------------------------------------
// Search Index Configuration
// ----------------------------------------------------------------------------

type ElasticConfig struct {
	Host     string        `key:"host" json:"host"`
	Port     int           `key:"port" json:"port"`
	User     string        `key:"user" json:"user"`
	Password string        `key:"password" json:"password"`
	Timeout  time.Duration `key:"timeout" json:"timeout"`
}

// IndexConfig tunes the reindex pipeline
type IndexConfig struct {
	// ChunkSize is the number of documents per bulk call during reindexing
	ChunkSize int `key:"chunkSize" json:"chunk_size"`

	// MigrationLockTTL bounds how long a single reindex run may hold the
	// migration lock before the lease expires
	MigrationLockTTL time.Duration `key:"migrationLockTTL" json:"migration_lock_ttl"`
}

const (
	DefaultReindexChunkSize      = 2500
	DefaultMigrationLockTTL      = 2 * time.Hour
	DefaultCacheTTL              = 24 * time.Hour
	DefaultElasticRequestTimeout = 30 * time.Second
	DefaultSearchSize            = 10
	MaxSearchSize                = 50
)

type CacheConfig struct {
	TTL time.Duration `key:"ttl" json:"ttl"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP HTTPConfig `key:"http" json:"http"`
}

type HTTPConfig struct {
	Host             string     `key:"host" json:"host"`
	Port             int        `key:"port" json:"port"`
	EnablePrettyLogs bool       `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	CORS             CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowOrigins" json:"allowed_origins"`
	AllowedHeaders []string `key:"allowHeaders" json:"allowed_headers"`
	AllowedMethods []string `key:"allowMethods" json:"allowed_methods"`
}
