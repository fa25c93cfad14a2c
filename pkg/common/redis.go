package common

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a go-redis universal client so both single-node and
// cluster deployments hide behind one type.
type RedisClient struct {
	redis.UniversalClient
}

type RedisClientOption func(*redis.UniversalOptions)

// WithClientName sets the CLIENT SETNAME for connections from this process
func WithClientName(name string) RedisClientOption {
	return func(o *redis.UniversalOptions) {
		o.ClientName = name
	}
}

func NewRedisClient(cfg types.RedisConfig, opts ...RedisClientOption) (*RedisClient, error) {
	if len(cfg.Addrs) == 0 {
		cfg.Addrs = []string{"localhost:6379"}
	}

	options := &redis.UniversalOptions{
		Addrs:           cfg.Addrs,
		Username:        cfg.Username,
		Password:        cfg.Password,
		ClientName:      cfg.ClientName,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
	}

	if cfg.EnableTLS {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}

	for _, opt := range opts {
		opt(options)
	}

	var client redis.UniversalClient
	if cfg.Mode == types.RedisModeCluster {
		client = redis.NewClusterClient(options.Cluster())
	} else {
		client = redis.NewClient(options.Simple())
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisClient{UniversalClient: client}, nil
}
