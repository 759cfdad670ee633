package redis

import (
	"context"
	"fmt"

	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
	"github.com/redis/go-redis/v9"
)

// BuilderOption 用于配置 Redis Builder
type BuilderOption func(*Builder)

// WithClient 添加客户端，名为 "default" 的客户端同时注册为匿名 *redis.Client，
// 供 LocalizationBundleFactory.Class=redis 使用
func WithClient(name string, configure func(*RedisClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, configure)
	}
}

// WithClientFromConfig 从配置节读取客户端
func WithClientFromConfig(name, section string) BuilderOption {
	return func(b *Builder) {
		b.AddClientFromConfig(name, section)
	}
}

// New 启用 Redis 能力
// 连接在容器构建时建立，运行时停止时关闭
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}
		if err := builder.Err(); err != nil {
			return err
		}
		names := builder.Names()
		if len(names) == 0 {
			return nil
		}

		var built *RedisClientFactory
		err := rt.Provide(func(c di.Container) (*RedisClientFactory, error) {
			var cfg config.Configuration
			if c.Has(di.TypeOf[config.Configuration](), "") {
				cfg, _ = di.Resolve[config.Configuration](c)
			}
			factory, err := builder.Build(context.Background(), cfg, loggerFrom(c))
			built = factory
			return factory, err
		})
		if err != nil {
			return err
		}

		for _, name := range names {
			get := func(f *RedisClientFactory) (*redis.Client, error) {
				return f.Get(name)
			}
			if err := rt.Provide(get, di.WithName(name)); err != nil {
				return fmt.Errorf("redis: failed to register client '%s': %w", name, err)
			}
			if name == DefaultName {
				if err := rt.Provide(get); err != nil {
					return fmt.Errorf("redis: failed to register default client: %w", err)
				}
			}
		}

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if built == nil {
				return nil
			}
			loggerFrom(rt.Container).Info("closing redis clients")
			return built.Close()
		})

		return nil
	}
}

func loggerFrom(c di.Container) logging.Logger {
	if c.Has(di.TypeOf[logging.Logger](), "") {
		if logger, err := di.Resolve[logging.Logger](c); err == nil && logger != nil {
			return logger.WithCategory("redis")
		}
	}
	return logging.Discard()
}
