package mongodb

import (
	"context"
	"fmt"

	"github.com/gocrud/mgo"
	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加 MongoDB 客户端配置
// 名为 "default" 的客户端同时匿名注册，其 *mongo.Database 供 LocalizationBundleFactory.Class=mongodb 使用
func WithClient(name string, uri string, opts ...func(*MongoOptions)) BuilderOption {
	return func(b *Builder) {
		var configure func(*MongoOptions)
		if len(opts) > 0 {
			configure = func(o *MongoOptions) {
				for _, opt := range opts {
					opt(o)
				}
			}
		}
		b.Add(name, uri, configure)
	}
}

// WithClientFromConfig 从配置节读取客户端
func WithClientFromConfig(name, section string) BuilderOption {
	return func(b *Builder) {
		b.AddFromConfig(name, section)
	}
}

// WithDatabase 设置客户端使用的库
func WithDatabase(database string) func(*MongoOptions) {
	return func(o *MongoOptions) {
		o.Database = database
	}
}

// New 启用 MongoDB 能力
// 驱动客户端在容器构建时连接，*mongo.Database 与 *mgo.Client 在解析时获取
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

		var built *MongoFactory
		err := rt.Provide(func(c di.Container) (*MongoFactory, error) {
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
			if err := provideClient(rt, name, name); err != nil {
				return fmt.Errorf("mongodb: failed to register client '%s': %w", name, err)
			}
			if name == DefaultName {
				if err := provideClient(rt, name, ""); err != nil {
					return fmt.Errorf("mongodb: failed to register default client: %w", err)
				}
			}
		}

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if built == nil {
				return nil
			}
			loggerFrom(rt.Container).Info("closing mongo clients")
			return built.Close()
		})

		return nil
	}
}

// provideClient 以 as 为名注册客户端 name 的驱动客户端、库与 mgo 客户端
func provideClient(rt *core.Runtime, name, as string) error {
	var named []di.Option
	if as != "" {
		named = append(named, di.WithName(as))
	}

	client := func(f *MongoFactory) (*mongo.Client, error) {
		return f.Get(name)
	}
	if err := rt.Provide(client, named...); err != nil {
		return err
	}

	database := func(f *MongoFactory) (*mongo.Database, error) {
		return f.Database(name)
	}
	if err := rt.Provide(database, append(named, di.WithTransient())...); err != nil {
		return err
	}

	mgoClient := func(f *MongoFactory) (*mgo.Client, error) {
		return f.Mgo(context.Background(), name)
	}
	return rt.Provide(mgoClient, append(named, di.WithTransient())...)
}

func loggerFrom(c di.Container) logging.Logger {
	if c.Has(di.TypeOf[logging.Logger](), "") {
		if logger, err := di.Resolve[logging.Logger](c); err == nil && logger != nil {
			return logger.WithCategory("mongodb")
		}
	}
	return logging.Discard()
}
