package database

import (
	"context"
	"fmt"

	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"gorm.io/gorm"
)

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加数据库，名为 "default" 的实例同时注册为匿名 *gorm.DB，
// 供 LocalizationBundleFactory.Class=database 使用
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, dialector, combine(opts))
	}
}

// WithDatabaseFromConfig 从配置节读取 driver 与 dsn
func WithDatabaseFromConfig(name, section string, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddFromConfig(name, section, combine(opts))
	}
}

// WithMessageTable 在打开时迁移本地化消息表
func WithMessageTable() func(*DatabaseOptions) {
	return func(o *DatabaseOptions) {
		o.AutoMigrate = append(o.AutoMigrate, &localization.Message{})
	}
}

func combine(opts []func(*DatabaseOptions)) func(*DatabaseOptions) {
	if len(opts) == 0 {
		return nil
	}
	return func(o *DatabaseOptions) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New 启用数据库能力
// 连接在容器构建时打开，运行时停止时关闭
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

		var built *DatabaseFactory
		err := rt.Provide(func(c di.Container) (*DatabaseFactory, error) {
			var cfg config.Configuration
			if c.Has(di.TypeOf[config.Configuration](), "") {
				cfg, _ = di.Resolve[config.Configuration](c)
			}
			factory, err := builder.Build(cfg, loggerFrom(c))
			built = factory
			return factory, err
		})
		if err != nil {
			return err
		}

		for _, name := range names {
			get := func(f *DatabaseFactory) (*gorm.DB, error) {
				return f.Get(name)
			}
			if err := rt.Provide(get, di.WithName(name)); err != nil {
				return fmt.Errorf("database: failed to register instance '%s': %w", name, err)
			}
			if name == DefaultName {
				if err := rt.Provide(get); err != nil {
					return fmt.Errorf("database: failed to register default instance: %w", err)
				}
			}
		}

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if built == nil {
				return nil
			}
			loggerFrom(rt.Container).Info("closing database connections")
			return built.Close()
		})

		return nil
	}
}

func loggerFrom(c di.Container) logging.Logger {
	if c.Has(di.TypeOf[logging.Logger](), "") {
		if logger, err := di.Resolve[logging.Logger](c); err == nil && logger != nil {
			return logger.WithCategory("database")
		}
	}
	return logging.Discard()
}
