package cron

import (
	"context"

	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
)

// RefreshBundlesJob 刷新消息包缓存的任务名
const RefreshBundlesJob = "refresh-bundles"

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加任务
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) {
		b.AddJob(spec, name, handler)
	}
}

// RefreshBundles 按 spec 定期清空消息包缓存，需要容器中的 configuration.Configuration
func RefreshBundles(spec string) BuilderOption {
	return AddJob(spec, RefreshBundlesJob, func(cfg configuration.Configuration, logger logging.Logger) {
		if configuration.RefreshBundles(cfg, logger) {
			logger.Debug("localization bundles refreshed")
		}
	})
}

// New 启用 Cron 能力
// 调度器在 Start 时从容器取得 logger，任务参数在执行时解析
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}

		var scheduler *Scheduler
		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			logger := logging.Discard()
			if rt.Container.Has(di.TypeOf[logging.Logger](), "") {
				if l, err := di.Resolve[logging.Logger](rt.Container); err == nil && l != nil {
					logger = l.WithCategory("cron")
				}
			}

			s, err := builder.build(logger)
			if err != nil {
				return err
			}
			scheduler = s
			rt.Features.Set(s)
			return s.Start(rt.Container)
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if scheduler == nil {
				return nil
			}
			return scheduler.Stop(ctx)
		})

		return nil
	}
}
