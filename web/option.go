package web

import (
	"fmt"

	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
)

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithControllers 添加控制器
func WithControllers(controllers ...any) BuilderOption {
	return func(b *Builder) {
		b.AddControllers(controllers...)
	}
}

// Mount 挂载容器中已注册的控制器，例如 web.Mount[*dispatcher.Dispatcher]()
func Mount[T Controller]() BuilderOption {
	return func(b *Builder) {
		b.AddControllerTypes(di.TypeOf[T]())
	}
}

// New 启用 Web 主机，作为托管服务随 Runtime 启停
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}
		rt.Features.Set(builder)

		if err := builder.RegisterServices(rt.Container); err != nil {
			return fmt.Errorf("web: failed to register services: %w", err)
		}

		hostFactory := func(c di.Container) *Host {
			if builder.logger == nil && c.Has(di.TypeOf[logging.Logger](), "") {
				if logger, err := di.Resolve[logging.Logger](c); err == nil {
					builder.UseLogger(logger.WithCategory("web"))
				}
			}
			host := builder.Build(c)
			rt.Features.Set(host)
			return host
		}

		return core.WithHostedService(hostFactory)(rt)
	}
}
