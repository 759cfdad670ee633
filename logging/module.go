package logging

import (
	"context"
	"fmt"

	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
)

// Use 构建日志工厂并注册 LoggerFactory 与默认 Logger
// 运行时错误改由该 Logger 输出，停止时关闭文件和 zap 提供者
func Use(configure func(*LoggingBuilder)) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewLoggingBuilder()
		if configure != nil {
			configure(builder)
		}
		if len(builder.providers) == 0 {
			builder.AddConsole()
		}

		factory, err := builder.Build()
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		logger := factory.CreateLogger("app")

		if err := di.TryRegister[LoggerFactory](rt.Container, di.WithValue(factory)); err != nil {
			return err
		}
		if err := di.TryRegister[Logger](rt.Container, di.WithValue(logger)); err != nil {
			return err
		}

		rt.ErrorHandler = func(err error) {
			logger.Error("runtime error", Err(err))
		}
		rt.Lifecycle.OnStop(func(context.Context) error {
			if c, ok := factory.(interface{ Close() error }); ok {
				return c.Close()
			}
			return nil
		})
		return nil
	}
}
