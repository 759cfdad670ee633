package config

import (
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
)

// Use 构建配置并注册为 Runtime 的 Configuration 单例与特性
//
//	mvc.Run(
//		config.Use(func(b *config.ConfigurationBuilder) {
//			b.AddYamlFile("app.yaml", true).AddEnvironmentVariables("APP_")
//		}),
//	)
func Use(configure ...func(*ConfigurationBuilder)) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewConfigurationBuilder()
		for _, fn := range configure {
			fn(builder)
		}

		cfg, err := builder.Build()
		if err != nil {
			return err
		}

		if err := di.TryRegister[Configuration](rt.Container, di.WithValue(cfg)); err != nil {
			return err
		}
		rt.Features.Set(cfg)
		return nil
	}
}

// FromRuntime 返回 Use 注册的配置，未注册时返回 nil
func FromRuntime(rt *core.Runtime) Configuration {
	v, ok := rt.Features.Get(di.TypeOf[*configuration]())
	if !ok {
		return nil
	}
	return v.(*configuration)
}
