package configuration

import (
	"github.com/gocrud/mvc/bootstrap"
	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
)

// Module 在 Runtime 容器中注册 Configuration 单例
//
// 引导属性依次来自 WithInitParams、已注册的 config.Configuration 与 MVC_ 前缀的环境变量。
// 单例在容器构建时创建并 Init，失败会中止启动。
//
//	mvc.Run(
//		config.Use(func(b *config.ConfigurationBuilder) { b.AddYamlFile("app.yaml", true) }),
//		configuration.Module(configuration.WithActionRegistry(registry)),
//	)
func Module(opts ...Option) core.Option {
	return func(rt *core.Runtime) error {
		return di.TryRegister[Configuration](rt.Container, di.WithFactory(func(c di.Container) (Configuration, error) {
			all := append([]Option{WithParent(c)}, opts...)
			cfg := NewRuntime(all...)

			resolver := NewBootstrapResolver(c, cfg.opts.initParams, cfg.opts.envPrefix)
			if err := cfg.SetBootstrapPropertyResolver(resolver); err != nil {
				return nil, err
			}
			if err := cfg.Init(); err != nil {
				return nil, err
			}
			return cfg, nil
		}))
	}
}

// NewBootstrapResolver 按初始化参数、宿主配置、环境变量的顺序创建解析器
// c 中没有 config.Configuration 时跳过宿主配置
func NewBootstrapResolver(c di.Container, initParams map[string]string, envPrefix string) *bootstrap.PropertyResolver {
	sources := []bootstrap.PropertySource{bootstrap.InitParams(initParams)}
	if c != nil && c.Has(di.TypeOf[config.Configuration](), "") {
		if hostCfg, err := di.Resolve[config.Configuration](c); err == nil && hostCfg != nil {
			sources = append(sources, bootstrap.ConfigSource{Config: hostCfg})
		}
	}
	sources = append(sources, bootstrap.EnvSource{Prefix: envPrefix})
	return bootstrap.NewPropertyResolver(sources...)
}

// RefreshBundles 清空消息包缓存，作为定时任务运行；工厂不支持刷新时返回 false
func RefreshBundles(cfg Configuration, logger logging.Logger) bool {
	r, ok := cfg.LocalizationBundleFactory().(localization.Refresher)
	if !ok {
		logger.Debug("localization bundle factory does not support refresh")
		return false
	}
	r.Refresh()
	return true
}
