package dispatcher

import (
	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsPath Module 暴露指标的默认路径
const DefaultMetricsPath = "/metrics"

// Module 注册 *Dispatcher 单例与它的 Prometheus 注册表
// 与 web.New(web.Mount[*dispatcher.Dispatcher]()) 搭配挂载到 gin
func Module(opts ...Option) core.Option {
	return func(rt *core.Runtime) error {
		registry := prometheus.NewRegistry()
		if err := rt.Provide(registry); err != nil {
			return err
		}
		metrics, err := NewMetrics(registry)
		if err != nil {
			return err
		}

		return rt.Provide(func(cfg configuration.Configuration, c di.Container) *Dispatcher {
			var logger logging.Logger
			if c.Has(di.TypeOf[logging.Logger](), "") {
				logger, _ = di.Resolve[logging.Logger](c)
			}
			all := append([]Option{WithMetrics(metrics), WithMetricsEndpoint(DefaultMetricsPath, registry)}, opts...)
			return New(cfg, logger, all...)
		})
	}
}
