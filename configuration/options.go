package configuration

import (
	"github.com/gocrud/mvc/controller"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
)

// DefaultEnvPrefix 引导属性的环境变量前缀
const DefaultEnvPrefix = "MVC_"

type service struct {
	target any
	opts   []di.Option
}

type options struct {
	required   []string
	services   []service
	parent     di.Container
	catalog    *Catalog
	logger     logging.Logger
	registry   *controller.ActionRegistry
	initParams map[string]string
	envPrefix  string
}

// Option 配置 DefaultConfiguration
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = DefaultCatalog()
	}
	return o
}

// WithRequiredProperties Init 时这些引导属性必须有非空值
func WithRequiredProperties(keys ...string) Option {
	return func(o *options) {
		o.required = append(o.required, keys...)
	}
}

// WithService 向私有容器注册服务，参数同 di.Provide
func WithService(target any, opts ...di.Option) Option {
	return func(o *options) {
		o.services = append(o.services, service{target: target, opts: opts})
	}
}

// WithParent 私有容器中找不到的依赖交给 parent 解析
func WithParent(parent di.Container) Option {
	return func(o *options) {
		o.parent = parent
	}
}

// WithCatalog 替换实现目录
func WithCatalog(c *Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithActionRegistry 提供应用的 ActionBean 注册表
func WithActionRegistry(r *controller.ActionRegistry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithInitParams Module 使用的初始化参数，优先级最高
func WithInitParams(params map[string]string) Option {
	return func(o *options) {
		if o.initParams == nil {
			o.initParams = make(map[string]string, len(params))
		}
		for k, v := range params {
			o.initParams[k] = v
		}
	}
}

// WithEnvPrefix Module 读取环境变量的前缀，默认 MVC_
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}
