// Package configuration 定义框架的核心配置契约：
// 先设置引导属性解析器，再 Init，之后通过各 getter 取得缓存的核心服务。
package configuration

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gocrud/mvc/bootstrap"
	"github.com/gocrud/mvc/controller"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
)

// Configuration 核心服务的定位器
//
// 使用顺序：SetBootstrapPropertyResolver -> Init -> getters。
// Init 成功前调用任一服务 getter 会 panic，panic 值包装 ErrNotInitialized。
type Configuration interface {
	SetBootstrapPropertyResolver(r *bootstrap.PropertyResolver) error
	Init() error
	BootstrapPropertyResolver() *bootstrap.PropertyResolver

	ActionResolver() controller.ActionResolver
	ActionBeanPropertyBinder() controller.ActionBeanPropertyBinder
	TypeConverterFactory() validation.TypeConverterFactory
	LocalizationBundleFactory() localization.LocalizationBundleFactory
	LocalePicker() localization.LocalePicker
}

const (
	stateUnbootstrapped int32 = iota
	stateBootstrapped
	stateInitialized
	stateFailed
)

// DefaultConfiguration Configuration 的实现
type DefaultConfiguration struct {
	opts    options
	runtime bool

	mu       sync.Mutex
	state    atomic.Int32
	resolver atomic.Pointer[bootstrap.PropertyResolver]
	initErr  error
	chosen   map[Kind]string

	actionResolver controller.ActionResolver
	binder         controller.ActionBeanPropertyBinder
	converters     validation.TypeConverterFactory
	bundleFactory  localization.LocalizationBundleFactory
	localePicker   localization.LocalePicker
}

// NewDefault 所有服务使用默认实现
func NewDefault(opts ...Option) *DefaultConfiguration {
	return &DefaultConfiguration{opts: newOptions(opts)}
}

// NewRuntime 按 "<Kind>.Class" 引导属性从目录中选择实现，未配置时使用默认实现
func NewRuntime(opts ...Option) *DefaultConfiguration {
	return &DefaultConfiguration{opts: newOptions(opts), runtime: true}
}

func (c *DefaultConfiguration) SetBootstrapPropertyResolver(r *bootstrap.PropertyResolver) error {
	if r == nil {
		return ErrNilResolver
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Load() {
	case stateInitialized:
		return ErrAlreadyInitialized
	case stateFailed:
		return c.initErr
	}
	if c.resolver.Load() != nil {
		return ErrResolverAlreadySet
	}
	c.resolver.Store(r)
	c.state.CompareAndSwap(stateUnbootstrapped, stateBootstrapped)
	return nil
}

func (c *DefaultConfiguration) BootstrapPropertyResolver() *bootstrap.PropertyResolver {
	return c.resolver.Load()
}

// Init 构建并缓存五个核心服务，任何失败都使配置进入不可恢复的失败状态
func (c *DefaultConfiguration) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Load() {
	case stateInitialized:
		return ErrAlreadyInitialized
	case stateFailed:
		return c.initErr
	}

	if err := c.initialize(); err != nil {
		c.initErr = err
		c.state.Store(stateFailed)
		return err
	}
	c.state.Store(stateInitialized)
	return nil
}

func (c *DefaultConfiguration) initialize() error {
	resolver := c.resolver.Load()
	if resolver == nil {
		return &InitError{Err: ErrNoResolver}
	}

	var missing []string
	for _, key := range c.opts.required {
		if _, ok := resolver.Lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &InitError{Err: fmt.Errorf("%w: %s (searched %s)", bootstrap.ErrMissingProperty,
			strings.Join(missing, ", "), strings.Join(resolver.SourceNames(), ", "))}
	}

	chosen := make(map[Kind]string)
	ctors := make(map[Kind]any)
	for _, kind := range Kinds() {
		name := DefaultName
		if c.runtime {
			name = resolver.PropertyOrDefault(kind.PropertyKey(), DefaultName)
		}
		ctor, err := c.opts.catalog.Lookup(kind, name)
		if err != nil {
			return &InitError{Kind: kind, Err: err}
		}
		chosen[kind] = name
		ctors[kind] = ctor
	}

	logger := c.logger()
	container, err := c.buildContainer(resolver, logger, ctors)
	if err != nil {
		return &InitError{Err: err}
	}

	services := make(map[Kind]any)
	for _, kind := range Kinds() {
		v, err := container.Get(kind.Interface())
		if err != nil {
			return &InitError{Kind: kind, Err: err}
		}
		services[kind] = v
	}
	for _, kind := range Kinds() {
		if comp, ok := services[kind].(bootstrap.Component); ok {
			if err := comp.Init(resolver); err != nil {
				return &InitError{Kind: kind, Err: err}
			}
		}
	}

	c.actionResolver = services[ActionResolverKind].(controller.ActionResolver)
	c.binder = services[ActionBeanPropertyBinderKind].(controller.ActionBeanPropertyBinder)
	c.converters = services[TypeConverterFactoryKind].(validation.TypeConverterFactory)
	c.bundleFactory = services[LocalizationBundleFactoryKind].(localization.LocalizationBundleFactory)
	c.localePicker = services[LocalePickerKind].(localization.LocalePicker)
	c.chosen = chosen

	fields := make([]logging.Field, 0, len(chosen))
	for _, kind := range Kinds() {
		fields = append(fields, logging.Field{Key: string(kind), Value: chosen[kind]})
	}
	logger.Info("configuration initialized", fields...)
	return nil
}

func (c *DefaultConfiguration) logger() logging.Logger {
	if c.opts.logger != nil {
		return c.opts.logger
	}
	if p := c.opts.parent; p != nil && p.Has(di.TypeOf[logging.Logger](), "") {
		if l, err := di.Resolve[logging.Logger](p); err == nil && l != nil {
			return l
		}
	}
	return logging.NewLogger()
}

// buildContainer 私有容器：解析器、日志、注册表、用户服务与选中的构造函数
func (c *DefaultConfiguration) buildContainer(resolver *bootstrap.PropertyResolver, logger logging.Logger, ctors map[Kind]any) (di.Container, error) {
	container := di.NewChildContainer(c.opts.parent)
	parentHas := func(typ reflect.Type) bool {
		return c.opts.parent != nil && c.opts.parent.Has(typ, "")
	}

	if _, err := di.Provide(container, resolver); err != nil {
		return nil, err
	}
	if err := di.TryRegister[logging.Logger](container, di.WithValue(logger.WithCategory("mvc"))); err != nil {
		return nil, err
	}

	registry := c.opts.registry
	if registry == nil && !parentHas(di.TypeOf[*controller.ActionRegistry]()) {
		registry = controller.NewActionRegistry()
	}
	if registry != nil {
		if _, err := di.Provide(container, registry); err != nil {
			return nil, err
		}
	}

	for _, s := range c.opts.services {
		if _, err := di.Provide(container, s.target, s.opts...); err != nil {
			return nil, err
		}
	}

	for _, kind := range Kinds() {
		def := &di.ServiceDefinition{
			Type:      kind.Interface(),
			Scope:     di.ScopeSingleton,
			Impl:      ctors[kind],
			IsFactory: true,
		}
		if err := container.Add(def); err != nil {
			return nil, err
		}
	}

	if err := container.Build(); err != nil {
		return nil, err
	}
	return container, nil
}

// Implementation 返回某种类选中的实现名称，未初始化时为空串
func (c *DefaultConfiguration) Implementation(kind Kind) string {
	if c.state.Load() != stateInitialized {
		return ""
	}
	return c.chosen[kind]
}

// Err 返回初始化失败的原因
func (c *DefaultConfiguration) Err() error {
	if c.state.Load() != stateFailed {
		return nil
	}
	return c.initErr
}

func (c *DefaultConfiguration) mustBeInitialized() {
	switch c.state.Load() {
	case stateInitialized:
		return
	case stateFailed:
		panic(fmt.Errorf("%w: init failed: %v", ErrNotInitialized, c.initErr))
	default:
		panic(fmt.Errorf("%w: call Init first", ErrNotInitialized))
	}
}

func (c *DefaultConfiguration) ActionResolver() controller.ActionResolver {
	c.mustBeInitialized()
	return c.actionResolver
}

func (c *DefaultConfiguration) ActionBeanPropertyBinder() controller.ActionBeanPropertyBinder {
	c.mustBeInitialized()
	return c.binder
}

func (c *DefaultConfiguration) TypeConverterFactory() validation.TypeConverterFactory {
	c.mustBeInitialized()
	return c.converters
}

func (c *DefaultConfiguration) LocalizationBundleFactory() localization.LocalizationBundleFactory {
	c.mustBeInitialized()
	return c.bundleFactory
}

func (c *DefaultConfiguration) LocalePicker() localization.LocalePicker {
	c.mustBeInitialized()
	return c.localePicker
}
