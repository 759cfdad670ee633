package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ErrNotFound 服务未注册
var ErrNotFound = errors.New("di: service not found")

// Container 是依赖注入容器的接口。
type Container interface {
	// Add 注册服务定义。
	Add(def *ServiceDefinition) error

	// Build 构建依赖图并进行验证。
	Build() error

	// Get 检索请求类型的实例（使用默认名称）。
	Get(typ reflect.Type) (any, error)

	// GetNamed 检索请求类型和名称的实例。
	GetNamed(typ reflect.Type, name string) (any, error)

	// Has 判断服务是否已注册（包括父容器）。
	Has(typ reflect.Type, name string) bool

	// CreateScope 为作用域实例创建一个新作用域。
	CreateScope() Scope

	// serviceCount 返回注册服务的总数（用于数组大小调整）。
	serviceCount() int
}

// container 是具体的实现。
type container struct {
	mu              sync.RWMutex
	definitions     map[ServiceKey]*ServiceDefinition
	built           atomic.Bool
	serviceCountVal int

	// parent 本容器未注册的服务回退到父容器解析
	parent Container

	// resolver 处理实例的创建
	resolver *resolver
}

// NewContainer 创建一个新的空容器。
func NewContainer() Container {
	return &container{
		definitions: make(map[ServiceKey]*ServiceDefinition),
		resolver:    newResolver(),
	}
}

// NewChildContainer 创建带父容器的容器。
// 本容器找不到的服务会交给 parent 解析，parent 可以为 nil。
func NewChildContainer(parent Container) Container {
	c := NewContainer().(*container)
	c.parent = parent
	return c
}

// Add 向容器添加服务定义。
func (c *container) Add(def *ServiceDefinition) error {
	if def == nil {
		return fmt.Errorf("di: invalid service definition")
	}
	if err := def.validate(); err != nil {
		return err
	}
	if c.built.Load() {
		return fmt.Errorf("di: build 后无法注册服务 %v", def.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := def.Key()
	if _, exists := c.definitions[key]; exists {
		return fmt.Errorf("di: 服务 %v 已注册", key)
	}

	c.definitions[key] = def
	return nil
}

// Build 构建依赖图并进行验证。
func (c *container) Build() error {
	if c.built.Load() {
		return nil // 已构建
	}

	c.mu.Lock()
	// 双重检查
	if c.built.Load() {
		c.mu.Unlock()
		return nil
	}

	// 0. 为定义分配 ID
	c.serviceCountVal = 0
	for _, def := range c.definitions {
		def.ID = c.serviceCountVal
		c.serviceCountVal++
	}

	// 1. 依赖图和循环检测
	graph := newGraphBuilder(c.definitions)
	order, err := graph.buildOrder()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	// 标记为已构建。此后，Add() 将失败，实际上使定义不可变。
	c.built.Store(true)
	c.mu.Unlock()

	// 2. 按拓扑顺序急切初始化单例
	// 在锁外执行，避免 Get() 时死锁。
	for _, key := range order {
		def := c.definitions[key]
		if def.Scope == ScopeSingleton {
			if _, err := c.GetNamed(key.Type, key.Name); err != nil {
				return fmt.Errorf("di: 构建单例 %v (name=%s) 失败: %w", key.Type, key.Name, err)
			}
		}
	}

	return nil
}

// Get 检索请求类型的实例。
func (c *container) Get(typ reflect.Type) (any, error) {
	return c.GetNamed(typ, "")
}

// GetNamed 检索请求类型和名称的实例。
func (c *container) GetNamed(typ reflect.Type, name string) (any, error) {
	if !c.built.Load() {
		return nil, fmt.Errorf("di: 容器未构建")
	}

	// 构建后定义是不可变的，可以无锁读取。
	def, ok := c.definitions[ServiceKey{Type: typ, Name: name}]
	if !ok {
		if c.parent != nil {
			return c.parent.GetNamed(typ, name)
		}
		return nil, notFound(typ, name)
	}

	switch def.Scope {
	case ScopeSingleton:
		// 单例：在定义本身上使用 sync.Once
		def.singletonOnce.Do(func() {
			def.singletonInst, def.singletonErr = c.resolver.createInstance(c, def)
		})
		return def.singletonInst, def.singletonErr
	case ScopeTransient:
		return c.resolver.createInstance(c, def)
	case ScopeScoped:
		return nil, fmt.Errorf("di: 无法从根容器解析作用域服务 %v。请使用 CreateScope()。", typ)
	}

	return nil, fmt.Errorf("di: 未知作用域 %v", def.Scope)
}

// Has 判断服务是否已注册。
func (c *container) Has(typ reflect.Type, name string) bool {
	c.mu.RLock()
	_, ok := c.definitions[ServiceKey{Type: typ, Name: name}]
	c.mu.RUnlock()
	if ok {
		return true
	}
	return c.parent != nil && c.parent.Has(typ, name)
}

// CreateScope 为作用域实例创建一个新作用域。
func (c *container) CreateScope() Scope {
	return newScope(c)
}

func (c *container) serviceCount() int {
	return c.serviceCountVal
}

func notFound(typ reflect.Type, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %v", ErrNotFound, typ)
	}
	return fmt.Errorf("%w: %v (name=%s)", ErrNotFound, typ, name)
}
