package di

import (
	"fmt"
	"reflect"
	"sync"
)

// ScopeType 服务实例的生命周期
type ScopeType int

const (
	// ScopeSingleton 每个容器一个实例，Build 时按依赖顺序创建，如配置服务、各客户端工厂
	ScopeSingleton ScopeType = iota
	// ScopeTransient 每次解析都调用构造函数，Build 时不创建，如 *mongo.Database
	ScopeTransient
	// ScopeScoped 每个 Scope 一个实例，如单次请求内共享的状态
	ScopeScoped
)

// String 返回作用域名称，用于错误信息
func (s ScopeType) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopeTransient:
		return "transient"
	case ScopeScoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// ServiceKey 类型加名称唯一确定一个服务，匿名服务的 Name 为空
type ServiceKey struct {
	Type reflect.Type
	Name string
}

// FieldInjection 一个带 `di` 标签的字段
type FieldInjection struct {
	Index       int
	Name        string
	Type        reflect.Type
	Optional    bool   // 标签含 "?" 或 "optional"，未注册时保持零值
	ServiceName string // 标签中的服务名，空为匿名服务
}

// InjectionSchema Build 时预先算好的注入信息，解析时不再反射分析
type InjectionSchema struct {
	Fields []FieldInjection // 结构体字段注入
	Args   []reflect.Type   // 构造函数参数
}

// ServiceDefinition 一次注册的全部信息，由 Provide 或 Register 产生
type ServiceDefinition struct {
	ID           int
	Type         reflect.Type
	Name         string
	Scope        ScopeType
	ImplType     reflect.Type // 结构体注入时的实现类型
	Impl         any          // 构造函数或已有实例
	IsFactory    bool
	IsValue      bool
	InjectFields bool // 对 IsValue 的实例执行字段注入

	Schema *InjectionSchema

	singletonInst any
	singletonErr  error
	singletonOnce sync.Once
}

// Key 服务在容器中的键
func (d *ServiceDefinition) Key() ServiceKey {
	return ServiceKey{Type: d.Type, Name: d.Name}
}

// validate 检查选项组合，已有实例只能是单例
func (d *ServiceDefinition) validate() error {
	if d.Type == nil {
		return fmt.Errorf("di: invalid service definition")
	}
	if d.IsValue && d.Scope != ScopeSingleton {
		return fmt.Errorf("di: 实例 %v 只能注册为 singleton，不能为 %s", d.Key(), d.Scope)
	}
	if d.IsFactory && (d.Impl == nil || reflect.TypeOf(d.Impl).Kind() != reflect.Func) {
		return fmt.Errorf("di: %v 的工厂必须是函数，得到 %T", d.Key(), d.Impl)
	}
	return nil
}
