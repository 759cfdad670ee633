package di

import "reflect"

// Option 调整一次注册
type Option func(*ServiceDefinition)

// WithScope 设置生命周期，默认 ScopeSingleton
func WithScope(scope ScopeType) Option {
	return func(s *ServiceDefinition) {
		s.Scope = scope
	}
}

// WithTransient 每次解析都重新构造，且不在 Build 时创建
// 用于按需获取的资源，如 mongodb 模块的 *mongo.Database
func WithTransient() Option {
	return WithScope(ScopeTransient)
}

// WithScoped 每个 Scope 内共享一个实例
func WithScoped() Option {
	return WithScope(ScopeScoped)
}

// WithValue 注册已有实例，只能是单例
func WithValue(v any) Option {
	return func(s *ServiceDefinition) {
		s.Impl = v
		s.IsValue = true
		s.Scope = ScopeSingleton
	}
}

// WithFactory 以构造函数注册，参数由容器注入
// 返回 (T, error) 时 error 非空则解析失败，单例会在 Build 时报告
func WithFactory(fn any) Option {
	return func(s *ServiceDefinition) {
		s.Impl = fn
		s.IsFactory = true
	}
}

// WithName 命名注册，同一类型可有多个实例，如各个 *redis.Client
func WithName(name string) Option {
	return func(s *ServiceDefinition) {
		s.Name = name
	}
}

// Use 为接口类型指定实现结构体，字段按 `di` 标签注入
func Use[T any]() Option {
	return func(s *ServiceDefinition) {
		s.ImplType = reflect.TypeOf((*T)(nil)).Elem()
	}
}

// WithFields 对 WithValue 注册的实例执行 `di` 标签字段注入
func WithFields() Option {
	return func(s *ServiceDefinition) {
		s.InjectFields = true
	}
}
