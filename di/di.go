package di

import (
	"fmt"
	"reflect"
)

// Provide 智能注册服务。
// 它可以接受构造函数、结构体指针或类型，并自动推断服务类型和注册方式。
//
// 支持的输入 target 类型:
// 1. func(...) (Service, error?) -> 注册为 Factory，ServiceType 为第一个返回值。
// 2. *Struct                      -> 注册为 Value (Singleton)，ServiceType 为 *Struct。
//   - 如果结构体包含带有 `di` 标签的字段，会自动启用字段注入。
//
// 3. reflect.Type                 -> 注册为 Implementation (Struct注入)，ServiceType 为该 Type。
func Provide(c Container, target any, opts ...Option) (reflect.Type, error) {
	if target == nil {
		return nil, fmt.Errorf("di: cannot provide nil")
	}

	targetVal := reflect.ValueOf(target)
	var def *ServiceDefinition
	var serviceType reflect.Type

	if typeVal, ok := target.(reflect.Type); ok {
		serviceType = typeVal
		def = &ServiceDefinition{
			Type:     serviceType,
			Scope:    ScopeSingleton,
			ImplType: serviceType,
		}
	} else if targetVal.Kind() == reflect.Func {
		fnType := targetVal.Type()
		if fnType.NumOut() == 0 {
			return nil, fmt.Errorf("di: constructor function must return at least one value")
		}

		// 推断服务类型为第一个返回值
		serviceType = fnType.Out(0)

		def = &ServiceDefinition{
			Type:      serviceType,
			Scope:     ScopeSingleton,
			Impl:      target,
			IsFactory: true,
		}
	} else if targetVal.Kind() == reflect.Ptr {
		serviceType = targetVal.Type()

		def = &ServiceDefinition{
			Type:    serviceType,
			Scope:   ScopeSingleton,
			Impl:    target,
			IsValue: true,
		}

		// 结构体有字段带 di 标签时自动开启注入
		if targetVal.Elem().Kind() == reflect.Struct {
			elemType := targetVal.Elem().Type()
			for i := 0; i < elemType.NumField(); i++ {
				if _, hasTag := elemType.Field(i).Tag.Lookup("di"); hasTag {
					def.InjectFields = true
					break
				}
			}
		}
	} else {
		return nil, fmt.Errorf("di: unsupported auto-registration target type: %T", target)
	}

	for _, opt := range opts {
		opt(def)
	}

	if err := c.Add(def); err != nil {
		return nil, err
	}

	return def.Type, nil
}

// Register registers a service of type T with the container.
// If T is an interface, you must use di.Use[Impl]() or di.WithFactory to specify the implementation.
func Register[T any](c Container, opts ...Option) {
	if err := TryRegister[T](c, opts...); err != nil {
		panic(err.Error())
	}
}

// TryRegister 与 Register 相同，但返回错误而不是 panic
func TryRegister[T any](c Container, opts ...Option) error {
	typ := TypeOf[T]()

	def := &ServiceDefinition{
		Type:     typ,
		Scope:    ScopeSingleton,
		ImplType: typ,
	}

	for _, opt := range opts {
		opt(def)
	}

	if err := c.Add(def); err != nil {
		return fmt.Errorf("di: failed to register %v: %w", typ, err)
	}
	return nil
}

// Resolve resolves an instance of type T from the container or scope.
func Resolve[T any](c Container) (T, error) {
	return ResolveNamed[T](c, "")
}

// ResolveNamed resolves an instance of type T with a specific name from the container or scope.
func ResolveNamed[T any](c Container, name string) (T, error) {
	var zero T
	typ := TypeOf[T]()

	val, err := c.GetNamed(typ, name)
	if err != nil {
		return zero, err
	}
	if val == nil {
		return zero, nil
	}

	if v, ok := val.(T); ok {
		return v, nil
	}

	return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, typ)
}

// MustResolve 解析失败时 panic
func MustResolve[T any](c Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// Invoke 调用函数，参数从容器中解析。
// 函数最后一个返回值为 error 且非 nil 时返回该错误。
func Invoke(c Container, function any) error {
	fnVal := reflect.ValueOf(function)
	if fnVal.Kind() != reflect.Func {
		return fmt.Errorf("di: Invoke expects a function, got %T", function)
	}

	fnType := fnVal.Type()
	argTypes := make([]reflect.Type, fnType.NumIn())
	for i := range argTypes {
		argTypes[i] = fnType.In(i)
	}

	args, err := newResolver().resolveArgs(c, argTypes)
	if err != nil {
		return fmt.Errorf("di: invoke %v: %w", fnType, err)
	}

	results := fnVal.Call(args)
	if n := len(results); n > 0 {
		last := results[n-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
