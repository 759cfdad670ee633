package di

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type resolver struct{}

func newResolver() *resolver {
	return &resolver{}
}

// createInstance 创建 def 描述的服务的新实例。
// 它使用提供的容器 c 递归解析依赖项。
func (r *resolver) createInstance(c Container, def *ServiceDefinition) (any, error) {
	if def.IsValue {
		if def.InjectFields {
			if err := r.injectValue(c, def); err != nil {
				return nil, err
			}
		}
		return def.Impl, nil
	}

	if def.IsFactory {
		return r.invokeFunction(c, def.Impl, def.Schema)
	}

	// 如果 Impl 显式提供为函数（构造函数），则使用它
	if def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func {
		return r.invokeFunction(c, def.Impl, def.Schema)
	}

	// 否则，视为结构体注入
	return r.createStruct(c, def)
}

// invokeFunction 调用工厂或构造函数。
// 它使用预计算的 schema 将依赖项注入函数参数。
func (r *resolver) invokeFunction(c Container, fn any, schema *InjectionSchema) (any, error) {
	fnVal := reflect.ValueOf(fn)

	args, err := r.resolveArgs(c, schema.Args)
	if err != nil {
		return nil, err
	}

	results := fnVal.Call(args)
	if len(results) == 0 {
		return nil, fmt.Errorf("工厂/构造函数没有返回值")
	}

	// 检查最后一个返回值是否为错误
	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	first := results[0]
	switch first.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		if first.IsNil() {
			return nil, fmt.Errorf("工厂/构造函数返回了 nil 实例 (%v)", first.Type())
		}
	}

	return first.Interface(), nil
}

func (r *resolver) resolveArgs(c Container, argTypes []reflect.Type) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(argTypes))
	for i, argType := range argTypes {
		argVal, err := c.Get(argType)
		if err != nil {
			return nil, fmt.Errorf("参数 %d (%v): %w", i, argType, err)
		}
		if argVal == nil {
			args[i] = reflect.Zero(argType)
			continue
		}
		args[i] = reflect.ValueOf(argVal)
	}
	return args, nil
}

// createStruct 实例化结构体并注入标记为 `di` 的字段。
func (r *resolver) createStruct(c Container, def *ServiceDefinition) (any, error) {
	implType := def.ImplType

	var val reflect.Value
	if implType.Kind() == reflect.Ptr {
		val = reflect.New(implType.Elem())
	} else {
		val = reflect.New(implType)
	}

	if err := r.injectFields(c, val.Elem(), def.Schema); err != nil {
		return nil, err
	}

	if implType.Kind() == reflect.Ptr {
		return val.Interface(), nil
	}
	return val.Elem().Interface(), nil
}

// injectValue 对预先创建的实例执行字段注入
func (r *resolver) injectValue(c Container, def *ServiceDefinition) error {
	val := reflect.ValueOf(def.Impl)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return nil
	}
	return r.injectFields(c, val.Elem(), def.Schema)
}

func (r *resolver) injectFields(c Container, structVal reflect.Value, schema *InjectionSchema) error {
	for _, fieldInfo := range schema.Fields {
		depVal, err := c.GetNamed(fieldInfo.Type, fieldInfo.ServiceName)
		if err != nil {
			if fieldInfo.Optional {
				continue
			}
			return fmt.Errorf("字段 %s: %w", fieldInfo.Name, err)
		}
		if depVal == nil {
			continue
		}

		structVal.Field(fieldInfo.Index).Set(reflect.ValueOf(depVal))
	}
	return nil
}
