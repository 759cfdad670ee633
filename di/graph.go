package di

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrCircularDependency 依赖图中存在环，错误信息给出完整路径
var ErrCircularDependency = errors.New("di: 检测到循环依赖")

// graphBuilder 在 Build 时检查依赖并给出单例的构建顺序
type graphBuilder struct {
	definitions map[ServiceKey]*ServiceDefinition
}

func newGraphBuilder(defs map[ServiceKey]*ServiceDefinition) *graphBuilder {
	return &graphBuilder{
		definitions: defs,
	}
}

func (k ServiceKey) String() string {
	if k.Name == "" {
		return fmt.Sprint(k.Type)
	}
	return fmt.Sprintf("%v(name=%s)", k.Type, k.Name)
}

// sortedKeys 按类型名与服务名排序，使构建顺序和报错与注册顺序无关
func (g *graphBuilder) sortedKeys() []ServiceKey {
	keys := make([]ServiceKey, 0, len(g.definitions))
	for key := range g.definitions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i].Type.String(), keys[j].Type.String()
		if a != b {
			return a < b
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// buildOrder 依赖在前的拓扑序
// 如配置服务的构造函数依赖 Logger 与 *redis.Client，二者先于它构建
func (g *graphBuilder) buildOrder() ([]ServiceKey, error) {
	keys := g.sortedKeys()
	dependencies := make(map[ServiceKey][]ServiceKey, len(keys))

	for _, key := range keys {
		deps, err := g.inspectDependencies(g.definitions[key])
		if err != nil {
			return nil, fmt.Errorf("检查 %v 的依赖失败: %w", key, err)
		}
		dependencies[key] = deps
	}

	visited := make(map[ServiceKey]bool)
	onPath := make(map[ServiceKey]int)
	var path []ServiceKey
	var order []ServiceKey

	var visit func(ServiceKey) error
	visit = func(u ServiceKey) error {
		visited[u] = true
		onPath[u] = len(path)
		path = append(path, u)

		for _, v := range dependencies[u] {
			// 未在本容器注册的依赖交给父容器或在解析时报错
			if _, exists := g.definitions[v]; !exists {
				continue
			}
			if i, cycling := onPath[v]; cycling {
				return cycleError(append(path[i:len(path):len(path)], v))
			}
			if !visited[v] {
				if err := visit(v); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		delete(onPath, u)
		order = append(order, u)
		return nil
	}

	for _, key := range keys {
		if !visited[key] {
			if err := visit(key); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

func cycleError(cycle []ServiceKey) error {
	names := make([]string, len(cycle))
	for i, k := range cycle {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(names, " -> "))
}

// inspectDependencies 返回服务依赖的类型列表。
// 它还会填充 ServiceDefinition.Schema。
func (g *graphBuilder) inspectDependencies(def *ServiceDefinition) ([]ServiceKey, error) {
	def.Schema = &InjectionSchema{}

	// 情况 1: 值 - 仅在开启字段注入时才有依赖
	if def.IsValue {
		if def.InjectFields && def.Impl != nil {
			return g.analyzeStruct(reflect.TypeOf(def.Impl), def.Schema)
		}
		return nil, nil
	}

	// 情况 2: 工厂函数
	if def.IsFactory {
		return g.analyzeFunction(def.Impl, def.Schema)
	}

	// 情况 3: 构造函数 (如果 Impl 是函数)
	if def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func {
		return g.analyzeFunction(def.Impl, def.Schema)
	}

	// 情况 4: 结构体注入 (ImplType)
	if def.ImplType == nil || def.ImplType.Kind() == reflect.Interface {
		return nil, fmt.Errorf("接口 %v 未指定实现，请使用 di.Use 或 di.WithFactory", def.Type)
	}
	return g.analyzeStruct(def.ImplType, def.Schema)
}

func (g *graphBuilder) analyzeFunction(fn any, schema *InjectionSchema) ([]ServiceKey, error) {
	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("期望函数，得到 %v", fnType)
	}

	var deps []ServiceKey
	for i := 0; i < fnType.NumIn(); i++ {
		argType := fnType.In(i)
		// 工厂函数参数暂不支持命名注入，默认为空名称
		key := ServiceKey{Type: argType, Name: ""}
		deps = append(deps, key)
		schema.Args = append(schema.Args, argType)
	}
	return deps, nil
}

func (g *graphBuilder) analyzeStruct(typ reflect.Type, schema *InjectionSchema) ([]ServiceKey, error) {
	// 解包指针
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return nil, nil
	}

	var deps []ServiceKey
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}

		// 解析 tag: "name,option1,option2"
		parts := strings.Split(tagValue, ",")
		name := strings.TrimSpace(parts[0])
		isOptional := false

		// 处理 "di:?" 或 "di:optional" 的情况，此时 name 应为空
		if name == "?" || name == "optional" {
			name = ""
			isOptional = true
		}

		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "optional" || part == "?" {
				isOptional = true
			}
		}

		// 记录字段注入元数据
		schema.Fields = append(schema.Fields, FieldInjection{
			Index:       i,
			Name:        field.Name,
			Type:        field.Type,
			Optional:    isOptional,
			ServiceName: name,
		})

		if isOptional {
			continue // 不在图中强制执行可选依赖
		}
		deps = append(deps, ServiceKey{Type: field.Type, Name: name})
	}
	return deps, nil
}
