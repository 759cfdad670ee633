// Package bootstrap 提供框架初始化前可用的配置查找。
//
// PropertyResolver 按顺序查询一组 PropertySource，第一个给出非空值的源胜出。
// 典型顺序是：分发器的初始化参数、宿主配置、环境变量。
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingProperty 必需属性未配置
var ErrMissingProperty = errors.New("bootstrap: missing required property")

// PropertySource 单个属性来源
type PropertySource interface {
	Name() string
	Lookup(key string) (string, bool)
}

// Component 由需要读取自身配置的服务实现，构造完成后调用一次
type Component interface {
	Init(resolver *PropertyResolver) error
}

// PropertyResolver 按顺序查询属性来源
type PropertyResolver struct {
	sources []PropertySource
}

// NewPropertyResolver 创建解析器，nil 来源被忽略
func NewPropertyResolver(sources ...PropertySource) *PropertyResolver {
	r := &PropertyResolver{}
	for _, s := range sources {
		if s != nil {
			r.sources = append(r.sources, s)
		}
	}
	return r
}

// Lookup 返回第一个非空值，值两端空白被去除
func (r *PropertyResolver) Lookup(key string) (string, bool) {
	for _, s := range r.sources {
		if v, ok := s.Lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Property 返回属性值，未配置时为空串
func (r *PropertyResolver) Property(key string) string {
	v, _ := r.Lookup(key)
	return v
}

// PropertyOrDefault 未配置时返回 def
func (r *PropertyResolver) PropertyOrDefault(key, def string) string {
	if v, ok := r.Lookup(key); ok {
		return v
	}
	return def
}

// PropertyList 按逗号切分属性值，丢弃空项
func (r *PropertyResolver) PropertyList(key string) []string {
	v, ok := r.Lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RequiredProperty 未配置时返回包装 ErrMissingProperty 的错误
func (r *PropertyResolver) RequiredProperty(key string) (string, error) {
	if v, ok := r.Lookup(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrMissingProperty, key, strings.Join(r.SourceNames(), ", "))
}

// SourceNames 按查询顺序返回来源名称
func (r *PropertyResolver) SourceNames() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}
