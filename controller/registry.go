package controller

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Binding 一个 ActionBean 类型与它的 URL 绑定
type Binding struct {
	URL      *URLBinding
	BeanType reflect.Type
}

// ActionRegistry 应用注册的 ActionBean
type ActionRegistry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
	types    map[reflect.Type]string
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		bindings: make(map[string]Binding),
		types:    make(map[reflect.Type]string),
	}
}

// Bind 注册原型，prototype 必须是结构体指针；绑定或类型重复时返回错误
func (r *ActionRegistry) Bind(binding string, prototype ActionBean) error {
	typ := reflect.TypeOf(prototype)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("controller: action bean for %q must be a struct pointer, got %v", binding, typ)
	}

	url, err := ParseURLBinding(binding)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bindings[binding]; ok {
		return fmt.Errorf("%w %q: already bound to %v", ErrDuplicateBinding, binding, existing.BeanType)
	}
	if existing, ok := r.types[typ]; ok {
		return fmt.Errorf("%w: %v already bound to %q", ErrDuplicateBinding, typ, existing)
	}
	r.bindings[binding] = Binding{URL: url, BeanType: typ}
	r.types[typ] = binding
	return nil
}

// MustBind 注册失败时 panic
func (r *ActionRegistry) MustBind(binding string, prototype ActionBean) *ActionRegistry {
	if err := r.Bind(binding, prototype); err != nil {
		panic(err)
	}
	return r
}

// Bindings 按绑定字符串排序返回
func (r *ActionRegistry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL.Pattern() < out[j].URL.Pattern() })
	return out
}
