package controller

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gocrud/mvc/logging"
)

var (
	ErrNoBinding        = errors.New("controller: no action bean bound")
	ErrNoHandler        = errors.New("controller: no event handler")
	ErrNoDefaultHandler = errors.New("controller: no default event handler")
)

// EventNameParam 显式指定事件的请求参数
const EventNameParam = "_eventName"

// ActionResolver 把请求解析为 ActionBean 与事件处理方法
type ActionResolver interface {
	ActionBeanTypes() []reflect.Type
	URLBinding(beanType reflect.Type) string
	URLBindingFromPath(path string) (string, bool)
	ActionBean(ctx *ActionBeanContext) (ActionBean, error)
	EventName(beanType reflect.Type, ctx *ActionBeanContext) string
	Handler(beanType reflect.Type, event string) (*Handler, error)
	DefaultHandler(beanType reflect.Type) (*Handler, error)
}

var (
	resolutionType = reflect.TypeOf((*Resolution)(nil)).Elem()
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// Handler 一个事件处理方法：func() Resolution 或 func() (Resolution, error)
type Handler struct {
	Event     string
	Method    string
	withError bool
	index     int
}

// Invoke 在 bean 上调用处理方法
func (h *Handler) Invoke(bean ActionBean) (Resolution, error) {
	out := reflect.ValueOf(bean).Method(h.index).Call(nil)
	var err error
	if h.withError && !out[1].IsNil() {
		err = out[1].Interface().(error)
	}
	res, _ := out[0].Interface().(Resolution)
	return res, err
}

type beanMeta struct {
	binding      Binding
	handlers     map[string]*Handler
	events       []string
	defaultEvent string
}

// DefaultActionResolver 基于 ActionRegistry 的解析器
// 多个绑定匹配同一路径时选择字面段最多的绑定
type DefaultActionResolver struct {
	logger logging.Logger
	beans  map[reflect.Type]*beanMeta
	order  []*beanMeta
}

// NewDefaultActionResolver 检查所有已注册的 ActionBean 并缓存其事件处理方法
func NewDefaultActionResolver(registry *ActionRegistry, logger logging.Logger) (*DefaultActionResolver, error) {
	r := &DefaultActionResolver{
		logger: logger.WithCategory("controller"),
		beans:  make(map[reflect.Type]*beanMeta),
	}

	for _, b := range registry.Bindings() {
		meta, err := inspectBean(b)
		if err != nil {
			return nil, err
		}
		r.beans[b.BeanType] = meta
		r.order = append(r.order, meta)
		r.logger.Debug("action bean bound",
			logging.Field{Key: "binding", Value: b.URL.Pattern()},
			logging.Field{Key: "type", Value: b.BeanType.String()},
			logging.Field{Key: "events", Value: strings.Join(meta.events, ",")})
	}

	sort.SliceStable(r.order, func(i, j int) bool {
		a, b := r.order[i].binding.URL, r.order[j].binding.URL
		if a.literals != b.literals {
			return a.literals > b.literals
		}
		return len(a.segments) > len(b.segments)
	})
	return r, nil
}

func inspectBean(b Binding) (*beanMeta, error) {
	meta := &beanMeta{binding: b, handlers: make(map[string]*Handler)}

	for i := 0; i < b.BeanType.NumMethod(); i++ {
		m := b.BeanType.Method(i)
		ft := m.Type
		// 接收者是第一个参数
		if ft.NumIn() != 1 || ft.NumOut() == 0 || ft.NumOut() > 2 || ft.Out(0) != resolutionType {
			continue
		}
		withError := ft.NumOut() == 2
		if withError && ft.Out(1) != errorType {
			continue
		}
		event := EventNameOf(m.Name)
		meta.handlers[event] = &Handler{Event: event, Method: m.Name, withError: withError, index: i}
		meta.events = append(meta.events, event)
	}
	sort.Strings(meta.events)

	if len(meta.handlers) == 0 {
		return nil, fmt.Errorf("controller: %v bound to %q has no event handlers", b.BeanType, b.URL.Pattern())
	}

	if d, ok := reflect.New(b.BeanType.Elem()).Interface().(DefaultEventer); ok {
		meta.defaultEvent = d.DefaultEvent()
		if _, ok := meta.handlers[meta.defaultEvent]; !ok {
			return nil, fmt.Errorf("controller: %v default event %q has no handler", b.BeanType, meta.defaultEvent)
		}
	} else if len(meta.events) == 1 {
		meta.defaultEvent = meta.events[0]
	}
	return meta, nil
}

// EventNameOf 方法名转事件名：Add -> add，HTMLExport -> hTMLExport
func EventNameOf(method string) string {
	r, size := utf8.DecodeRuneInString(method)
	return string(unicode.ToLower(r)) + method[size:]
}

func (r *DefaultActionResolver) ActionBeanTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(r.beans))
	for _, m := range r.order {
		types = append(types, m.binding.BeanType)
	}
	sort.Slice(types, func(i, j int) bool {
		return r.beans[types[i]].binding.URL.Pattern() < r.beans[types[j]].binding.URL.Pattern()
	})
	return types
}

func (r *DefaultActionResolver) URLBinding(beanType reflect.Type) string {
	if m, ok := r.beans[beanType]; ok {
		return m.binding.URL.Pattern()
	}
	return ""
}

func (r *DefaultActionResolver) match(path string) (*beanMeta, map[string]string) {
	for _, m := range r.order {
		if values, ok := m.binding.URL.Match(path); ok {
			return m, values
		}
	}
	return nil, nil
}

func (r *DefaultActionResolver) URLBindingFromPath(path string) (string, bool) {
	m, _ := r.match(path)
	if m == nil {
		return "", false
	}
	return m.binding.URL.Pattern(), true
}

// ActionBean 按请求路径创建新的 ActionBean，路径参数并入 ctx.Params
func (r *DefaultActionResolver) ActionBean(ctx *ActionBeanContext) (ActionBean, error) {
	path := "/"
	if ctx.Request != nil {
		path = ctx.Request.URL.Path
	}

	m, values := r.match(path)
	if m == nil {
		return nil, fmt.Errorf("%w to %s", ErrNoBinding, path)
	}

	if ctx.Params == nil {
		ctx.Params = url.Values{}
	}
	for name, v := range values {
		if name == eventParam {
			ctx.urlEvent = v
			continue
		}
		ctx.Params.Set(name, v)
	}
	ctx.ActionPath = m.binding.URL.Path()

	bean := reflect.New(m.binding.BeanType.Elem()).Interface().(ActionBean)
	bean.SetContext(ctx)
	return bean, nil
}

// EventName 依次查看 _eventName 参数、与事件同名的参数、URL 中的 {$event}
func (r *DefaultActionResolver) EventName(beanType reflect.Type, ctx *ActionBeanContext) string {
	if v := strings.TrimSpace(ctx.Params.Get(EventNameParam)); v != "" {
		return v
	}
	if m, ok := r.beans[beanType]; ok {
		for _, event := range m.events {
			if _, present := ctx.Params[event]; present {
				return event
			}
		}
	}
	return ctx.urlEvent
}

func (r *DefaultActionResolver) Handler(beanType reflect.Type, event string) (*Handler, error) {
	if event == "" {
		return r.DefaultHandler(beanType)
	}
	m, ok := r.beans[beanType]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoBinding, beanType)
	}
	h, ok := m.handlers[event]
	if !ok {
		return nil, fmt.Errorf("%w %q on %v", ErrNoHandler, event, beanType)
	}
	return h, nil
}

func (r *DefaultActionResolver) DefaultHandler(beanType reflect.Type) (*Handler, error) {
	m, ok := r.beans[beanType]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoBinding, beanType)
	}
	if m.defaultEvent == "" {
		return nil, fmt.Errorf("%w on %v (events: %s)", ErrNoDefaultHandler, beanType, strings.Join(m.events, ", "))
	}
	return m.handlers[m.defaultEvent], nil
}
