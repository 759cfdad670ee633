package controller

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
	"golang.org/x/text/language"
)

// ErrNoProperty 参数名在 ActionBean 上没有对应的可写属性
var ErrNoProperty = errors.New("controller: no such property")

// ActionBeanPropertyBinder 把请求参数写入 ActionBean 并执行校验
type ActionBeanPropertyBinder interface {
	Bind(bean ActionBean, ctx *ActionBeanContext, validate bool) validation.ValidationErrors
	BindProperty(bean ActionBean, property string, values []string, locale language.Tag) error
}

// BindError 单个属性绑定失败
type BindError struct {
	Property string
	Value    string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("controller: bind %s=%q: %v", e.Property, e.Value, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

var (
	baseActionBeanType = reflect.TypeOf(BaseActionBean{})
	contextPtrType     = reflect.TypeOf(&ActionBeanContext{})
)

// DefaultActionBeanPropertyBinder 按 form 标签或不区分大小写的字段名绑定，
// 支持点分嵌套结构体、切片与 map[string]T；以 "_" 开头的参数保留不绑定
type DefaultActionBeanPropertyBinder struct {
	converters validation.TypeConverterFactory
	validate   *validator.Validate
	logger     logging.Logger
}

func NewDefaultActionBeanPropertyBinder(converters validation.TypeConverterFactory, logger logging.Logger) *DefaultActionBeanPropertyBinder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			name = EventNameOf(f.Name)
		}
		return name
	})
	return &DefaultActionBeanPropertyBinder{
		converters: converters,
		validate:   v,
		logger:     logger.WithCategory("binder"),
	}
}

// Validator 返回内部校验器，用于注册自定义规则
func (b *DefaultActionBeanPropertyBinder) Validator() *validator.Validate {
	return b.validate
}

func (b *DefaultActionBeanPropertyBinder) Bind(bean ActionBean, ctx *ActionBeanContext, validate bool) validation.ValidationErrors {
	errs := validation.ValidationErrors{}

	names := make([]string, 0, len(ctx.Params))
	for name := range ctx.Params {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		err := b.BindProperty(bean, name, ctx.Params[name], ctx.Locale)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoProperty) {
			b.logger.Trace("parameter has no property", logging.Field{Key: "param", Value: name})
			continue
		}

		ve := validation.ValidationError{Field: name, Key: validation.KeyInvalidValue, Action: ctx.ActionPath}
		var be *BindError
		if errors.As(err, &be) {
			ve.Value = be.Value
		}
		var ce *validation.ConversionError
		if errors.As(err, &ce) {
			ve.Key, ve.Params = ce.Key, ce.Params
		} else {
			b.logger.Warn("parameter binding failed", logging.Field{Key: "param", Value: name}, logging.Err(err))
		}
		errs.Add(ve)
	}

	if validate {
		b.runValidation(bean, ctx, errs)
	}

	if ctx.ValidationErrors == nil {
		ctx.ValidationErrors = validation.ValidationErrors{}
	}
	ctx.ValidationErrors.Merge(errs)
	return errs
}

func (b *DefaultActionBeanPropertyBinder) runValidation(bean ActionBean, ctx *ActionBeanContext, errs validation.ValidationErrors) {
	err := b.validate.Struct(bean)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			field := fe.Namespace()
			if _, rest, ok := strings.Cut(field, "."); ok {
				field = rest
			}
			// 转换已失败的字段不再报告校验错误
			if _, failed := errs[field]; failed {
				continue
			}
			ve := validation.ValidationError{
				Field:  field,
				Value:  ctx.Params.Get(field),
				Key:    "validation." + fe.Tag(),
				Action: ctx.ActionPath,
			}
			if p := fe.Param(); p != "" {
				ve.Params = []any{p}
			}
			errs.Add(ve)
		}
	} else if err != nil {
		b.logger.Error("validation failed", logging.Err(err))
	}

	if v, ok := bean.(Validatable); ok && !errs.HasErrors() {
		v.Validate(errs)
	}
}

func (b *DefaultActionBeanPropertyBinder) BindProperty(bean ActionBean, property string, values []string, locale language.Tag) error {
	v := reflect.ValueOf(bean)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("controller: cannot bind into %T", bean)
	}
	v = v.Elem()

	var pending []pendingPointer
	segments := strings.Split(property, ".")
	for i, seg := range segments {
		for v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct {
			if v.IsNil() {
				tmp := reflect.New(v.Type().Elem())
				pending = append(pending, pendingPointer{field: v, value: tmp})
				v = tmp.Elem()
				continue
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Struct:
			f, ok := findField(v, seg)
			if !ok {
				return fmt.Errorf("%w %q on %T", ErrNoProperty, property, bean)
			}
			v = f
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String || i != len(segments)-1 {
				return fmt.Errorf("%w %q on %T", ErrNoProperty, property, bean)
			}
			if blank(values) {
				return nil
			}
			if err := b.bindMapEntry(v, property, seg, values, locale); err != nil {
				return err
			}
			commit(pending)
			return nil
		default:
			return fmt.Errorf("%w %q on %T", ErrNoProperty, property, bean)
		}
	}

	if blank(values) {
		return nil
	}
	if err := b.assign(v, property, values, locale); err != nil {
		return err
	}
	commit(pending)
	return nil
}

// pendingPointer 路径上的 nil 结构体指针，属性赋值成功后才写回
type pendingPointer struct {
	field reflect.Value
	value reflect.Value
}

func commit(pending []pendingPointer) {
	for _, p := range pending {
		p.field.Set(p.value)
	}
}

func blank(values []string) bool {
	for _, s := range values {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// findField 按 form 标签或不区分大小写的字段名查找，展开匿名嵌入的结构体
func findField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Type == baseActionBeanType || sf.Type == contextPtrType {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("form"), ",")
		if tag == "-" {
			continue
		}
		if sf.Anonymous && tag == "" {
			if f, ok := findEmbedded(v.Field(i), name); ok {
				return f, true
			}
			continue
		}
		if tag == name || (tag == "" && strings.EqualFold(sf.Name, name)) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// findEmbedded 在嵌入字段中查找，nil 指针只在找到属性时才分配
func findEmbedded(field reflect.Value, name string) (reflect.Value, bool) {
	switch {
	case field.Kind() == reflect.Struct:
		return findField(field, name)
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if !field.IsNil() {
			return findField(field.Elem(), name)
		}
		tmp := reflect.New(field.Type().Elem())
		f, ok := findField(tmp.Elem(), name)
		if ok && field.CanSet() {
			field.Set(tmp)
			return f, true
		}
	}
	return reflect.Value{}, false
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func (b *DefaultActionBeanPropertyBinder) assign(v reflect.Value, property string, values []string, locale language.Tag) error {
	if !v.CanSet() {
		return fmt.Errorf("%w %q: not settable", ErrNoProperty, property)
	}

	t := v.Type()
	if t.Kind() == reflect.Slice && !reflect.PointerTo(t).Implements(textUnmarshalerType) {
		out := reflect.MakeSlice(t, 0, len(values))
		for _, s := range values {
			if strings.TrimSpace(s) == "" {
				continue
			}
			elem, err := b.convert(s, t.Elem(), property, locale)
			if err != nil {
				return err
			}
			out = reflect.Append(out, elem)
		}
		v.Set(out)
		return nil
	}

	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil
	}
	val, err := b.convert(values[0], t, property, locale)
	if err != nil {
		return err
	}
	v.Set(val)
	return nil
}

func (b *DefaultActionBeanPropertyBinder) bindMapEntry(m reflect.Value, property, key string, values []string, locale language.Tag) error {
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil
	}
	t := m.Type()
	val, err := b.convert(values[0], t.Elem(), property, locale)
	if err != nil {
		return err
	}
	if m.IsNil() {
		if !m.CanSet() {
			return fmt.Errorf("%w %q: not settable", ErrNoProperty, property)
		}
		m.Set(reflect.MakeMap(t))
	}
	m.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), val)
	return nil
}

func (b *DefaultActionBeanPropertyBinder) convert(input string, target reflect.Type, property string, locale language.Tag) (reflect.Value, error) {
	c, err := b.converters.Converter(target, locale)
	if err != nil {
		return reflect.Value{}, &BindError{Property: property, Value: input, Err: err}
	}
	out, err := c.Convert(input, target)
	if err != nil {
		return reflect.Value{}, &BindError{Property: property, Value: input, Err: err}
	}
	return reflect.ValueOf(out), nil
}
