// Package validation 提供请求参数的类型转换与校验错误模型。
package validation

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// ErrNoConverter 目标类型没有可用的转换器
var ErrNoConverter = errors.New("validation: no type converter")

// TypeConverter 把单个请求参数转换为目标类型的值
// 返回值的动态类型与 target 一致；输入无效时返回 *ConversionError
type TypeConverter interface {
	Convert(input string, target reflect.Type) (any, error)
}

// TypeConverterFunc 函数适配器
type TypeConverterFunc func(input string, target reflect.Type) (any, error)

func (f TypeConverterFunc) Convert(input string, target reflect.Type) (any, error) {
	return f(input, target)
}

// ConversionError 描述一次失败的转换，Key 为本地化错误消息的键
type ConversionError struct {
	Key    string
	Params []any
}

func (e *ConversionError) Error() string {
	if len(e.Params) == 0 {
		return e.Key
	}
	return fmt.Sprintf("%s %v", e.Key, e.Params)
}

func conversionError(key string, params ...any) error {
	return &ConversionError{Key: key, Params: params}
}

// TypeConverterFactory 按目标类型和区域选择转换器
type TypeConverterFactory interface {
	Converter(target reflect.Type, locale language.Tag) (TypeConverter, error)
	Add(target reflect.Type, c TypeConverter)
}

// DefaultTypeConverterFactory 内置转换器：
// 精确注册的类型优先，其次是实现 encoding.TextUnmarshaler 的类型，最后按 Kind 处理基础类型（含命名类型）
type DefaultTypeConverterFactory struct {
	mu    sync.RWMutex
	exact map[reflect.Type]TypeConverter
}

// NewDefaultTypeConverterFactory 创建工厂并注册 time.Time、time.Duration、uuid.UUID
func NewDefaultTypeConverterFactory() *DefaultTypeConverterFactory {
	f := &DefaultTypeConverterFactory{exact: make(map[reflect.Type]TypeConverter)}
	f.Add(reflect.TypeOf(time.Time{}), TypeConverterFunc(convertTime))
	f.Add(reflect.TypeOf(time.Duration(0)), TypeConverterFunc(convertDuration))
	f.Add(reflect.TypeOf(uuid.UUID{}), TypeConverterFunc(convertUUID))
	return f
}

// Add 为精确类型注册转换器，覆盖已有注册
func (f *DefaultTypeConverterFactory) Add(target reflect.Type, c TypeConverter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[target] = c
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func (f *DefaultTypeConverterFactory) Converter(target reflect.Type, locale language.Tag) (TypeConverter, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil type", ErrNoConverter)
	}

	f.mu.RLock()
	c, ok := f.exact[target]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	if target.Kind() == reflect.Ptr {
		elem, err := f.Converter(target.Elem(), locale)
		if err != nil {
			return nil, err
		}
		return pointerConverter{elem: elem}, nil
	}

	if reflect.PointerTo(target).Implements(textUnmarshalerType) {
		return TypeConverterFunc(convertText), nil
	}

	switch target.Kind() {
	case reflect.String:
		return TypeConverterFunc(convertString), nil
	case reflect.Bool:
		return TypeConverterFunc(convertBool), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return numberConverter{format: numberFormatFor(locale)}, nil
	}

	return nil, fmt.Errorf("%w for %v", ErrNoConverter, target)
}

type pointerConverter struct {
	elem TypeConverter
}

func (c pointerConverter) Convert(input string, target reflect.Type) (any, error) {
	v, err := c.elem.Convert(input, target.Elem())
	if err != nil {
		return nil, err
	}
	p := reflect.New(target.Elem())
	p.Elem().Set(reflect.ValueOf(v))
	return p.Interface(), nil
}
