// Package controller 负责把请求解析到 ActionBean 及其事件处理方法，并绑定请求参数。
package controller

import (
	"net/http"
	"net/url"

	"github.com/gocrud/mvc/validation"
	"golang.org/x/text/language"
)

// ActionBean 处理请求的对象，每个请求一个新实例
type ActionBean interface {
	SetContext(ctx *ActionBeanContext)
	Context() *ActionBeanContext
}

// BaseActionBean 可嵌入的 ActionBean 实现
type BaseActionBean struct {
	ctx *ActionBeanContext
}

func (b *BaseActionBean) SetContext(ctx *ActionBeanContext) { b.ctx = ctx }

func (b *BaseActionBean) Context() *ActionBeanContext { return b.ctx }

// ActionBeanContext 单次请求的上下文
type ActionBeanContext struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter

	// Params 查询参数、表单参数与 URL 绑定参数
	Params url.Values
	Locale language.Tag

	// ActionPath 绑定的字面前缀，如 "/calc"，用于字段标签查找
	ActionPath       string
	EventName        string
	ValidationErrors validation.ValidationErrors

	// ParseError 查询串或表单解析失败的原因，Params 此时可能不完整
	ParseError error

	urlEvent string
}

// NewActionBeanContext 从请求创建上下文，解析查询与表单参数
func NewActionBeanContext(w http.ResponseWriter, r *http.Request) *ActionBeanContext {
	params := url.Values{}
	var parseErr error
	if r != nil {
		parseErr = r.ParseForm()
		for k, vs := range r.Form {
			params[k] = append(params[k], vs...)
		}
	}
	return &ActionBeanContext{
		Request:          r,
		ResponseWriter:   w,
		Params:           params,
		Locale:           language.Und,
		ValidationErrors: validation.ValidationErrors{},
		ParseError:       parseErr,
	}
}

// Param 返回参数的第一个值
func (c *ActionBeanContext) Param(name string) string {
	return c.Params.Get(name)
}

// DefaultEventer 指定默认事件的 ActionBean
type DefaultEventer interface {
	DefaultEvent() string
}

// Validatable 在声明式校验之后执行自定义校验
type Validatable interface {
	Validate(errs validation.ValidationErrors)
}

// ValidationErrorHandler 自行处理绑定或校验错误的 ActionBean
type ValidationErrorHandler interface {
	HandleValidationErrors(errs validation.ValidationErrors) Resolution
}
