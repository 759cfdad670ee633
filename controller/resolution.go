package controller

import (
	"net/http"

	"github.com/gin-gonic/gin/render"
)

// Resolution 事件处理的结果，负责写出响应
type Resolution interface {
	Execute(w http.ResponseWriter, r *http.Request) error
}

// ResolutionFunc 函数适配器
type ResolutionFunc func(w http.ResponseWriter, r *http.Request) error

func (f ResolutionFunc) Execute(w http.ResponseWriter, r *http.Request) error { return f(w, r) }

// JSONResolution 以 JSON 写出 Value
type JSONResolution struct {
	Code  int
	Value any
}

func JSON(code int, value any) *JSONResolution {
	return &JSONResolution{Code: code, Value: value}
}

func (j *JSONResolution) Execute(w http.ResponseWriter, _ *http.Request) error {
	rr := render.JSON{Data: j.Value}
	rr.WriteContentType(w)
	w.WriteHeader(j.Code)
	return rr.Render(w)
}

// TextResolution 写出纯文本
type TextResolution struct {
	Code int
	Body string
}

func Text(code int, body string) *TextResolution {
	return &TextResolution{Code: code, Body: body}
}

func (t *TextResolution) Execute(w http.ResponseWriter, _ *http.Request) error {
	rr := render.Data{ContentType: "text/plain; charset=utf-8", Data: []byte(t.Body)}
	rr.WriteContentType(w)
	w.WriteHeader(t.Code)
	return rr.Render(w)
}

// RedirectResolution 重定向，Code 默认 302
type RedirectResolution struct {
	Code     int
	Location string
}

func Redirect(location string) *RedirectResolution {
	return &RedirectResolution{Code: http.StatusFound, Location: location}
}

func (rd *RedirectResolution) Execute(w http.ResponseWriter, r *http.Request) error {
	return render.Redirect{Code: rd.Code, Request: r, Location: rd.Location}.Render(w)
}

// StatusResolution 只写状态码
type StatusResolution int

func Status(code int) StatusResolution { return StatusResolution(code) }

func (s StatusResolution) Execute(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(s))
	return nil
}
