package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// MessageSource 本地化文本的最小查询接口，localization.Bundle 满足它
type MessageSource interface {
	Get(key string) (string, bool)
}

// ValidationError 单个字段的转换或校验错误
type ValidationError struct {
	Field  string // 参数名，例如 "user.age"
	Value  string // 原始输入
	Key    string // 错误消息键
	Params []any  // 从 {2} 开始替换
	Action string // 可选，字段标签优先按 "<Action>.<Field>" 查找
}

// Message 生成本地化消息：{0} 字段标签，{1} 原始值，{2}... 参数
// 消息键缺失时使用键本身，字段标签缺失时由字段名推导
func (e ValidationError) Message(messages, fields MessageSource) string {
	template := e.Key
	if messages != nil {
		if t, ok := messages.Get(e.Key); ok {
			template = t
		}
	}

	args := make([]string, 0, 2+len(e.Params))
	args = append(args, e.label(fields), e.Value)
	for _, p := range e.Params {
		args = append(args, fmt.Sprint(p))
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i:], '}'); end > 1 {
				if n, err := strconv.Atoi(template[i+1 : i+end]); err == nil && n >= 0 && n < len(args) {
					b.WriteString(args[n])
					i += end
					continue
				}
			}
		}
		b.WriteByte(template[i])
	}
	return b.String()
}

func (e ValidationError) label(fields MessageSource) string {
	if fields != nil {
		if e.Action != "" {
			if l, ok := fields.Get(e.Action + "." + e.Field); ok {
				return l
			}
		}
		if l, ok := fields.Get(e.Field); ok {
			return l
		}
	}
	return FriendlyName(e.Field)
}

// FriendlyName 把参数名转换为可读标签："user.firstName" -> "User First Name"
func FriendlyName(field string) string {
	var b strings.Builder
	upperNext := true
	var prev rune
	for _, r := range field {
		switch {
		case r == '.' || r == '_' || r == '[' || r == ']':
			upperNext = true
			prev = r
			continue
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			upperNext = true
		}
		if upperNext {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// ValidationErrors 按字段聚合的错误
type ValidationErrors map[string][]ValidationError

// Add 追加错误
func (v ValidationErrors) Add(e ValidationError) {
	v[e.Field] = append(v[e.Field], e)
}

// HasErrors 是否存在任意错误，nil 安全
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Fields 返回出错字段，已排序
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Messages 返回每个字段的本地化消息
func (v ValidationErrors) Messages(messages, fields MessageSource) map[string][]string {
	out := make(map[string][]string, len(v))
	for field, errs := range v {
		for _, e := range errs {
			out[field] = append(out[field], e.Message(messages, fields))
		}
	}
	return out
}

// Merge 合并另一组错误
func (v ValidationErrors) Merge(other ValidationErrors) {
	for _, errs := range other {
		for _, e := range errs {
			v.Add(e)
		}
	}
}
