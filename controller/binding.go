package controller

import (
	"errors"
	"fmt"
	"strings"
)

// 绑定中的事件参数名
const eventParam = "$event"

var (
	ErrInvalidBinding   = errors.New("controller: invalid url binding")
	ErrDuplicateBinding = errors.New("controller: duplicate url binding")
)

type segment struct {
	literal string
	param   string // 非空表示参数段
}

// URLBinding 解析后的绑定，如 "/calc/{numberOne}/{numberTwo}/{$event}"
type URLBinding struct {
	pattern  string
	segments []segment
	literals int
}

// ParseURLBinding 解析绑定：以 "/" 开头，字面段必须位于参数段之前，{$event} 只能出现在末尾
func ParseURLBinding(pattern string) (*URLBinding, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w %q: must start with /", ErrInvalidBinding, pattern)
	}

	b := &URLBinding{pattern: pattern}
	seen := map[string]bool{}
	parts := splitPath(pattern)
	for i, part := range parts {
		if strings.HasPrefix(part, "{") {
			if !strings.HasSuffix(part, "}") || len(part) < 3 {
				return nil, fmt.Errorf("%w %q: malformed parameter %q", ErrInvalidBinding, pattern, part)
			}
			name := part[1 : len(part)-1]
			if name == eventParam && i != len(parts)-1 {
				return nil, fmt.Errorf("%w %q: {$event} must be the last segment", ErrInvalidBinding, pattern)
			}
			if seen[name] {
				return nil, fmt.Errorf("%w %q: parameter %q repeated", ErrInvalidBinding, pattern, name)
			}
			seen[name] = true
			b.segments = append(b.segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return nil, fmt.Errorf("%w %q: malformed segment %q", ErrInvalidBinding, pattern, part)
		}
		if len(b.segments) > b.literals {
			return nil, fmt.Errorf("%w %q: literal %q after a parameter", ErrInvalidBinding, pattern, part)
		}
		b.segments = append(b.segments, segment{literal: part})
		b.literals++
	}
	return b, nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Pattern 原始绑定字符串
func (b *URLBinding) Pattern() string { return b.pattern }

// Path 字面前缀，如 "/calc"
func (b *URLBinding) Path() string {
	parts := make([]string, 0, b.literals)
	for _, s := range b.segments[:b.literals] {
		parts = append(parts, s.literal)
	}
	return "/" + strings.Join(parts, "/")
}

// Params 参数名，不含 $event
func (b *URLBinding) Params() []string {
	var names []string
	for _, s := range b.segments[b.literals:] {
		if s.param != eventParam {
			names = append(names, s.param)
		}
	}
	return names
}

// HasEvent 绑定是否以 {$event} 结尾
func (b *URLBinding) HasEvent() bool {
	n := len(b.segments)
	return n > 0 && b.segments[n-1].param == eventParam
}

// Match 匹配路径，末尾的参数段可以缺省
func (b *URLBinding) Match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if len(parts) < b.literals || len(parts) > len(b.segments) {
		return nil, false
	}

	values := make(map[string]string)
	for i, part := range parts {
		s := b.segments[i]
		if s.param == "" {
			if s.literal != part {
				return nil, false
			}
			continue
		}
		values[s.param] = part
	}
	return values, true
}

// RoutePaths 返回覆盖该绑定所有可匹配长度的 gin 路由
// "/calc/{a}/{$event}" -> "/calc", "/calc/:p0", "/calc/:p0/:p1"
func (b *URLBinding) RoutePaths() []string {
	paths := []string{b.Path()}
	prefix := strings.TrimSuffix(b.Path(), "/")
	for i := range b.segments[b.literals:] {
		prefix += fmt.Sprintf("/:p%d", i)
		paths = append(paths, prefix)
	}
	return paths
}
