package configuration

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized 在 Init 成功之前访问服务
	ErrNotInitialized = errors.New("configuration: not initialized")

	// ErrResolverAlreadySet 引导属性解析器只能设置一次
	ErrResolverAlreadySet = errors.New("configuration: bootstrap property resolver already set")

	ErrNilResolver = errors.New("configuration: nil bootstrap property resolver")

	// ErrNoResolver Init 之前没有设置引导属性解析器
	ErrNoResolver = errors.New("configuration: no bootstrap property resolver")

	ErrAlreadyInitialized = errors.New("configuration: already initialized")

	// ErrUnknownImplementation 目录中没有该名称的构造函数
	ErrUnknownImplementation = errors.New("configuration: unknown implementation")
)

// InitError 初始化失败，Kind 为空表示与具体服务无关
type InitError struct {
	Kind Kind
	Err  error
}

func (e *InitError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("configuration: init failed: %v", e.Err)
	}
	return fmt.Sprintf("configuration: init %s failed: %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
