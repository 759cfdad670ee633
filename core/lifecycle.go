package core

import (
	"context"
	"errors"
	"fmt"
)

// LifecycleEvents 管理应用程序的启动与停止钩子
type LifecycleEvents struct {
	onStart []func(context.Context) error
	onStop  []func(context.Context) error
}

// NewLifecycle 创建新的生命周期管理器
func NewLifecycle() *LifecycleEvents {
	return &LifecycleEvents{}
}

// OnStart 注册启动钩子
func (l *LifecycleEvents) OnStart(fn func(context.Context) error) {
	l.onStart = append(l.onStart, fn)
}

// OnStop 注册停止钩子
func (l *LifecycleEvents) OnStop(fn func(context.Context) error) {
	l.onStop = append(l.onStop, fn)
}

// Start 按注册顺序执行启动钩子，遇错即停
func (l *LifecycleEvents) Start(ctx context.Context) error {
	for i, fn := range l.onStart {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("core: start hook %d: %w", i, err)
		}
	}
	return nil
}

// Stop 倒序执行停止钩子，单个失败不影响其余钩子，错误合并返回
func (l *LifecycleEvents) Stop(ctx context.Context) error {
	var errs []error
	for i := len(l.onStop) - 1; i >= 0; i-- {
		if err := l.onStop[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
