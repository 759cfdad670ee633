package mvc

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/mvc/core"
)

// ShutdownTimeout 停止钩子的总超时
var ShutdownTimeout = 5 * time.Second

// Build 应用所有选项并构建容器，不启动生命周期
// 单例在此阶段构建，配置初始化失败会在这里返回
func Build(opts ...core.Option) (*core.Runtime, error) {
	rt := core.NewRuntime()
	if err := rt.Apply(opts...); err != nil {
		return nil, err
	}
	if err := rt.Container.Build(); err != nil {
		return nil, err
	}
	return rt, nil
}

// Run 启动应用程序并阻塞到收到退出信号或 Runtime 请求退出
func Run(opts ...core.Option) error {
	rt, err := Build(opts...)
	if err != nil {
		return err
	}
	return Serve(rt, nil)
}

// Serve 启动生命周期，直到 stop 关闭、收到系统信号或 rt.Shutdown 被调用后优雅关闭
func Serve(rt *core.Runtime, stop <-chan struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Lifecycle.Start(ctx); err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer shutdownCancel()
		rt.Lifecycle.Stop(shutdownCtx)
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-rt.Done():
	case <-stop:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	return rt.Lifecycle.Stop(shutdownCtx)
}
