package core

import (
	"context"
	"fmt"

	"github.com/gocrud/mvc/di"
)

// WithHostedService 注册一个托管服务
// constructor 的产物必须实现 HostedService，启动时在独立协程调用 Start，停止时取消上下文并调用 Stop
func WithHostedService(constructor any) Option {
	return func(rt *Runtime) error {
		serviceType, err := di.Provide(rt.Container, constructor)
		if err != nil {
			return fmt.Errorf("core: provide hosted service: %w", err)
		}
		if !serviceType.Implements(di.TypeOf[HostedService]()) {
			return fmt.Errorf("core: %v does not implement core.HostedService", serviceType)
		}

		resolve := func() (HostedService, error) {
			val, err := rt.Container.Get(serviceType)
			if err != nil {
				return nil, fmt.Errorf("core: resolve hosted service %v: %w", serviceType, err)
			}
			return val.(HostedService), nil
		}

		var cancel context.CancelFunc
		rt.Lifecycle.OnStart(func(context.Context) error {
			svc, err := resolve()
			if err != nil {
				return err
			}
			cancel = rt.runBackground(fmt.Sprintf("hosted service %v", serviceType), svc.Start)
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			svc, err := resolve()
			if err != nil {
				return nil
			}
			return svc.Stop(ctx)
		})

		return nil
	}
}

// WorkerFunc 阻塞运行的后台任务，通过 ctx.Done() 退出
type WorkerFunc func(ctx context.Context) error

// WithWorker 将阻塞函数注册为后台任务，停止时取消其上下文
func WithWorker(fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		var cancel context.CancelFunc

		rt.Lifecycle.OnStart(func(context.Context) error {
			cancel = rt.runBackground("worker", fn)
			return nil
		})
		rt.Lifecycle.OnStop(func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		})
		return nil
	}
}

// runBackground 在独立协程运行 fn，返回错误时上报并请求应用退出
func (rt *Runtime) runBackground(name string, fn func(context.Context) error) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := fn(ctx); err != nil {
			if rt.ErrorHandler != nil {
				rt.ErrorHandler(fmt.Errorf("%s exited with error: %w", name, err))
			}
			rt.Shutdown()
		}
	}()
	return cancel
}
