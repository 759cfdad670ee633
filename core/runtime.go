package core

import (
	"fmt"
	"os"

	"github.com/gocrud/mvc/di"
)

// Runtime 应用装配期与运行期共享的状态
// 各模块的 Option 向 Container 注册服务、向 Lifecycle 挂钩子、向 Features 放构建器
type Runtime struct {
	// Features 按类型存放模块的构建器与运行期对象，如 *web.Builder、*web.Host、*cron.Scheduler
	Features FeatureCollection

	// Container 应用级容器，配置服务的实现构造函数从这里取依赖
	Container di.Container

	Lifecycle *LifecycleEvents

	shutdownCh chan struct{}

	// ErrorHandler 接收后台服务与任务的致命错误，logging.Use 会改为写日志
	ErrorHandler func(err error)
}

// NewRuntime 创建空的运行时
// 容器自身以 di.Container 注册，供配置服务创建子容器
func NewRuntime() *Runtime {
	c := di.NewContainer()
	di.Register[di.Container](c, di.WithValue(c))

	return &Runtime{
		Container:  c,
		Lifecycle:  NewLifecycle(),
		shutdownCh: make(chan struct{}),
		ErrorHandler: func(err error) {
			fmt.Fprintf(os.Stderr, "[mvc] %v\n", err)
		},
	}
}

// Shutdown 请求退出，mvc.Serve 随后执行停止钩子，可重复调用
func (rt *Runtime) Shutdown() {
	select {
	case <-rt.shutdownCh:
	default:
		close(rt.shutdownCh)
	}
}

// Done 请求退出后关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Provide 向应用容器注册构造函数或实例，见 di.Provide
func (rt *Runtime) Provide(target any, opts ...di.Option) error {
	_, err := di.Provide(rt.Container, target, opts...)
	return err
}

// Apply 按顺序应用 Option，遇错即停
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}
