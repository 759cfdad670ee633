package core

// Option 修改 Runtime 的模块入口，如 configuration.Module、web.New
// 在容器构建之前按传入顺序应用，返回错误时 mvc.Build 立即失败
type Option func(rt *Runtime) error

// Compose 把多个 Option 合成一个，按顺序应用，nil 被跳过
func Compose(opts ...Option) Option {
	return func(rt *Runtime) error {
		for _, opt := range opts {
			if opt == nil {
				continue
			}
			if err := opt(rt); err != nil {
				return err
			}
		}
		return nil
	}
}

// If cond 为 true 时才应用 opts，用于按环境启用基础设施模块
func If(cond bool, opts ...Option) Option {
	if !cond {
		return func(*Runtime) error { return nil }
	}
	return Compose(opts...)
}
