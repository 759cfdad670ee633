package core

import "context"

// HostedService 随 Runtime 启停的后台服务，web.Host 即此类服务
// 通过 WithHostedService 注册
type HostedService interface {
	// Start 在独立协程中调用，可阻塞到服务结束
	// 返回错误时交给 Runtime.ErrorHandler 并请求退出
	Start(ctx context.Context) error

	// Stop 在生命周期停止时调用，须在 ctx 到期前返回
	Stop(ctx context.Context) error
}
