package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
)

// Controller 向 gin 注册路由的组件
type Controller interface {
	MountRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger          logging.Logger
	port            int
	engine          *gin.Engine
	controllerCtors []any
	registeredTypes []reflect.Type
}

// NewBuilder 创建构建器，默认端口 8080，带 panic 恢复
func NewBuilder() *Builder {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Builder{
		port:   8080,
		engine: engine,
	}
}

// UseLogger 设置日志记录器并记录每个请求
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	b.logger = logger
	b.engine.Use(RequestLogger(logger))
	return b
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddControllers 注册控制器：构造函数（参数注入）或带 di 标签的实例指针
func (b *Builder) AddControllers(controllers ...any) *Builder {
	b.controllerCtors = append(b.controllerCtors, controllers...)
	return b
}

// AddControllerTypes 挂载已由其它模块注册到容器的控制器
func (b *Builder) AddControllerTypes(types ...reflect.Type) *Builder {
	b.registeredTypes = append(b.registeredTypes, types...)
	return b
}

// Engine 获取 Gin 引擎
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// RegisterServices 把控制器注册到容器，必须在容器 Build 之前调用
func (b *Builder) RegisterServices(container di.Container) error {
	for _, item := range b.controllerCtors {
		serviceType, err := di.Provide(container, item)
		if err != nil {
			return fmt.Errorf("web: register controller %T: %w", item, err)
		}
		b.registeredTypes = append(b.registeredTypes, serviceType)
	}
	return nil
}

// Build 构建主机，container 用于解析控制器
func (b *Builder) Build(container di.Container) *Host {
	return &Host{
		port:            b.port,
		engine:          b.engine,
		container:       container,
		controllerTypes: b.registeredTypes,
		server: &http.Server{
			Handler:           b.engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: b.logger,
		ready:  make(chan struct{}),
	}
}

// Host Web 主机
type Host struct {
	port            int
	engine          *gin.Engine
	server          *http.Server
	logger          logging.Logger
	container       di.Container
	controllerTypes []reflect.Type

	addr      string
	ready     chan struct{}
	readyOnce sync.Once
	startErr  error
}

// Handler 返回处理请求的 gin 引擎
func (h *Host) Handler() http.Handler {
	return h.engine
}

// Ready 监听成功或启动失败后关闭，失败原因见 Err
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Err 启动失败的原因，仅在 Ready 之后有效
func (h *Host) Err() error {
	return h.startErr
}

func (h *Host) signalReady(err error) {
	h.readyOnce.Do(func() {
		h.startErr = err
		close(h.ready)
	})
}

// Address 实际监听地址，仅在 Ready 之后有效
func (h *Host) Address() string {
	return h.addr
}

// Start 挂载控制器并阻塞服务，直到 Stop
func (h *Host) Start(ctx context.Context) error {
	if err := h.MapControllers(); err != nil {
		err = fmt.Errorf("web: failed to map controllers: %w", err)
		h.signalReady(err)
		return err
	}

	addr := fmt.Sprintf(":%d", h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		err = fmt.Errorf("web: failed to listen on %s: %w", addr, err)
		h.signalReady(err)
		return err
	}
	h.addr = ln.Addr().String()
	h.signalReady(nil)

	if h.logger != nil {
		h.logger.Info("web host started", logging.Field{Key: "address", Value: h.addr})
	}

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if h.logger != nil {
			h.logger.Error("web host error", logging.Err(err))
		}
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求
func (h *Host) Stop(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil {
		if h.logger != nil {
			h.logger.Error("failed to shutdown web host gracefully", logging.Err(err))
		}
		return err
	}
	if h.logger != nil {
		h.logger.Info("web host stopped")
	}
	return nil
}

// MapControllers 从容器解析控制器并注册路由
func (h *Host) MapControllers() error {
	for _, typ := range h.controllerTypes {
		instance, err := h.container.Get(typ)
		if err != nil {
			return fmt.Errorf("failed to resolve controller %v: %w", typ, err)
		}

		ctrl, ok := instance.(Controller)
		if !ok {
			return fmt.Errorf("instance %v does not implement web.Controller interface", typ)
		}

		ctrl.MountRoutes(h.engine)
		if h.logger != nil {
			h.logger.Debug("mapped controller routes", logging.Field{Key: "controller", Value: typ.String()})
		}
	}
	return nil
}

// RequestLogger 记录方法、路径、状态码与耗时
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			logging.Field{Key: "method", Value: c.Request.Method},
			logging.Field{Key: "path", Value: c.Request.URL.Path},
			logging.Field{Key: "status", Value: c.Writer.Status()},
			logging.Field{Key: "latency", Value: time.Since(start).String()})
	}
}
