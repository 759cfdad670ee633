package cron

import (
	"fmt"
	"time"

	"github.com/gocrud/mvc/logging"
)

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	jobs             []jobDefinition
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		location: "UTC",
		jobs:     make([]jobDefinition, 0),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区，例如 "Asia/Shanghai"
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加任务
// handler 为 func() 或任意函数，参数在每次执行时从 DI 容器解析：
//
//	builder.AddJob("@every 5m", "refresh", func(cfg configuration.Configuration, logger logging.Logger) {
//	    configuration.RefreshBundles(cfg, logger)
//	})
func (b *Builder) AddJob(spec, name string, handler any) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

func (b *Builder) build(logger logging.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(b.location)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location '%s': %w", b.location, err)
	}
	return newScheduler(logger, options{
		Location:         loc,
		EnableSeconds:    b.enableSeconds,
		EnableCronLogger: b.enableCronLogger,
	}, b.jobs), nil
}
