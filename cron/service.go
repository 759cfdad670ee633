package cron

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/logging"
	"github.com/robfig/cron/v3"
)

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any // func() 或参数从容器解析的函数
}

// Scheduler 托管的 cron 调度器，任务在 Start 时才从容器解析依赖并注册
type Scheduler struct {
	cron    *cron.Cron
	logger  logging.Logger
	mu      sync.RWMutex
	jobs    map[string]cron.EntryID
	jobDefs []jobDefinition
}

// options Cron 服务配置选项
type options struct {
	Location         *time.Location
	EnableSeconds    bool
	EnableCronLogger bool // cron 库内部调度日志
}

func newScheduler(logger logging.Logger, opt options, jobs []jobDefinition) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}

	cronOpts := []cron.Option{
		cron.WithLocation(opt.Location),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if opt.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if opt.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:    cron.New(cronOpts...),
		logger:  logger,
		jobs:    make(map[string]cron.EntryID),
		jobDefs: jobs,
	}
}

// addJob 添加定时任务
// spec: cron 表达式，如 "*/5 * * * *" 或 "@every 1m"
func (s *Scheduler) addJob(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron job '%s' already registered", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("cron job started", logging.Field{Key: "job", Value: name})
		defer s.logger.Debug("cron job completed", logging.Field{Key: "job", Value: name})
		job()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("cron job registered",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "spec", Value: spec})
	return nil
}

// Remove 移除定时任务
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.jobs, name)
	s.logger.Info("cron job removed", logging.Field{Key: "job", Value: name})
	return true
}

// Jobs 已注册任务，已排序
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start 注册所有待处理任务并启动调度
func (s *Scheduler) Start(container di.Container) error {
	s.logger.Info("cron service starting", logging.Field{Key: "jobs", Value: len(s.jobDefs)})

	for _, job := range s.jobDefs {
		var fn func()
		switch h := job.handler.(type) {
		case func():
			fn = h
		default:
			if container == nil {
				return fmt.Errorf("cron: job '%s' requires a container", job.name)
			}
			wrapped, err := wrapHandlerWithDI(container, s.logger, h)
			if err != nil {
				return fmt.Errorf("cron: failed to wrap job '%s': %w", job.name, err)
			}
			fn = wrapped
		}

		if err := s.addJob(job.spec, job.name, fn); err != nil {
			return err
		}
	}
	s.jobDefs = nil

	s.cron.Start()
	return nil
}

// Stop 等待正在执行的任务结束或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("cron service stopping")

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wrapHandlerWithDI 每次执行时从容器解析 handler 的参数
func wrapHandlerWithDI(container di.Container, logger logging.Logger, handler any) (func(), error) {
	handlerValue := reflect.ValueOf(handler)
	if handlerValue.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", handler)
	}
	handlerType := handlerValue.Type()

	return func() {
		args := make([]reflect.Value, handlerType.NumIn())
		for i := range args {
			paramType := handlerType.In(i)
			instance, err := container.Get(paramType)
			if err != nil {
				logger.Error("failed to resolve cron job parameter",
					logging.Field{Key: "index", Value: i},
					logging.Field{Key: "type", Value: paramType.String()},
					logging.Err(err))
				return
			}
			args[i] = reflect.ValueOf(instance)
		}

		out := handlerValue.Call(args)
		if n := len(out); n > 0 {
			if err, ok := out[n-1].Interface().(error); ok && err != nil {
				logger.Error("cron job failed", logging.Err(err))
			}
		}
	}, nil
}

// cronLogger 把 cron.Logger 适配到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Err(err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprintf("%v", keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
