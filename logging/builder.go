package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
	err          error
}

// NewLoggingBuilder 创建日志构建器，默认级别 Info
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{minimumLevel: LogLevelInfo}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      true,
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile 添加文件日志
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	opts := FileLoggerOptions{Path: path}
	if len(options) > 0 {
		opts = options[0]
		opts.Path = path
	}
	return b.AddProvider(NewFileLoggerProvider(opts))
}

// AddZap 添加 zap 提供者，base 为 nil 时使用生产配置
func (b *LoggingBuilder) AddZap(base *zap.Logger) *LoggingBuilder {
	p, err := NewZapLoggerProvider(base)
	if err != nil {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		return b
	}
	return b.AddProvider(p)
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() (LoggerFactory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.err != nil {
		return nil, b.err
	}

	factory := &loggerFactory{}
	factory.levels.SetMinimumLevel(b.minimumLevel)
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory, nil
}
