package logging

import "io"

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	factory, _ := NewLoggingBuilder().AddConsole().Build()
	return factory.CreateLogger("default")
}

// Discard 返回丢弃所有输出的 Logger
func Discard() Logger {
	p := NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: io.Discard})
	p.SetMinimumLevel(LogLevelFatal + 1)
	return p.CreateLogger("")
}
