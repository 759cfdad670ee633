package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// levelHolder 提供者共享的最小级别，创建出的 logger 在写入时读取
type levelHolder struct {
	level atomic.Int32
}

func (h *levelHolder) SetMinimumLevel(level LogLevel) { h.level.Store(int32(level)) }
func (h *levelHolder) enabled(level LogLevel) bool  { return level >= LogLevel(h.level.Load()) }

// entryLogger 把日志组装成 LogEntry 交给 emit
type entryLogger struct {
	category string
	fields   []Field
	levels   *levelHolder
	emit     func(*LogEntry)
}

func (l *entryLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *entryLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *entryLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *entryLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *entryLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *entryLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *entryLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.levels.enabled(level) {
		return
	}
	l.emit(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   joinFields(l.fields, fields),
	})
}

func (l *entryLogger) WithFields(fields ...Field) Logger {
	return &entryLogger{category: l.category, fields: joinFields(l.fields, fields), levels: l.levels, emit: l.emit}
}

func (l *entryLogger) WithCategory(category string) Logger {
	return &entryLogger{category: category, fields: l.fields, levels: l.levels, emit: l.emit}
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	JSON             bool      // 使用 JsonFormatter 输出
	Formatter        Formatter // 非空时优先于 JSON 与文本选项
	Output           io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者，同步写入
type ConsoleLoggerProvider struct {
	levelHolder
	formatter Formatter
	output    io.Writer
	mu        sync.Mutex
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}

	formatter := selectFormatter(options.Formatter, options.JSON, func(tf *TextFormatter) {
		tf.IncludeTimestamp = options.IncludeTimestamp
		if options.TimestampFormat != "" {
			tf.TimestampFormat = options.TimestampFormat
		}
		tf.ColorOutput = options.ColorOutput
	})

	p := &ConsoleLoggerProvider{formatter: formatter, output: options.Output}
	p.SetMinimumLevel(LogLevelInfo)
	return p
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &entryLogger{category: category, levels: &p.levelHolder, emit: p.write}
}

func (p *ConsoleLoggerProvider) write(entry *LogEntry) {
	data, err := p.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format error: %v\n", err)
		return
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.output.Write(data)
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path       string
	BufferSize int  // 异步队列长度，默认 1024
	JSON       bool // 使用 JsonFormatter 输出
}

// FileLoggerProvider 文件日志提供者，经 AsyncWriter 异步写入
type FileLoggerProvider struct {
	levelHolder
	options FileLoggerOptions

	mu     sync.Mutex
	file   *os.File
	writer *AsyncWriter
	err    error
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	p := &FileLoggerProvider{options: options}
	p.SetMinimumLevel(LogLevelInfo)
	return p
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	w, err := p.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: open %s: %v\n", p.options.Path, err)
		return NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: os.Stderr}).CreateLogger(category)
	}
	return &entryLogger{category: category, levels: &p.levelHolder, emit: w.WriteLog}
}

// open 首次创建 logger 时打开文件
func (p *FileLoggerProvider) open() (*AsyncWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil || p.err != nil {
		return p.writer, p.err
	}

	file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		p.err = err
		return nil, err
	}

	p.file = file
	p.writer = NewAsyncWriter(file, selectFormatter(nil, p.options.JSON, nil), p.options.BufferSize)
	return p.writer, nil
}

// Close 刷新队列并关闭文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	p.writer.Close()
	err := p.file.Close()
	p.writer, p.file = nil, nil
	return err
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	const (
		reset   = "\033[0m"
		gray    = "\033[90m"
		cyan    = "\033[36m"
		green   = "\033[32m"
		yellow  = "\033[33m"
		red     = "\033[31m"
		magenta = "\033[35m"
	)

	switch level {
	case LogLevelTrace:
		return gray + text + reset
	case LogLevelDebug:
		return cyan + text + reset
	case LogLevelInfo:
		return green + text + reset
	case LogLevelWarn:
		return yellow + text + reset
	case LogLevelError:
		return red + text + reset
	case LogLevelFatal:
		return magenta + text + reset
	default:
		return text
	}
}
