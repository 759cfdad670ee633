package logging

import (
	"time"
)

// Formatter 把一条日志编码为一行输出，控制台与文件提供者共用
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// FormatterFunc 以函数实现 Formatter
type FormatterFunc func(entry *LogEntry) ([]byte, error)

func (f FormatterFunc) Format(entry *LogEntry) ([]byte, error) { return f(entry) }

// LogEntry 一条待输出的日志
// Category 为 logger 的分类，如 "dispatcher"、"localization"
// Fields 含 WithFields 继承的字段，在调用处字段之前
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// Field 返回第一个同名字段的值
func (e *LogEntry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// selectFormatter custom 非空时直接使用，否则按 json 选择，text 调整文本格式
func selectFormatter(custom Formatter, json bool, text func(*TextFormatter)) Formatter {
	if custom != nil {
		return custom
	}
	if json {
		return NewJsonFormatter()
	}
	tf := NewTextFormatter()
	if text != nil {
		text(tf)
	}
	return tf
}
