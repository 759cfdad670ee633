package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 把日志转交给 zap，category 映射为 zap 的 Named
type ZapLoggerProvider struct {
	levelHolder
	base *zap.Logger
}

// NewZapLoggerProvider 包装已有的 zap.Logger，nil 时使用 zap.NewProduction
func NewZapLoggerProvider(base *zap.Logger) (*ZapLoggerProvider, error) {
	if base == nil {
		var err error
		if base, err = zap.NewProduction(); err != nil {
			return nil, err
		}
	}
	p := &ZapLoggerProvider{base: base}
	p.SetMinimumLevel(LogLevelInfo)
	return p, nil
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	z := p.base
	if category != "" {
		z = z.Named(category)
	}
	return &zapLogger{z: z, levels: &p.levelHolder}
}

// Close 刷新 zap 缓冲
func (p *ZapLoggerProvider) Close() error {
	return p.base.Sync()
}

type zapLogger struct {
	z      *zap.Logger
	levels *levelHolder
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

// Fatal 由 zap 负责退出进程
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.Log(LogLevelFatal, msg, fields...) }

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.levels.enabled(level) {
		return
	}
	if ce := l.z.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(zapFields(fields)...), levels: l.levels}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{z: l.z.Named(category), levels: l.levels}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

// zapLevel zap 没有 trace，归入 debug
func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}
