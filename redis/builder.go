package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/logging"
)

// Builder Redis 客户端配置构建器
type Builder struct {
	configs  map[string]RedisClientOptions
	sections map[string]string
	errors   []error
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{
		configs:  make(map[string]RedisClientOptions),
		sections: make(map[string]string),
		errors:   make([]error, 0),
	}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*RedisClientOptions)) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("redis client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid redis configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	return b
}

// AddClientFromConfig 构建时从配置节读取客户端配置，例如 "Redis:Bundles"
func (b *Builder) AddClientFromConfig(name, section string) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("redis client '%s' already configured", name))
		return b
	}
	b.sections[name] = section
	return b
}

func (b *Builder) exists(name string) bool {
	_, a := b.configs[name]
	_, s := b.sections[name]
	return a || s
}

// Names 已配置的客户端名称
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.configs)+len(b.sections))
	for name := range b.configs {
		names = append(names, name)
	}
	for name := range b.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err 返回配置阶段累积的错误
func (b *Builder) Err() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("redis configuration errors: %v", b.errors)
	}
	return nil
}

// Build 连接所有客户端，任一失败时关闭已建立的连接
// cfg 仅在使用 AddClientFromConfig 时需要
func (b *Builder) Build(ctx context.Context, cfg config.Configuration, logger logging.Logger) (*RedisClientFactory, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	all := make(map[string]RedisClientOptions, len(b.configs)+len(b.sections))
	for name, opts := range b.configs {
		all[name] = opts
	}
	for name, section := range b.sections {
		if cfg == nil {
			return nil, fmt.Errorf("redis client '%s': configuration is not available", name)
		}
		opts, err := config.SectionOrDefault(cfg, section, *NewDefaultOptions(name))
		if err != nil {
			return nil, fmt.Errorf("redis client '%s': %w", name, err)
		}
		opts.Name = name
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("invalid redis configuration for '%s': %w", name, err)
		}
		all[name] = opts
	}

	factory := NewRedisClientFactory()
	for _, name := range b.Names() {
		opts := all[name]
		if err := factory.Register(ctx, opts); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to register redis client '%s': %w", name, err)
		}

		logger.Info("redis client registered",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "addr", Value: opts.Addr},
			logging.Field{Key: "db", Value: opts.DB})
	}

	return factory, nil
}
