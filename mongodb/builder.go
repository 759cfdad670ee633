package mongodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/logging"
)

// Builder MongoDB 配置构建器
type Builder struct {
	configs  map[string]MongoOptions
	sections map[string]string
	errors   []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		configs:  make(map[string]MongoOptions),
		sections: make(map[string]string),
		errors:   make([]error, 0),
	}
}

// Add 添加 MongoDB 客户端配置
func (b *Builder) Add(name string, uri string, configure func(*MongoOptions)) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("mongo client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, uri)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid mongo configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	return b
}

// AddFromConfig 构建时从配置节读取，例如 "Mongo:Bundles"
func (b *Builder) AddFromConfig(name, section string) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("mongo client '%s' already configured", name))
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
		return fmt.Errorf("mongo configuration errors: %v", b.errors)
	}
	return nil
}

// Build 连接所有客户端，任一失败时断开已建立的连接
func (b *Builder) Build(ctx context.Context, cfg config.Configuration, logger logging.Logger) (*MongoFactory, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	all := make(map[string]MongoOptions, len(b.configs)+len(b.sections))
	for name, opts := range b.configs {
		all[name] = opts
	}
	for name, section := range b.sections {
		if cfg == nil {
			return nil, fmt.Errorf("mongo client '%s': configuration is not available", name)
		}
		opts, err := config.SectionOrDefault(cfg, section, *NewDefaultOptions(name, ""))
		if err != nil {
			return nil, fmt.Errorf("mongo client '%s': %w", name, err)
		}
		opts.Name = name
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("invalid mongo configuration for '%s': %w", name, err)
		}
		all[name] = opts
	}

	factory := NewMongoFactory()
	for _, name := range b.Names() {
		opts := all[name]
		if err := factory.Register(ctx, opts); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to register mongo client '%s': %w", name, err)
		}

		logger.Info("mongo client registered",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "database", Value: opts.Database})
	}

	return factory, nil
}
