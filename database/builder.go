package database

import (
	"fmt"
	"sort"

	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/logging"
	"gorm.io/gorm"
)

// Builder 数据库配置构建器
type Builder struct {
	configs  map[string]DatabaseOptions
	sections map[string]sectionConfig
	errors   []error
}

type sectionConfig struct {
	section   string
	configure func(*DatabaseOptions)
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		configs:  make(map[string]DatabaseOptions),
		sections: make(map[string]sectionConfig),
		errors:   make([]error, 0),
	}
}

// Add 添加数据库配置
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
// configure: 可选的配置函数
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*DatabaseOptions)) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	return b
}

// AddFromConfig 构建时从配置节读取 driver 与 dsn，例如 "Database:Messages"
func (b *Builder) AddFromConfig(name, section string, configure func(*DatabaseOptions)) *Builder {
	if b.exists(name) {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}
	b.sections[name] = sectionConfig{section: section, configure: configure}
	return b
}

func (b *Builder) exists(name string) bool {
	_, a := b.configs[name]
	_, s := b.sections[name]
	return a || s
}

// Names 已配置的数据库名称
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
		return fmt.Errorf("database configuration errors: %v", b.errors)
	}
	return nil
}

// Build 打开所有数据库，任一失败时关闭已打开的连接
func (b *Builder) Build(cfg config.Configuration, logger logging.Logger) (*DatabaseFactory, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	all := make(map[string]DatabaseOptions, len(b.configs)+len(b.sections))
	for name, opts := range b.configs {
		all[name] = opts
	}
	for name, sc := range b.sections {
		if cfg == nil {
			return nil, fmt.Errorf("database '%s': configuration is not available", name)
		}
		dc, err := config.Section[DialectorConfig](cfg, sc.section)
		if err != nil {
			return nil, fmt.Errorf("database '%s': %w", name, err)
		}
		dialector, err := dc.Dialector()
		if err != nil {
			return nil, fmt.Errorf("database '%s': %w", name, err)
		}
		opts := NewDefaultOptions(name, dialector)
		if sc.configure != nil {
			sc.configure(opts)
		}
		all[name] = *opts
	}

	factory := NewDatabaseFactory()
	for _, name := range b.Names() {
		opts := all[name]
		if err := factory.Register(opts); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to register database '%s': %w", name, err)
		}

		logger.Info("database registered",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "dialector", Value: opts.Dialector.Name()})
	}

	return factory, nil
}
