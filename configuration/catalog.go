package configuration

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/mvc/bootstrap"
	"github.com/gocrud/mvc/controller"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

// Kind 可配置的核心服务种类
type Kind string

const (
	ActionResolverKind            Kind = "ActionResolver"
	ActionBeanPropertyBinderKind  Kind = "ActionBeanPropertyBinder"
	TypeConverterFactoryKind      Kind = "TypeConverterFactory"
	LocalizationBundleFactoryKind Kind = "LocalizationBundleFactory"
	LocalePickerKind              Kind = "LocalePicker"
)

// Kinds 按初始化顺序返回所有种类
func Kinds() []Kind {
	return []Kind{
		ActionResolverKind,
		ActionBeanPropertyBinderKind,
		TypeConverterFactoryKind,
		LocalizationBundleFactoryKind,
		LocalePickerKind,
	}
}

// PropertyKey 选择实现的引导属性，如 "ActionResolver.Class"
func (k Kind) PropertyKey() string {
	return string(k) + ".Class"
}

// Interface 该种类服务的接口类型
func (k Kind) Interface() reflect.Type {
	switch k {
	case ActionResolverKind:
		return reflect.TypeOf((*controller.ActionResolver)(nil)).Elem()
	case ActionBeanPropertyBinderKind:
		return reflect.TypeOf((*controller.ActionBeanPropertyBinder)(nil)).Elem()
	case TypeConverterFactoryKind:
		return reflect.TypeOf((*validation.TypeConverterFactory)(nil)).Elem()
	case LocalizationBundleFactoryKind:
		return reflect.TypeOf((*localization.LocalizationBundleFactory)(nil)).Elem()
	case LocalePickerKind:
		return reflect.TypeOf((*localization.LocalePicker)(nil)).Elem()
	}
	return nil
}

// DefaultName 每个种类的默认实现名称
const DefaultName = "default"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Catalog 按种类和名称登记构造函数
// 构造函数的参数由容器注入，第一个返回值须实现种类接口，可选的最后一个返回值为 error
type Catalog struct {
	mu    sync.RWMutex
	ctors map[Kind]map[string]any
}

func NewCatalog() *Catalog {
	return &Catalog{ctors: make(map[Kind]map[string]any)}
}

// Register 登记构造函数，同名覆盖
func (c *Catalog) Register(kind Kind, name string, ctor any) error {
	iface := kind.Interface()
	if iface == nil {
		return fmt.Errorf("configuration: unknown kind %q", kind)
	}
	if name == "" {
		return fmt.Errorf("configuration: empty implementation name for %s", kind)
	}

	ft := reflect.TypeOf(ctor)
	if ft == nil || ft.Kind() != reflect.Func || ft.NumOut() == 0 || ft.NumOut() > 2 {
		return fmt.Errorf("configuration: %s/%s: constructor must be func(...) (T[, error]), got %T", kind, name, ctor)
	}
	if !ft.Out(0).Implements(iface) {
		return fmt.Errorf("configuration: %s/%s: %v does not implement %v", kind, name, ft.Out(0), iface)
	}
	if ft.NumOut() == 2 && ft.Out(1) != errorType {
		return fmt.Errorf("configuration: %s/%s: second result must be error", kind, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctors[kind] == nil {
		c.ctors[kind] = make(map[string]any)
	}
	c.ctors[kind][name] = ctor
	return nil
}

// MustRegister 登记失败时 panic
func (c *Catalog) MustRegister(kind Kind, name string, ctor any) *Catalog {
	if err := c.Register(kind, name, ctor); err != nil {
		panic(err)
	}
	return c
}

// Lookup 查找构造函数
func (c *Catalog) Lookup(kind Kind, name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctor, ok := c.ctors[kind][name]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s (known: %v)", ErrUnknownImplementation, name, kind, c.namesLocked(kind))
	}
	return ctor, nil
}

// Names 某种类已登记的名称，已排序
func (c *Catalog) Names(kind Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namesLocked(kind)
}

func (c *Catalog) namesLocked(kind Kind) []string {
	names := make([]string, 0, len(c.ctors[kind]))
	for n := range c.ctors[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone 复制目录，供局部扩展而不影响原目录
func (c *Catalog) Clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := NewCatalog()
	for kind, byName := range c.ctors {
		out.ctors[kind] = make(map[string]any, len(byName))
		for n, ctor := range byName {
			out.ctors[kind][n] = ctor
		}
	}
	return out
}

// DefaultCatalog 内置实现
func DefaultCatalog() *Catalog {
	return NewCatalog().
		MustRegister(ActionResolverKind, DefaultName, controller.NewDefaultActionResolver).
		MustRegister(ActionBeanPropertyBinderKind, DefaultName, controller.NewDefaultActionBeanPropertyBinder).
		MustRegister(TypeConverterFactoryKind, DefaultName, validation.NewDefaultTypeConverterFactory).
		MustRegister(LocalizationBundleFactoryKind, DefaultName, newFileBundleFactory).
		MustRegister(LocalizationBundleFactoryKind, "source", localization.NewDefaultLocalizationBundleFactory).
		MustRegister(LocalizationBundleFactoryKind, "redis", newRedisBundleFactory).
		MustRegister(LocalizationBundleFactoryKind, "database", newGormBundleFactory).
		MustRegister(LocalizationBundleFactoryKind, "mongodb", newMongoBundleFactory).
		MustRegister(LocalePickerKind, DefaultName, localization.NewDefaultLocalePicker)
}

const (
	// PropertyRedisPrefix redis 消息包的键前缀
	PropertyRedisPrefix = "LocalizationBundleFactory.RedisPrefix"
	// PropertyMongoCollection mongodb 消息包所在集合
	PropertyMongoCollection = "LocalizationBundleFactory.MongoCollection"
)

// mongoIndexTimeout 创建消息包索引的超时
const mongoIndexTimeout = 10 * time.Second

func newFileBundleFactory(resolver *bootstrap.PropertyResolver, logger logging.Logger) *localization.DefaultLocalizationBundleFactory {
	dir := resolver.PropertyOrDefault(localization.PropertyDirectory, localization.DefaultDirectory)
	return localization.NewDefaultLocalizationBundleFactory(localization.NewFileSource(dir), logger)
}

func newRedisBundleFactory(client *redis.Client, resolver *bootstrap.PropertyResolver, logger logging.Logger) *localization.DefaultLocalizationBundleFactory {
	source := localization.NewRedisSource(client, resolver.Property(PropertyRedisPrefix))
	return localization.NewDefaultLocalizationBundleFactory(source, logger)
}

func newGormBundleFactory(db *gorm.DB, logger logging.Logger) (*localization.DefaultLocalizationBundleFactory, error) {
	source, err := localization.NewGormSource(db)
	if err != nil {
		return nil, err
	}
	return localization.NewDefaultLocalizationBundleFactory(source, logger), nil
}

func newMongoBundleFactory(db *mongo.Database, resolver *bootstrap.PropertyResolver, logger logging.Logger) (*localization.DefaultLocalizationBundleFactory, error) {
	coll := db.Collection(resolver.PropertyOrDefault(PropertyMongoCollection, localization.DefaultMongoCollection))

	ctx, cancel := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancel()
	if err := localization.EnsureMongoIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return localization.NewDefaultLocalizationBundleFactory(localization.NewMongoSource(coll), logger), nil
}
