package localization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/mvc/bootstrap"
	"github.com/gocrud/mvc/logging"
	"golang.org/x/text/language"
)

// ErrBundleNotFound 区域链上没有任何一层消息
var ErrBundleNotFound = errors.New("localization: bundle not found")

// 属性键
const (
	PropertyErrorMessageBundle = "LocalizationBundleFactory.ErrorMessageBundle"
	PropertyFieldNameBundle    = "LocalizationBundleFactory.FieldNameBundle"
	PropertyDirectory          = "LocalizationBundleFactory.Directory"

	DefaultBundleName = "Resources"
	DefaultDirectory  = "resources"
)

// LocalizationBundleFactory 为错误消息和表单字段名提供区域化 Bundle
type LocalizationBundleFactory interface {
	ErrorMessageBundle(locale language.Tag) (Bundle, error)
	FormFieldBundle(locale language.Tag) (Bundle, error)
}

// Refresher 可清除缓存的工厂
type Refresher interface {
	Refresh()
}

// DefaultLocalizationBundleFactory 从 BundleSource 加载并缓存 Bundle
// 查找沿区域父链进行：und -> fr -> fr-CA，子区域覆盖父区域的同名键
type DefaultLocalizationBundleFactory struct {
	source      BundleSource
	logger      logging.Logger
	loadTimeout time.Duration

	mu          sync.RWMutex
	errorBundle string
	fieldBundle string
	cache       map[string]Bundle
}

// NewDefaultLocalizationBundleFactory 创建工厂，logger 可以为 nil
func NewDefaultLocalizationBundleFactory(source BundleSource, logger logging.Logger) *DefaultLocalizationBundleFactory {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DefaultLocalizationBundleFactory{
		source:      source,
		logger:      logger.WithCategory("localization"),
		loadTimeout: 5 * time.Second,
		errorBundle: DefaultBundleName,
		fieldBundle: DefaultBundleName,
		cache:       make(map[string]Bundle),
	}
}

// Init 读取包名配置
func (f *DefaultLocalizationBundleFactory) Init(resolver *bootstrap.PropertyResolver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorBundle = resolver.PropertyOrDefault(PropertyErrorMessageBundle, DefaultBundleName)
	f.fieldBundle = resolver.PropertyOrDefault(PropertyFieldNameBundle, DefaultBundleName)
	f.cache = make(map[string]Bundle)
	f.logger.Debug("bundle factory initialized",
		logging.Field{Key: "source", Value: f.source.Name()},
		logging.Field{Key: "errors", Value: f.errorBundle},
		logging.Field{Key: "fields", Value: f.fieldBundle})
	return nil
}

// BundleNames 返回错误消息包名与字段名包名
func (f *DefaultLocalizationBundleFactory) BundleNames() (errorBundle, fieldBundle string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.errorBundle, f.fieldBundle
}

func (f *DefaultLocalizationBundleFactory) ErrorMessageBundle(locale language.Tag) (Bundle, error) {
	name, _ := f.BundleNames()
	return f.Bundle(name, locale)
}

func (f *DefaultLocalizationBundleFactory) FormFieldBundle(locale language.Tag) (Bundle, error) {
	_, name := f.BundleNames()
	return f.Bundle(name, locale)
}

// Bundle 加载任意包名的区域化 Bundle
func (f *DefaultLocalizationBundleFactory) Bundle(name string, locale language.Tag) (Bundle, error) {
	cacheKey := name + "|" + locale.String()

	f.mu.RLock()
	b, ok := f.cache[cacheKey]
	f.mu.RUnlock()
	if ok {
		return b, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.loadTimeout)
	defer cancel()

	merged := make(map[string]string)
	found := false
	for _, tag := range localeChain(locale) {
		messages, ok, err := f.source.Load(ctx, name, tag)
		if err != nil {
			return nil, fmt.Errorf("localization: load %s for %s: %w", name, tag, err)
		}
		if !ok {
			continue
		}
		found = true
		for k, v := range messages {
			merged[k] = v
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s for %s in %s", ErrBundleNotFound, name, locale, f.source.Name())
	}

	b = NewBundle(name, locale, merged)
	f.mu.Lock()
	f.cache[cacheKey] = b
	f.mu.Unlock()
	return b, nil
}

// Refresh 清空缓存，下次访问重新加载
func (f *DefaultLocalizationBundleFactory) Refresh() {
	f.mu.Lock()
	n := len(f.cache)
	f.cache = make(map[string]Bundle)
	f.mu.Unlock()
	f.logger.Info("bundle cache cleared", logging.Field{Key: "entries", Value: n})
}
