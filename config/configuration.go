package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Configuration 配置接口（类似于 .NET Core IConfiguration）
// 路径同时支持 "a:b:c" 与 "a.b.c"
type Configuration interface {
	// Get 获取配置值，不存在返回空串
	Get(key string) string
	// Lookup 获取叶子配置值，ok 表示键存在且不是配置节
	Lookup(key string) (string, bool)
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// Keys 返回当前节下的直接子键（已排序）
	Keys() []string
	// GetAll 获取所有配置
	GetAll() map[string]any
	// Reload 重新加载所有配置源
	Reload() error
}

// configuration 配置实现，读路径无锁
type configuration struct {
	store   *ValueStore
	sources []ConfigurationSource

	reloadMu sync.Mutex
}

func newConfiguration(sources []ConfigurationSource) *configuration {
	return &configuration{
		store:   NewValueStore(),
		sources: sources,
	}
}

func sectionOf(data map[string]any) *configuration {
	c := &configuration{store: NewValueStore()}
	c.store.Store(data)
	return c
}

// Reload 按顺序加载所有配置源（后面的会覆盖前面的），成功后原子替换
func (c *configuration) Reload() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	data := make(map[string]any)
	for _, source := range c.sources {
		loaded, err := source.Load()
		if err != nil {
			return fmt.Errorf("config: failed to load source %s: %w", source.Name(), err)
		}
		mergeMaps(data, loaded)
	}
	c.store.Store(data)
	return nil
}

func (c *configuration) Get(key string) string {
	value := c.getByPath(key)
	if value == nil {
		return ""
	}
	return stringify(value)
}

func (c *configuration) Lookup(key string) (string, bool) {
	value := c.getByPath(key)
	if value == nil {
		return "", false
	}
	if _, isSection := value.(map[string]any); isSection {
		return "", false
	}
	return stringify(value), true
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if value, ok := c.Lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	value := c.getByPath(key)
	if value == nil {
		return 0, fmt.Errorf("config: key %s not found", key)
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", value)
	}
}

func (c *configuration) GetBool(key string) (bool, error) {
	value := c.getByPath(key)
	if value == nil {
		return false, fmt.Errorf("config: key %s not found", key)
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", value)
	}
}

// GetSection 获取配置节，不存在时返回空节
func (c *configuration) GetSection(key string) Configuration {
	if m, ok := c.getByPath(key).(map[string]any); ok {
		return sectionOf(m)
	}
	return sectionOf(make(map[string]any))
}

// Bind 通过 JSON 往返把配置节绑定到结构体
func (c *configuration) Bind(key string, target any) error {
	data := c.getByPath(key)
	if data == nil {
		return fmt.Errorf("config: key %s not found", key)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: failed to marshal %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: failed to bind %s: %w", key, err)
	}
	return nil
}

func (c *configuration) Keys() []string {
	data := c.store.Load()
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetAll 返回副本
func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

func (c *configuration) getByPath(path string) any {
	data := c.store.Load()
	if path == "" {
		return data
	}

	current := any(data)
	for _, part := range globalPathCache.GetPathSegments(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// mergeMaps 深度合并，src 覆盖 dst
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if dstMap, ok := dst[k].(map[string]any); ok {
			if srcMap, ok := v.(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		if srcMap, ok := v.(map[string]any); ok {
			copied := make(map[string]any, len(srcMap))
			mergeMaps(copied, srcMap)
			dst[k] = copied
			continue
		}
		dst[k] = v
	}
}
