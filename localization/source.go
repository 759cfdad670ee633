package localization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BundleSource 按包名和区域读取消息，found 为 false 表示该层不存在
type BundleSource interface {
	Name() string
	Load(ctx context.Context, name string, locale language.Tag) (messages map[string]string, found bool, err error)
}

// FileSource 从目录读取 <name>_<locale>.yaml|yml|json，根区域为 <name>.yaml
// 嵌套结构展开为点分键：converter: {number: {invalidNumber: ...}} -> converter.number.invalidNumber
type FileSource struct {
	Dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

func (s *FileSource) Name() string { return "file(" + s.Dir + ")" }

func (s *FileSource) Load(_ context.Context, name string, locale language.Tag) (map[string]string, bool, error) {
	base := name
	if key := LocaleKey(locale); key != "" {
		base += "_" + key
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(s.Dir, base+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		raw := make(map[string]any)
		if ext == ".json" {
			err = json.Unmarshal(data, &raw)
		} else {
			err = yaml.Unmarshal(data, &raw)
		}
		if err != nil {
			return nil, false, fmt.Errorf("localization: parse %s: %w", path, err)
		}

		messages := make(map[string]string)
		flatten("", raw, messages)
		return messages, true, nil
	}
	return nil, false, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// MemorySource 内存中的消息，主要用于测试和内嵌默认消息
type MemorySource struct {
	mu      sync.RWMutex
	bundles map[string]map[string]map[string]string // name -> localeKey -> key -> value
}

func NewMemorySource() *MemorySource {
	return &MemorySource{bundles: make(map[string]map[string]map[string]string)}
}

func (s *MemorySource) Name() string { return "memory" }

// Put 写入一层消息，locale 为 language.Und 表示根区域
func (s *MemorySource) Put(name string, locale language.Tag, messages map[string]string) *MemorySource {
	s.mu.Lock()
	defer s.mu.Unlock()

	byLocale, ok := s.bundles[name]
	if !ok {
		byLocale = make(map[string]map[string]string)
		s.bundles[name] = byLocale
	}
	layer, ok := byLocale[LocaleKey(locale)]
	if !ok {
		layer = make(map[string]string)
		byLocale[LocaleKey(locale)] = layer
	}
	for k, v := range messages {
		layer[k] = v
	}
	return s
}

func (s *MemorySource) Load(_ context.Context, name string, locale language.Tag) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.bundles[name][LocaleKey(locale)]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]string, len(layer))
	for k, v := range layer {
		out[k] = v
	}
	return out, true, nil
}
