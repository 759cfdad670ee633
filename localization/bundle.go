// Package localization 提供按区域加载的消息包与请求区域选择。
package localization

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Bundle 某个区域下的消息集合
type Bundle interface {
	Get(key string) (string, bool)
	Locale() language.Tag
	Keys() []string
}

type bundle struct {
	name     string
	locale   language.Tag
	messages map[string]string
}

// NewBundle 用现成的消息构造 Bundle，messages 被复制
func NewBundle(name string, locale language.Tag, messages map[string]string) Bundle {
	copied := make(map[string]string, len(messages))
	for k, v := range messages {
		copied[k] = v
	}
	return &bundle{name: name, locale: locale, messages: copied}
}

func (b *bundle) Get(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b.messages[key]
	return v, ok
}

func (b *bundle) Locale() language.Tag { return b.locale }

func (b *bundle) Keys() []string {
	keys := make([]string, 0, len(b.messages))
	for k := range b.messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LocaleKey 区域在文件名、Redis 键和数据表里的写法：en-US -> en_US，根区域为空串
func LocaleKey(locale language.Tag) string {
	if locale == language.Und {
		return ""
	}
	return strings.ReplaceAll(locale.String(), "-", "_")
}

// ParseLocale 接受 en_US 与 en-US 两种写法
func ParseLocale(s string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}

// localeChain 返回从根区域到 locale 本身的查找链：und, fr, fr-CA
func localeChain(locale language.Tag) []language.Tag {
	var chain []language.Tag
	for t := locale; ; t = t.Parent() {
		chain = append(chain, t)
		if t.IsRoot() || len(chain) > 8 {
			break
		}
	}
	if last := chain[len(chain)-1]; !last.IsRoot() {
		chain = append(chain, language.Und)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
