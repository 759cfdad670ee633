package localization

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gocrud/mvc/bootstrap"
	"golang.org/x/text/language"
)

// PropertyLocales 可用区域列表，如 "en_US:UTF-8, fr, de"
const PropertyLocales = "LocalePicker.Locales"

// LocalePicker 为请求选择区域和字符编码
type LocalePicker interface {
	PickLocale(r *http.Request) language.Tag
	PickCharacterEncoding(r *http.Request, locale language.Tag) string
}

// DefaultLocalePicker 按 Accept-Language 在配置的区域中匹配
// 没有匹配时使用第一个配置的区域，未配置时只支持 English
type DefaultLocalePicker struct {
	mu        sync.RWMutex
	locales   []language.Tag
	encodings map[language.Tag]string
	matcher   language.Matcher
}

func NewDefaultLocalePicker() *DefaultLocalePicker {
	p := &DefaultLocalePicker{}
	p.setLocales([]language.Tag{language.English}, nil)
	return p
}

// Init 解析 LocalePicker.Locales，任一区域无效时失败
func (p *DefaultLocalePicker) Init(resolver *bootstrap.PropertyResolver) error {
	entries := resolver.PropertyList(PropertyLocales)
	if len(entries) == 0 {
		return nil
	}

	locales := make([]language.Tag, 0, len(entries))
	encodings := make(map[language.Tag]string)
	for _, entry := range entries {
		name, encoding, _ := strings.Cut(entry, ":")
		tag, err := ParseLocale(name)
		if err != nil {
			return fmt.Errorf("localization: %s: invalid locale %q: %w", PropertyLocales, entry, err)
		}
		locales = append(locales, tag)
		if encoding = strings.TrimSpace(encoding); encoding != "" {
			encodings[tag] = encoding
		}
	}
	p.setLocales(locales, encodings)
	return nil
}

func (p *DefaultLocalePicker) setLocales(locales []language.Tag, encodings map[language.Tag]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locales = locales
	p.encodings = encodings
	p.matcher = language.NewMatcher(locales)
}

// Locales 返回配置的区域
func (p *DefaultLocalePicker) Locales() []language.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]language.Tag(nil), p.locales...)
}

func (p *DefaultLocalePicker) PickLocale(r *http.Request) language.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if r == nil {
		return p.locales[0]
	}
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return p.locales[0]
	}
	desired, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(desired) == 0 {
		return p.locales[0]
	}

	_, index, confidence := p.matcher.Match(desired...)
	if confidence == language.No {
		return p.locales[0]
	}
	return p.locales[index]
}

func (p *DefaultLocalePicker) PickCharacterEncoding(_ *http.Request, locale language.Tag) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.encodings[locale]
}
