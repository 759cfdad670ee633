package localization

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gocrud/mvc/bootstrap"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLocaleKeyAndChain(t *testing.T) {
	assert.Equal(t, "", LocaleKey(language.Und))
	assert.Equal(t, "en_US", LocaleKey(language.AmericanEnglish))

	tag, err := ParseLocale("fr_CA")
	require.NoError(t, err)
	assert.Equal(t, language.CanadianFrench, tag)

	assert.Equal(t, []language.Tag{language.Und, language.French, language.CanadianFrench}, localeChain(tag))
	assert.Equal(t, []language.Tag{language.Und}, localeChain(language.Und))
}

func TestFileSourceParentChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Resources.yaml", `
converter:
  number:
    invalidNumber: "{0} is not a number"
  date:
    invalidDate: "{0} is not a date"
`)
	writeFile(t, dir, "Resources_fr.yml", `
converter:
  number:
    invalidNumber: "{0} n'est pas un nombre"
`)
	writeFile(t, dir, "Resources_fr_CA.json", `{"calc.numberOne": "Premier nombre"}`)

	f := NewDefaultLocalizationBundleFactory(NewFileSource(dir), nil)

	b, err := f.ErrorMessageBundle(language.CanadianFrench)
	require.NoError(t, err)
	assert.Equal(t, language.CanadianFrench, b.Locale())

	v, ok := b.Get("converter.number.invalidNumber")
	assert.True(t, ok)
	assert.Equal(t, "{0} n'est pas un nombre", v, "child overrides root")

	v, _ = b.Get("converter.date.invalidDate")
	assert.Equal(t, "{0} is not a date", v, "inherited from root")

	v, _ = b.Get("calc.numberOne")
	assert.Equal(t, "Premier nombre", v)

	assert.Equal(t, []string{"calc.numberOne", "converter.date.invalidDate", "converter.number.invalidNumber"}, b.Keys())

	en, err := f.FormFieldBundle(language.English)
	require.NoError(t, err)
	_, ok = en.Get("calc.numberOne")
	assert.False(t, ok)
}

func TestFileSourceMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Broken.json", `{"a": `)

	_, _, err := NewFileSource(dir).Load(context.Background(), "Broken", language.Und)
	assert.ErrorContains(t, err, "Broken.json")
}

func TestBundleNotFound(t *testing.T) {
	f := NewDefaultLocalizationBundleFactory(NewFileSource(t.TempDir()), nil)

	_, err := f.ErrorMessageBundle(language.German)
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestFactoryInitReadsBundleNames(t *testing.T) {
	src := NewMemorySource().
		Put("Errors", language.Und, map[string]string{"validation.required": "{0} is required"}).
		Put("Fields", language.German, map[string]string{"age": "Alter"})

	f := NewDefaultLocalizationBundleFactory(src, nil)
	require.NoError(t, f.Init(bootstrap.NewPropertyResolver(bootstrap.InitParams{
		PropertyErrorMessageBundle: "Errors",
		PropertyFieldNameBundle:    "Fields",
	})))

	errorsName, fieldsName := f.BundleNames()
	assert.Equal(t, "Errors", errorsName)
	assert.Equal(t, "Fields", fieldsName)

	b, err := f.ErrorMessageBundle(language.German)
	require.NoError(t, err)
	v, _ := b.Get("validation.required")
	assert.Equal(t, "{0} is required", v)

	b, err = f.FormFieldBundle(language.MustParse("de-AT"))
	require.NoError(t, err)
	v, _ = b.Get("age")
	assert.Equal(t, "Alter", v)
}

func TestFactoryCacheAndRefresh(t *testing.T) {
	src := NewMemorySource().Put(DefaultBundleName, language.Und, map[string]string{"k": "v1"})
	f := NewDefaultLocalizationBundleFactory(src, nil)

	first, err := f.ErrorMessageBundle(language.English)
	require.NoError(t, err)
	second, err := f.ErrorMessageBundle(language.English)
	require.NoError(t, err)
	assert.Same(t, first, second)

	src.Put(DefaultBundleName, language.Und, map[string]string{"k": "v2"})
	cached, _ := f.ErrorMessageBundle(language.English)
	v, _ := cached.Get("k")
	assert.Equal(t, "v1", v)

	f.Refresh()
	fresh, err := f.ErrorMessageBundle(language.English)
	require.NoError(t, err)
	v, _ = fresh.Get("k")
	assert.Equal(t, "v2", v)
}

func TestNilBundleGet(t *testing.T) {
	var b *bundle
	_, ok := b.Get("anything")
	assert.False(t, ok)
}

func TestRedisSource(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := NewRedisSource(client, "")
	ctx := context.Background()
	require.NoError(t, src.Store(ctx, "Resources", language.Und, map[string]string{"a": "root-a", "b": "root-b"}))
	require.NoError(t, src.Store(ctx, "Resources", language.German, map[string]string{"a": "de-a"}))
	assert.True(t, mr.Exists("mvc:bundle:Resources:de"))

	f := NewDefaultLocalizationBundleFactory(src, nil)
	b, err := f.ErrorMessageBundle(language.MustParse("de-CH"))
	require.NoError(t, err)

	v, _ := b.Get("a")
	assert.Equal(t, "de-a", v)
	v, _ = b.Get("b")
	assert.Equal(t, "root-b", v)

	_, found, err := src.Load(ctx, "Missing", language.Und)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisSourceUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	f := NewDefaultLocalizationBundleFactory(NewRedisSource(client, "p:"), nil)
	_, err := f.ErrorMessageBundle(language.English)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBundleNotFound)
}

func TestGormSource(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "messages.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	src, err := NewGormSource(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, src.Store(ctx, "Resources", language.Und, map[string]string{"greeting": "Hello"}))
	require.NoError(t, src.Store(ctx, "Resources", language.French, map[string]string{"greeting": "Salut"}))
	require.NoError(t, src.Store(ctx, "Resources", language.French, map[string]string{"greeting": "Bonjour"}))

	var count int64
	require.NoError(t, db.Model(&Message{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	f := NewDefaultLocalizationBundleFactory(src, nil)
	b, err := f.ErrorMessageBundle(language.CanadianFrench)
	require.NoError(t, err)
	v, _ := b.Get("greeting")
	assert.Equal(t, "Bonjour", v)

	b, err = f.ErrorMessageBundle(language.Japanese)
	require.NoError(t, err)
	v, _ = b.Get("greeting")
	assert.Equal(t, "Hello", v)
}

func TestLocalePicker(t *testing.T) {
	p := NewDefaultLocalePicker()
	require.NoError(t, p.Init(bootstrap.NewPropertyResolver(bootstrap.InitParams{
		PropertyLocales: "en_US:UTF-8, fr, de:ISO-8859-1",
	})))
	assert.Equal(t, []language.Tag{language.AmericanEnglish, language.French, language.German}, p.Locales())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "fr-CA,fr;q=0.9,en;q=0.5")
	assert.Equal(t, language.French, p.PickLocale(req))

	req.Header.Set("Accept-Language", "de-DE;q=0.8, ja")
	assert.Equal(t, language.German, p.PickLocale(req))

	req.Header.Set("Accept-Language", "ja")
	assert.Equal(t, language.AmericanEnglish, p.PickLocale(req), "no match falls back to the first locale")

	req.Header.Del("Accept-Language")
	assert.Equal(t, language.AmericanEnglish, p.PickLocale(req))

	assert.Equal(t, "UTF-8", p.PickCharacterEncoding(req, language.AmericanEnglish))
	assert.Equal(t, "ISO-8859-1", p.PickCharacterEncoding(req, language.German))
	assert.Equal(t, "", p.PickCharacterEncoding(req, language.French))
}

func TestLocalePickerDefaults(t *testing.T) {
	p := NewDefaultLocalePicker()
	require.NoError(t, p.Init(bootstrap.NewPropertyResolver()))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "fr")
	assert.Equal(t, language.English, p.PickLocale(req))
	assert.Equal(t, language.English, p.PickLocale(nil))
}

func TestLocalePickerInvalidLocale(t *testing.T) {
	p := NewDefaultLocalePicker()
	err := p.Init(bootstrap.NewPropertyResolver(bootstrap.InitParams{PropertyLocales: "en, not a locale!"}))
	assert.ErrorContains(t, err, PropertyLocales)
}
