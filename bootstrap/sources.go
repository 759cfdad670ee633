package bootstrap

import (
	"os"
	"strings"

	"github.com/gocrud/mvc/config"
)

// InitParams 分发器的初始化参数
type InitParams map[string]string

func (p InitParams) Name() string { return "init-params" }

func (p InitParams) Lookup(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// ConfigSource 从宿主配置读取属性
// "LocalePicker.Locales" 对应 YAML 中的 LocalePicker: {Locales: ...}；
// 原样查找失败时再按小写查找，以兼容环境变量源写入的小写键
type ConfigSource struct {
	Config config.Configuration
}

func (s ConfigSource) Name() string { return "config" }

func (s ConfigSource) Lookup(key string) (string, bool) {
	if s.Config == nil {
		return "", false
	}
	if v, ok := s.Config.Lookup(key); ok {
		return v, true
	}
	return s.Config.Lookup(strings.ToLower(key))
}

// EnvSource 从环境变量读取属性：前缀 + 大写键，"." 替换为 "_"
type EnvSource struct {
	Prefix string
}

func (s EnvSource) Name() string { return "env(" + s.Prefix + ")" }

func (s EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(s.EnvKey(key))
}

// EnvKey 返回属性对应的环境变量名，LocalePicker.Locales -> MVC_LOCALEPICKER_LOCALES
func (s EnvSource) EnvKey(key string) string {
	return s.Prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
