package config

// Section 把指定节绑定到 T，section 为空时绑定整个配置
func Section[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// SectionOrDefault 节不存在时返回 def
func SectionOrDefault[T any](cfg Configuration, section string, def T) (T, error) {
	if cfg == nil {
		return def, nil
	}
	if section != "" && len(cfg.GetSection(section).Keys()) == 0 {
		return def, nil
	}
	t := def
	if err := cfg.Bind(section, &t); err != nil {
		return def, err
	}
	return t, nil
}
