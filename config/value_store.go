package config

import (
	"sync/atomic"
)

// ValueStore 保存合并后的配置树
// Reload 整体替换快照，读取方拿到的 map 之后不会再被修改
type ValueStore struct {
	current atomic.Pointer[map[string]any]
	version atomic.Uint64
}

func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(make(map[string]any))
	return s
}

// Load 当前快照，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Store 替换快照，版本加一
func (s *ValueStore) Store(data map[string]any) {
	s.current.Store(&data)
	s.version.Add(1)
}

// Version 已生效的快照数，新建时为 1
func (s *ValueStore) Version() uint64 {
	return s.version.Load()
}
