package localization

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
)

// DefaultRedisPrefix RedisSource 默认键前缀
const DefaultRedisPrefix = "mvc:bundle:"

// RedisSource 每个包和区域一个 Hash：<prefix><name>[:<locale>]
type RedisSource struct {
	Client *redis.Client
	Prefix string
}

func NewRedisSource(client *redis.Client, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSource{Client: client, Prefix: prefix}
}

func (s *RedisSource) Name() string { return "redis(" + s.Prefix + ")" }

// Key 返回某层消息对应的 Hash 键
func (s *RedisSource) Key(name string, locale language.Tag) string {
	key := s.Prefix + name
	if l := LocaleKey(locale); l != "" {
		key += ":" + l
	}
	return key
}

func (s *RedisSource) Load(ctx context.Context, name string, locale language.Tag) (map[string]string, bool, error) {
	messages, err := s.Client.HGetAll(ctx, s.Key(name, locale)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("localization: redis %s: %w", s.Key(name, locale), err)
	}
	return messages, len(messages) > 0, nil
}

// Store 写入一层消息
func (s *RedisSource) Store(ctx context.Context, name string, locale language.Tag, messages map[string]string) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]any, 0, len(messages)*2)
	for k, v := range messages {
		values = append(values, k, v)
	}
	return s.Client.HSet(ctx, s.Key(name, locale), values...).Err()
}
