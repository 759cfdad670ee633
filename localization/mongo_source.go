package localization

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/text/language"
)

// DefaultMongoCollection MongoSource 默认集合名
const DefaultMongoCollection = "bundles"

// MongoBundle 集合中的一个文档，每个 (bundle, locale) 一份，根区域的 locale 为空串
// messages 为键值对数组，键可含点号
type MongoBundle struct {
	Bundle   string         `bson:"bundle"`
	Locale   string         `bson:"locale"`
	Messages []MongoMessage `bson:"messages"`
}

type MongoMessage struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

// Map 返回消息表，重复键以后者为准
func (b MongoBundle) Map() map[string]string {
	out := make(map[string]string, len(b.Messages))
	for _, m := range b.Messages {
		out[m.Key] = m.Value
	}
	return out
}

// MongoCollection MongoSource 用到的集合操作，*mongo.Collection 满足该接口
type MongoCollection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
}

// MongoSource 从 MongoDB 集合读取消息
type MongoSource struct {
	Collection MongoCollection
}

func NewMongoSource(coll MongoCollection) *MongoSource {
	return &MongoSource{Collection: coll}
}

// EnsureMongoIndexes 创建 (bundle, locale) 唯一索引
func EnsureMongoIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bundle", Value: 1}, {Key: "locale", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("localization: create bundle index: %w", err)
	}
	return nil
}

func (s *MongoSource) Name() string { return "mongodb" }

func mongoFilter(name string, locale language.Tag) bson.D {
	return bson.D{{Key: "bundle", Value: name}, {Key: "locale", Value: LocaleKey(locale)}}
}

func (s *MongoSource) Load(ctx context.Context, name string, locale language.Tag) (map[string]string, bool, error) {
	var doc MongoBundle
	err := s.Collection.FindOne(ctx, mongoFilter(name, locale)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localization: mongo %s/%s: %w", name, LocaleKey(locale), err)
	}
	return doc.Map(), true, nil
}

// Store 把消息合并进该层文档，文档不存在时创建
func (s *MongoSource) Store(ctx context.Context, name string, locale language.Tag, messages map[string]string) error {
	existing, _, err := s.Load(ctx, name, locale)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(existing)+len(messages))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range messages {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := MongoBundle{Bundle: name, Locale: LocaleKey(locale), Messages: make([]MongoMessage, 0, len(keys))}
	for _, k := range keys {
		doc.Messages = append(doc.Messages, MongoMessage{Key: k, Value: merged[k]})
	}
	_, err = s.Collection.ReplaceOne(ctx, mongoFilter(name, locale), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("localization: mongo store %s/%s: %w", name, LocaleKey(locale), err)
	}
	return nil
}
