package localization

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/text/language"
)

// memoryCollection 按 (bundle, locale) 保存文档的内存集合
type memoryCollection struct {
	mu       sync.Mutex
	docs     map[[2]string]MongoBundle
	findErr  error
	replaces int
}

func newMemoryCollection() *memoryCollection {
	return &memoryCollection{docs: make(map[[2]string]MongoBundle)}
}

func filterKey(filter any) [2]string {
	var key [2]string
	for _, e := range filter.(bson.D) {
		switch e.Key {
		case "bundle":
			key[0] = e.Value.(string)
		case "locale":
			key[1] = e.Value.(string)
		}
	}
	return key
}

func (c *memoryCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.findErr, nil)
	}
	doc, ok := c.docs[filterKey(filter)]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (c *memoryCollection) ReplaceOne(_ context.Context, filter any, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[filterKey(filter)] = replacement.(MongoBundle)
	c.replaces++
	return &mongo.UpdateResult{}, nil
}

func TestMongoSource(t *testing.T) {
	coll := newMemoryCollection()
	src := NewMongoSource(coll)
	ctx := context.Background()

	_, found, err := src.Load(ctx, "Resources", language.French)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, src.Store(ctx, "Resources", language.Und, map[string]string{
		"greeting":                       "Hello",
		"converter.number.invalidNumber": "not a number",
	}))
	require.NoError(t, src.Store(ctx, "Resources", language.French, map[string]string{"greeting": "Salut"}))
	require.NoError(t, src.Store(ctx, "Resources", language.French, map[string]string{"greeting": "Bonjour", "bye": "Au revoir"}))

	assert.Len(t, coll.docs, 2, "one document per bundle and locale")
	fr := coll.docs[[2]string{"Resources", "fr"}]
	assert.Equal(t, []MongoMessage{{Key: "bye", Value: "Au revoir"}, {Key: "greeting", Value: "Bonjour"}}, fr.Messages)

	f := NewDefaultLocalizationBundleFactory(src, nil)
	b, err := f.ErrorMessageBundle(language.CanadianFrench)
	require.NoError(t, err)
	v, _ := b.Get("greeting")
	assert.Equal(t, "Bonjour", v)
	v, _ = b.Get("converter.number.invalidNumber")
	assert.Equal(t, "not a number", v)

	b, err = f.ErrorMessageBundle(language.Japanese)
	require.NoError(t, err)
	v, _ = b.Get("greeting")
	assert.Equal(t, "Hello", v)
}

func TestMongoSourceFailure(t *testing.T) {
	coll := newMemoryCollection()
	coll.findErr = errors.New("connection reset")
	src := NewMongoSource(coll)

	_, _, err := src.Load(context.Background(), "Resources", language.English)
	assert.ErrorContains(t, err, "connection reset")

	err = src.Store(context.Background(), "Resources", language.English, map[string]string{"k": "v"})
	assert.Error(t, err)
	assert.Zero(t, coll.replaces)

	f := NewDefaultLocalizationBundleFactory(src, nil)
	_, err = f.ErrorMessageBundle(language.English)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBundleNotFound)
}
