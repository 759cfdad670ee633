package mongodb

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/gocrud/mgo"
	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/text/language"
)

// 本机没有可用端口 1 上的 MongoDB
const unreachableURI = "mongodb://127.0.0.1:1/?directConnection=true"

func discardLogging() core.Option {
	return logging.Use(func(b *logging.LoggingBuilder) {
		b.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
	})
}

func TestBuilderValidation(t *testing.T) {
	b := NewBuilder().
		Add("", "mongodb://localhost:27017", nil).
		Add("test", "", nil).
		Add("pool", "mongodb://localhost:27017", func(o *MongoOptions) { o.MinPoolSize = 50; o.MaxPoolSize = 10 }).
		Add("dup", "mongodb://localhost:27017", nil).
		AddFromConfig("dup", "Mongo")

	err := b.Err()
	require.Error(t, err)
	assert.ErrorContains(t, err, "mongo client name is required")
	assert.ErrorContains(t, err, "mongo uri is required")
	assert.ErrorContains(t, err, "min pool size 50 exceeds max pool size 10")
	assert.ErrorContains(t, err, "'dup' already configured")

	_, err = b.Build(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestBuildFailsWhenUnreachable(t *testing.T) {
	factory := NewMongoFactory()
	err := factory.Register(context.Background(), MongoOptions{Name: "test", Uri: unreachableURI, Timeout: 300 * time.Millisecond})
	assert.ErrorContains(t, err, "failed to connect to mongo 'test'")
	assert.Empty(t, factory.Names(), "failed clients are not kept")

	_, err = factory.Get("test")
	assert.ErrorContains(t, err, "not found")
	_, err = factory.Mgo(context.Background(), "test")
	assert.ErrorContains(t, err, "not found")

	_, err = NewBuilder().
		Add(DefaultName, unreachableURI, func(o *MongoOptions) { o.Timeout = 300 * time.Millisecond }).
		Build(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "failed to register mongo client 'default'")
}

func TestClientFromConfig(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"Mongo": map[string]any{
			"Bundles": map[string]any{"Uri": unreachableURI, "Timeout": int64(300 * time.Millisecond)},
			"Broken":  map[string]any{"Database": "mvc"},
		},
	}).Build()
	require.NoError(t, err)

	_, err = NewBuilder().AddFromConfig("bundles", "Mongo:Bundles").Build(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "configuration is not available")

	_, err = NewBuilder().AddFromConfig("broken", "Mongo:Broken").Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "invalid mongo configuration for 'broken'")

	_, err = NewBuilder().AddFromConfig("bundles", "Mongo:Bundles").Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to register mongo client 'bundles'")
}

func TestNewWithoutClients(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(New()))
	require.NoError(t, rt.Container.Build())
	assert.False(t, rt.Container.Has(di.TypeOf[*MongoFactory](), ""))
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		discardLogging(),
		New(WithClient(DefaultName, unreachableURI, func(o *MongoOptions) { o.Timeout = 300 * time.Millisecond })),
	))
	assert.ErrorContains(t, rt.Container.Build(), "failed to register mongo client 'default'")
}

// 需要真实的 MongoDB，例如 MONGODB_URI=mongodb://localhost:27017/?directConnection=true
func TestNewRegistersClientsForBundles(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	dbName := "mvc_test_" + uuid.NewString()[:8]

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		discardLogging(),
		New(
			WithClient(DefaultName, uri, WithDatabase(dbName)),
			WithClient("audit", uri),
		),
		configuration.Module(configuration.WithInitParams(map[string]string{
			configuration.LocalizationBundleFactoryKind.PropertyKey(): "mongodb",
		})),
	))
	require.NoError(t, rt.Container.Build())

	db, err := di.Resolve[*mongo.Database](rt.Container)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	src := localization.NewMongoSource(db.Collection(localization.DefaultMongoCollection))
	ctx := context.Background()
	require.NoError(t, src.Store(ctx, localization.DefaultBundleName, language.Und, map[string]string{"greeting": "hello"}))
	require.NoError(t, src.Store(ctx, localization.DefaultBundleName, language.French, map[string]string{"greeting": "bonjour"}))

	def, err := di.Resolve[*mongo.Client](rt.Container)
	require.NoError(t, err)
	audit, err := di.ResolveNamed[*mongo.Client](rt.Container, "audit")
	require.NoError(t, err)
	assert.NotSame(t, def, audit)

	_, err = di.ResolveNamed[*mongo.Database](rt.Container, "audit")
	assert.ErrorContains(t, err, "no database configured")

	m1, err := di.Resolve[*mgo.Client](rt.Container)
	require.NoError(t, err)
	m2, err := di.ResolveNamed[*mgo.Client](rt.Container, DefaultName)
	require.NoError(t, err)
	assert.Same(t, m1, m2, "mgo clients are created once per name")

	cfg, err := di.Resolve[configuration.Configuration](rt.Container)
	require.NoError(t, err)
	b, err := cfg.LocalizationBundleFactory().ErrorMessageBundle(language.CanadianFrench)
	require.NoError(t, err)
	v, _ := b.Get("greeting")
	assert.Equal(t, "bonjour", v)

	require.NoError(t, rt.Lifecycle.Stop(context.Background()))
	assert.Error(t, def.Ping(context.Background(), nil), "clients are closed on stop")
}
