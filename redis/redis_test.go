package redis

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gocrud/mvc/config"
	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func discardLogging() core.Option {
	return logging.Use(func(b *logging.LoggingBuilder) {
		b.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
	})
}

func TestBuilderValidation(t *testing.T) {
	b := NewBuilder().
		AddClient("a", func(o *RedisClientOptions) { o.Addr = "" }).
		AddClient("b", nil).
		AddClientFromConfig("b", "Redis")

	err := b.Err()
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid redis configuration for 'a'")
	assert.ErrorContains(t, err, "'b' already configured")
}

func TestBuildConnectsAndCloses(t *testing.T) {
	mr := miniredis.RunT(t)

	factory, err := NewBuilder().
		AddClient(DefaultName, func(o *RedisClientOptions) { o.Addr = mr.Addr() }).
		AddClient("cache", func(o *RedisClientOptions) { o.Addr = mr.Addr(); o.DB = 1 }).
		Build(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", DefaultName}, factory.Names())

	client, err := factory.Get("cache")
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	opts, ok := factory.Options("cache")
	require.True(t, ok)
	assert.Equal(t, 1, opts.DB)

	_, err = factory.Get("missing")
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, factory.Close())
	assert.Empty(t, factory.Names())
}

func TestBuildFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewBuilder().
		AddClient(DefaultName, func(o *RedisClientOptions) { o.Addr = addr }).
		Build(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "failed to register redis client 'default'")
}

func TestClientFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"Redis": map[string]any{"Bundles": map[string]any{"Addr": mr.Addr(), "DB": 2}},
	}).Build()
	require.NoError(t, err)

	b := NewBuilder().AddClientFromConfig("bundles", "Redis:Bundles")

	_, err = b.Build(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "configuration is not available")

	factory, err := b.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer factory.Close()

	opts, ok := factory.Options("bundles")
	require.True(t, ok)
	assert.Equal(t, "bundles", opts.Name)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize, "unset fields keep their defaults")
}

func TestNewRegistersClientsForBundles(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet(localization.DefaultRedisPrefix+localization.DefaultBundleName, "greeting", "hello")
	mr.HSet(localization.DefaultRedisPrefix+localization.DefaultBundleName+":fr", "greeting", "bonjour")

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		discardLogging(),
		New(
			WithClient(DefaultName, func(o *RedisClientOptions) { o.Addr = mr.Addr() }),
			WithClient("sessions", func(o *RedisClientOptions) { o.Addr = mr.Addr() }),
		),
		configuration.Module(configuration.WithInitParams(map[string]string{
			configuration.LocalizationBundleFactoryKind.PropertyKey(): "redis",
		})),
	))
	require.NoError(t, rt.Container.Build())

	def, err := di.Resolve[*redis.Client](rt.Container)
	require.NoError(t, err)
	named, err := di.ResolveNamed[*redis.Client](rt.Container, DefaultName)
	require.NoError(t, err)
	assert.Same(t, def, named)

	sessions, err := di.ResolveNamed[*redis.Client](rt.Container, "sessions")
	require.NoError(t, err)
	assert.NotSame(t, def, sessions)

	cfg, err := di.Resolve[configuration.Configuration](rt.Container)
	require.NoError(t, err)
	b, err := cfg.LocalizationBundleFactory().ErrorMessageBundle(language.French)
	require.NoError(t, err)
	v, _ := b.Get("greeting")
	assert.Equal(t, "bonjour", v)

	require.NoError(t, rt.Lifecycle.Stop(context.Background()))
	assert.Error(t, def.Ping(context.Background()).Err(), "clients are closed on stop")
}

func TestNewWithoutClients(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(New()))
	require.NoError(t, rt.Container.Build())
	assert.False(t, rt.Container.Has(di.TypeOf[*RedisClientFactory](), ""))
}
