package mongodb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultName 默认客户端名称，同时以匿名方式注册到容器
const DefaultName = "default"

// MongoOptions MongoDB 客户端配置选项
type MongoOptions struct {
	Name        string
	Uri         string
	Database    string // 消息包等组件使用的库，可为空
	Username    string
	Password    string
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration // 连接与选主超时
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *MongoOptions {
	return &MongoOptions{
		Name:        name,
		Uri:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *MongoOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.Uri == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("mongo timeout must be positive")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("mongo min pool size %d exceeds max pool size %d", o.MinPoolSize, o.MaxPoolSize)
	}
	return nil
}

func (o *MongoOptions) apply(clientOpts *options.ClientOptions) *options.ClientOptions {
	if o.Username != "" || o.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(o.MinPoolSize)
	}
	if o.Timeout > 0 {
		clientOpts.SetConnectTimeout(o.Timeout)
		clientOpts.SetServerSelectionTimeout(o.Timeout)
	}
	return clientOpts
}

// MongoFactory 持有已连接的驱动客户端，mgo 客户端按需创建
type MongoFactory struct {
	clients map[string]*mongo.Client
	mgo     map[string]*mgo.Client
	options map[string]MongoOptions
	mu      sync.RWMutex
}

// NewMongoFactory 创建客户端工厂
func NewMongoFactory() *MongoFactory {
	return &MongoFactory{
		clients: make(map[string]*mongo.Client),
		mgo:     make(map[string]*mgo.Client),
		options: make(map[string]MongoOptions),
	}
}

// Register 连接并 Ping，失败时不保留
func (f *MongoFactory) Register(ctx context.Context, opts MongoOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("mongo client '%s' already registered", opts.Name)
	}

	client, err := mongo.Connect(opts.apply(options.Client().ApplyURI(opts.Uri)))
	if err != nil {
		return fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to connect to mongo '%s': %w", opts.Name, err)
	}

	f.clients[opts.Name] = client
	f.options[opts.Name] = opts
	return nil
}

// Get 获取指定名称的驱动客户端
func (f *MongoFactory) Get(name string) (*mongo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	return client, nil
}

// Database 返回客户端配置的库
func (f *MongoFactory) Database(name string) (*mongo.Database, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	db := f.options[name].Database
	if db == "" {
		return nil, fmt.Errorf("mongo client '%s' has no database configured", name)
	}
	return client.Database(db), nil
}

// Mgo 返回同一连接配置的 mgo 客户端，首次调用时创建
func (f *MongoFactory) Mgo(ctx context.Context, name string) (*mgo.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.mgo[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}

	connCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	client, err := mgo.NewClient(connCtx, opts.Uri, opts.apply(options.Client()))
	if err != nil {
		return nil, fmt.Errorf("failed to create mgo client '%s': %w", name, err)
	}
	f.mgo[name] = client
	return client, nil
}

// Options 返回客户端注册时的配置
func (f *MongoFactory) Options(name string) (MongoOptions, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.options[name]
	return o, ok
}

// Names 已注册的客户端名称，已排序
func (f *MongoFactory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 断开所有客户端
func (f *MongoFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, client := range f.mgo {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close mgo client '%s': %w", name, err))
		}
	}
	for name, client := range f.clients {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}

	f.clients = make(map[string]*mongo.Client)
	f.mgo = make(map[string]*mgo.Client)
	f.options = make(map[string]MongoOptions)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing mongo clients: %v", errs)
	}
	return nil
}
