package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/database"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoConfig struct {
	URI               string
	Database          string
	ConnectTimeout    time.Duration
	MaxPoolSize       uint64
	MinPoolSize       uint64
	MaxConnIdleTime   time.Duration
	MaxConnecting     uint64 // Controls concurrency
	EnableCompression bool
	RetryWrites       bool
	RetryReads        bool
}

// DialFunc opens and verifies a client for the given configuration.
type DialFunc func(ctx context.Context, config MongoConfig) (*mongo.Client, error)

// Manager owns one lazily established client per database. The first
// successful Database call connects; every later call gets the cached handle.
// Failed attempts are not remembered, so the next call dials again.
type Manager struct {
	config MongoConfig
	dial   DialFunc

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

func NewManager(config MongoConfig) *Manager {
	return NewManagerWithDialer(config, Dial)
}

func NewManagerWithDialer(config MongoConfig, dial DialFunc) *Manager {
	return &Manager{config: config, dial: dial}
}

// Database returns the shared database handle, connecting if needed.
func (m *Manager) Database(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	client, err := m.dial(ctx, m.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrConnection, err)
	}

	m.client = client
	m.db = client.Database(m.config.Database)

	log.WithFields(log.Fields{
		"database":      m.config.Database,
		"max_pool_size": m.config.MaxPoolSize,
	}).Info("MongoDB initialized")

	return m.db, nil
}

func (m *Manager) Collection(ctx context.Context, name string) (database.Collection, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		log.Errorf("Error disconnecting from MongoDB: %s", err)
	} else {
		log.Infof("Successfully disconnected from MongoDB database %s", m.config.Database)
	}
	m.client = nil
	m.db = nil
}

func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return client.Ping(ctx, nil) == nil
}

// Dial connects with the pooled client options and pings the primary. A
// client that cannot be pinged is disconnected and reported as a failure.
func Dial(ctx context.Context, config MongoConfig) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	opts := options.Client().
		ApplyURI(config.URI).
		SetServerAPIOptions(serverAPI).
		SetConnectTimeout(config.ConnectTimeout).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxConnIdleTime).
		SetMaxConnecting(config.MaxConnecting).
		SetRetryWrites(config.RetryWrites).
		SetRetryReads(config.RetryReads)

	if config.EnableCompression {
		opts.SetCompressors([]string{"zstd", "snappy", "zlib"})
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, pingCancel := context.WithTimeout(ctx, timeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("verifying MongoDB connection: %w", err)
	}

	log.Info("Successfully connected to MongoDB")
	return client, nil
}
