package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

// MongoHook выполняется после первого успешного подключения (например, создание индексов)
type MongoHook func(ctx context.Context, db *mongo.Database) error

// MongoConnector подключается к MongoDB с ограниченными таймаутами, пулом,
// majority write concern и обязательным TLS.
type MongoConnector struct {
	cfg    config.DatabaseConfig
	logger *zap.Logger

	mu      sync.RWMutex
	client  *mongo.Client
	hooks   []MongoHook
	handler func(Event)
	closing bool
	tracker *poolTracker
}

// NewMongoConnector создает коннектор. Подключение выполняется через ConnectionManager.
func NewMongoConnector(cfg config.DatabaseConfig, logger *zap.Logger) *MongoConnector {
	c := &MongoConnector{
		cfg:    cfg,
		logger: logger.Named("mongo"),
	}
	c.tracker = newPoolTracker(c.emit)
	return c
}

// Name возвращает имя бэкенда
func (c *MongoConnector) Name() string { return config.DriverMongo }

// SetEventHandler регистрирует обработчик событий соединения
func (c *MongoConnector) SetEventHandler(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// OnConnect добавляет хук, выполняемый после первого подключения
func (c *MongoConnector) OnConnect(hook MongoHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Database возвращает базу данных или ErrNotConnected, если клиент еще не создан
func (c *MongoConnector) Database() (*mongo.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, apperrors.ErrNotConnected
	}
	return c.client.Database(c.cfg.Name), nil
}

// Connect при первом вызове создает клиента и проверяет соединение ping-ом,
// при последующих только пингует существующего клиента.
func (c *MongoConnector) Connect(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client != nil {
		return client.Ping(ctx, readpref.Primary())
	}

	opts, err := c.clientOptions()
	if err != nil {
		return err
	}

	c.logger.Info("Connecting to MongoDB", zap.String("uri", RedactURI(c.cfg.URI)))
	client, err = mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		// Клиент без успешного ping не сохраняем, следующая попытка создаст новый
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = client.Disconnect(disconnectCtx)
		cancel()
		return fmt.Errorf("mongo ping: %w", err)
	}

	c.mu.Lock()
	c.client = client
	hooks := append([]MongoHook(nil), c.hooks...)
	c.mu.Unlock()

	db := client.Database(c.cfg.Name)
	for _, hook := range hooks {
		if err := hook(ctx, db); err != nil {
			c.logger.Error("MongoDB on-connect hook failed", zap.Error(err))
		}
	}
	return nil
}

// Close отключает клиента
func (c *MongoConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.closing = true
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func (c *MongoConnector) clientOptions() (*options.ClientOptions, error) {
	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	return options.Client().
		ApplyURI(c.cfg.URI).
		SetServerSelectionTimeout(c.cfg.ServerSelectionTimeout).
		SetSocketTimeout(c.cfg.SocketTimeout).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetMaxPoolSize(c.cfg.MaxPoolSize).
		SetMinPoolSize(c.cfg.MinPoolSize).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetWriteConcern(writeconcern.Majority()).
		SetHeartbeatInterval(c.cfg.HeartbeatInterval).
		SetTLSConfig(tlsConfig).
		SetPoolMonitor(&event.PoolMonitor{Event: c.tracker.handle}).
		SetServerMonitor(&event.ServerMonitor{
			ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
				c.emit(Event{Type: EventError, Err: e.Failure})
			},
		}), nil
}

// tlsConfig включает проверку сертификата всегда; CA-файл опционален
func (c *MongoConnector) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.cfg.TLSCAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(c.cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA file %s contains no certificates", c.cfg.TLSCAFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

func (c *MongoConnector) emit(ev Event) {
	c.mu.RLock()
	h := c.handler
	closing := c.closing
	c.mu.RUnlock()
	if h == nil || closing {
		return
	}
	h(ev)
}

// poolTracker сводит события пулов драйвера к переходам Disconnected/Reconnected:
// соединение считается потерянным, когда не осталось ни одного готового пула.
type poolTracker struct {
	mu           sync.Mutex
	ready        map[string]struct{}
	disconnected bool
	emit         func(Event)
}

func newPoolTracker(emit func(Event)) *poolTracker {
	return &poolTracker{ready: make(map[string]struct{}), emit: emit}
}

func (t *poolTracker) handle(e *event.PoolEvent) {
	var out *Event

	t.mu.Lock()
	switch e.Type {
	case event.PoolReady:
		wasEmpty := len(t.ready) == 0
		t.ready[e.Address] = struct{}{}
		if wasEmpty && t.disconnected {
			t.disconnected = false
			out = &Event{Type: EventReconnected}
		}
	case event.PoolCleared, event.PoolClosedEvent:
		if _, ok := t.ready[e.Address]; !ok {
			break
		}
		delete(t.ready, e.Address)
		if len(t.ready) == 0 {
			t.disconnected = true
			out = &Event{Type: EventDisconnected, Err: fmt.Errorf("connection pool for %s is no longer ready", e.Address)}
		}
	}
	t.mu.Unlock()

	if out != nil {
		t.emit(*out)
	}
}

// RedactURI скрывает пароль в строке подключения для логов
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid uri>"
	}
	return u.Redacted()
}
