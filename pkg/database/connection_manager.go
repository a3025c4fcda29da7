package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/pkg/metrics"
)

// State описывает состояние подключения к хранилищу
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventType тип события жизненного цикла соединения, которое сообщает драйвер
type EventType int

const (
	EventDisconnected EventType = iota + 1
	EventReconnected
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event событие от драйвера
type Event struct {
	Type EventType
	Err  error
}

// Connector устанавливает и закрывает подключение к конкретному хранилищу.
// Connect должен быть повторно вызываемым: после первого успешного вызова он лишь проверяет соединение.
type Connector interface {
	Name() string
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// EventSource реализуется коннекторами, которые умеют сообщать о разрывах и восстановлении соединения
type EventSource interface {
	SetEventHandler(handler func(Event))
}

// ManagerOptions настройки менеджера соединений
type ManagerOptions struct {
	// RetryDelay фиксированная пауза между попытками подключения
	RetryDelay time.Duration
	// ConnectTimeout ограничивает одну попытку подключения
	ConnectTimeout time.Duration
}

// ErrManagerClosed возвращается после Close
var ErrManagerClosed = errors.New("connection manager is closed")

// ConnectionManager поддерживает подключение к хранилищу: повторяет попытки с постоянным
// интервалом до успеха и переподключается после разрыва. Одновременно работает не более одного цикла подключения.
type ConnectionManager struct {
	connector      Connector
	logger         *zap.Logger
	retryDelay     time.Duration
	connectTimeout time.Duration

	mu          sync.Mutex
	state       State
	attempts    int
	looping     bool
	closed      bool
	connectedCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewConnectionManager создает менеджер. Подключение начинается только после Start.
func NewConnectionManager(connector Connector, opts ManagerOptions, logger *zap.Logger) *ConnectionManager {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ConnectionManager{
		connector:      connector,
		logger:         logger.Named("db").With(zap.String("backend", connector.Name())),
		retryDelay:     opts.RetryDelay,
		connectTimeout: opts.ConnectTimeout,
		state:          StateDisconnected,
		connectedCh:    make(chan struct{}),
	}
	if src, ok := connector.(EventSource); ok {
		src.SetEventHandler(m.HandleEvent)
	}
	metrics.SetDBConnectionState(connector.Name(), int(StateDisconnected))
	return m
}

// Start запускает цикл подключения и сразу возвращает управление.
// Цикл продолжается, пока не отменен ctx или не вызван Close.
func (m *ConnectionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.ctx != nil {
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.startLoopLocked(0)
	return nil
}

// State возвращает текущее состояние
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts возвращает число сделанных попыток подключения
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// WaitConnected блокируется до установки соединения или отмены ctx
func (m *ConnectionManager) WaitConnected(ctx context.Context) error {
	m.mu.Lock()
	ch := m.connectedCh
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvent обрабатывает событие драйвера.
// Disconnected запускает повторное подключение через RetryDelay, Error только логируется.
func (m *ConnectionManager) HandleEvent(ev Event) {
	switch ev.Type {
	case EventDisconnected:
		m.mu.Lock()
		if m.closed || m.state != StateConnected {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateDisconnected)
		m.connectedCh = make(chan struct{})
		m.logger.Warn("Database disconnected, retrying", zap.Duration("retry_in", m.retryDelay), zap.Error(ev.Err))
		m.startLoopLocked(m.retryDelay)
		m.mu.Unlock()

	case EventReconnected:
		m.mu.Lock()
		if m.closed || m.state == StateConnected {
			m.mu.Unlock()
			return
		}
		m.markConnectedLocked()
		m.mu.Unlock()
		m.logger.Info("Database reconnected")

	case EventError:
		d := Diagnose(ev.Err)
		fields := []zap.Field{zap.Error(ev.Err), zap.String("category", string(d.Category))}
		if d.Category == CategoryTransportSecurity {
			fields = append(fields, zap.Strings("hints", d.Hints))
		}
		m.logger.Error("Database connection error", fields...)
	}
}

// Close останавливает цикл подключения и закрывает соединение
func (m *ConnectionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := m.connector.Close(ctx)

	m.mu.Lock()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	return err
}

func (m *ConnectionManager) startLoopLocked(initialDelay time.Duration) {
	if m.looping || m.closed || m.ctx == nil {
		return
	}
	m.looping = true
	m.wg.Add(1)
	go m.connectLoop(m.ctx, initialDelay)
}

func (m *ConnectionManager) connectLoop(ctx context.Context, initialDelay time.Duration) {
	defer m.wg.Done()

	if initialDelay > 0 {
		t := time.NewTimer(initialDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			m.stopLoop()
			return
		case <-t.C:
		}
	}

	err := retry.Do(ctx, retry.NewConstant(m.retryDelay), func(ctx context.Context) error {
		if err := m.attempt(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Выход возможен только по отмене контекста
		m.logger.Debug("Connect loop stopped", zap.Error(err))
		m.stopLoop()
	}
}

func (m *ConnectionManager) attempt(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		// Соединение восстановил сам драйвер
		m.looping = false
		m.mu.Unlock()
		return nil
	}
	m.attempts++
	n := m.attempts
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	attemptCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	err := m.connector.Connect(attemptCtx)
	cancel()

	if err != nil {
		d := Diagnose(err)
		metrics.RecordDBConnectAttempt(m.connector.Name(), "failure")
		m.logger.Error("Database connection failed",
			zap.Int("attempt", n),
			zap.String("category", string(d.Category)),
			zap.Strings("hints", d.Hints),
			zap.Duration("retry_in", m.retryDelay),
			zap.Error(err),
		)
		m.mu.Lock()
		if m.state == StateConnecting {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		return err
	}

	metrics.RecordDBConnectAttempt(m.connector.Name(), "success")
	m.mu.Lock()
	m.markConnectedLocked()
	m.looping = false
	m.mu.Unlock()
	m.logger.Info("Database connected", zap.Int("attempt", n))
	return nil
}

func (m *ConnectionManager) stopLoop() {
	m.mu.Lock()
	m.looping = false
	if m.state == StateConnecting {
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()
}

func (m *ConnectionManager) markConnectedLocked() {
	m.setStateLocked(StateConnected)
	select {
	case <-m.connectedCh:
	default:
		close(m.connectedCh)
	}
}

func (m *ConnectionManager) setStateLocked(s State) {
	m.state = s
	metrics.SetDBConnectionState(m.connector.Name(), int(s))
}
