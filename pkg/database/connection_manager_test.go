package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRetryDelay = 10 * time.Millisecond

// fakeConnector падает первые failures раз, затем подключается
type fakeConnector struct {
	mu          sync.Mutex
	failures    int
	calls       int
	inFlight    int
	maxInFlight int
	closed      bool
	sawDeadline bool
	handler     func(Event)
	block       chan struct{}
}

func (f *fakeConnector) Name() string { return "fake" }

func (f *fakeConnector) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	_, f.sawDeadline = ctx.Deadline()
	fail := f.calls <= f.failures
	block := f.block
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return errors.New("server selection error: connection refused")
	}
	return nil
}

func (f *fakeConnector) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConnector) SetEventHandler(h func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeConnector) emit(ev Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestManager(t *testing.T, c Connector) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(c, ManagerOptions{RetryDelay: testRetryDelay, ConnectTimeout: time.Second}, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func waitConnected(t *testing.T, m *ConnectionManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.WaitConnected(ctx))
}

func TestConnectionManager_RetriesUntilConnected(t *testing.T) {
	conn := &fakeConnector{failures: 3}
	m := newTestManager(t, conn)

	require.NoError(t, m.Start(context.Background()))
	waitConnected(t, m)

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 4, m.Attempts(), "3 неудачных попытки и одна успешная")
	assert.True(t, conn.sawDeadline, "каждая попытка ограничена таймаутом")
}

func TestConnectionManager_StartDoesNotBlock(t *testing.T) {
	conn := &fakeConnector{block: make(chan struct{})}
	m := newTestManager(t, conn)

	start := time.Now()
	require.NoError(t, m.Start(context.Background()))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Eventually(t, func() bool { return m.State() == StateConnecting }, time.Second, time.Millisecond)
	close(conn.block)
	waitConnected(t, m)
}

func TestConnectionManager_DisconnectTriggersReconnect(t *testing.T) {
	conn := &fakeConnector{}
	m := newTestManager(t, conn)
	require.NoError(t, m.Start(context.Background()))
	waitConnected(t, m)
	require.Equal(t, 1, conn.callCount())

	conn.emit(Event{Type: EventDisconnected})
	assert.Equal(t, StateDisconnected, m.State())

	waitConnected(t, m)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 2, conn.callCount())
}

func TestConnectionManager_ErrorEventOnlyLogs(t *testing.T) {
	conn := &fakeConnector{}
	m := newTestManager(t, conn)
	require.NoError(t, m.Start(context.Background()))
	waitConnected(t, m)

	conn.emit(Event{Type: EventError, Err: errors.New("tls: bad certificate")})
	time.Sleep(5 * testRetryDelay)

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 1, conn.callCount(), "ошибка не должна запускать переподключение")
}

func TestConnectionManager_ReconnectedEventRestoresState(t *testing.T) {
	conn := &fakeConnector{}
	m := NewConnectionManager(conn, ManagerOptions{RetryDelay: time.Hour, ConnectTimeout: time.Second}, zap.NewNop())
	defer m.Close(context.Background())
	require.NoError(t, m.Start(context.Background()))
	waitConnected(t, m)

	conn.emit(Event{Type: EventDisconnected})
	require.Equal(t, StateDisconnected, m.State())

	conn.emit(Event{Type: EventReconnected})
	assert.Equal(t, StateConnected, m.State())
	waitConnected(t, m)
}

func TestConnectionManager_SingleLoop(t *testing.T) {
	conn := &fakeConnector{failures: 5}
	m := newTestManager(t, conn)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	for i := 0; i < 10; i++ {
		conn.emit(Event{Type: EventDisconnected})
	}
	waitConnected(t, m)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Equal(t, 1, conn.maxInFlight)
}

func TestConnectionManager_CloseStopsRetrying(t *testing.T) {
	conn := &fakeConnector{failures: 1 << 30}
	m := NewConnectionManager(conn, ManagerOptions{RetryDelay: testRetryDelay, ConnectTimeout: time.Second}, zap.NewNop())
	require.NoError(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool { return conn.callCount() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, m.Close(context.Background()))
	calls := conn.callCount()
	time.Sleep(5 * testRetryDelay)

	assert.Equal(t, calls, conn.callCount())
	assert.Equal(t, StateDisconnected, m.State())
	assert.True(t, conn.closed)
	assert.ErrorIs(t, m.Start(context.Background()), ErrManagerClosed)
}

func TestConnectionManager_WaitConnectedHonorsContext(t *testing.T) {
	conn := &fakeConnector{failures: 1 << 30}
	m := newTestManager(t, conn)
	require.NoError(t, m.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WaitConnected(ctx), context.DeadlineExceeded)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "reconnected", EventReconnected.String())
}
