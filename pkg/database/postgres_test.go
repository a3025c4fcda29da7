package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

func TestEnforceTLS(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{
			name: "key value without sslmode",
			dsn:  "host=db user=shop dbname=shop",
			want: "host=db user=shop dbname=shop sslmode=verify-full connect_timeout=30",
		},
		{
			name: "key value keeps verify-ca and timeout",
			dsn:  "host=db sslmode=verify-ca connect_timeout=5",
			want: "host=db sslmode=verify-ca connect_timeout=5",
		},
		{
			name:    "key value disable rejected",
			dsn:     "host=db sslmode=disable",
			wantErr: true,
		},
		{
			name: "url without sslmode",
			dsn:  "postgres://shop:pw@db:5432/shop",
			want: "postgres://shop:pw@db:5432/shop?connect_timeout=30&sslmode=verify-full",
		},
		{
			name:    "url require rejected",
			dsn:     "postgresql://db/shop?sslmode=require",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EnforceTLS(tt.dsn, 30*time.Second)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsecureSSLMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeartbeatState(t *testing.T) {
	var s heartbeatState

	_, ok := s.observe(nil)
	assert.False(t, ok, "здоровый пинг без смены состояния не порождает событие")

	ev, ok := s.observe(errors.New("connection refused"))
	require.True(t, ok)
	assert.Equal(t, EventDisconnected, ev.Type)

	_, ok = s.observe(errors.New("connection refused"))
	assert.False(t, ok)

	ev, ok = s.observe(nil)
	require.True(t, ok)
	assert.Equal(t, EventReconnected, ev.Type)
}

func TestPostgresConnector_DBBeforeConnect(t *testing.T) {
	c := NewPostgresConnector(config.DatabaseConfig{}, false, zap.NewNop())

	_, err := c.DB()
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
	assert.Equal(t, "postgres", c.Name())
	assert.NoError(t, c.Close(context.Background()))
}

func TestPostgresConnector_ConnectRejectsInsecureDSN(t *testing.T) {
	c := NewPostgresConnector(config.DatabaseConfig{DSN: "host=db sslmode=disable"}, false, zap.NewNop())

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrInsecureSSLMode)
}
