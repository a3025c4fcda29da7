package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ecommerce-api/internal/config"
)

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(config.RedisConfig{Addr: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:6379"}, opts.Addrs)
	assert.Equal(t, 2, opts.DB)

	opts, err = RedisOptions(config.RedisConfig{Mode: "sentinel", Addrs: []string{"s1:26379"}, MasterName: "main"})
	require.NoError(t, err)
	assert.Equal(t, "main", opts.MasterName)

	_, err = RedisOptions(config.RedisConfig{})
	assert.Error(t, err)

	_, err = RedisOptions(config.RedisConfig{Mode: "sentinel", Addr: "s1:26379"})
	assert.Error(t, err)

	_, err = RedisOptions(config.RedisConfig{Mode: "mesh", Addr: "x:1"})
	assert.Error(t, err)
}
