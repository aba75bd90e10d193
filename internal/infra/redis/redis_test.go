package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sifan077/SafeURL/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache.internal", TLS: true, DB: 2})

	assert.Equal(t, "cache.internal:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10*time.Second, opts.DialTimeout)
	assert.Equal(t, 3, opts.MaxRetries)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "cache.internal", opts.TLSConfig.ServerName)

	assert.Nil(t, Options(config.RedisConfig{}).TLSConfig)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewClient(ctx, config.RedisConfig{Host: mr.Host(), Port: port})
	assert.Error(t, err)
}
