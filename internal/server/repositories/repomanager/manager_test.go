package repomanager

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/jwtauth/internal/server/config"
	"github.com/dmitrijs2005/jwtauth/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Memory(t *testing.T) {
	m, err := New(context.Background(), &config.Config{StorageBackend: config.BackendMemory})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RunMigrations(context.Background()))
	assert.IsType(t, &users.MemoryRepository{}, m.Users())
}

func TestNew_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	m, err := New(context.Background(), &config.Config{
		StorageBackend: config.BackendRedis,
		RedisAddr:      mr.Addr(),
		RedisKeyPrefix: "t",
	})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RunMigrations(context.Background()))
	assert.IsType(t, &users.RedisRepository{}, m.Users())
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	mr.SetError("ERR backend unavailable")
	defer mr.Close()

	m, err := New(context.Background(), &config.Config{StorageBackend: config.BackendRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer m.Close()

	assert.Error(t, m.RunMigrations(context.Background()))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.Config{StorageBackend: "cassandra"})
	assert.Error(t, err)
}
