package repomanager

import (
	"context"

	"github.com/dmitrijs2005/jwtauth/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

// RedisRepositoryManager keeps users in Redis. It has no schema, so
// RunMigrations only checks connectivity.
type RedisRepositoryManager struct {
	client redis.UniversalClient
	users  *users.RedisRepository
}

// OpenRedis connects to a single Redis node.
func OpenRedis(_ context.Context, addr, password string, db int, prefix string) (*RedisRepositoryManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisRepositoryManager(client, prefix), nil
}

func NewRedisRepositoryManager(client redis.UniversalClient, prefix string) *RedisRepositoryManager {
	return &RedisRepositoryManager{client: client, users: users.NewRedisRepository(client, prefix)}
}

func (m *RedisRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *RedisRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisRepositoryManager) Close() error {
	return m.client.Close()
}
