package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// redisInsertRetries bounds WATCH/EXEC attempts for Insert.
var redisInsertRetries = 4

// userRecord is the JSON blob stored under the user key.
type userRecord struct {
	ID                    string     `json:"id"`
	UserName              string     `json:"username"`
	PasswordHash          string     `json:"passwordHash"`
	Role                  string     `json:"role"`
	RefreshToken          *string    `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt *time.Time `json:"refreshTokenExpiresAt,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// RedisRepository stores each user as a JSON blob under "<prefix>:user:<id>"
// and indexes usernames under "<prefix>:username:<name>". Writes run inside
// WATCH/MULTI so the username index and the version check are atomic.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "jwtauth"
	}
	return &RedisRepository{
		redis:  client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisRepository) userKey(id string) string {
	return r.prefix + ":user:" + id
}

func (r *RedisRepository) nameKey(userName string) string {
	return r.prefix + ":username:" + userName
}

func (r *RedisRepository) Insert(ctx context.Context, user *models.User) error {
	nameKey := r.nameKey(user.UserName)
	userKey := r.userKey(user.ID)

	for i := 0; i < redisInsertRetries; i++ {
		err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, nameKey, userKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return common.ErrorAlreadyExists
			}

			rec := toRecord(user)
			rec.CreatedAt = r.now()
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, userKey, data, 0)
				pipe.Set(ctx, nameKey, user.ID, 0)
				return nil
			})
			if err == nil {
				user.CreatedAt = rec.CreatedAt
			}
			return err
		}, nameKey, userKey)

		if errors.Is(err, redis.TxFailedErr) {
			// someone touched the keys between WATCH and EXEC; re-check
			continue
		}
		if errors.Is(err, common.ErrorAlreadyExists) {
			return err
		}
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
		return nil
	}

	// contention never settled, so the name was not shown to be taken
	return fmt.Errorf("redis error: insert retries exhausted: %w", redis.TxFailedErr)
}

func (r *RedisRepository) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	id, err := r.redis.Get(ctx, r.nameKey(userName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *RedisRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	data, err := r.redis.Get(ctx, r.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decodeUser(data)
}

func (r *RedisRepository) ExistsByUserName(ctx context.Context, userName string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.nameKey(userName)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) Save(ctx context.Context, user *models.User) error {
	key := r.userKey(user.ID)
	var next int64

	err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		stored, err := decodeUser(data)
		if err != nil {
			return err
		}
		if stored.Version != user.Version {
			return common.ErrVersionConflict
		}

		rec := toRecord(user)
		rec.UserName = stored.UserName
		rec.CreatedAt = stored.CreatedAt
		rec.Version = stored.Version + 1
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		next = rec.Version
		return err
	}, key)

	switch {
	case err == nil:
		user.Version = next
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, common.ErrVersionConflict):
		return common.ErrVersionConflict
	case errors.Is(err, redis.Nil):
		return common.ErrorNotFound
	default:
		return fmt.Errorf("redis error: %w", err)
	}
}

func toRecord(u *models.User) userRecord {
	return userRecord{
		ID:                    u.ID,
		UserName:              u.UserName,
		PasswordHash:          u.PasswordHash,
		Role:                  u.Role,
		RefreshToken:          u.RefreshToken,
		RefreshTokenExpiresAt: u.RefreshTokenExpiresAt,
		Version:               u.Version,
		CreatedAt:             u.CreatedAt,
	}
}

func decodeUser(data []byte) (*models.User, error) {
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	u := &models.User{
		ID:           rec.ID,
		UserName:     rec.UserName,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.RefreshToken != nil && rec.RefreshTokenExpiresAt != nil {
		u.SetRefreshToken(*rec.RefreshToken, *rec.RefreshTokenExpiresAt)
	}
	return u, nil
}
