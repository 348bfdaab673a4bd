package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
)

// MemoryRepository keeps users in process memory. Records are cloned on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.User
	byName map[string]string
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*models.User),
		byName: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[user.UserName]; taken {
		return common.ErrorAlreadyExists
	}
	if _, taken := r.byID[user.ID]; taken {
		return common.ErrorAlreadyExists
	}

	user.CreatedAt = r.now()
	r.byID[user.ID] = user.Clone()
	r.byName[user.UserName] = user.ID
	return nil
}

func (r *MemoryRepository) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) ExistsByUserName(ctx context.Context, userName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byName[userName]
	return ok, nil
}

func (r *MemoryRepository) Save(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Version != user.Version {
		return common.ErrVersionConflict
	}

	next := user.Clone()
	next.Version++
	// username and creation time are immutable
	next.UserName = stored.UserName
	next.CreatedAt = stored.CreatedAt
	r.byID[user.ID] = next

	user.Version = next.Version
	return nil
}
