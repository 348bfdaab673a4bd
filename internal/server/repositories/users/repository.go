// Package users declares the user-store contract the auth service depends on
// and provides Postgres, Redis and in-memory implementations of it.
package users

import (
	"context"

	"github.com/dmitrijs2005/jwtauth/internal/server/models"
)

// Repository persists user records.
//
// Lookups are exact, case-sensitive matches and return common.ErrorNotFound
// on a miss. Insert fails with common.ErrorAlreadyExists when the username is
// taken, atomically with respect to concurrent inserts. Save writes the
// mutable fields (password hash, role, refresh-token slot) only if the
// stored Version equals user.Version, bumps user.Version on success, and
// returns common.ErrVersionConflict otherwise.
type Repository interface {
	FindByUserName(ctx context.Context, userName string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUserName(ctx context.Context, userName string) (bool, error)
	Insert(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
}
