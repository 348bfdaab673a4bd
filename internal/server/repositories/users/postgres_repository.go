package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/dbx"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
)

const selectUserColumns = `id, username, password_hash, role, refresh_token, refresh_token_expires_at, version, created_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, role, refresh_token, refresh_token_expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.UserName, user.PasswordHash, user.Role,
		user.RefreshToken, user.RefreshTokenExpiresAt, user.Version,
	).Scan(&user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, query, userName)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) ExistsByUserName(ctx context.Context, userName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userName).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET password_hash = $1, role = $2, refresh_token = $3, refresh_token_expires_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		user.PasswordHash, user.Role, user.RefreshToken, user.RefreshTokenExpiresAt,
		user.ID, user.Version,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}

	user.Version++
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		user         models.User
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.UserName, &user.PasswordHash, &user.Role,
		&refreshToken, &expiresAt, &user.Version, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if refreshToken.Valid && expiresAt.Valid {
		user.SetRefreshToken(refreshToken.String, expiresAt.Time)
	}
	return &user, nil
}
