package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/dbx"
	"github.com/dmitrijs2005/videotube/internal/server/models"
)

const sanitizedColumns = `id, username, email, full_name, avatar_url, cover_image_url, watch_history, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSanitized(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.WatchHistory, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func mapWriteError(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, full_name, avatar_url, cover_image_url, password_hash, watch_history)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage, user.PasswordHash, user.WatchHistory).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query :=
		`SELECT ` + sanitizedColumns + `, password_hash FROM users
		 WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 ORDER BY created_at
		 LIMIT 1
		 `

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username, email).Scan(&u.ID, &u.Username, &u.Email, &u.FullName,
		&u.Avatar, &u.CoverImage, &u.WatchHistory, &u.CreatedAt, &u.UpdatedAt, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + sanitizedColumns + ` FROM users WHERE id = $1`
	return scanSanitized(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.User, error) {
	query :=
		`UPDATE users SET full_name = $2, email = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + sanitizedColumns

	u, err := scanSanitized(r.db.QueryRowContext(ctx, query, id, fullName, email))
	if err != nil && dbx.IsUniqueViolation(err) {
		return nil, mapWriteError(err)
	}
	return u, err
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	return r.updateColumn(ctx, "avatar_url", id, url)
}

func (r *PostgresRepository) UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error) {
	return r.updateColumn(ctx, "cover_image_url", id, url)
}

// updateColumn is only called with the fixed column names above.
func (r *PostgresRepository) updateColumn(ctx context.Context, column, id, value string) (*models.User, error) {
	query :=
		`UPDATE users SET ` + column + ` = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + sanitizedColumns

	return scanSanitized(r.db.QueryRowContext(ctx, query, id, value))
}
