package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/dbx"
)

// PostgresRepository keeps the token in users.refresh_token over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Set(ctx context.Context, userID, token string) error {
	query := `
		UPDATE users SET refresh_token = $2
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, common.ErrorNotFound)
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT refresh_token
		FROM users
		WHERE id = $1
	`
	var token sql.NullString
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return token.String, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	query := `
		UPDATE users SET refresh_token = NULL
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate is a compare-and-swap: of two concurrent rotations presenting the
// same old token only one updates the row.
func (r *PostgresRepository) Rotate(ctx context.Context, userID, oldToken, newToken string) error {
	query := `
		UPDATE users SET refresh_token = $3
		WHERE id = $1 AND refresh_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, oldToken, newToken)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, common.ErrStaleToken)
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}
