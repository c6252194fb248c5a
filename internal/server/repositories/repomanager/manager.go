package repomanager

import (
	"context"

	"github.com/dmitrijs2005/videotube/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/users"
)

// Repositories vends the repositories bound to one connection or transaction.
type Repositories interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
}

// RepositoryManager owns the storage backend and vends repositories bound
// to it. WithTx runs fn against repositories sharing one transaction.
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Close() error
}
