package repomanager

import (
	"context"

	"github.com/dmitrijs2005/videotube/internal/server/repositories/memory"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/users"
)

// MemoryRepositoryManager serves repositories from a process-local store.
// Migrations and pings are no-ops. WithTx does not isolate: every store
// call is atomic on its own and the store enforces uniqueness itself.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.store.Users()
}

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.store.RefreshTokens()
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	return fn(ctx, m)
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *MemoryRepositoryManager) Close() error                        { return nil }
