package sqlite

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pragmas applied to every pooled connection. WAL lets readers proceed
// while a writer holds the lock; busy_timeout makes concurrent writers wait
// instead of failing with SQLITE_BUSY.
var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

type pool struct {
	inner *sqlitex.Pool
	path  string
}

// openPool opens a pool whose connections get the pragmas above, then
// prepare when it is non-nil.
func openPool(path string, size int, prepare func(*sqlite.Conn) error) (*pool, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}

	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			if prepare != nil {
				return prepare(conn)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	log.Info().Str("path", path).Int("pool_size", size).Msg("sqlite pool opened")
	return &pool{inner: inner, path: path}, nil
}

// with runs fn on a connection borrowed for its duration.
func (p *pool) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: take: %w", err)
	}
	defer p.inner.Put(conn)

	return fn(conn)
}

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlite: close %s: %w", p.path, err)
	}
	log.Info().Str("path", p.path).Msg("sqlite pool closed")
	return nil
}
