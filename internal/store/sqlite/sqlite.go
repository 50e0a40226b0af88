// Package sqlite is the embedded backend of the tag association store.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"fotos/internal/models"
	"fotos/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	id       TEXT PRIMARY KEY,
	tagname  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS files (
	id             TEXT PRIMARY KEY,
	relative_path  TEXT NOT NULL UNIQUE,
	csum           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS filetags (
	tag_id   TEXT NOT NULL REFERENCES tags(id),
	file_id  TEXT NOT NULL REFERENCES files(id),
	PRIMARY KEY (tag_id, file_id)
);
`

// registerFunctions adds fold(text), a lower-casing that covers all of
// Unicode. The built-in lower() only folds ASCII.
func registerFunctions(conn *sqlite.Conn) error {
	return conn.CreateFunction("fold", &sqlite.FunctionImpl{
		NArgs:         1,
		Deterministic: true,
		Scalar: func(ctx sqlite.Context, args []sqlite.Value) (sqlite.Value, error) {
			if args[0].Type() == sqlite.TypeNull {
				return sqlite.Value{}, nil
			}
			return sqlite.TextValue(strings.ToLower(args[0].Text())), nil
		},
	})
}

type Repository struct {
	pool *pool
}

// Open opens (creating if needed) the database file at path. poolSize <= 0
// picks a default from the CPU count.
func Open(path string, poolSize int) (*Repository, error) {
	p, err := openPool(path, poolSize, registerFunctions)
	if err != nil {
		return nil, err
	}
	r := &Repository{pool: p}
	if err := r.Migrate(context.Background()); err != nil {
		p.close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Migrate(ctx context.Context) error {
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *Repository) ListTags(ctx context.Context, search string) ([]models.Tag, error) {
	query := `SELECT id, tagname FROM tags`
	var args []any
	if search != "" {
		query = `SELECT id, tagname FROM tags WHERE instr(fold(tagname), fold(?)) > 0`
		args = []any{search}
	}

	tags := []models.Tag{}
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tags = append(tags, models.Tag{
					ID:      stmt.ColumnText(0),
					Tagname: stmt.ColumnText(1),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	return tags, nil
}

func (r *Repository) InsertTag(ctx context.Context, tag models.Tag) error {
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO tags (id, tagname) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{tag.ID, tag.Tagname}},
		)
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert tag %q: %w", tag.Tagname, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert tag %q: %w", tag.Tagname, err)
	}
	return nil
}

func (r *Repository) TagExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT 1 FROM tags WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					exists = true
					return nil
				},
			},
		)
	})
	if err != nil {
		return false, fmt.Errorf("lookup tag %s: %w", id, err)
	}
	return exists, nil
}

func (r *Repository) FileByPath(ctx context.Context, relativePath string) (models.FileRecord, error) {
	var f models.FileRecord
	var found bool
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, relative_path, csum FROM files WHERE relative_path = ?`,
			&sqlitex.ExecOptions{
				Args: []any{relativePath},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					f = scanFile(stmt)
					found = true
					return nil
				},
			},
		)
	})
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("lookup file %s: %w", relativePath, err)
	}
	if !found {
		return models.FileRecord{}, store.ErrNotFound
	}
	return f, nil
}

func (r *Repository) InsertFile(ctx context.Context, file models.FileRecord) error {
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO files (id, relative_path, csum) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{file.ID, file.RelativePath, file.Csum}},
		)
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert file %s: %w", file.RelativePath, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert file %s: %w", file.RelativePath, err)
	}
	return nil
}

func (r *Repository) AddFileTag(ctx context.Context, tagID, fileID string) error {
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO filetags (tag_id, file_id) VALUES (?, ?)
			ON CONFLICT (tag_id, file_id) DO NOTHING
		`, &sqlitex.ExecOptions{Args: []any{tagID, fileID}})
	})
	if err != nil {
		return fmt.Errorf("insert filetag: %w", err)
	}
	return nil
}

func (r *Repository) RemoveFileTag(ctx context.Context, tagID, fileID string) (bool, error) {
	var removed bool
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`DELETE FROM filetags WHERE tag_id = ? AND file_id = ?`,
			&sqlitex.ExecOptions{Args: []any{tagID, fileID}},
		)
		if err != nil {
			return err
		}
		removed = conn.Changes() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete filetag: %w", err)
	}
	return removed, nil
}

func (r *Repository) FilesByTag(ctx context.Context, tagID, prefix string) ([]models.FileRecord, error) {
	files := []models.FileRecord{}
	err := r.pool.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT f.id, f.relative_path, f.csum
			FROM files f
			JOIN filetags ft ON ft.file_id = f.id
			WHERE ft.tag_id = ?
			  AND substr(f.relative_path, 1, length(?)) = ?
			ORDER BY f.relative_path
		`, &sqlitex.ExecOptions{
			Args: []any{tagID, prefix, prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				files = append(files, scanFile(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query files by tag: %w", err)
	}
	return files, nil
}

func (r *Repository) Close() error {
	return r.pool.close()
}

func scanFile(stmt *sqlite.Stmt) models.FileRecord {
	return models.FileRecord{
		ID:           stmt.ColumnText(0),
		RelativePath: stmt.ColumnText(1),
		Csum:         stmt.ColumnText(2),
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey:
		return true
	}
	return false
}
