package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fotos/internal/models"
	"fotos/internal/store"
)

const uniqueViolation = "23505"

type Repository struct {
	db *pgxpool.Pool
}

// Open connects a pool to url and applies the schema. maxConns <= 0 keeps
// the pgxpool default.
func Open(ctx context.Context, url string, maxConns int32) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	r := New(db)
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
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
	`)
	return err
}

func (r *Repository) ListTags(ctx context.Context, search string) ([]models.Tag, error) {
	var rows pgx.Rows
	var err error

	if search == "" {
		rows, err = r.db.Query(ctx, `SELECT id, tagname FROM tags`)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, tagname
			FROM tags
			WHERE strpos(lower(tagname), lower($1::text)) > 0
		`, search)
	}
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Tag])
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	return tags, nil
}

func (r *Repository) InsertTag(ctx context.Context, tag models.Tag) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tags (id, tagname) VALUES ($1, $2)`,
		tag.ID, tag.Tagname,
	)
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
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tags WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup tag %s: %w", id, err)
	}
	return exists, nil
}

func (r *Repository) FileByPath(ctx context.Context, relativePath string) (models.FileRecord, error) {
	var f models.FileRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, relative_path, csum FROM files WHERE relative_path = $1`, relativePath,
	).Scan(&f.ID, &f.RelativePath, &f.Csum)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FileRecord{}, store.ErrNotFound
	}
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("lookup file %s: %w", relativePath, err)
	}
	return f, nil
}

func (r *Repository) InsertFile(ctx context.Context, file models.FileRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (id, relative_path, csum) VALUES ($1, $2, $3)`,
		file.ID, file.RelativePath, file.Csum,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert file %s: %w", file.RelativePath, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert file %s: %w", file.RelativePath, err)
	}
	return nil
}

func (r *Repository) AddFileTag(ctx context.Context, tagID, fileID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO filetags (tag_id, file_id) VALUES ($1, $2)
		ON CONFLICT (tag_id, file_id) DO NOTHING
	`, tagID, fileID)
	if err != nil {
		return fmt.Errorf("insert filetag: %w", err)
	}
	return nil
}

func (r *Repository) RemoveFileTag(ctx context.Context, tagID, fileID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM filetags WHERE tag_id = $1 AND file_id = $2`, tagID, fileID,
	)
	if err != nil {
		return false, fmt.Errorf("delete filetag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) FilesByTag(ctx context.Context, tagID, prefix string) ([]models.FileRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.relative_path, f.csum
		FROM files f
		JOIN filetags ft ON ft.file_id = f.id
		WHERE ft.tag_id = $1
		  AND starts_with(f.relative_path, $2::text)
		ORDER BY f.relative_path COLLATE "C"
	`, tagID, prefix)
	if err != nil {
		return nil, fmt.Errorf("query files by tag: %w", err)
	}

	files, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.FileRecord])
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	return files, nil
}

func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
