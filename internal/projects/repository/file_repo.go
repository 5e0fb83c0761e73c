package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
)

// FileRepository stores one row per project file, keyed by filestore.FileKey.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// LoadFiles returns every stored file of a project. An unknown project yields an empty map.
func (r *FileRepository) LoadFiles(ctx context.Context, projectID string) (domain.FileMap, error) {
	const q = `
SELECT file_key, content
FROM project_files
WHERE project_id = $1;
`
	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := domain.FileMap{}
	for rows.Next() {
		var key, content string
		if err := rows.Scan(&key, &content); err != nil {
			return nil, err
		}
		p, err := filestore.PathFromKey(key)
		if err != nil {
			return nil, fmt.Errorf("decode file key %q: %w", key, err)
		}
		files[p] = content
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// WriteFiles applies upserts and deletes in a single transaction.
func (r *FileRepository) WriteFiles(ctx context.Context, projectID string, upserts domain.FileMap, deletes []string) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qUpsert = `
INSERT INTO project_files (project_id, file_key, path, content, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (project_id, file_key)
DO UPDATE SET content = EXCLUDED.content, path = EXCLUDED.path, updated_at = now();
`
	for _, p := range upserts.Paths() {
		if _, err := tx.ExecContext(ctx, qUpsert, projectID, filestore.FileKey(p), p, upserts[p]); err != nil {
			return fmt.Errorf("upsert %s: %w", p, err)
		}
	}

	const qDelete = `DELETE FROM project_files WHERE project_id = $1 AND file_key = $2;`
	for _, p := range deletes {
		if _, err := tx.ExecContext(ctx, qDelete, projectID, filestore.FileKey(p)); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}

	return tx.Commit()
}
