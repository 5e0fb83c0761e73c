package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bizconsole/console-backend/internal/projects/domain"
)

const projectColumns = `public_id, owner_uid, name, remote_url, remote_branch, deployment_url, deployed_at,
       visibility, custom_domain, last_modified, created_at, updated_at`

// ProjectRepository provides persistence operations for projects
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project for the given owner. Public id collisions are retried.
func (r *ProjectRepository) Create(ctx context.Context, ownerUID, name string) (*domain.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalid)
	}
	if ownerUID == "" {
		return nil, fmt.Errorf("%w: owner uid required", domain.ErrInvalid)
	}

	for i := 0; i < 5; i++ {
		publicID, err := domain.NewPublicID(domain.ProjectIDPrefix)
		if err != nil {
			return nil, err
		}

		const q = `
INSERT INTO projects (public_id, owner_uid, name, visibility)
VALUES ($1, $2, $3, $4)
RETURNING ` + projectColumns + `;
`
		p, err := scanProject(r.db.QueryRowContext(ctx, q, publicID, ownerUID, name, string(domain.VisibilityPrivate)))
		if err == nil {
			return p, nil
		}

		// unique violation on public_id → retry
		if isUniqueViolation(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

// Get returns one project of the owner.
func (r *ProjectRepository) Get(ctx context.Context, ownerUID, publicID string) (*domain.Project, error) {
	const q = `
SELECT ` + projectColumns + `
FROM projects
WHERE owner_uid = $1 AND public_id = $2;
`
	return notFound(scanProject(r.db.QueryRowContext(ctx, q, ownerUID, publicID)))
}

// List returns the owner's projects, most recently modified first.
func (r *ProjectRepository) List(ctx context.Context, ownerUID string) ([]domain.Project, error) {
	const q = `
SELECT ` + projectColumns + `
FROM projects
WHERE owner_uid = $1
ORDER BY last_modified DESC;
`
	rows, err := r.db.QueryContext(ctx, q, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rename updates the project's name.
func (r *ProjectRepository) Rename(ctx context.Context, ownerUID, publicID, newName string) (*domain.Project, error) {
	const q = `
UPDATE projects
SET name = $3, updated_at = now()
WHERE owner_uid = $1 AND public_id = $2
RETURNING ` + projectColumns + `;
`
	return notFound(scanProject(r.db.QueryRowContext(ctx, q, ownerUID, publicID, newName)))
}

// SetRemote stores or clears (ref == nil) the source-control reference.
func (r *ProjectRepository) SetRemote(ctx context.Context, ownerUID, publicID string, ref *domain.RemoteRef) (*domain.Project, error) {
	const q = `
UPDATE projects
SET remote_url = $3, remote_branch = $4, updated_at = now()
WHERE owner_uid = $1 AND public_id = $2
RETURNING ` + projectColumns + `;
`
	var url, branch sql.NullString
	if ref != nil {
		url = sql.NullString{String: ref.URL, Valid: true}
		branch = sql.NullString{String: ref.Branch, Valid: ref.Branch != ""}
	}
	return notFound(scanProject(r.db.QueryRowContext(ctx, q, ownerUID, publicID, url, branch)))
}

// RecordDeployment stores the latest publish of a project.
func (r *ProjectRepository) RecordDeployment(ctx context.Context, ownerUID, publicID, url string, at time.Time) (*domain.Project, error) {
	const q = `
UPDATE projects
SET deployment_url = $3, deployed_at = $4, updated_at = now()
WHERE owner_uid = $1 AND public_id = $2
RETURNING ` + projectColumns + `;
`
	return notFound(scanProject(r.db.QueryRowContext(ctx, q, ownerUID, publicID, url, at)))
}

// SetVisibility updates visibility and the optional custom domain.
func (r *ProjectRepository) SetVisibility(ctx context.Context, ownerUID, publicID string, v domain.Visibility, customDomain string) (*domain.Project, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: visibility %q", domain.ErrInvalid, v)
	}
	const q = `
UPDATE projects
SET visibility = $3, custom_domain = $4, updated_at = now()
WHERE owner_uid = $1 AND public_id = $2
RETURNING ` + projectColumns + `;
`
	return notFound(scanProject(r.db.QueryRowContext(ctx, q, ownerUID, publicID, string(v), customDomain)))
}

// Touch bumps last_modified after a file write.
func (r *ProjectRepository) Touch(ctx context.Context, publicID string) error {
	const q = `UPDATE projects SET last_modified = now() WHERE public_id = $1;`
	_, err := r.db.ExecContext(ctx, q, publicID)
	return err
}

// Delete removes a project with its files, conversations and messages in one transaction.
func (r *ProjectRepository) Delete(ctx context.Context, ownerUID, publicID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	const qOwned = `SELECT 1 FROM projects WHERE owner_uid = $1 AND public_id = $2 FOR UPDATE;`
	var one int
	if err := tx.QueryRowContext(ctx, qOwned, ownerUID, publicID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	stmts := []string{
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE project_id = $1);`,
		`DELETE FROM conversations WHERE project_id = $1;`,
		`DELETE FROM project_files WHERE project_id = $1;`,
		`DELETE FROM projects WHERE public_id = $1;`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, publicID); err != nil {
			return false, fmt.Errorf("delete project %s: %w", publicID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var remoteURL, remoteBranch, deployURL sql.NullString
	var deployedAt sql.NullTime
	var visibility string
	err := row.Scan(&p.PublicID, &p.OwnerUID, &p.Name, &remoteURL, &remoteBranch, &deployURL, &deployedAt,
		&visibility, &p.CustomDomain, &p.LastModified, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Visibility = domain.Visibility(visibility)
	if remoteURL.Valid && remoteURL.String != "" {
		p.Remote = &domain.RemoteRef{URL: remoteURL.String, Branch: remoteBranch.String}
	}
	if deployURL.Valid && deployURL.String != "" {
		p.Deployment = &domain.Deployment{URL: deployURL.String, DeployedAt: deployedAt.Time}
	}
	return &p, nil
}

func notFound[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
