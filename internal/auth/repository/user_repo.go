package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bizconsole/console-backend/internal/auth/domain"
)

const userColumns = `firebase_uid, email, display_name, photo_url, preferences, created_at, updated_at, last_login_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByFirebaseUID retrieves a user by their Firebase UID
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE firebase_uid = $1;
`
	return scanUser(r.db.QueryRowContext(ctx, q, uid))
}

// Upsert creates or refreshes a user from Firebase identity data and records the login.
// Stored preferences are never overwritten here.
func (r *UserRepository) Upsert(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error) {
	const q = `
INSERT INTO users (firebase_uid, email, display_name, photo_url, last_login_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (firebase_uid) DO UPDATE
SET email = EXCLUDED.email,
    display_name = COALESCE(EXCLUDED.display_name, users.display_name),
    photo_url = COALESCE(EXCLUDED.photo_url, users.photo_url),
    last_login_at = now(),
    updated_at = now()
RETURNING ` + userColumns + `;
`
	return scanUser(r.db.QueryRowContext(ctx, q, req.FirebaseUID, req.Email, req.DisplayName, req.PhotoURL))
}

// UpdatePreferences replaces the stored preferences.
func (r *UserRepository) UpdatePreferences(ctx context.Context, uid string, prefs domain.Preferences) (*domain.User, error) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	const q = `
UPDATE users
SET preferences = $2, updated_at = now()
WHERE firebase_uid = $1
RETURNING ` + userColumns + `;
`
	return scanUser(r.db.QueryRowContext(ctx, q, uid, raw))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var preferencesJSON []byte
	var displayName, photoURL sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.FirebaseUID,
		&user.Email,
		&displayName,
		&photoURL,
		&preferencesJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	if displayName.Valid {
		user.DisplayName = &displayName.String
	}
	if photoURL.Valid {
		user.PhotoURL = &photoURL.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	// Unknown or malformed preferences fall back to defaults
	if len(preferencesJSON) > 0 {
		_ = json.Unmarshal(preferencesJSON, &user.Preferences)
	}

	return &user, nil
}
