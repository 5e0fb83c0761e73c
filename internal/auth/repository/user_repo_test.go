package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconsole/console-backend/internal/auth/domain"
)

var userCols = []string{
	"firebase_uid", "email", "display_name", "photo_url", "preferences", "created_at", "updated_at", "last_login_at",
}

func setupUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewUserRepository(db), mock, db
}

func TestUserRepository_GetByFirebaseUID(t *testing.T) {
	repo, mock, db := setupUserRepo(t)
	defer db.Close()
	now := time.Now()

	t.Run("maps preferences and nullable columns", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("uid-1").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("uid-1", "ana@example.com", "Ana", nil, []byte(`{"model":"high-capability","high_effort":true}`), now, now, now))

		user, err := repo.GetByFirebaseUID(context.Background(), "uid-1")
		require.NoError(t, err)
		require.NotNil(t, user.DisplayName)
		assert.Equal(t, "Ana", *user.DisplayName)
		assert.Nil(t, user.PhotoURL)
		assert.Equal(t, "high-capability", user.Preferences.Model)
		assert.True(t, user.Preferences.HighEffort)
		require.NotNil(t, user.LastLoginAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("uid-missing").
			WillReturnRows(sqlmock.NewRows(userCols))

		_, err := repo.GetByFirebaseUID(context.Background(), "uid-missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePreferences(t *testing.T) {
	repo, mock, db := setupUserRepo(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(`UPDATE users\s+SET preferences`).
		WithArgs("uid-1", []byte(`{"model":"standard"}`)).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("uid-1", "ana@example.com", nil, nil, []byte(`{"model":"standard"}`), now, now, nil))

	user, err := repo.UpdatePreferences(context.Background(), "uid-1", domain.Preferences{Model: "standard"})
	require.NoError(t, err)
	assert.Equal(t, "standard", user.Preferences.Model)
	assert.Nil(t, user.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
