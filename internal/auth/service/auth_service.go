package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bizconsole/console-backend/internal/auth/domain"
	"github.com/bizconsole/console-backend/internal/logging"
)

// UserStore is the user persistence used by AuthService.
type UserStore interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	Upsert(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error)
	UpdatePreferences(ctx context.Context, uid string, prefs domain.Preferences) (*domain.User, error)
}

type AuthService struct {
	users UserStore
}

func NewAuthService(users UserStore) *AuthService {
	return &AuthService{users: users}
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (s *AuthService) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.users.GetByFirebaseUID(ctx, uid)
}

// SyncUser creates or updates a user from Firebase Auth data
func (s *AuthService) SyncUser(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		// Email is required; fall back to one derived from the uid
		req.Email = req.FirebaseUID + "@firebase.local"
	}
	return s.users.Upsert(ctx, req)
}

// UpdatePreferences merges the set fields into the stored preferences.
func (s *AuthService) UpdatePreferences(ctx context.Context, uid string, req domain.UpdatePreferencesRequest) (*domain.User, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	prefs := user.Preferences
	if req.Model != nil {
		prefs.Model = strings.TrimSpace(*req.Model)
	}
	if req.HighEffort != nil {
		prefs.HighEffort = *req.HighEffort
	}
	return s.users.UpdatePreferences(ctx, uid, prefs)
}

// Preferences returns the user's workspace defaults. Unknown users get zero defaults.
func (s *AuthService) Preferences(ctx context.Context, uid string) domain.Preferences {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			logging.NewLogger(ctx).Named("auth").LogWarnf("preferences", "uid=%s error=%v", uid, err)
		}
		return domain.Preferences{}
	}
	return user.Preferences
}
