package domain

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// Preferences are the per-user workspace defaults applied to new chat turns.
type Preferences struct {
	Model      string `json:"model,omitempty"`
	HighEffort bool   `json:"high_effort,omitempty"`
}

// User represents a user in the application
// Firebase UID is the primary identifier
type User struct {
	FirebaseUID string      `json:"firebase_uid"`
	Email       string      `json:"email"`
	DisplayName *string     `json:"display_name,omitempty"`
	PhotoURL    *string     `json:"photo_url,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
}

// SyncUserRequest carries the identity data copied from the Firebase token.
type SyncUserRequest struct {
	FirebaseUID string
	Email       string
	DisplayName *string
	PhotoURL    *string
}

// UpdatePreferencesRequest changes only the fields that are set.
type UpdatePreferencesRequest struct {
	Model      *string `json:"model,omitempty"`
	HighEffort *bool   `json:"high_effort,omitempty"`
}
