package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// RemoteRef points at the source-control mirror of a project.
type RemoteRef struct {
	URL    string `json:"url"`
	Branch string `json:"branch,omitempty"`
}

// Deployment is the last successful publish of a project.
type Deployment struct {
	URL        string    `json:"url"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Project represents a single web project owned by a user.
// It is intentionally storage-agnostic and used across repository and HTTP layers.
type Project struct {
	PublicID     string      `json:"public_id"`
	OwnerUID     string      `json:"-"`
	Name         string      `json:"name"`
	Remote       *RemoteRef  `json:"remote,omitempty"`
	Deployment   *Deployment `json:"deployment,omitempty"`
	Visibility   Visibility  `json:"visibility"`
	CustomDomain string      `json:"custom_domain,omitempty"`
	LastModified time.Time   `json:"last_modified"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
