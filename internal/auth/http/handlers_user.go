package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
	"github.com/bizconsole/console-backend/internal/auth/domain"
)

// GetProfile returns the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByFirebaseUID(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "get_profile", "failed to load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// SyncUser copies the Firebase identity into the users table and records the login.
// Accepts an optional JSON body with email, display_name and photo_url.
func (h *Handler) SyncUser(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var body struct {
		Email       string  `json:"email,omitempty"`
		DisplayName *string `json:"display_name,omitempty"`
		PhotoURL    *string `json:"photo_url,omitempty"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid JSON body"})
			return
		}
	}

	// body wins over the token claim
	email := body.Email
	if email == "" {
		email = auth.UserEmail(c)
	}

	user, err := h.users.SyncUser(c.Request.Context(), domain.SyncUserRequest{
		FirebaseUID: uid,
		Email:       email,
		DisplayName: body.DisplayName,
		PhotoURL:    body.PhotoURL,
	})
	if err != nil {
		writeError(c, "sync_user", "failed to sync user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// UpdatePreferences changes the workspace defaults of the current user.
func (h *Handler) UpdatePreferences(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req domain.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	user, err := h.users.UpdatePreferences(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, "update_preferences", "failed to update preferences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}
