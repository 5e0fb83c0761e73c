package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
)

// SetUser records the caller's identity on the request. An empty email is not stored.
func SetUser(c *gin.Context, uid, email string) {
	c.Set(CtxFirebaseUID, strings.TrimSpace(uid))
	if email = strings.TrimSpace(email); email != "" {
		c.Set(CtxEmail, email)
	}
}

// UserFirebaseUID returns the uid set by FirebaseAuthMiddleware or
// OptionalUser, or "" on an unauthenticated request.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

func UserEmail(c *gin.Context) string {
	return c.GetString(CtxEmail)
}
