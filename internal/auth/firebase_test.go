package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconsole/console-backend/config"
)

func TestClientOptions(t *testing.T) {
	_, err := clientOptions(&config.FirebaseConfig{})
	assert.ErrorIs(t, err, errNoCredentials)

	opts, err := clientOptions(&config.FirebaseConfig{CredentialsPath: "/etc/key.json", CredentialsJSON: `{"type":"service_account"}`})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = InitializeFirebase(context.Background(), &config.FirebaseConfig{ProjectID: "console"})
	assert.ErrorIs(t, err, errNoCredentials)
}

func TestOptionalUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalUser())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserFirebaseUID(c), "email": UserEmail(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-Id", " uid-7 ")
	req.Header.Set("X-User-Email", "ada@example.com")
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"uid":"uid-7","email":"ada@example.com"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.JSONEq(t, `{"uid":"demo-user","email":""}`, w.Body.String())
}
