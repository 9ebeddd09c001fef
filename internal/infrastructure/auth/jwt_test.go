package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTUtilRoundTrip(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token", time.Hour)

	tokenStr, err := ju.IssueToken(92, "Learner")
	require.NoError(t, err)

	claims, err := ju.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, int64(92), claims.ContactID)
	assert.Equal(t, "Learner", claims.Name)
	assert.True(t, claims.TimeRemaining() > 50*time.Minute)

	other := NewJWTUtil("HS256", "other-secret", "token", time.Hour)
	_, err = other.Validate(tokenStr)
	assert.Error(t, err)

	expired := NewJWTUtil("HS256", "secret", "token", -time.Minute)
	tokenStr, err = expired.IssueToken(92, "Learner")
	require.NoError(t, err)
	_, err = ju.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTUtilExtractToken(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token", time.Hour)
	e := echo.New()

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
		wantErr error
	}{
		{name: "none", prepare: func(*http.Request) {}, wantErr: ErrNoToken},
		{
			name:    "cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"}) },
			want:    "from-cookie",
		},
		{
			name:    "bearer",
			prepare: func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer from-header") },
			want:    "from-header",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			c := e.NewContext(req, httptest.NewRecorder())
			got, err := ju.ExtractToken(c)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
