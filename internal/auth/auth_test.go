package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret"

func echoUser(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	_, _ = w.Write([]byte(uid))
}

func serve(h http.HandlerFunc, mutate func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	tok, err := GenerateToken([]byte(testSecret), "alice", false, time.Hour)
	require.NoError(t, err)
	h := a.Middleware(echoUser)

	rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	rec = serve(h, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok}) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	rec = serve(h, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Token "+tok) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := GenerateToken([]byte("other-secret"), "alice", false, time.Hour)
	require.NoError(t, err)
	rec = serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+other) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := GenerateToken([]byte(testSecret), "alice", false, -time.Minute)
	require.NoError(t, err)
	rec = serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	h := a.RequireAdmin(echoUser)

	user, _ := GenerateToken([]byte(testSecret), "alice", false, time.Hour)
	rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+user) })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, _ := GenerateToken([]byte(testSecret), "root", true, time.Hour)
	rec = serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", rec.Body.String())
}

func TestGenerateToken_Validation(t *testing.T) {
	_, err := GenerateToken(nil, "alice", false, time.Hour)
	assert.Error(t, err)
	_, err = GenerateToken([]byte(testSecret), "", false, time.Hour)
	assert.Error(t, err)
}
