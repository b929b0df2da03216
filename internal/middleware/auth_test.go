package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("secret")
	userID := uuid.New()

	token, err := auth.GenerateAccessToken(userID, "a@b.co", "premium")
	require.NoError(t, err)

	identity, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: userID, Email: "a@b.co", Tier: "premium"}, identity)
}

func TestJWTAuth_ParseToken_Rejects(t *testing.T) {
	auth := NewJWTAuth("secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	expiredStr, err := expired.SignedString(auth.Secret)
	require.NoError(t, err)

	_, err = auth.ParseToken(expiredStr)
	assert.ErrorIs(t, err, ErrTokenExpired)

	otherKey, err := NewJWTAuth("other").GenerateAccessToken(uuid.New(), "a@b.co", "free")
	require.NoError(t, err)
	_, err = auth.ParseToken(otherKey)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()})
	noUserStr, err := noUser.SignedString(auth.Secret)
	require.NoError(t, err)
	_, err = auth.ParseToken(noUserStr)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("secret")
	userID := uuid.New()
	token, err := auth.GenerateAccessToken(userID, "a@b.co", "free")
	require.NoError(t, err)

	var gotUser uuid.UUID
	var gotTier string
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotTier = GetTier(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.code != "" {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
				assert.Equal(t, tc.code, body["code"])
				assert.IsType(t, "", body["error"])
			}
		})
	}

	assert.Equal(t, userID, gotUser)
	assert.Equal(t, "free", gotTier)
}
