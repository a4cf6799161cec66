package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "desk", 5*time.Minute)

	token, exp, err := tm.Issue(&domain.User{ID: 42, Username: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "desk", claims.Issuer)
}

func TestTokenManager_IssueRequiresSavedUser(t *testing.T) {
	tm := NewTokenManager("secret", "desk", 0)
	_, _, err := tm.Issue(nil)
	assert.Error(t, err)
	_, _, err = tm.Issue(&domain.User{Username: "draft"})
	assert.Error(t, err)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", "desk", 5*time.Minute)
	sign := func(method jwt.SigningMethod, key any, claims *Claims) string {
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return signed
	}
	valid := func() *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "desk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
	}

	foreign, _, err := NewTokenManager("other", "desk", time.Minute).Issue(&domain.User{ID: 1})
	require.NoError(t, err)

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	wrongIssuer := valid()
	wrongIssuer.Issuer = "elsewhere"
	badSubject := valid()
	badSubject.Subject = "admin"

	tests := map[string]string{
		"foreign signature": foreign,
		"expired":           sign(jwt.SigningMethodHS256, []byte("secret"), expired),
		"no expiry":         sign(jwt.SigningMethodHS256, []byte("secret"), noExpiry),
		"wrong issuer":      sign(jwt.SigningMethodHS256, []byte("secret"), wrongIssuer),
		"bad subject":       sign(jwt.SigningMethodHS256, []byte("secret"), badSubject),
		"other method":      sign(jwt.SigningMethodHS512, []byte("secret"), valid()),
		"garbage":           "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Parse(token)
			assert.Error(t, err)
		})
	}

	_, err = tm.Parse(sign(jwt.SigningMethodHS256, []byte("secret"), valid()))
	assert.NoError(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.NoError(t, ComparePassword(hash, "s3cret"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrPasswordMismatch)

	err = ComparePassword("not-a-hash", "s3cret")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)

	assert.False(t, NeedsRehash(hash, bcrypt.MinCost))
	assert.True(t, NeedsRehash(hash, bcrypt.MinCost+1))
	assert.True(t, NeedsRehash("not-a-hash", bcrypt.MinCost))
	// out of range costs fall back to the default
	assert.True(t, NeedsRehash(hash, 99))
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("bearer  abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc"} {
		_, err := bearerToken(header)
		assert.Error(t, err, header)
	}
}

func TestMiddlewareAndRoles(t *testing.T) {
	store := repository.NewMemoryStore()
	users := store.Repositories().Users
	admin := &domain.User{Username: "admin", PasswordHash: "x", Role: domain.RoleAdmin}
	clerk := &domain.User{Username: "clerk", PasswordHash: "x", Role: domain.RoleUser}
	require.NoError(t, users.Create(context.Background(), admin))
	require.NoError(t, users.Create(context.Background(), clerk))

	tm := NewTokenManager("secret", "desk", 5*time.Minute)
	mw := NewAuthMiddleware(tm, users)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/me", mw.Handle, RequireAuthenticated(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.User.Username)
	})
	app.Delete("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	adminToken, _, err := tm.Issue(admin)
	require.NoError(t, err)
	clerkToken, _, err := tm.Issue(clerk)
	require.NoError(t, err)
	ghostToken, _, err := tm.Issue(&domain.User{ID: 999, Role: domain.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"missing header", "GET", "/me", "", fiber.StatusUnauthorized},
		{"garbage token", "GET", "/me", "nope", fiber.StatusUnauthorized},
		{"unknown user", "GET", "/me", ghostToken, fiber.StatusUnauthorized},
		{"authenticated", "GET", "/me", clerkToken, fiber.StatusOK},
		{"non admin delete", "DELETE", "/admin", clerkToken, fiber.StatusForbidden},
		{"admin delete", "DELETE", "/admin", adminToken, fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
