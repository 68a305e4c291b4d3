package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/storage/memory"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)
	ctx := context.Background()

	created, err := svc.Register(ctx, "  Bob@Example.COM ", "hunter2hunter2", "")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", created.Email)
	assert.Equal(t, user.RoleMember, created.Role)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "hunter2hunter2", created.PasswordHash)

	authed, err := svc.Authenticate(ctx, "bob@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "bob@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "hunter2hunter2", "")
	assert.Error(t, err)

	_, err = svc.Register(ctx, "a@b.com", "short", "")
	assert.Error(t, err)

	_, err = svc.Register(ctx, "a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "a@b.com", "hunter2hunter2", "")
	assert.Error(t, err, "duplicate email must be rejected")
}

func TestTokenRoundtrip(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)

	u := user.User{ID: "42", Email: "c@d.com", Role: user.RoleAdmin}
	token, expires, err := svc.IssueToken(u)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "c@d.com", claims.Email)
	assert.Equal(t, user.RoleAdmin, claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := New(memory.New(), []byte("secret-a"), time.Hour, nil)
	verifier := New(memory.New(), []byte("secret-b"), time.Hour, nil)

	token, _, err := issuer.IssueToken(user.User{ID: "1"})
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}
