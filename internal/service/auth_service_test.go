package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
	"github.com/xxxsen/studymate/internal/testutil"
)

var testSecret = []byte("test-secret")

func newTestAuth() (*AuthService, *testutil.Users) {
	users := testutil.NewUsers()
	return NewAuthService(users, testSecret, time.Hour), users
}

func TestRegisterIssuesToken(t *testing.T) {
	svc, _ := newTestAuth()
	user, token, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice01", Email: " Alice@Example.com ", Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "secret1", user.PasswordHash)

	claims, err := jwt.ParseToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuth()
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "short username", in: RegisterInput{Username: "bob", Email: "b@b.co", Password: "secret1"}},
		{name: "long username", in: RegisterInput{Username: "abcdefghijklmnopqrstu", Email: "b@b.co", Password: "secret1"}},
		{name: "bad email", in: RegisterInput{Username: "bobby", Email: "not-an-email", Password: "secret1"}},
		{name: "short password", in: RegisterInput{Username: "bobby", Email: "b@b.co", Password: "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newTestAuth()
	in := RegisterInput{Username: "alice01", Email: "a@b.co", Password: "secret1"}
	_, _, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	_, _, err = svc.Register(context.Background(), in)
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuth()
	registered, _, err := svc.Register(context.Background(), RegisterInput{Username: "alice01", Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "A@B.co", "secret1")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "a@b.co", "wrong-pass")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, _, err = svc.Login(context.Background(), "nobody@b.co", "secret1")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, _, err = svc.Login(context.Background(), "", "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProfileAndChangePassword(t *testing.T) {
	svc, _ := newTestAuth()
	user, _, err := svc.Register(context.Background(), RegisterInput{Username: "alice01", Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)

	profile, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice01", profile.Username)

	err = svc.ChangePassword(context.Background(), user.ID, "wrong-pass", "secret2")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	err = svc.ChangePassword(context.Background(), user.ID, "secret1", "123")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "secret1", "secret2"))
	_, _, err = svc.Login(context.Background(), "a@b.co", "secret1")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, _, err = svc.Login(context.Background(), "a@b.co", "secret2")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestAuth()
	ctx := context.Background()
	user, _, err := svc.Register(ctx, RegisterInput{Username: "alice01", Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, RegisterInput{Username: "bobby01", Email: "bob@b.co", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.UpdateProfile(ctx, user.ID, ProfileInput{Username: "abc"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = svc.UpdateProfile(ctx, user.ID, ProfileInput{Email: "not-an-email"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = svc.UpdateProfile(ctx, user.ID, ProfileInput{Username: "bobby01"})
	require.ErrorIs(t, err, appErr.ErrConflict)
	_, _, err = svc.UpdateProfile(ctx, "nobody", ProfileInput{Username: "carol01"})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	updated, token, err := svc.UpdateProfile(ctx, user.ID, ProfileInput{Email: " Alice@B.co "})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "alice01", updated.Username)
	require.Equal(t, "alice@b.co", updated.Email)

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@b.co", profile.Email)
}
