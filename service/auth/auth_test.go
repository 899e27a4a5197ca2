package auth

import (
	"community-intelligence-backend/dao/daotest"
	"community-intelligence-backend/request"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	daotest.Open(t)
	ctx := context.Background()

	user, err := UserRegister(ctx, request.UserRegisterRequest{
		Email:    "manager@acme.test",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.Password)

	_, err = UserRegister(ctx, request.UserRegisterRequest{
		Email:    "manager@acme.test",
		Password: "another-password",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := UserLogin(ctx, request.UserLoginRequest{Email: "manager@acme.test", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = UserLogin(ctx, request.UserLoginRequest{Email: "manager@acme.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = UserLogin(ctx, request.UserLoginRequest{Email: "nobody@acme.test", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
