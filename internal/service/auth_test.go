package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/utils"
)

func TestLogin(t *testing.T) {
	users := newFakeUsers()
	hash, err := utils.HashPassword("door-pass", bcrypt.MinCost)
	require.NoError(t, err)
	staff := &model.User{Email: "staff@example.com", PasswordHash: hash, Role: model.RoleStaff}
	require.NoError(t, users.Create(context.Background(), staff))
	guest := &model.User{Email: "guest@example.com", PasswordHash: hash, Role: model.RoleGuest}
	require.NoError(t, users.Create(context.Background(), guest))

	svc := NewAuthService(users, "secret", 10)

	tok, u, err := svc.Login(context.Background(), "staff@example.com", "door-pass")
	require.NoError(t, err)
	assert.Equal(t, staff.ID, u.ID)
	claims, err := utils.ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, claims.Role)

	_, _, err = svc.Login(context.Background(), "staff@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "guest@example.com", "door-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "nobody@example.com", "door-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "not-an-email", "x")
	assert.ErrorIs(t, err, ErrValidation)
}
