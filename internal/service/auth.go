package service

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/utils"
)

// AuthService authenticates door staff.  GUEST accounts never log in.
type AuthService struct {
	users  UserStore
	secret string
	ttlMin int
}

func NewAuthService(users UserStore, secret string, ttlMin int) *AuthService {
	return &AuthService{users: users, secret: secret, ttlMin: ttlMin}
}

// Login verifies the credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (utils.AccessToken, model.User, error) {
	if err := validationErr(validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.Email),
		"password": validation.Validate(password, validation.Required),
	}); err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
		}
		return utils.AccessToken{}, model.User{}, fmt.Errorf("s.users.GetByEmail -> %w", err)
	}
	if !u.IsActive || !isStaff(u.Role) || !utils.VerifyPassword(u.PasswordHash, password) {
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	tok, err := utils.NewAccessToken(s.secret, u.ID, u.Role, s.ttlMin)
	if err != nil {
		return utils.AccessToken{}, model.User{}, fmt.Errorf("utils.NewAccessToken -> %w", err)
	}
	return tok, u, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("s.users.GetByID -> %w", err)
	}
	return u, nil
}

func isStaff(role string) bool {
	return role == model.RoleStaff || role == model.RoleAdmin
}
