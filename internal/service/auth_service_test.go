package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const testPassword = "correct horse battery staple"

func newAuthFixture(t *testing.T, active bool) (*AuthService, *authRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &authRepoStub{
		user: &models.User{
			ID:           "user-1",
			Email:        "admin@school.test",
			PasswordHash: string(hash),
			FullName:     "Admin",
			Role:         models.RoleAdmin,
			Active:       active,
		},
	}
	service := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "unit-test-secret",
		Expiration: time.Hour,
		Issuer:     "sma-timetable-api",
	})
	return service, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	service, repo := newAuthFixture(t, true)

	resp, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.test",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.True(t, repo.lastLoginSet)

	claims, err := service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	service, _ := newAuthFixture(t, true)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.test",
		Password: "nope",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	service, _ := newAuthFixture(t, true)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@school.test",
		Password: testPassword,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	service, _ := newAuthFixture(t, false)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.test",
		Password: testPassword,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsWrongSecret(t *testing.T) {
	service, _ := newAuthFixture(t, true)
	other := NewAuthService(&authRepoStub{}, nil, nil, AuthConfig{Secret: "different-secret"})

	resp, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.test",
		Password: testPassword,
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

type authRepoStub struct {
	user         *models.User
	lastLoginSet bool
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLoginSet = true
	return nil
}
