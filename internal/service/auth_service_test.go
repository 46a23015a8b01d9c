package service_test

import (
	"errors"
	"testing"

	"github.com/metervend/internal/config"
	"github.com/metervend/internal/service"
	"github.com/metervend/internal/testutil"
	"github.com/metervend/pkg/meternum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService() (*service.AuthService, *testutil.UserStore, *testutil.MeterStore) {
	users := testutil.NewUserStore()
	meters := testutil.NewMeterStore()
	svc := service.NewAuthService(users, meters, config.JWTConfig{
		Secret:      "test-secret",
		ExpireHours: 1,
	})
	return svc, users, meters
}

func registerReq(email string) *service.RegisterRequest {
	return &service.RegisterRequest{
		Name:                 "Test Household",
		Email:                email,
		Password:             "supersecret",
		PasswordConfirmation: "supersecret",
	}
}

func TestRegisterCreatesUserAndMeter(t *testing.T) {
	svc, users, _ := newAuthService()

	user, meter, err := svc.Register(registerReq("home@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "home@example.com", user.Email)
	assert.NotEqual(t, "supersecret", user.PasswordHash)
	assert.Equal(t, 1, users.Count())

	require.NotNil(t, meter)
	assert.Equal(t, user.ID, meter.UserID)
	assert.True(t, meternum.Valid(meter.Num), "meter number %q should be 8 digits", meter.Num)
	assert.True(t, meter.Units.IsZero())
	assert.True(t, meter.Balance.IsZero())
}

func TestRegisterPasswordMismatch(t *testing.T) {
	svc, users, meters := newAuthService()

	req := registerReq("home@example.com")
	req.PasswordConfirmation = "different"

	_, _, err := svc.Register(req)
	assert.ErrorIs(t, err, service.ErrPasswordMismatch)
	assert.Equal(t, 0, users.Count())

	all, _ := meters.ListAll()
	assert.Empty(t, all)
}

func TestRegisterWeakPassword(t *testing.T) {
	svc, users, meters := newAuthService()

	req := registerReq("home@example.com")
	req.Password = "seven77"
	req.PasswordConfirmation = "seven77"

	_, _, err := svc.Register(req)
	assert.ErrorIs(t, err, service.ErrWeakPassword)
	assert.Equal(t, 0, users.Count())

	all, _ := meters.ListAll()
	assert.Empty(t, all)
}

func TestRegisterRollsBackUserWhenMeterFails(t *testing.T) {
	svc, users, meters := newAuthService()
	meters.CreateErr = errors.New("insert failed")

	_, _, err := svc.Register(registerReq("home@example.com"))
	assert.Error(t, err)
	assert.Equal(t, 0, users.Count(), "no meter-less user may persist")

	// The email is free again once the store recovers
	meters.CreateErr = nil
	_, _, err = svc.Register(registerReq("home@example.com"))
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, users, _ := newAuthService()

	_, _, err := svc.Register(registerReq("home@example.com"))
	require.NoError(t, err)

	_, _, err = svc.Register(registerReq("home@example.com"))
	assert.ErrorIs(t, err, service.ErrEmailTaken)
	assert.Equal(t, 1, users.Count())
}

func TestLogin(t *testing.T) {
	svc, _, _ := newAuthService()

	user, _, err := svc.Register(registerReq("home@example.com"))
	require.NoError(t, err)

	token, err := svc.Login(&service.LoginRequest{
		Email:    "home@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthService()

	_, _, err := svc.Register(registerReq("home@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(&service.LoginRequest{
		Email:    "home@example.com",
		Password: "wrongwrong",
	})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newAuthService()

	_, err := svc.Login(&service.LoginRequest{
		Email:    "nobody@example.com",
		Password: "supersecret",
	})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthService()

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
