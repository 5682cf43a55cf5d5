package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
)

type userStoreStub struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	org      domain.Organization
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{
		accounts: make(map[string]domain.Account),
		org:      domain.Organization{ID: "org-1", Name: "Stub Shop"},
	}
}

func (s *userStoreStub) RegisterAccount(_ context.Context, req domain.SignupRequest, hash string) (domain.Profile, domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(req.Email)
	if _, ok := s.accounts[email]; ok {
		return domain.Profile{}, domain.Organization{}, apperr.New(apperr.CodeConflict, "email is already registered")
	}
	profile := domain.Profile{ID: "user-" + email, OrganizationID: s.org.ID, Role: req.Role, FullName: req.FullName, Email: email}
	s.accounts[email] = domain.Account{Profile: profile, PasswordHash: hash}
	return profile, s.org, nil
}

func (s *userStoreStub) AccountByEmail(_ context.Context, email string) (domain.Account, domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return domain.Account{}, domain.Organization{}, apperr.New(apperr.CodeNotFound, "resource not found")
	}
	return account, s.org, nil
}

func signupRequest(email, password string) domain.SignupRequest {
	return domain.SignupRequest{
		Email: email, Password: password, ConfirmPassword: password,
		FullName: "Test User", Role: domain.RoleEmployee, OrganizationID: "org-1",
	}
}

func TestSignupStoresHashAndRoundTripsToken(t *testing.T) {
	users := newUserStoreStub()
	auth := NewAuthManager("test-secret", time.Hour, users)

	resp, err := auth.Signup(context.Background(), signupRequest("New@Test.local", "secret1"))
	require.NoError(t, err)

	stored := users.accounts["new@test.local"]
	assert.True(t, isPasswordHash(stored.PasswordHash))
	assert.NotEqual(t, "secret1", stored.PasswordHash)

	actor, err := auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, actor.UserID)
	assert.Equal(t, "org-1", actor.OrganizationID)
	assert.Equal(t, domain.RoleEmployee, actor.Role)
	assert.Equal(t, "new@test.local", actor.Email)
}

func TestSignupRejectsWeakOrMismatchedPasswords(t *testing.T) {
	auth := NewAuthManager("test-secret", time.Hour, newUserStoreStub())

	_, err := auth.Signup(context.Background(), signupRequest("a@test.local", "12345"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	req := signupRequest("a@test.local", "secret1")
	req.ConfirmPassword = "secret2"
	_, err = auth.Signup(context.Background(), req)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestLoginChecksPassword(t *testing.T) {
	users := newUserStoreStub()
	auth := NewAuthManager("test-secret", time.Hour, users)
	_, err := auth.Signup(context.Background(), signupRequest("user@test.local", "secret1"))
	require.NoError(t, err)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Email: "USER@test.local", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "user@test.local", resp.Profile.Email)

	_, err = auth.Login(context.Background(), domain.LoginRequest{Email: "user@test.local", Password: "wrong"})
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))

	_, err = auth.Login(context.Background(), domain.LoginRequest{Email: "ghost@test.local", Password: "secret1"})
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))
}

func TestParseTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	auth := NewAuthManager("test-secret", time.Hour, newUserStoreStub())
	other := NewAuthManager("other-secret", time.Hour, newUserStoreStub())
	profile := domain.Profile{ID: "u1", OrganizationID: "org-1", Role: domain.RoleOwner, Email: "o@test.local"}

	foreign, err := other.sign(profile, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = auth.ParseToken(foreign)
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))

	expired, err := auth.sign(profile, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = auth.ParseToken(expired)
	assert.Error(t, err)

	profile.Role = "admin"
	badRole, err := auth.sign(profile, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = auth.ParseToken(badRole)
	assert.Error(t, err)
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	auth := NewAuthManager("test-secret", time.Hour, newUserStoreStub())
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u1", Issuer: tokenIssuer},
		OrganizationID:   "org-1",
		Role:             domain.RoleOwner,
	})
	signed, err := token.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ParseToken(signed)
	assert.Error(t, err)
}

func TestVerifyPasswordRejectsPlaintext(t *testing.T) {
	assert.False(t, verifyPassword("secret1", "secret1"))
	assert.False(t, verifyPassword("", "secret1"))

	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, verifyPassword(hash, "secret1"))
	assert.False(t, verifyPassword(hash, " "))
}
