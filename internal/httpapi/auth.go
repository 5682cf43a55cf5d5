package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
)

const tokenIssuer = "stockpilot"

// minPasswordLength mirrors the signup form.
const minPasswordLength = 6

// UserStore is the account surface the auth manager needs.
type UserStore interface {
	RegisterAccount(ctx context.Context, req domain.SignupRequest, passwordHash string) (domain.Profile, domain.Organization, error)
	AccountByEmail(ctx context.Context, email string) (domain.Account, domain.Organization, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	accounts UserStore
	now      func() time.Time
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	Email          string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, accounts UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Signup creates the account and signs the caller in.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.AuthResponse, error) {
	if len(req.Password) < minPasswordLength {
		return domain.AuthResponse{}, apperr.New(apperr.CodeValidation, "password must be at least 6 characters").
			WithDetails(map[string]string{"password": "must be at least 6 characters"})
	}
	if req.Password != req.ConfirmPassword {
		return domain.AuthResponse{}, apperr.New(apperr.CodeValidation, "passwords do not match").
			WithDetails(map[string]string{"confirm_password": "must match password"})
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}
	profile, org, err := a.accounts.RegisterAccount(ctx, req, hash)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	return a.issue(profile, org)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error) {
	account, org, err := a.accounts.AccountByEmail(ctx, req.Email)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return domain.AuthResponse{}, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
		}
		return domain.AuthResponse{}, err
	}
	if !verifyPassword(account.PasswordHash, req.Password) {
		return domain.AuthResponse{}, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	return a.issue(account.Profile, org)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.OrganizationID == "" {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "invalid token subject")
	}
	if claims.Role != domain.RoleOwner && claims.Role != domain.RoleEmployee {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "invalid token role")
	}
	return domain.Actor{
		UserID:         sub,
		Email:          claims.Email,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
	}, nil
}

func (a *AuthManager) issue(profile domain.Profile, org domain.Organization) (domain.AuthResponse, error) {
	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(profile, expiresAt)
	if err != nil {
		return domain.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, err, "failed to sign token")
	}
	return domain.AuthResponse{
		AccessToken:  token,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
		Profile:      profile,
		Organization: org,
	}, nil
}

func (a *AuthManager) sign(profile domain.Profile, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		OrganizationID: profile.OrganizationID,
		Role:           profile.Role,
		Email:          profile.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
