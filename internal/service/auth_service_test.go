package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/pkg/config"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type stubUserRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	created       []*models.User
	issuedTokens  []*models.RefreshToken
	revoked       []string
	touched       []string
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		usersByEmail:  map[string]*models.User{},
		usersByID:     map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (r *stubUserRepo) addUser(user *models.User) {
	r.usersByEmail[user.Email] = user
	r.usersByID[user.ID] = user
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := r.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-" + user.Email
	r.addUser(user)
	r.created = append(r.created, user)
	return nil
}

func (r *stubUserRepo) TouchLastLogin(ctx context.Context, id string) error {
	r.touched = append(r.touched, id)
	return nil
}

func (r *stubUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = "rt-" + token.Token[:8]
	r.refreshTokens[token.Token] = token
	r.issuedTokens = append(r.issuedTokens, token)
	return nil
}

func (r *stubUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := r.refreshTokens[token]; ok && stored.RevokedAt == nil {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	r.revoked = append(r.revoked, id)
	for _, stored := range r.refreshTokens {
		if stored.ID == id {
			now := time.Now().UTC()
			stored.RevokedAt = &now
		}
	}
	return nil
}

func authFixture(t *testing.T) (*AuthService, *stubUserRepo) {
	t.Helper()
	repo := newStubUserRepo()
	svc := NewAuthService(repo, nil, nil, config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
	})
	return svc, repo
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-1",
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Admin",
		Active:       active,
	}
	repo.addUser(user)
	return user
}

func TestRegisterCreatesHashedUser(t *testing.T) {
	svc, repo := authFixture(t)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "owner@school.test",
		Password: "correct-horse",
		FullName: "Owner",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.NotEqual(t, "correct-horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
	require.True(t, user.Active)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, repo := authFixture(t)
	seedUser(t, repo, "owner@school.test", "correct-horse", true)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "owner@school.test",
		Password: "another-pass",
		FullName: "Owner",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestLoginIssuesSignedAccessToken(t *testing.T) {
	svc, repo := authFixture(t)
	user := seedUser(t, repo, "owner@school.test", "correct-horse", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "owner@school.test",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, []string{user.ID}, repo.touched)

	parsed, err := jwt.Parse(resp.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, user.ID, claims["sub"])
	require.Equal(t, user.Email, claims["email"])
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo := authFixture(t)
	seedUser(t, repo, "owner@school.test", "correct-horse", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "owner@school.test",
		Password: "wrong-password",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@school.test",
		Password: "whatever-pass",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := authFixture(t)
	seedUser(t, repo, "owner@school.test", "correct-horse", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "owner@school.test",
		Password: "correct-horse",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := authFixture(t)
	seedUser(t, repo, "owner@school.test", "correct-horse", true)

	first, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "owner@school.test",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Len(t, repo.revoked, 1)

	// Rotated token is single use.
	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
