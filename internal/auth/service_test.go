package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pkgAuth "github.com/kalaa-market/kalaa-backend/pkg/auth"
	"github.com/kalaa-market/kalaa-backend/pkg/auth/session"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"github.com/kalaa-market/kalaa-backend/pkg/security"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	user         *models.User
	lastLoginSet bool
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if r.user == nil || r.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	dup := *r.user
	return &dup, nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.lastLoginSet = true
	return nil
}

type stubSessions struct {
	generated map[string]string
	revoked   []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{generated: map[string]string{}}
}

func (s *stubSessions) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.generated[accessID] = token
	return token, nil
}

func (s *stubSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.generated[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.generated, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	s.generated[newID] = token
	return newID, token, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.generated, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "kalaa-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func seedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        "maya@example.com",
		PasswordHash: hash,
		Name:         "Maya",
		Role:         enums.UserRoleUser,
		IsActive:     true,
	}
}

func newAuthService(t *testing.T, repo *stubUserRepo, sessions *stubSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubUserRepo{user: seedUser(t, "correct horse")}
	sessions := newStubSessions()
	svc := newAuthService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Maya@Example.com ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if !repo.lastLoginSet {
		t.Fatal("expected last login to be recorded")
	}
	if resp.User == nil || resp.User.Email != "maya@example.com" {
		t.Fatalf("unexpected user payload %+v", resp.User)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if claims.UserID != repo.user.ID || claims.Role != enums.UserRoleUser {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !strings.HasSuffix(resp.RefreshToken, claims.ID) {
		t.Fatal("refresh token not tied to access id")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := &stubUserRepo{user: seedUser(t, "correct horse")}
	svc := newAuthService(t, repo, newStubSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "maya@example.com",
		Password: "battery staple",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc := newAuthService(t, &stubUserRepo{}, newStubSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := seedUser(t, "correct horse")
	user.IsActive = false
	svc := newAuthService(t, &stubUserRepo{user: user}, newStubSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "maya@example.com",
		Password: "correct horse",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := &stubUserRepo{user: seedUser(t, "correct horse")}
	sessions := newStubSessions()
	svc := newAuthService(t, repo, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "maya@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if refreshed.AccessToken == login.AccessToken {
		t.Fatal("expected a new access token")
	}

	// the old pair is dead after rotation
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for replayed pair, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := newStubSessions()
	svc := newAuthService(t, &stubUserRepo{user: seedUser(t, "correct horse")}, sessions)

	if err := svc.Logout(context.Background(), "access-123"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-123" {
		t.Fatalf("expected revoke call, got %+v", sessions.revoked)
	}
}
