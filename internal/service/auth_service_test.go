package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/observability"
	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

type serviceFixture struct {
	svc         *AuthService
	authority   *auth.Authority
	users       *memoryUsers
	revocations *memoryRevocations
	metrics     *observability.Metrics
}

func newServiceFixture(t *testing.T, withRevocation bool) *serviceFixture {
	t.Helper()

	var opts []auth.Option
	if withRevocation {
		opts = append(opts, auth.WithTokenIDs())
	}
	authority, err := auth.NewAuthority("service-test-secret-0123", time.Hour, opts...)
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()
	NewAuditService(dispatcher, zap.NewNop(), metrics).RegisterHandlers()

	f := &serviceFixture{
		authority: authority,
		users:     newMemoryUsers(),
		metrics:   metrics,
	}
	deps := AuthDependencies{Users: f.users, Dispatcher: dispatcher}
	if withRevocation {
		f.revocations = newMemoryRevocations()
		deps.Revocations = f.revocations
	}
	f.svc = NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, authority, deps)
	return f
}

func (f *serviceFixture) createUser(t *testing.T, email, password string, role domain.Role) *domain.User {
	t.Helper()
	user, err := f.svc.CreateUser(context.Background(), "", NewUserInput{
		Name:     "Test User",
		Email:    email,
		Password: password,
		Role:     string(role),
	})
	require.NoError(t, err)
	return user
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, code, domainErr.Code)
	assert.Equal(t, status, domainErr.HTTPStatus)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newServiceFixture(t, false)
	created := f.createUser(t, "editor@example.com", "correct-horse", domain.RoleEditor)

	user, issued, err := f.svc.Login(context.Background(), "Editor@Example.com", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 2*time.Second)
	assert.Empty(t, issued.TokenID)

	claims, err := f.authority.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject())
	assert.Equal(t, domain.RoleEditor, claims.Role())
	assert.Equal(t, "editor@example.com", claims["email"])

	assert.Equal(t, int64(1), f.metrics.Snapshot().AuthOutcomes["issued"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newServiceFixture(t, false)
	f.createUser(t, "viewer@example.com", "correct-horse", domain.RoleViewer)
	ctx := context.Background()

	_, _, err := f.svc.Login(ctx, "viewer@example.com", "wrong-password", "")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

	_, _, err = f.svc.Login(ctx, "nobody@example.com", "correct-horse", "")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

	assert.Equal(t, int64(2), f.metrics.Snapshot().AuthOutcomes["login_failed"])
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.createUser(t, "gone@example.com", "correct-horse", domain.RoleViewer)
	user.Active = false
	require.NoError(t, f.users.Update(context.Background(), user))

	_, _, err := f.svc.Login(context.Background(), "gone@example.com", "correct-horse", "")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
}

func TestServiceWithoutStore(t *testing.T) {
	authority, err := auth.NewAuthority("service-test-secret-0123", time.Hour)
	require.NoError(t, err)
	svc := NewAuthService(config.AuthConfig{}, authority, AuthDependencies{})
	ctx := context.Background()

	_, _, err = svc.Login(ctx, "a@example.com", "whatever", "")
	requireCode(t, err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)

	_, err = svc.ListUsers(ctx, 10, 0)
	requireCode(t, err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)

	created, err := svc.EnsureBootstrapAdmin(ctx, "admin@example.com", "password123")
	assert.NoError(t, err)
	assert.False(t, created)
	assert.False(t, svc.RevocationEnabled())
}

func TestCreateUserValidation(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, "", NewUserInput{Name: "", Email: "bad", Password: "short", Role: "root"})
	requireCode(t, err, "VALIDATION_FAILED", http.StatusBadRequest)
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "role")

	f.createUser(t, "dup@example.com", "password123", domain.RoleViewer)
	_, err = f.svc.CreateUser(ctx, "", NewUserInput{Name: "Dup", Email: "DUP@example.com", Password: "password123", Role: "viewer"})
	requireCode(t, err, "CONFLICT", http.StatusConflict)
}

func TestChangePasswordReissuesAndRevokes(t *testing.T) {
	f := newServiceFixture(t, true)
	f.createUser(t, "admin@example.com", "old-password", domain.RoleAdmin)
	ctx := context.Background()

	_, first, err := f.svc.Login(ctx, "admin@example.com", "old-password", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.TokenID)
	claims, err := f.authority.Verify(first.Token)
	require.NoError(t, err)

	_, err = f.svc.ChangePassword(ctx, claims, "not-the-password", "new-password")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

	_, err = f.svc.ChangePassword(ctx, claims, "old-password", "short")
	requireCode(t, err, "VALIDATION_FAILED", http.StatusBadRequest)

	second, err := f.svc.ChangePassword(ctx, claims, "old-password", "new-password")
	require.NoError(t, err)
	assert.NotEqual(t, first.TokenID, second.TokenID)

	revoked, err := f.revocations.IsRevoked(ctx, first.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, _, err = f.svc.Login(ctx, "admin@example.com", "old-password", "")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
	_, _, err = f.svc.Login(ctx, "admin@example.com", "new-password", "")
	require.NoError(t, err)

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.AuthOutcomes["password_changed"])
	assert.Equal(t, int64(1), snap.AuthOutcomes["revoked"])
}

func TestChangePasswordKeepsHashWhenRevocationFails(t *testing.T) {
	f := newServiceFixture(t, true)
	f.createUser(t, "admin@example.com", "old-password", domain.RoleAdmin)
	ctx := context.Background()

	_, issued, err := f.svc.Login(ctx, "admin@example.com", "old-password", "")
	require.NoError(t, err)
	claims, err := f.authority.Verify(issued.Token)
	require.NoError(t, err)

	f.revocations.revokeErr = errors.New("redis down")
	_, err = f.svc.ChangePassword(ctx, claims, "old-password", "new-password")
	requireCode(t, err, "INTERNAL_ERROR", http.StatusInternalServerError)

	_, _, err = f.svc.Login(ctx, "admin@example.com", "old-password", "")
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "admin@example.com", "new-password", "")
	requireCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
}

func TestLogoutWithoutRevocationIsNoop(t *testing.T) {
	f := newServiceFixture(t, false)

	err := f.svc.Logout(context.Background(), auth.Claims{"sub": "u1", "role": "admin", "jti": "abc", "exp": float64(time.Now().Add(time.Hour).Unix())})
	assert.NoError(t, err)
	assert.False(t, f.svc.RevocationEnabled())
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	created, err := f.svc.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)

	user, err := f.users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestListUsersClampsPaging(t *testing.T) {
	f := newServiceFixture(t, false)
	f.createUser(t, "a@example.com", "password123", domain.RoleViewer)
	f.createUser(t, "b@example.com", "password123", domain.RoleEditor)

	users, err := f.svc.ListUsers(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
