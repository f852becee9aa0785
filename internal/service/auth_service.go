package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/repository"
	apperrors "github.com/spec-kit/token-authority/pkg/util"
)

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 8

var (
	errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")
	errStoreUnavailable   = apperrors.NewDomainError("SERVICE_UNAVAILABLE", "credential store unavailable", http.StatusServiceUnavailable, nil)
)

// IssuedToken is a freshly minted token with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	TokenID   string
}

// NewUserInput describes an account to create.
type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthService checks credentials and asks the authority to mint tokens.
type AuthService struct {
	users       repository.UserRepository
	revocations repository.RevocationRepository
	authority   *auth.Authority
	dispatcher  events.Dispatcher
	bcryptCost  int
}

// AuthDependencies encapsulates collaborators of the auth service. Users and
// Revocations may be nil when their backing store is not configured.
type AuthDependencies struct {
	Users       repository.UserRepository
	Revocations repository.RevocationRepository
	Dispatcher  events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, authority *auth.Authority, deps AuthDependencies) *AuthService {
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(nil)
	}
	return &AuthService{
		users:       deps.Users,
		revocations: deps.Revocations,
		authority:   authority,
		dispatcher:  dispatcher,
		bcryptCost:  cfg.BcryptCost,
	}
}

// Login verifies email and password and issues a token for the account.
func (s *AuthService) Login(ctx context.Context, email, password, remoteIP string) (*domain.User, IssuedToken, error) {
	if s.users == nil {
		return nil, IssuedToken{}, errStoreUnavailable
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, IssuedToken{}, apperrors.NewInternalError(err)
	}
	if err != nil || !user.Active || auth.ComparePassword(user.PasswordHash, password) != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:    events.EventLoginFailed,
			Payload: events.LoginFailedPayload{Email: email, RemoteIP: remoteIP},
		})
		return nil, IssuedToken{}, errInvalidCredentials
	}

	issued, err := s.issueFor(ctx, user, "login")
	if err != nil {
		return nil, IssuedToken{}, err
	}
	return user, issued, nil
}

// ChangePassword checks the current password, revokes the presenting token,
// stores the new hash and issues a replacement.
func (s *AuthService) ChangePassword(ctx context.Context, claims auth.Claims, currentPassword, newPassword string) (IssuedToken, error) {
	if s.users == nil {
		return IssuedToken{}, errStoreUnavailable
	}
	if len(newPassword) < MinPasswordLength {
		return IssuedToken{}, apperrors.NewValidationError("new password too short", map[string]any{"min_length": MinPasswordLength})
	}

	user, err := s.users.GetByID(ctx, claims.Subject())
	if errors.Is(err, pgx.ErrNoRows) {
		return IssuedToken{}, apperrors.NewUnauthorized("account no longer exists")
	}
	if err != nil {
		return IssuedToken{}, apperrors.NewInternalError(err)
	}
	if auth.ComparePassword(user.PasswordHash, currentPassword) != nil {
		return IssuedToken{}, errInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return IssuedToken{}, apperrors.NewInternalError(err)
	}

	// Revoke first so a deny-list failure leaves the stored password unchanged.
	if err := s.Logout(ctx, claims); err != nil {
		return IssuedToken{}, err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return IssuedToken{}, apperrors.MapError(err)
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventPasswordChanged,
		SubjectID: user.ID,
		Role:      user.Role,
	})
	return s.issueFor(ctx, user, "password_change")
}

// Logout revokes the token the claims came from until it would have expired.
// Without a deny-list or a token ID it is a no-op.
func (s *AuthService) Logout(ctx context.Context, claims auth.Claims) error {
	jti := claims.TokenID()
	if s.revocations == nil || jti == "" {
		return nil
	}
	exp, ok := claims.ExpiresAt()
	if !ok {
		return nil
	}
	if err := s.revocations.Revoke(ctx, jti, exp); err != nil {
		return apperrors.NewInternalError(err)
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTokenRevoked,
		SubjectID: claims.Subject(),
		Role:      claims.Role(),
		Payload:   events.TokenRevokedPayload{TokenID: jti, ExpiresAt: exp},
	})
	return nil
}

// RevocationEnabled reports whether Logout has any effect.
func (s *AuthService) RevocationEnabled() bool {
	return s.revocations != nil
}

// CreateUser registers a new account on behalf of actorID.
func (s *AuthService) CreateUser(ctx context.Context, actorID string, in NewUserInput) (*domain.User, error) {
	if s.users == nil {
		return nil, errStoreUnavailable
	}

	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if email == "" || !strings.Contains(email, "@") {
		details["email"] = "must be a valid address"
	}
	if len(in.Password) < MinPasswordLength {
		details["password"] = "too short"
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		details["role"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict(err.Error(), map[string]any{"email": email})
		}
		return nil, apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventUserCreated,
		SubjectID: user.ID,
		Role:      user.Role,
		Payload:   events.UserCreatedPayload{UserID: user.ID, CreatedBy: actorID},
	})
	return user, nil
}

// ListUsers returns a page of accounts.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if s.users == nil {
		return nil, errStoreUnavailable
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// EnsureBootstrapAdmin creates the initial admin account if its email is unused.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if s.users == nil || email == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	_, err := s.CreateUser(ctx, "", NewUserInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) issueFor(ctx context.Context, user *domain.User, reason string) (IssuedToken, error) {
	token, err := s.authority.Issue(auth.Claims{
		auth.ClaimSubject: user.ID,
		auth.ClaimRole:    user.Role,
		"email":           user.Email,
		"name":            user.Name,
	})
	if err != nil {
		return IssuedToken{}, auth.ToDomainError(err)
	}

	claims, err := s.authority.Verify(token)
	if err != nil {
		return IssuedToken{}, apperrors.NewInternalError(err)
	}
	exp, _ := claims.ExpiresAt()
	issued := IssuedToken{Token: token, ExpiresAt: exp, TokenID: claims.TokenID()}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTokenIssued,
		SubjectID: user.ID,
		Role:      user.Role,
		Payload:   events.TokenIssuedPayload{TokenID: issued.TokenID, Reason: reason, ExpiresAt: exp},
	})
	return issued, nil
}
