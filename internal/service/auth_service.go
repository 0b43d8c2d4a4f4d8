package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/auth-api/internal/models"
	"github.com/campushub/auth-api/internal/repository"
	appErrors "github.com/campushub/auth-api/pkg/errors"
)

type identityStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type refreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Consume(ctx context.Context, jti string, revokedAt time.Time) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type revocationList interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// RequestMeta carries client metadata recorded alongside session events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService orchestrates the session lifecycle: login, rotation, logout and
// access-token authorization. Rotation correctness rests entirely on the
// store's conditional update; the service holds no locks.
type AuthService struct {
	users     identityStore
	refresh   refreshTokenStore
	blocklist revocationList
	tokens    *TokenService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users identityStore, refresh refreshTokenStore, blocklist revocationList, tokens *TokenService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		refresh:   refresh,
		blocklist: blocklist,
		tokens:    tokens,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Register creates a new account and opens its first session.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email, password and name are required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !ValidateEmail(email) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid email format")
	}
	if !ValidatePassword(req.Password) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must be at least 8 characters with uppercase, lowercase, and number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleStudent,
		Active:       true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicateEmail(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	session, err := s.openSession(ctx, user, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionRegister, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	return session, nil
}

// Login authenticates a user and returns a fresh session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and password are required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same failure as a wrong password; existence stays hidden.
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is deactivated")
	}

	session, err := s.openSession(ctx, user, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.metrics.IncLogin()
	s.audit(ctx, user.ID, models.AuditActionLogin, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	return session, nil
}

// Refresh exchanges a refresh token for a new access/refresh pair. The
// presented token must transition unused->used exactly once; a second
// presentation, concurrent or later, is rejected as reuse.
func (s *AuthService) Refresh(ctx context.Context, presented string, meta RequestMeta) (*models.SessionResponse, error) {
	claims, err := s.tokens.Decode(presented, models.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.refresh.Consume(ctx, claims.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			s.metrics.IncReuseDetected()
			s.audit(ctx, claims.UserID, models.AuditActionReuseDetected, meta)
			s.logger.Warn("refresh token reuse detected",
				zap.String("user_id", claims.UserID),
				zap.String("jti", claims.ID),
			)
			return nil, appErrors.Clone(appErrors.ErrTokenReused, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is deactivated")
	}

	session, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.metrics.IncRotation()
	s.audit(ctx, user.ID, models.AuditActionTokenRotate, meta)
	return session, nil
}

// Logout invalidates every outstanding refresh token for the user ("sign out
// everywhere"). Either half of the token pair authenticates the request: with
// a valid access token its jti is also blocklisted for the remaining lifetime;
// with only a refresh token (the access token may have expired minutes ago)
// the refresh-side revocation still proceeds. The blocklist stays
// access-only; refresh invalidation lives in the store's revoked flag.
func (s *AuthService) Logout(ctx context.Context, presentedAccess, presentedRefresh string, meta RequestMeta) error {
	var accessErr error
	if presentedAccess != "" {
		claims, err := s.tokens.Decode(presentedAccess, models.TokenKindAccess)
		if err == nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := s.blocklist.Add(ctx, claims.ID, ttl); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke access token")
			}
			return s.closeSessions(ctx, claims.UserID, meta)
		}
		accessErr = err
	}

	if presentedRefresh != "" {
		claims, err := s.tokens.Decode(presentedRefresh, models.TokenKindRefresh)
		if err != nil {
			return err
		}
		return s.closeSessions(ctx, claims.UserID, meta)
	}

	if accessErr != nil {
		return accessErr
	}
	return appErrors.Clone(appErrors.ErrUnauthorized, "missing access or refresh token")
}

func (s *AuthService) closeSessions(ctx context.Context, userID string, meta RequestMeta) error {
	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh tokens")
	}
	s.audit(ctx, userID, models.AuditActionLogout, meta)
	return nil
}

// Authorize validates an access token for request handling: signature, expiry,
// kind, then the revocation list. Returns the claims on success.
func (s *AuthService) Authorize(ctx context.Context, presentedAccess string) (*models.JWTClaims, error) {
	claims, err := s.tokens.Decode(presentedAccess, models.TokenKindAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blocklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token revocation")
	}
	if revoked {
		s.metrics.IncRevokedRejection()
		return nil, appErrors.Clone(appErrors.ErrTokenRevoked, "")
	}

	return claims, nil
}

// CurrentUser loads the user behind a set of claims.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := user.Info()
	return &info, nil
}

// ChangePassword verifies the current password and stores a new hash. All
// outstanding refresh tokens are revoked so stolen sessions die with the old
// password.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "current and new password are required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "current password incorrect")
	}

	if !ValidatePassword(req.NewPassword) {
		return appErrors.Clone(appErrors.ErrValidation, "password must be at least 8 characters with uppercase, lowercase, and number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	s.audit(ctx, userID, models.AuditActionPasswordChange, RequestMeta{})
	return nil
}

// openSession issues an access/refresh pair and persists the refresh record.
// Persisting and responding are one logical unit of work: if the record
// cannot be stored, no tokens leave this function.
func (s *AuthService) openSession(ctx context.Context, user *models.User, meta RequestMeta) (*models.SessionResponse, error) {
	access, accessClaims, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refresh, refreshClaims, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	record := &models.RefreshToken{
		JTI:       refreshClaims.ID,
		UserID:    user.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		CreatedAt: time.Now().UTC(),
		Revoked:   false,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.SessionResponse{
		TokenPair: models.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(s.tokens.AccessExpiry().Seconds()),
			IssuedAt:     accessClaims.IssuedAt.Time,
		},
		User: user.Info(),
	}, nil
}

func (s *AuthService) audit(ctx context.Context, userID, action string, meta RequestMeta) {
	entry := &models.AuditLog{
		Action:    action,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
