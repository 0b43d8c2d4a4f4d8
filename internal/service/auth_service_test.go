package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/auth-api/internal/models"
	"github.com/campushub/auth-api/internal/repository"
	appErrors "github.com/campushub/auth-api/pkg/errors"
)

type memIdentityStore struct {
	mu               sync.Mutex
	users            map[string]*models.User
	audits           []*models.AuditLog
	lastLoginUpdated bool
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{users: make(map[string]*models.User)}
}

func (m *memIdentityStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return &pq.Error{Code: "23505"}
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memIdentityStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memIdentityStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *memIdentityStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLoginUpdated = true
	return nil
}

func (m *memIdentityStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *memIdentityStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, log)
	return nil
}

// memRefreshStore mirrors the Postgres conditional update: Consume flips
// revoked under a lock and fails when the row is missing or already revoked.
type memRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{tokens: make(map[string]*models.RefreshToken)}
}

func (m *memRefreshStore) Create(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *token
	m.tokens[token.JTI] = &clone
	return nil
}

func (m *memRefreshStore) Consume(ctx context.Context, jti string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[jti]
	if !ok || rt.Revoked {
		return repository.ErrTokenConsumed
	}
	rt.Revoked = true
	rt.RevokedAt = &revokedAt
	return nil
}

func (m *memRefreshStore) RevokeAllForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, rt := range m.tokens {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = &now
		}
	}
	return nil
}

type memBlocklist struct {
	mu   sync.Mutex
	jtis map[string]struct{}
}

func newMemBlocklist() *memBlocklist {
	return &memBlocklist{jtis: make(map[string]struct{})}
}

func (m *memBlocklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		m.jtis[jti] = struct{}{}
	}
	return nil
}

func (m *memBlocklist) Contains(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jtis[jti]
	return ok, nil
}

type authFixture struct {
	svc       *AuthService
	users     *memIdentityStore
	refresh   *memRefreshStore
	blocklist *memBlocklist
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newMemIdentityStore()
	refresh := newMemRefreshStore()
	blocklist := newMemBlocklist()
	tokens := newTokenService(15*time.Minute, 7*24*time.Hour)
	svc := NewAuthService(users, refresh, blocklist, tokens, validator.New(), nil, zap.NewNop())
	return &authFixture{svc: svc, users: users, refresh: refresh, blocklist: blocklist}
}

func (f *authFixture) seedUser(t *testing.T, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         models.RoleStudent,
		Active:       active,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestRegisterSuccess(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email:    "User@Example.com ",
		Password: "Valid123Pass",
		FullName: "New Student",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "user@example.com", res.User.Email)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Len(t, f.refresh.tokens, 1)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	_, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email:    "user@example.com",
		Password: "Valid123Pass",
		FullName: "Someone Else",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email:    "user@example.com",
		Password: "alllowercase1",
		FullName: "New Student",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email:    "not-an-email",
		Password: "Valid123Pass",
		FullName: "New Student",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	res, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, f.users.lastLoginUpdated)
	assert.Len(t, f.refresh.tokens, 1)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	_, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "WrongPass1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))

	// Unknown emails fail identically.
	_, err = f.svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "Valid123Pass"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", false)

	_, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInactiveAccount))
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// First presentation of the original token is now permanently used.
	_, err = f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))

	// The rotated token still works.
	_, err = f.svc.Refresh(context.Background(), rotated.RefreshToken, RequestMeta{})
	require.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), login.AccessToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrWrongTokenKind))
}

func TestRefreshUserGone(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	f.users.mu.Lock()
	delete(f.users.users, user.ID)
	f.users.mu.Unlock()

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	var success, reused int
	for err := range results {
		switch {
		case err == nil:
			success++
		case appErrors.HasCode(err, appErrors.ErrTokenReused):
			reused++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	assert.Equal(t, 1, success, "exactly one rotation may win")
	assert.Equal(t, workers-1, reused)
}

func TestLogoutRevokesAccessTokenImmediately(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	// The token authorizes fine before logout.
	_, err = f.svc.Authorize(context.Background(), login.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), login.AccessToken, login.RefreshToken, RequestMeta{}))

	// Signature and expiry are still valid, but the jti is blocklisted.
	_, err = f.svc.Authorize(context.Background(), login.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenRevoked))
}

func TestLogoutRevokesAllRefreshTokens(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	first, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)
	second, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), second.AccessToken, second.RefreshToken, RequestMeta{}))

	// Every outstanding refresh token died, not only the current session's.
	_, err = f.svc.Refresh(context.Background(), first.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))

	_, err = f.svc.Refresh(context.Background(), second.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))
}

func TestLogoutWithRefreshTokenOnly(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	// No access token at all: the short-lived token may be long gone while
	// the refresh cookie is still valid. Signing out must still work.
	require.NoError(t, f.svc.Logout(context.Background(), "", login.RefreshToken, RequestMeta{}))

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))
}

func TestLogoutExpiredAccessFallsBackToRefresh(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	// An undecodable access token is ignored when the refresh token vouches
	// for the user.
	require.NoError(t, f.svc.Logout(context.Background(), "not-a-jwt", login.RefreshToken, RequestMeta{}))

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))
}

func TestLogoutRejectsMissingAndBogusTokens(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.Logout(context.Background(), "", "", RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	// Only a broken access token and no refresh token: the decode failure
	// surfaces.
	err = f.svc.Logout(context.Background(), "not-a-jwt", "", RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenMalformed))

	// A refresh slot carrying an access token is still the wrong kind.
	f.seedUser(t, "user@example.com", "Valid123Pass", true)
	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)
	err = f.svc.Logout(context.Background(), "", login.AccessToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrWrongTokenKind))
}

func TestAuthorizeReturnsClaims(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "user@example.com", "Valid123Pass", true)

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	claims, err := f.svc.Authorize(context.Background(), login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "user@example.com", "Valid123Pass", true)
	oldHash := user.PasswordHash

	login, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "Valid123Pass"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		CurrentPassword: "Valid123Pass",
		NewPassword:     "Another123Pass",
	})
	require.NoError(t, err)

	stored, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, stored.PasswordHash)

	// Outstanding refresh tokens die with the old password.
	_, err = f.svc.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTokenReused))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "user@example.com", "Valid123Pass", true)

	err := f.svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		CurrentPassword: "WrongPass1",
		NewPassword:     "Another123Pass",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestChangePasswordRejectsWeakNew(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "user@example.com", "Valid123Pass", true)

	err := f.svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		CurrentPassword: "Valid123Pass",
		NewPassword:     "weak",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCurrentUserNotFound(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.CurrentUser(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
