package users

import (
	"context"
	"testing"
	"time"

	"github.com/datavault/datavault/model"
	sqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	byEmail map[string]*model.User
	byID    map[uint]*model.User
	updates map[uint]map[string]interface{}
	nextID  uint
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byEmail: make(map[string]*model.User),
		byID:    make(map[uint]*model.User),
		updates: make(map[uint]map[string]interface{}),
	}
}

func (r *stubUserRepo) WithTx(tx *gorm.DB) UserRepository { return r }

func (r *stubUserRepo) FirstByID(ctx context.Context, userID uint) (*model.User, error) {
	user, ok := r.byID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *stubUserRepo) FirstByEmail(ctx context.Context, email string) (*model.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *stubUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return &sqldriver.MySQLError{Number: 1062, Message: "duplicate entry"}
	}
	r.nextID++
	user.ID = r.nextID
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *stubUserRepo) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	if _, ok := r.byID[userID]; !ok {
		return 0, nil
	}
	merged, ok := r.updates[userID]
	if !ok {
		merged = make(map[string]interface{})
		r.updates[userID] = merged
	}
	for k, v := range columns {
		merged[k] = v
	}
	return 1, nil
}

type stubAuthMethodRepo struct {
	methods map[uint][]*model.UserAuthMethod
}

func newStubAuthMethodRepo() *stubAuthMethodRepo {
	return &stubAuthMethodRepo{methods: make(map[uint][]*model.UserAuthMethod)}
}

func (r *stubAuthMethodRepo) WithTx(tx *gorm.DB) AuthMethodRepository { return r }

func (r *stubAuthMethodRepo) Find(ctx context.Context, userID uint) ([]*model.UserAuthMethod, error) {
	return r.methods[userID], nil
}

func (r *stubAuthMethodRepo) Upsert(ctx context.Context, method *model.UserAuthMethod) error {
	for _, existing := range r.methods[method.UserID] {
		if existing.Type == method.Type {
			existing.Enabled = method.Enabled
			existing.LastUsedAt = method.LastUsedAt
			return nil
		}
	}
	r.methods[method.UserID] = append(r.methods[method.UserID], method)
	return nil
}

func (r *stubAuthMethodRepo) Touch(ctx context.Context, userID uint, methodType string, usedAt time.Time) error {
	return r.Upsert(ctx, &model.UserAuthMethod{
		UserID:     userID,
		Type:       methodType,
		Enabled:    true,
		SetupAt:    usedAt,
		LastUsedAt: &usedAt,
	})
}

func (r *stubAuthMethodRepo) SetEnabled(ctx context.Context, userID uint, methodType string, enabled bool) error {
	for _, existing := range r.methods[userID] {
		if existing.Type == methodType {
			existing.Enabled = enabled
		}
	}
	return nil
}

func newTestUserService() (*UserService, *stubUserRepo, *stubAuthMethodRepo) {
	userRepo := newStubUserRepo()
	methodRepo := newStubAuthMethodRepo()
	return NewUserService(userRepo, methodRepo), userRepo, methodRepo
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestCreateUserSetsDefaults(t *testing.T) {
	svc, _, _ := newTestUserService()

	user, err := svc.CreateUser(context.Background(), CreateUserOptions{
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Password:    "hunter22",
		AuthMethod:  model.AuthMethodPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.Password)
	assert.NotEqual(t, "hunter22", user.Password, "password must be stored hashed")
	assert.True(t, user.SecuritySettings.EncryptionEnabled)
	assert.False(t, user.SecuritySettings.BiometricEnabled)
	assert.Positive(t, user.SecuritySettings.SessionTimeoutMinutes)
	require.Len(t, user.AuthMethods, 1)
	assert.Equal(t, model.AuthMethodPassword, user.AuthMethods[0].Type)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserOptions{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserOptions{Email: "alice@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailRegistered)
}

func TestCreateUserRejectsBadEmail(t *testing.T) {
	svc, _, _ := newTestUserService()
	_, err := svc.CreateUser(context.Background(), CreateUserOptions{Email: "not-an-email", Password: "pw"})
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	ctx := context.Background()
	userRepo.Create(ctx, &model.User{
		Email:    "alice@example.com",
		Password: mustHash(t, "hunter22"),
	})

	user, err := svc.Authenticate(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrWrongCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrWrongCredentials, "unknown email must be indistinguishable from wrong password")
}

func TestAuthenticateDisabledUser(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	ctx := context.Background()
	userRepo.Create(ctx, &model.User{
		Email:    "gone@example.com",
		Password: mustHash(t, "pw"),
		Disabled: true,
	})

	_, err := svc.Authenticate(ctx, "gone@example.com", "pw")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestAuthenticateOAuthOnlyAccount(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	ctx := context.Background()
	userRepo.Create(ctx, &model.User{Email: "oauth@example.com"})

	_, err := svc.Authenticate(ctx, "oauth@example.com", "anything")
	assert.ErrorIs(t, err, ErrPasswordNotSet)
}

func TestGetOrCreateOAuthUser(t *testing.T) {
	svc, _, methodRepo := newTestUserService()
	ctx := context.Background()
	info := OAuthUserInfo{Email: "alice@example.com", Name: "Alice", Picture: "https://img.example/a.png"}

	created, err := svc.GetOrCreateOAuthUser(ctx, model.AuthMethodGoogle, info)
	require.NoError(t, err)
	assert.Empty(t, created.Password, "oauth-only account has no password")

	again, err := svc.GetOrCreateOAuthUser(ctx, model.AuthMethodGoogle, info)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "second sign-in resolves the same profile")

	methods, err := methodRepo.Find(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, model.AuthMethodGoogle, methods[0].Type)
}

func TestResolveSessionStampsLogin(t *testing.T) {
	svc, userRepo, methodRepo := newTestUserService()
	ctx := context.Background()
	userRepo.Create(ctx, &model.User{Email: "alice@example.com"})

	user, err := svc.ResolveSession(ctx, 1, model.AuthMethodPassword)
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
	assert.Contains(t, userRepo.updates[1], "last_login_at")

	methods, _ := methodRepo.Find(ctx, 1)
	require.Len(t, methods, 1)
	assert.Equal(t, model.AuthMethodPassword, methods[0].Type)
}

func TestResolveSessionMissingProfile(t *testing.T) {
	svc, _, _ := newTestUserService()
	_, err := svc.ResolveSession(context.Background(), 404, model.AuthMethodPassword)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUpdateSecuritySettingsExcludesBiometricFlag(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	ctx := context.Background()
	userRepo.Create(ctx, &model.User{Email: "alice@example.com"})

	err := svc.UpdateSecuritySettings(ctx, 1, model.SecuritySettings{
		TwoFactorEnabled:      true,
		BiometricEnabled:      true, // must be ignored
		SessionTimeoutMinutes: 15,
	})
	require.NoError(t, err)

	updates := userRepo.updates[1]
	assert.Contains(t, updates, "sec_two_factor_enabled")
	assert.Contains(t, updates, "sec_session_timeout_minutes")
	assert.NotContains(t, updates, "sec_biometric_enabled",
		"the biometric flag only moves with credential mutations")
}

func TestUpdateSecuritySettingsUnknownUser(t *testing.T) {
	svc, _, _ := newTestUserService()
	err := svc.UpdateSecuritySettings(context.Background(), 404, model.SecuritySettings{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
