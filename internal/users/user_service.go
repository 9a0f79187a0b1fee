package users

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Email       string
	DisplayName string
	Password    string // empty for OAuth-only accounts
	Picture     string
	AuthMethod  string
}

type UserService struct {
	userRepo       UserRepository
	authMethodRepo AuthMethodRepository
}

func NewUserService(userRepo UserRepository, authMethodRepo AuthMethodRepository) *UserService {
	return &UserService{
		userRepo:       userRepo,
		authMethodRepo: authMethodRepo,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FirstByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FirstByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetAuthMethods(ctx context.Context, userID uint) ([]*model.UserAuthMethod, error) {
	return s.authMethodRepo.Find(ctx, userID)
}

// CreateUser creates the account profile on first sign-up. The initial auth
// method row is created together with the profile.
func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return nil, err
	}

	user := model.User{
		Email:       opts.Email,
		DisplayName: opts.DisplayName,
		Picture:     opts.Picture,
		SecuritySettings: model.SecuritySettings{
			SessionTimeoutMinutes: params.DefaultSessionTimeout,
			EncryptionEnabled:     true,
		},
	}
	if opts.Password != "" {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(passwordHash)
	}

	now := time.Now()
	if opts.AuthMethod != "" {
		user.AuthMethods = []model.UserAuthMethod{{
			Type:       opts.AuthMethod,
			Enabled:    true,
			SetupAt:    now,
			LastUsedAt: &now,
		}}
	}

	var mysqlErr *mysql.MySQLError
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrEmailRegistered
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies an email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email string, password string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrWrongCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	if user.Password == "" {
		return nil, ErrPasswordNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrWrongCredentials
	}
	return user, nil
}

type OAuthUserInfo struct {
	Email   string
	Name    string
	Picture string
}

// GetOrCreateOAuthUser resolves an OAuth identity to a profile, creating
// the profile on first sign-in.
func (s *UserService) GetOrCreateOAuthUser(ctx context.Context, provider string, info OAuthUserInfo) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, info.Email)
	if err == nil {
		if user.Disabled {
			return nil, ErrUserDisabled
		}
		if err := s.authMethodRepo.Touch(ctx, user.ID, provider, time.Now()); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return s.CreateUser(ctx, CreateUserOptions{
		Email:       info.Email,
		DisplayName: info.Name,
		Picture:     info.Picture,
		AuthMethod:  provider,
	})
}

// ResolveSession materializes a session view of the profile: it fetches the
// profile record, stamps LastLoginAt and records the method use.
func (s *UserService) ResolveSession(ctx context.Context, userID uint, method string) (*model.User, error) {
	user, err := s.userRepo.FirstByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}

	now := time.Now()
	if _, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{"last_login_at": now}); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	if method != "" {
		if err := s.authMethodRepo.Touch(ctx, userID, method, now); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) UpdateSecuritySettings(ctx context.Context, userID uint, settings model.SecuritySettings) error {
	affected, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{
		"sec_two_factor_enabled":      settings.TwoFactorEnabled,
		"sec_session_timeout_minutes": settings.SessionTimeoutMinutes,
		"sec_auto_logout":             settings.AutoLogout,
		"sec_encryption_enabled":      settings.EncryptionEnabled,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
