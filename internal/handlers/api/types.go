package api

import (
	"context"
	"io"

	"github.com/datavault/datavault/internal/auth"
	"github.com/datavault/datavault/internal/passkeys"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/internal/vault"
	"github.com/datavault/datavault/model"
	"github.com/go-webauthn/webauthn/protocol"
)

type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetAuthMethods(ctx context.Context, userID uint) ([]*model.UserAuthMethod, error)
	CreateUser(ctx context.Context, opts users.CreateUserOptions) (*model.User, error)
	Authenticate(ctx context.Context, email string, password string) (*model.User, error)
	GetOrCreateOAuthUser(ctx context.Context, provider string, info users.OAuthUserInfo) (*model.User, error)
	ResolveSession(ctx context.Context, userID uint, method string) (*model.User, error)
	UpdateSecuritySettings(ctx context.Context, userID uint, settings model.SecuritySettings) error
}

type PasskeyService interface {
	BeginRegistration(ctx context.Context, user *model.User, sub passkeys.Subject) (*protocol.CredentialCreation, string, error)
	FinishRegistration(ctx context.Context, user *model.User, stateID string, deviceLabel string, body io.Reader, sub passkeys.Subject) (*model.Credential, error)
	BeginLogin(ctx context.Context, sub passkeys.Subject) (*protocol.CredentialAssertion, string, error)
	FinishLogin(ctx context.Context, stateID string, body io.Reader, sub passkeys.Subject) (*model.User, *model.Credential, error)
	ListCredentials(ctx context.Context, userID uint) ([]*model.Credential, error)
	RemoveCredential(ctx context.Context, userID uint, credentialID uint) error
	RemoveAllCredentials(ctx context.Context, userID uint) (int64, error)
}

type VaultService interface {
	CreateCard(ctx context.Context, actor vault.Actor, input vault.CardInput) (*vault.CardView, error)
	GetCard(ctx context.Context, actor vault.Actor, id uint) (*vault.CardView, error)
	ListCards(ctx context.Context, actor vault.Actor) ([]*vault.CardView, error)
	UpdateCard(ctx context.Context, actor vault.Actor, id uint, input vault.CardInput) error
	DeleteCard(ctx context.Context, actor vault.Actor, id uint) error
	CreateContact(ctx context.Context, actor vault.Actor, input vault.ContactInput) (*vault.ContactView, error)
	GetContact(ctx context.Context, actor vault.Actor, id uint) (*vault.ContactView, error)
	ListContacts(ctx context.Context, actor vault.Actor) ([]*vault.ContactView, error)
	UpdateContact(ctx context.Context, actor vault.Actor, id uint, input vault.ContactInput) error
	DeleteContact(ctx context.Context, actor vault.Actor, id uint) error
}

type TokenIssuer interface {
	Issue(user *model.User, method string) (string, error)
	Verify(tokenStr string) (uint, *auth.TokenClaims, error)
}
