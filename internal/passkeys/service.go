// Package passkeys drives the WebAuthn enrollment and verification
// ceremonies against platform authenticators. Identity on login is resolved
// from the asserted credential identifier, and the assertion signature is
// verified against the stored public key before the login is accepted.
package passkeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/datavault/datavault/internal/audit"
	"github.com/datavault/datavault/internal/common"
	"github.com/datavault/datavault/internal/store"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"github.com/go-sql-driver/mysql"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subject identifies the client performing a ceremony. Begin and finish must
// come from the same subject.
type Subject struct {
	SessionID string
	IP        string
	UserAgent string
}

// CeremonyState is the server-side half of an in-flight ceremony, kept in
// the cache store under a single-use state id with a TTL matching the
// platform prompt timeout.
type CeremonyState struct {
	UserID  uint   `redis:"user_id"`
	Subject string `redis:"subject"`
	Session []byte `redis:"session"` // marshaled webauthn session data
}

// AlertSender delivers best-effort security notifications. Implementations
// must never block; failures are the implementation's problem.
type AlertSender interface {
	PasskeyRegistered(user *model.User, cred *model.Credential)
	FailedBiometricAttempts(user *model.User, count int64)
}

type Service struct {
	wa             *webauthn.WebAuthn
	db             *gorm.DB
	masterKey      string
	stateStore     store.Store[CeremonyState]
	failStorage    store.Storage
	credRepo       CredentialRepository
	userRepo       users.UserRepository
	authMethodRepo users.AuthMethodRepository
	alerts         AlertSender
}

func NewService(
	wa *webauthn.WebAuthn,
	db *gorm.DB,
	storage store.Storage,
	credRepo CredentialRepository,
	userRepo users.UserRepository,
	authMethodRepo users.AuthMethodRepository,
	masterKey string,
	alerts AlertSender,
) *Service {
	return &Service{
		wa:             wa,
		db:             db,
		masterKey:      masterKey,
		stateStore:     store.New[CeremonyState](storage, params.CeremonyKeyPrefix),
		failStorage:    store.StorageWithPrefix(storage, "f:"),
		credRepo:       credRepo,
		userRepo:       userRepo,
		authMethodRepo: authMethodRepo,
		alerts:         alerts,
	}
}

func (s *Service) subjectHash(sub Subject) string {
	return common.CalculateHash(s.masterKey, sub.SessionID, sub.IP, sub.UserAgent)
}

func (s *Service) saveState(ctx context.Context, userID uint, sub Subject, session *webauthn.SessionData) (string, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	stateID := uuid.NewString()
	state := CeremonyState{
		UserID:  userID,
		Subject: s.subjectHash(sub),
		Session: raw,
	}
	if err := s.stateStore.Set(ctx, stateID, state, params.CeremonyTimeout); err != nil {
		return "", err
	}
	return stateID, nil
}

// takeState loads and deletes the ceremony state: state ids are single use.
func (s *Service) takeState(ctx context.Context, stateID string, sub Subject) (*webauthn.SessionData, uint, error) {
	state, err := s.stateStore.Get(ctx, stateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, ErrCeremonyExpired
	}
	if err != nil {
		return nil, 0, err
	}
	if err := s.stateStore.Delete(ctx, stateID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Failed to delete ceremony state", "state", stateID, "error", err)
	}
	if state.Subject != s.subjectHash(sub) {
		return nil, 0, ErrSubjectMismatch
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(state.Session, &session); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}
	return &session, state.UserID, nil
}

// BeginRegistration starts the credential creation ceremony for an already
// authenticated user. The library generates a fresh random challenge per
// attempt; known credentials are excluded so the same authenticator is not
// registered twice.
func (s *Service) BeginRegistration(ctx context.Context, user *model.User, sub Subject) (*protocol.CredentialCreation, string, error) {
	records, err := s.credRepo.FindByUser(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(records))
	creds := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		creds = append(creds, toWebAuthnCredential(record))
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: record.CredentialID,
		})
	}

	waUser := &ceremonyUser{user: user, creds: creds}
	creation, session, err := s.wa.BeginRegistration(waUser,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationRequired,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	stateID, err := s.saveState(ctx, user.ID, sub, session)
	if err != nil {
		return nil, "", err
	}
	return creation, stateID, nil
}

// FinishRegistration completes enrollment: it verifies the attestation
// response and persists the new credential record.
func (s *Service) FinishRegistration(ctx context.Context, user *model.User, stateID string, deviceLabel string, body io.Reader, sub Subject) (*model.Credential, error) {
	record, err := s.finishRegistration(ctx, user, stateID, deviceLabel, body, sub)
	rec := audit.Record{
		UserID:    user.ID,
		Email:     user.Email,
		Success:   err == nil,
		IP:        sub.IP,
		UserAgent: sub.UserAgent,
	}
	if err != nil {
		rec.Details = "enrollment failed: " + err.Error()
	} else {
		rec.Details = "passkey enrolled: " + record.DeviceLabel
	}
	audit.LogBiometricAuth(ctx, rec)

	if err == nil && s.alerts != nil {
		s.alerts.PasskeyRegistered(user, record)
	}
	return record, err
}

func (s *Service) finishRegistration(ctx context.Context, user *model.User, stateID string, deviceLabel string, body io.Reader, sub Subject) (*model.Credential, error) {
	session, stateUserID, err := s.takeState(ctx, stateID, sub)
	if err != nil {
		return nil, err
	}
	if stateUserID != user.ID {
		return nil, ErrSubjectMismatch
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	cred, err := s.wa.CreateCredential(&ceremonyUser{user: user}, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	if len(deviceLabel) > params.CredentialLabelMaxLen {
		deviceLabel = deviceLabel[:params.CredentialLabelMaxLen]
	}
	record := toCredentialRecord(user.ID, cred, deviceLabel)
	if err := s.persistCredential(ctx, user, record); err != nil {
		return nil, err
	}
	return record, nil
}

// persistCredential stores the enrolled credential. The credential insert,
// the biometricEnabled flag flip and the auth-method row share one
// transaction so the flag cannot drift from the credential table.
func (s *Service) persistCredential(ctx context.Context, user *model.User, record *model.Credential) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.credRepo.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		if _, err := s.userRepo.WithTx(tx).Updates(ctx, user.ID, map[string]interface{}{"sec_biometric_enabled": true}); err != nil {
			return err
		}
		return s.authMethodRepo.WithTx(tx).Touch(ctx, user.ID, model.AuthMethodBiometric, time.Now())
	})
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicateCredential
		}
		// The authenticator already minted the key pair; without a stored
		// record it can never authenticate and cannot be rolled back.
		slog.Error("Enrollment persisted nothing, platform credential is orphaned",
			"user", user.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	user.SecuritySettings.BiometricEnabled = true
	return nil
}

// BeginLogin starts a discoverable (usernameless) assertion ceremony: no
// credential allowlist is sent, any platform credential for this relying
// party may answer, and identity is resolved from the asserted credential
// id on finish.
func (s *Service) BeginLogin(ctx context.Context, sub Subject) (*protocol.CredentialAssertion, string, error) {
	assertion, session, err := s.wa.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}
	stateID, err := s.saveState(ctx, 0, sub, session)
	if err != nil {
		return nil, "", err
	}
	return assertion, stateID, nil
}

// FinishLogin completes verification. The library verifies the assertion
// signature against the stored public key and flags sign-counter
// regressions; a regression fails the login.
func (s *Service) FinishLogin(ctx context.Context, stateID string, body io.Reader, sub Subject) (*model.User, *model.Credential, error) {
	user, record, err := s.finishLogin(ctx, stateID, body, sub)

	rec := audit.Record{
		Success:   err == nil,
		IP:        sub.IP,
		UserAgent: sub.UserAgent,
	}
	if user != nil {
		rec.UserID = user.ID
		rec.Email = user.Email
	}
	if err != nil {
		rec.Details = "verification failed: " + err.Error()
	}
	audit.LogBiometricAuth(ctx, rec)

	if err != nil && user != nil {
		s.noteFailedAttempt(ctx, user)
	}
	return user, record, err
}

func (s *Service) finishLogin(ctx context.Context, stateID string, body io.Reader, sub Subject) (*model.User, *model.Credential, error) {
	session, _, err := s.takeState(ctx, stateID, sub)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	// The library wraps handler errors, so the resolved state and the
	// resolution error are captured here to keep the error taxonomy intact.
	var (
		matchedRecord *model.Credential
		matchedUser   *model.User
		resolveErr    error
	)
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		user, record, err := s.resolveCredential(ctx, rawID)
		if err != nil {
			resolveErr = err
			return nil, err
		}
		matchedRecord = record
		matchedUser = user
		return &ceremonyUser{user: user, creds: []webauthn.Credential{toWebAuthnCredential(record)}}, nil
	}

	cred, err := s.wa.ValidateDiscoverableLogin(handler, *session, parsed)
	if err != nil {
		if resolveErr != nil {
			return matchedUser, nil, resolveErr
		}
		return matchedUser, nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	if cred.Authenticator.CloneWarning {
		slog.Error("Sign counter regression, possible cloned authenticator",
			"user", matchedUser.ID, "credential", matchedRecord.ID)
		return matchedUser, nil, ErrCloneWarning
	}

	// Counter and last-used update is best effort; a failed bookkeeping
	// write does not fail an otherwise valid authentication.
	if err := s.credRepo.UpdateCounter(ctx, matchedRecord.ID, cred.Authenticator.SignCount, time.Now()); err != nil {
		slog.Warn("Failed to update credential counter", "credential", matchedRecord.ID, "error", err)
	} else {
		matchedRecord.SignCount = cred.Authenticator.SignCount
	}
	return matchedUser, matchedRecord, nil
}

// resolveCredential maps an asserted credential id to its owner. A stored
// credential id belongs to exactly one user; more than one match means the
// store integrity is broken and the login is refused.
func (s *Service) resolveCredential(ctx context.Context, rawID []byte) (*model.User, *model.Credential, error) {
	records, err := s.credRepo.FindByCredentialID(ctx, rawID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case len(records) == 0:
		// Do not leak whether the identifier was even well formed.
		return nil, nil, ErrUnknownCredential
	case len(records) > 1:
		return nil, nil, ErrIntegrityViolation
	}
	record := records[0]

	user, err := s.userRepo.FirstByID(ctx, record.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrUnknownCredential
	}
	if err != nil {
		return nil, nil, err
	}
	if user.Disabled {
		return nil, nil, users.ErrUserDisabled
	}
	return user, record, nil
}

func (s *Service) noteFailedAttempt(ctx context.Context, user *model.User) {
	key := strconv.FormatUint(uint64(user.ID), 10)
	count, err := s.failStorage.IncrAttr(ctx, key, "count", 1)
	if err != nil {
		return
	}
	if count == 1 {
		if err := s.failStorage.Expire(ctx, key, time.Now().Add(params.FailedLoginAlertWindow)); err != nil {
			slog.Warn("Failed to expire fail counter", "user", user.ID, "error", err)
		}
	}
	if count == params.FailedLoginAlertCount && s.alerts != nil {
		s.alerts.FailedBiometricAttempts(user, count)
	}
}

func (s *Service) ListCredentials(ctx context.Context, userID uint) ([]*model.Credential, error) {
	return s.credRepo.FindByUser(ctx, userID)
}

// RemoveCredential deletes one credential; when the last one goes, the
// biometricEnabled flag is cleared in the same transaction.
func (s *Service) RemoveCredential(ctx context.Context, userID uint, credentialID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		credRepo := s.credRepo.WithTx(tx)
		deleted, err := credRepo.Delete(ctx, userID, credentialID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrCredentialNotFound
		}
		remaining, err := credRepo.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.disableBiometric(ctx, tx, userID)
		}
		return nil
	})
}

// RemoveAllCredentials is the "remove all authenticators" bulk action.
func (s *Service) RemoveAllCredentials(ctx context.Context, userID uint) (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.credRepo.WithTx(tx).DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		return s.disableBiometric(ctx, tx, userID)
	})
	return deleted, err
}

func (s *Service) disableBiometric(ctx context.Context, tx *gorm.DB, userID uint) error {
	if _, err := s.userRepo.WithTx(tx).Updates(ctx, userID, map[string]interface{}{"sec_biometric_enabled": false}); err != nil {
		return err
	}
	return s.authMethodRepo.WithTx(tx).SetEnabled(ctx, userID, model.AuthMethodBiometric, false)
}
