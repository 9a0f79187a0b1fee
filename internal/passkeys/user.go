package passkeys

import (
	"strconv"
	"strings"

	"github.com/datavault/datavault/model"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremonyUser adapts a profile plus its credential records to the
// webauthn.User interface for the duration of one ceremony.
type ceremonyUser struct {
	user  *model.User
	creds []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return userHandle(u.user.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Email
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.user.DisplayName
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

// userHandle encodes the user id as the WebAuthn user handle. The handle
// round-trips through the authenticator and comes back on discoverable
// logins.
func userHandle(userID uint) []byte {
	return []byte(strconv.FormatUint(uint64(userID), 10))
}

func toWebAuthnCredential(record *model.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              record.CredentialID,
		PublicKey:       record.PublicKey,
		AttestationType: record.AttestationType,
		Transport:       parseTransports(record.Transports),
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: record.BackupEligible,
			BackupState:    record.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    record.AAGUID,
			SignCount: record.SignCount,
		},
	}
}

func toCredentialRecord(userID uint, cred *webauthn.Credential, deviceLabel string) *model.Credential {
	return &model.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		SignCount:       cred.Authenticator.SignCount,
		AAGUID:          cred.Authenticator.AAGUID,
		AttestationType: cred.AttestationType,
		Transports:      joinTransports(cred.Transport),
		DeviceLabel:     deviceLabel,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func parseTransports(s string) []protocol.AuthenticatorTransport {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	transports := make([]protocol.AuthenticatorTransport, 0, len(parts))
	for _, part := range parts {
		transports = append(transports, protocol.AuthenticatorTransport(part))
	}
	return transports
}

func joinTransports(transports []protocol.AuthenticatorTransport) string {
	parts := make([]string, 0, len(transports))
	for _, transport := range transports {
		parts = append(parts, string(transport))
	}
	return strings.Join(parts, ",")
}
