package passkeys

import "errors"

var (
	ErrCeremonyFailed      = errors.New("ceremony failed")
	ErrCeremonyExpired     = errors.New("ceremony expired")
	ErrSubjectMismatch     = errors.New("ceremony subject mismatch")
	ErrDuplicateCredential = errors.New("credential already registered")
	ErrUnknownCredential   = errors.New("unknown credential")
	ErrIntegrityViolation  = errors.New("credential store integrity violation")
	ErrStoreWrite          = errors.New("credential store write failed")
	ErrCloneWarning        = errors.New("authenticator clone detected")
	ErrCredentialNotFound  = errors.New("credential not found")
)
