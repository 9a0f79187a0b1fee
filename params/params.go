package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	CeremonyKeyPrefix = "w:"

	CeremonyTimeout        = 60 * time.Second // ceremony state TTL, follows the platform prompt timeout
	AccessTokenExpiration  = 1 * time.Hour
	FailedLoginAlertWindow = 15 * time.Minute
	FailedLoginAlertCount  = 3 // failed biometric attempts within the window before an alert mail is sent
	AuditQueryDefaultLimit = 50
	AuditQueryMaxLimit     = 500
	MinMasterSecretLength  = 32
	CredentialLabelMaxLen  = 128
	DefaultSessionTimeout  = 30 // minutes, per-user security setting default
	HealthCheckServerAddr  = ":3001"
)
