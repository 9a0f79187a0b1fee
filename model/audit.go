package model

import "time"

// Audit actions
const (
	AuditActionLogin         = "login"
	AuditActionLogout        = "logout"
	AuditActionBiometricAuth = "biometric_auth"
	AuditActionDataAccess    = "data_access"
	AuditActionDataCreate    = "data_create"
	AuditActionDataUpdate    = "data_update"
	AuditActionDataDelete    = "data_delete"
)

// Audit methods
const (
	AuditMethodEmail     = "email"
	AuditMethodGoogle    = "google"
	AuditMethodBiometric = "biometric"
	AuditMethodManual    = "manual"
)

// AuditMethodOf maps a sign-in method to its audit method label.
func AuditMethodOf(authMethod string) string {
	if authMethod == AuthMethodPassword {
		return AuditMethodEmail
	}
	return authMethod
}

// AuditEvent is append-only: no update or delete path exists anywhere in
// the application, only the query side filters.
type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"index;not null"`
	Email     string    `gorm:"size:256;index"`    // snapshot of user email at event time
	Action    string    `gorm:"size:32;not null;index"`
	Method    string    `gorm:"size:32;index"`
	Success   bool      `gorm:"not null"`
	IP        string    `gorm:"size:45"`  // IPv4/IPv6
	UserAgent string    `gorm:"size:512"`
	Details   string    `gorm:"size:512"` // failure reason or context
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
