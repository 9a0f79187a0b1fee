package model

import (
	"time"

	"gorm.io/gorm"
)

// Credential is one registered platform authenticator bound to one user.
// CredentialID is globally unique: it is the lookup key that resolves an
// assertion back to a user, so the unique index is load-bearing.
type Credential struct {
	ID              uint   `gorm:"primarykey"`
	UserID          uint   `gorm:"index;not null"`
	CredentialID    []byte `gorm:"uniqueIndex:idx_credential_id,length:255;not null"`
	PublicKey       []byte `gorm:"not null"`
	SignCount       uint32 `gorm:"not null;default:0"` // must never decrease across logins
	AAGUID          []byte `gorm:"size:16"`
	AttestationType string `gorm:"size:64"`
	Transports      string `gorm:"size:255"` // comma separated
	DeviceLabel     string `gorm:"size:128"`
	BackupEligible  bool   `gorm:"not null;default:false"`
	BackupState     bool   `gorm:"not null;default:false"`
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

func (Credential) TableName() string {
	return "credential"
}
