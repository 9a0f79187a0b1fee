package model

import (
	"time"

	"gorm.io/gorm"
)

// Auth method types recorded per user.
const (
	AuthMethodPassword  = "password"
	AuthMethodGoogle    = "google"
	AuthMethodBiometric = "biometric"
)

// SecuritySettings is embedded into User; mutated only through
// UserService.UpdateSecuritySettings and the passkey enrollment flow.
type SecuritySettings struct {
	TwoFactorEnabled      bool `gorm:"not null;default:false"`
	BiometricEnabled      bool `gorm:"not null;default:false"`
	SessionTimeoutMinutes int  `gorm:"not null;default:30"`
	AutoLogout            bool `gorm:"not null;default:false"`
	EncryptionEnabled     bool `gorm:"not null;default:true"`
}

// User stores the account profile. ID is immutable once created.
type User struct {
	ID               uint   `gorm:"primarykey"`
	Email            string `gorm:"uniqueIndex;size:256;not null"`
	DisplayName      string `gorm:"size:64;not null"`
	Password         string `gorm:"size:64;not null"` // bcrypt hash, empty for OAuth-only accounts
	Picture          string `gorm:"size:512"`
	Disabled         bool   `gorm:"default:false;not null"`
	SecuritySettings SecuritySettings `gorm:"embedded;embeddedPrefix:sec_"`
	LastLoginAt      *time.Time
	AuthMethods      []UserAuthMethod `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Credentials      []Credential     `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// UserAuthMethod tracks which sign-in methods a user has set up.
type UserAuthMethod struct {
	ID         uint   `gorm:"primarykey;autoIncrement"`
	UserID     uint   `gorm:"index:idx_user_method,unique;not null"`
	Type       string `gorm:"index:idx_user_method,unique;size:32;not null"`
	Enabled    bool   `gorm:"not null;default:true"`
	SetupAt    time.Time
	LastUsedAt *time.Time
}

func (UserAuthMethod) TableName() string {
	return "user_auth_method"
}
