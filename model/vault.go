package model

import (
	"time"

	"gorm.io/gorm"
)

// CreditCard is a vault record. Number and CVV hold field-cipher output,
// never plaintext.
type CreditCard struct {
	ID          uint   `gorm:"primarykey"`
	UserID      uint   `gorm:"index;not null"`
	Label       string `gorm:"size:128;not null"`
	CardHolder  string `gorm:"size:128"`
	Brand       string `gorm:"size:32"`
	Number      string `gorm:"size:512;not null"` // encrypted
	ExpiryMonth int    `gorm:"not null"`
	ExpiryYear  int    `gorm:"not null"`
	CVV         string `gorm:"size:512"` // encrypted
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (c *CreditCard) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

func (CreditCard) TableName() string {
	return "credit_card"
}

// Contact is a professional contact vault record. Email, Phone and Notes
// hold field-cipher output.
type Contact struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"index;not null"`
	FullName  string `gorm:"size:128;not null"`
	Company   string `gorm:"size:128"`
	Title     string `gorm:"size:128"`
	Email     string `gorm:"size:512"` // encrypted
	Phone     string `gorm:"size:512"` // encrypted
	Notes     string `gorm:"size:2048"` // encrypted
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

func (Contact) TableName() string {
	return "contact"
}
