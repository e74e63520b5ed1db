package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                string `gorm:"primaryKey"`
	Name              string `gorm:"not null"`
	Email             string `gorm:"uniqueIndex;not null"`
	PasswordHash      string
	Provider          string `gorm:"not null"`
	Role              string `gorm:"not null"`
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	StripeCustomerID  string
	ProviderProfile   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"not null"`
	UpdatedAt         time.Time
}

type ChatModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID        string `gorm:"primaryKey"`
	ChatID    string `gorm:"not null;index"`
	Sender    string `gorm:"not null"`
	Model     *string
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
