package domain

import "time"

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

type UserRole string

const (
	RoleFree    UserRole = "free"
	RolePremium UserRole = "premium"
	RoleAdmin   UserRole = "admin"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type User struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	PasswordHash      string         `json:"-"`
	Provider          Provider       `json:"provider"`
	Role              UserRole       `json:"role"`
	SubscriptionStart *time.Time     `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *time.Time     `json:"subscriptionEnd,omitempty"`
	StripeCustomerID  string         `json:"-"`
	ProviderProfile   map[string]any `json:"-"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Sender    Sender    `json:"sender"`
	Model     *string   `json:"model"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyChatCount is one bucket of the trailing chat-creation series.
type DailyChatCount struct {
	Date  string `json:"date"`
	Chats int    `json:"chats"`
}

// ModelUsage counts assistant messages per logical model.
type ModelUsage struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// IsPremium reports whether a subscription window is currently active.
// Role alone is not enough: an expired premium subscription counts as free.
func IsPremium(role UserRole, subscriptionEnd *time.Time, now time.Time) bool {
	return role == RolePremium && subscriptionEnd != nil && now.Before(*subscriptionEnd)
}
