package store

import (
	"time"

	"chatrelay/pkg/domain"
)

// Store defines persistence operations for users, chats, and messages.
// Counts used by the plan-limit gate are computed live on every call;
// nothing here caches counters.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers(offset, limit int) ([]domain.User, error)
	UserCount() (int, error)
	UserCountsByRole() (map[domain.UserRole]int, error)
	DeleteUser(id string) error

	// chats
	SaveChat(domain.Chat) error
	GetChat(id string) (domain.Chat, bool, error)
	ListChatsByOwner(userID string) ([]domain.Chat, error)
	DeleteChat(id string) error
	ChatCount() (int, error)
	CountChatsByOwner(userID string) (int, error)
	ChatsCreatedPerDay(since time.Time) ([]domain.DailyChatCount, error)

	// messages
	AppendMessage(domain.Message) error
	ListMessages(chatID string) ([]domain.Message, error)
	ListRecentMessages(chatID string, limit int) ([]domain.Message, error)
	LatestMessage(chatID string) (domain.Message, bool, error)
	MessageCount() (int, error)
	CountMessagesByChat(chatID string) (int, error)
	CountUserMessagesByChat(chatID string) (int, error)
	ModelUsage() ([]domain.ModelUsage, error)
}

// SessionStore issues and validates bearer session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
