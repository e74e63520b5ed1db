package store

import (
	"sort"
	"sync"
	"time"

	"chatrelay/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and local
// development; ordering semantics mirror GormStore.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	chats    map[string]domain.Chat
	messages map[string][]domain.Message // chat ID -> messages in insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		chats:    make(map[string]domain.Chat),
		messages: make(map[string][]domain.Message),
	}
}

// SaveUser stores or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns a page of users, newest first.
func (m *MemoryStore) ListUsers(offset, limit int) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []domain.User{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// UserCountsByRole groups users by role.
func (m *MemoryStore) UserCountsByRole() (map[domain.UserRole]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[domain.UserRole]int)
	for _, u := range m.users {
		res[u.Role]++
	}
	return res, nil
}

// DeleteUser removes a user with their chats and messages.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	for chatID, chat := range m.chats {
		if chat.UserID == id {
			delete(m.chats, chatID)
			delete(m.messages, chatID)
		}
	}
	delete(m.email, u.Email)
	delete(m.users, id)
	return nil
}

// SaveChat stores or replaces a chat record.
func (m *MemoryStore) SaveChat(c domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[c.ID] = c
	return nil
}

// GetChat retrieves a chat by ID.
func (m *MemoryStore) GetChat(id string) (domain.Chat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	return c, ok, nil
}

// ListChatsByOwner returns a user's chats, most recently updated first.
func (m *MemoryStore) ListChatsByOwner(userID string) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Chat, 0)
	for _, c := range m.chats {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// DeleteChat removes a chat and its messages.
func (m *MemoryStore) DeleteChat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, id)
	delete(m.messages, id)
	return nil
}

// ChatCount returns total chats.
func (m *MemoryStore) ChatCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats), nil
}

// CountChatsByOwner returns the live chat count for the plan-limit gate.
func (m *MemoryStore) CountChatsByOwner(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.chats {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ChatsCreatedPerDay buckets chat creation by calendar day since the cutoff.
func (m *MemoryStore) ChatsCreatedPerDay(since time.Time) ([]domain.DailyChatCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := make(map[string]int)
	for _, c := range m.chats {
		if c.CreatedAt.Before(since) {
			continue
		}
		buckets[c.CreatedAt.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)
	res := make([]domain.DailyChatCount, 0, len(days))
	for _, day := range days {
		res = append(res, domain.DailyChatCount{Date: day, Chats: buckets[day]})
	}
	return res, nil
}

// AppendMessage records a message.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}

// ListMessages returns the full transcript of a chat in chronological order.
func (m *MemoryStore) ListMessages(chatID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[chatID]
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

// ListRecentMessages returns the most recent messages in chronological order.
func (m *MemoryStore) ListRecentMessages(chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

// LatestMessage returns the newest message of a chat.
func (m *MemoryStore) LatestMessage(chatID string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[chatID]
	if len(msgs) == 0 {
		return domain.Message{}, false, nil
	}
	return msgs[len(msgs)-1], true, nil
}

// MessageCount returns total messages.
func (m *MemoryStore) MessageCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, msgs := range m.messages {
		count += len(msgs)
	}
	return count, nil
}

// CountMessagesByChat returns the live message count for the plan-limit gate.
func (m *MemoryStore) CountMessagesByChat(chatID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[chatID]), nil
}

// CountUserMessagesByChat counts user-sender messages in a chat.
func (m *MemoryStore) CountUserMessagesByChat(chatID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, msg := range m.messages[chatID] {
		if msg.Sender == domain.SenderUser {
			count++
		}
	}
	return count, nil
}

// ModelUsage groups assistant messages by logical model, nil model excluded.
func (m *MemoryStore) ModelUsage() ([]domain.ModelUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.Sender == domain.SenderAI && msg.Model != nil {
				counts[*msg.Model]++
			}
		}
	}
	res := make([]domain.ModelUsage, 0, len(counts))
	for model, count := range counts {
		res = append(res, domain.ModelUsage{Model: model, Count: count})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Model < res[j].Model
	})
	return res, nil
}
