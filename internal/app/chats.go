package app

import (
	"fmt"
	"strings"

	"chatrelay/pkg/domain"
	"chatrelay/pkg/store"
)

const defaultChatTitle = "New Chat"

// ChatSummary is a chat plus its latest message for list views.
type ChatSummary struct {
	domain.Chat
	LatestMessage *domain.Message `json:"latestMessage,omitempty"`
}

// ChatWithMessages is a chat plus its full message history.
type ChatWithMessages struct {
	domain.Chat
	Messages []domain.Message `json:"messages"`
}

// CreateChat creates an empty chat for the user, subject to the plan gate.
func (a *App) CreateChat(user domain.User, title string) (domain.Chat, error) {
	if err := a.checkChatLimit(user); err != nil {
		return domain.Chat{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultChatTitle
	}
	now := a.now().UTC()
	chat := domain.Chat{
		ID:        store.NewID(),
		UserID:    user.ID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveChat(chat); err != nil {
		return domain.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// ListChats returns the user's chats, newest-updated first, each with its
// latest message.
func (a *App) ListChats(user domain.User) ([]ChatSummary, error) {
	chats, err := a.store.ListChatsByOwner(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := ChatSummary{Chat: chat}
		latest, ok, err := a.store.LatestMessage(chat.ID)
		if err != nil {
			return nil, fmt.Errorf("latest message: %w", err)
		}
		if ok {
			summary.LatestMessage = &latest
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetChat returns one owned chat with its messages in chronological order.
// A chat owned by someone else reads as not found.
func (a *App) GetChat(user domain.User, chatID string) (ChatWithMessages, error) {
	chat, err := a.ownedChat(user, chatID)
	if err != nil {
		return ChatWithMessages{}, err
	}
	messages, err := a.store.ListMessages(chat.ID)
	if err != nil {
		return ChatWithMessages{}, fmt.Errorf("list messages: %w", err)
	}
	return ChatWithMessages{Chat: chat, Messages: messages}, nil
}

// DeleteChat removes an owned chat and its messages.
func (a *App) DeleteChat(user domain.User, chatID string) error {
	chat, err := a.ownedChat(user, chatID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteChat(chat.ID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (a *App) ownedChat(user domain.User, chatID string) (domain.Chat, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.Chat{}, ErrChatNotFound
	}
	chat, ok, err := a.store.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("load chat: %w", err)
	}
	if !ok || chat.UserID != user.ID {
		return domain.Chat{}, ErrChatNotFound
	}
	return chat, nil
}
