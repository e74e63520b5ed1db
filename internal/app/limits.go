package app

import (
	"fmt"

	"chatrelay/pkg/domain"
)

// checkChatLimit enforces the free-plan cap on owned chats. Premium users
// pass unconditionally; everyone else, admins included, is gated on a live
// count.
func (a *App) checkChatLimit(user domain.User) error {
	if a.IsPremium(user) {
		return nil
	}
	current, err := a.store.CountChatsByOwner(user.ID)
	if err != nil {
		return fmt.Errorf("count chats: %w", err)
	}
	if current >= a.freeChatLimit {
		return &LimitError{Kind: LimitChats, Limit: a.freeChatLimit, Current: current}
	}
	return nil
}

// checkMessageLimit enforces the free-plan cap on messages per chat.
// Assistant replies count toward the cap, same as user messages.
func (a *App) checkMessageLimit(user domain.User, chatID string) error {
	if a.IsPremium(user) {
		return nil
	}
	current, err := a.store.CountMessagesByChat(chatID)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if current >= a.freeMessageLimit {
		return &LimitError{Kind: LimitMessages, Limit: a.freeMessageLimit, Current: current}
	}
	return nil
}
