package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/domain"
	"chatrelay/pkg/store"
)

const titleRuneLimit = 50

// SendResult is the outcome of one message exchange.
type SendResult struct {
	UserMessage domain.Message `json:"userMessage"`
	AIMessage   domain.Message `json:"aiMessage"`
	Chat        domain.Chat    `json:"chat"`
}

// SendMessage appends a user message to an owned chat, calls the model
// upstream with recent history, and appends the reply. The user message is
// durable even when the upstream call fails.
func (a *App) SendMessage(ctx context.Context, user domain.User, chatID, text, modelID string) (SendResult, error) {
	chat, err := a.ownedChat(user, chatID)
	if err != nil {
		return SendResult{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrMessageTextRequired
	}
	model, err := a.registry.Resolve(modelID)
	if err != nil {
		return SendResult{}, err
	}
	if err := a.checkMessageLimit(user, chat.ID); err != nil {
		return SendResult{}, err
	}

	history, err := a.store.ListRecentMessages(chat.ID, a.historyLimit)
	if err != nil {
		return SendResult{}, fmt.Errorf("load history: %w", err)
	}

	userMessage := domain.Message{
		ID:        store.NewID(),
		ChatID:    chat.ID,
		Sender:    domain.SenderUser,
		Text:      text,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.AppendMessage(userMessage); err != nil {
		return SendResult{}, fmt.Errorf("save user message: %w", err)
	}

	chat = a.maybeRenameChat(chat, text)

	reply, err := a.generator.Generate(ctx, model, historyTurns(history), text)
	if err != nil {
		// The user message stays; only the reply is missing.
		slog.Error("ai generation failed", "chat_id", chat.ID, "model", model.ID, "error", err)
		return SendResult{}, ErrAIResponseFailed
	}

	modelUsed := model.ID
	aiMessage := domain.Message{
		ID:        store.NewID(),
		ChatID:    chat.ID,
		Sender:    domain.SenderAI,
		Model:     &modelUsed,
		Text:      reply,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.AppendMessage(aiMessage); err != nil {
		return SendResult{}, fmt.Errorf("save ai message: %w", err)
	}

	chat.UpdatedAt = a.now().UTC()
	if err := a.store.SaveChat(chat); err != nil {
		return SendResult{}, fmt.Errorf("touch chat: %w", err)
	}
	return SendResult{UserMessage: userMessage, AIMessage: aiMessage, Chat: chat}, nil
}

// maybeRenameChat sets the title from the first user message. The check is
// a live count after insert; a concurrent first message may rename twice,
// which is accepted.
func (a *App) maybeRenameChat(chat domain.Chat, text string) domain.Chat {
	count, err := a.store.CountUserMessagesByChat(chat.ID)
	if err != nil || count != 1 {
		return chat
	}
	chat.Title = deriveChatTitle(text)
	chat.UpdatedAt = a.now().UTC()
	if err := a.store.SaveChat(chat); err != nil {
		slog.Warn("chat title update failed", "chat_id", chat.ID, "error", err)
	}
	return chat
}

// deriveChatTitle truncates the first message to a display title.
func deriveChatTitle(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return defaultChatTitle
	}
	runes := []rune(text)
	if len(runes) > titleRuneLimit {
		return string(runes[:titleRuneLimit]) + "..."
	}
	return text
}

func historyTurns(messages []domain.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(messages))
	for _, msg := range messages {
		role := ai.RoleUser
		if msg.Sender == domain.SenderAI {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Text: msg.Text})
	}
	return turns
}
