package app

import (
	"fmt"
	"strings"

	"chatrelay/pkg/domain"
)

// Export formats. PDF is accepted but rendered as plain text; real PDF
// output never shipped and clients rely on the fallback.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
)

// ErrUnknownExportFormat rejects formats outside the supported set.
var ErrUnknownExportFormat = fmt.Errorf("unknown export format")

// Export is a rendered chat transcript ready to send as an attachment.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportChat renders an owned chat's transcript in the requested format.
func (a *App) ExportChat(user domain.User, chatID, format string) (Export, error) {
	if format == "" {
		format = FormatText
	}
	switch format {
	case FormatText, FormatMarkdown, FormatPDF:
	default:
		return Export{}, fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
	chat, err := a.ownedChat(user, chatID)
	if err != nil {
		return Export{}, err
	}
	messages, err := a.store.ListMessages(chat.ID)
	if err != nil {
		return Export{}, fmt.Errorf("list messages: %w", err)
	}
	if format == FormatMarkdown {
		return Export{
			Filename:    exportFilename(chat.Title, "md"),
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(renderMarkdown(chat, messages)),
		}, nil
	}
	return Export{
		Filename:    exportFilename(chat.Title, "txt"),
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(renderText(chat, messages)),
	}, nil
}

func renderText(chat domain.Chat, messages []domain.Message) string {
	var sb strings.Builder
	sb.WriteString(chat.Title + "\n")
	sb.WriteString("Exported " + chat.UpdatedAt.Format("2006-01-02 15:04") + "\n\n")
	for _, msg := range messages {
		sb.WriteString(senderLabel(msg))
		sb.WriteString(": ")
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func renderMarkdown(chat domain.Chat, messages []domain.Message) string {
	var sb strings.Builder
	sb.WriteString("# " + chat.Title + "\n\n")
	for _, msg := range messages {
		sb.WriteString("**" + senderLabel(msg) + "** _" + msg.CreatedAt.Format("2006-01-02 15:04") + "_\n\n")
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

func senderLabel(msg domain.Message) string {
	if msg.Sender == domain.SenderAI {
		if msg.Model != nil && *msg.Model != "" {
			return "AI (" + *msg.Model + ")"
		}
		return "AI"
	}
	return "You"
}

// exportFilename derives a safe attachment name from the chat title.
func exportFilename(title, ext string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	name := strings.Trim(sb.String(), "-")
	if name == "" {
		name = "chat"
	}
	const maxLen = 60
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name + "." + ext
}
