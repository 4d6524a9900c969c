// Package bot hosts the command dispatcher and the capability surface
// handed to command handlers.
package bot

import (
	"context"
	"log"

	"github.com/growagarden/gagstock-bot/internal/config"
)

// BotContext is the read-only capability set injected into command
// handlers. Handlers depend only on this interface and never reach into
// runtime state directly; that seam is what makes them unit-testable
// without a live webhook.
type BotContext interface {
	// SendMessage sends text and returns the new message ID ("" when
	// the platform did not return one).
	SendMessage(ctx context.Context, recipientID, text string) (string, error)

	// SendAttachment sends a hosted attachment by URL.
	SendAttachment(ctx context.Context, recipientID, attachType, url string) error

	// SendTyping toggles the typing indicator.
	SendTyping(ctx context.Context, recipientID string, on bool) error

	// DeleteMessage deletes a previously sent bot message.
	DeleteMessage(ctx context.Context, messageID string) error

	// EditMessage emulates an edit: the platform has no true edit, so
	// the old message is deleted best-effort and the new text sent.
	// Returns the replacement message ID.
	EditMessage(ctx context.Context, recipientID, messageID, newText string) (string, error)

	// LastBotMessage returns the ID and recipient of the bot's most
	// recent message to this user, or "" when none is recorded.
	LastBotMessage(userID string) (messageID, recipientID string)

	Prefix() string
	Config() config.Config
	Logger() *log.Logger
}
