package commands

import (
	"context"
	"fmt"
	"strings"
)

// Delete removes the bot's last message to the sender.
type Delete struct{}

func (Delete) Name() string        { return "delete" }
func (Delete) Description() string { return "Delete the bot's last message" }

func (Delete) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	messageID, recipientID := bc.LastBotMessage(senderID)
	if messageID == "" || recipientID != senderID {
		return reply(ctx, bc, senderID, "There's no recent bot message stored to delete.")
	}

	if err := bc.DeleteMessage(ctx, messageID); err != nil {
		bc.Logger().Printf("Delete command: failed to delete %s: %v", messageID, err)
		return reply(ctx, bc, senderID, "Could not delete the bot's last message.")
	}

	tail := messageID
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	return reply(ctx, bc, senderID, fmt.Sprintf("Bot's last message (ID: ...%s) deleted.", tail))
}

// Edit replaces the bot's last message to the sender with new text
// (send-as-edit emulation; the platform has no true edit).
type Edit struct{}

func (Edit) Name() string        { return "edit" }
func (Edit) Description() string { return "Replace the bot's last message" }

func (Edit) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, fmt.Sprintf("Usage: %sedit <new message text>", bc.Prefix()))
	}

	messageID, recipientID := bc.LastBotMessage(senderID)
	if messageID == "" {
		return reply(ctx, bc, senderID, "There's no recent message from me to you to edit.")
	}
	if recipientID != senderID {
		return reply(ctx, bc, senderID, "Cannot edit the last message as it wasn't sent to you in this context.")
	}

	newText := strings.Join(args, " ")
	if _, err := bc.EditMessage(ctx, senderID, messageID, newText); err != nil {
		bc.Logger().Printf("Edit command: failed to edit %s: %v", messageID, err)
		return reply(ctx, bc, senderID, "Could not update the previous message.")
	}
	return nil
}
