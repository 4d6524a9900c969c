package commands

import (
	"context"
	"fmt"
	"strings"
)

// Echo repeats the user's message back.
type Echo struct{}

func (Echo) Name() string        { return "echo" }
func (Echo) Description() string { return "Repeat a message back" }

func (Echo) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID,
			fmt.Sprintf("Usage: %secho [message] or echo [message]", bc.Prefix()))
	}
	return reply(ctx, bc, senderID, strings.Join(args, " "))
}

// Hello greets the user.
type Hello struct{}

func (Hello) Name() string        { return "hello" }
func (Hello) Description() string { return "Say hello" }

func (Hello) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) > 0 {
		return reply(ctx, bc, senderID, fmt.Sprintf("Hello, %s! Nice to meet you.", strings.Join(args, " ")))
	}
	return reply(ctx, bc, senderID, "Hello there! How can I help you today?")
}

// Help lists the registered commands.
type Help struct {
	names func() []string
}

// NewHelp takes a name source rather than the dispatcher itself to
// avoid an import cycle between registration and listing.
func NewHelp(names func() []string) *Help {
	return &Help{names: names}
}

func (*Help) Name() string        { return "help" }
func (*Help) Description() string { return "List available commands" }

func (h *Help) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	names := h.names()
	if len(names) == 0 {
		return reply(ctx, bc, senderID, "No commands are available.")
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	fmt.Fprintf(&b, "You can use commands with the prefix '%s' (e.g., %shelp) or without a prefix (e.g., help).\n\n",
		bc.Prefix(), bc.Prefix())
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return reply(ctx, bc, senderID, b.String())
}
