package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/growagarden/gagstock-bot/internal/metrics"
)

// Command is one chat command. Execute handles its own user-facing
// errors (bad arguments, unknown categories) by replying directly; a
// returned error means something unexpected happened and the dispatcher
// takes over.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, senderID string, args []string, bc BotContext) error
}

// Dispatcher maps inbound message text to commands. Commands are
// recognized with the configured prefix stripped, or bare when the
// first token matches a known name. Matching is case-insensitive on
// the token only.
type Dispatcher struct {
	commands map[string]Command
	prefix   string
}

func NewDispatcher(prefix string) *Dispatcher {
	return &Dispatcher{
		commands: make(map[string]Command),
		prefix:   prefix,
	}
}

// Register adds a command under its lowercase name. Registration
// happens once at startup; the map is read-only afterwards.
func (d *Dispatcher) Register(cmd Command) {
	d.commands[strings.ToLower(cmd.Name())] = cmd
}

// CommandNames returns the registered names, sorted, for help output.
func (d *Dispatcher) CommandNames() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Command(name string) (Command, bool) {
	cmd, ok := d.commands[strings.ToLower(name)]
	return cmd, ok
}

// Dispatch routes one inbound message. Handler panics and errors are
// contained here: the user gets a generic apology and the webhook still
// acks the event.
func (d *Dispatcher) Dispatch(ctx context.Context, senderID, text string, bc BotContext) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	first := fields[0]
	args := fields[1:]

	var cmd Command
	var prefixed bool
	token := strings.ToLower(first)

	// A bare prefix carries no command token; let it fall through to
	// the echo reply instead of an empty "Unknown command".
	if strings.HasPrefix(first, d.prefix) && len(first) > len(d.prefix) {
		prefixed = true
		token = strings.ToLower(strings.TrimPrefix(first, d.prefix))
	}
	cmd = d.commands[token]

	switch {
	case cmd != nil:
		log.Printf("Dispatcher: executing '%s' for %s with args %v", token, senderID, args)
		metrics.CommandsDispatchedTotal.WithLabelValues(token).Inc()
		d.execute(ctx, cmd, senderID, args, bc)

	case prefixed:
		// An explicit prefix with no matching command deserves a real
		// answer, not the echo fallback.
		if _, err := bc.SendMessage(ctx, senderID, fmt.Sprintf("Unknown command: %s", token)); err != nil {
			log.Printf("Dispatcher: failed to send unknown-command reply to %s: %v", senderID, err)
		}

	default:
		if _, err := bc.SendMessage(ctx, senderID, fmt.Sprintf("You said: %s", text)); err != nil {
			log.Printf("Dispatcher: failed to send echo reply to %s: %v", senderID, err)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, senderID string, args []string, bc BotContext) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchErrorsTotal.Inc()
			log.Printf("Dispatcher: PANIC in command '%s' for %s: %v\n%s", cmd.Name(), senderID, r, debug.Stack())
			d.apologize(ctx, senderID, bc)
		}
	}()

	if err := cmd.Execute(ctx, senderID, args, bc); err != nil {
		metrics.DispatchErrorsTotal.Inc()
		log.Printf("Dispatcher: command '%s' failed for %s: %v", cmd.Name(), senderID, err)
		d.apologize(ctx, senderID, bc)
	}
}

func (d *Dispatcher) apologize(ctx context.Context, senderID string, bc BotContext) {
	if _, err := bc.SendMessage(ctx, senderID, "An error occurred while processing your request."); err != nil {
		log.Printf("Dispatcher: failed to send error reply to %s: %v", senderID, err)
	}
}
