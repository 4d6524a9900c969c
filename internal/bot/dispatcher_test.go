package bot

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"

	"github.com/growagarden/gagstock-bot/internal/config"
)

type fakeBotContext struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeBotContext) SendMessage(ctx context.Context, recipientID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return "mid.1", nil
}

func (f *fakeBotContext) SendAttachment(ctx context.Context, recipientID, attachType, url string) error {
	return nil
}

func (f *fakeBotContext) SendTyping(ctx context.Context, recipientID string, on bool) error {
	return nil
}

func (f *fakeBotContext) DeleteMessage(ctx context.Context, messageID string) error { return nil }

func (f *fakeBotContext) EditMessage(ctx context.Context, recipientID, messageID, newText string) (string, error) {
	return "mid.2", nil
}

func (f *fakeBotContext) LastBotMessage(userID string) (string, string) { return "", "" }

func (f *fakeBotContext) Prefix() string        { return "!" }
func (f *fakeBotContext) Config() config.Config { return config.Config{} }
func (f *fakeBotContext) Logger() *log.Logger   { return log.Default() }

func (f *fakeBotContext) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type stubCommand struct {
	name string
	fn   func(ctx context.Context, senderID string, args []string, bc BotContext) error
}

func (s stubCommand) Name() string        { return s.name }
func (s stubCommand) Description() string { return "stub" }
func (s stubCommand) Execute(ctx context.Context, senderID string, args []string, bc BotContext) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, senderID, args, bc)
}

func TestDispatchRouting(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		executed bool
		reply    string
	}{
		{"prefixed command", "!ping", true, ""},
		{"bare command", "ping", true, ""},
		{"case insensitive token", "!PING", true, ""},
		{"prefixed with args", "!ping a b", true, ""},
		{"unknown prefixed command", "!nope", false, "Unknown command: nope"},
		{"plain text echoes", "hello there", false, "You said: hello there"},
		{"bare prefix echoes", "!", false, "You said: !"},
		{"bare prefix with args echoes", "! ping", false, "You said: ! ping"},
		{"whitespace only is ignored", "   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executed := false
			d := NewDispatcher("!")
			d.Register(stubCommand{name: "ping", fn: func(ctx context.Context, senderID string, args []string, bc BotContext) error {
				executed = true
				return nil
			}})

			bc := &fakeBotContext{}
			d.Dispatch(context.Background(), "u1", tt.text, bc)

			if executed != tt.executed {
				t.Errorf("executed = %v, want %v", executed, tt.executed)
			}

			msgs := bc.messages()
			if tt.reply == "" {
				if !tt.executed && len(msgs) != 0 {
					t.Errorf("unexpected replies: %v", msgs)
				}
				return
			}
			if len(msgs) != 1 || msgs[0] != tt.reply {
				t.Errorf("replies = %v, want [%q]", msgs, tt.reply)
			}
		})
	}
}

func TestDispatchArgsArePassedThrough(t *testing.T) {
	var got []string
	d := NewDispatcher("!")
	d.Register(stubCommand{name: "echo", fn: func(ctx context.Context, senderID string, args []string, bc BotContext) error {
		got = append([]string(nil), args...)
		return nil
	}})

	d.Dispatch(context.Background(), "u1", "!echo one  two   three", &fakeBotContext{})

	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("args = %v", got)
	}
}

func TestDispatchContainsCommandError(t *testing.T) {
	d := NewDispatcher("!")
	d.Register(stubCommand{name: "boom", fn: func(ctx context.Context, senderID string, args []string, bc BotContext) error {
		return errors.New("handler failure")
	}})

	bc := &fakeBotContext{}
	d.Dispatch(context.Background(), "u1", "!boom", bc)

	msgs := bc.messages()
	if len(msgs) != 1 || msgs[0] != "An error occurred while processing your request." {
		t.Errorf("expected apology reply, got %v", msgs)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	d := NewDispatcher("!")
	d.Register(stubCommand{name: "panic", fn: func(ctx context.Context, senderID string, args []string, bc BotContext) error {
		panic("boom")
	}})

	bc := &fakeBotContext{}
	d.Dispatch(context.Background(), "u1", "!panic", bc) // must not propagate

	msgs := bc.messages()
	if len(msgs) != 1 || msgs[0] != "An error occurred while processing your request." {
		t.Errorf("expected apology reply after panic, got %v", msgs)
	}
}

func TestCommandNamesSorted(t *testing.T) {
	d := NewDispatcher("!")
	d.Register(stubCommand{name: "zeta"})
	d.Register(stubCommand{name: "Alpha"})
	d.Register(stubCommand{name: "mid"})

	names := d.CommandNames()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestPostbackRouterLongestPrefixWins(t *testing.T) {
	var routed string
	r := NewPostbackRouter()
	r.Register("gagstock_", func(ctx context.Context, senderID, payload string, bc BotContext) {
		routed = "short"
	})
	r.Register("gagstock_refresh_", func(ctx context.Context, senderID, payload string, bc BotContext) {
		routed = "long"
	})

	r.Route(context.Background(), "u1", "gagstock_refresh_u1", &fakeBotContext{})
	if routed != "long" {
		t.Errorf("routed = %q, want long", routed)
	}
}

func TestPostbackRouterUnknownPayload(t *testing.T) {
	r := NewPostbackRouter()
	bc := &fakeBotContext{}
	r.Route(context.Background(), "u1", "mystery_payload", bc)

	msgs := bc.messages()
	if len(msgs) != 1 || msgs[0] != "⚠️ Unknown action. Please try again." {
		t.Errorf("expected unknown-action reply, got %v", msgs)
	}
}
