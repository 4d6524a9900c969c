package bot

import (
	"context"
	"log"
	"sort"
	"strings"
)

// PostbackHandler processes one button-click payload.
type PostbackHandler func(ctx context.Context, senderID, payload string, bc BotContext)

// PostbackRouter routes postback payloads by longest matching prefix.
// Handlers are registered once at startup.
type PostbackRouter struct {
	handlers map[string]PostbackHandler
}

func NewPostbackRouter() *PostbackRouter {
	return &PostbackRouter{
		handlers: make(map[string]PostbackHandler),
	}
}

func (p *PostbackRouter) Register(prefix string, handler PostbackHandler) {
	p.handlers[prefix] = handler
}

// Route dispatches a payload, replying with a fallback when no handler
// claims it.
func (p *PostbackRouter) Route(ctx context.Context, senderID, payload string, bc BotContext) {
	prefixes := make([]string, 0, len(p.handlers))
	for prefix := range p.handlers {
		prefixes = append(prefixes, prefix)
	}
	// Longest prefix wins so "gagstock_refresh_" beats "gagstock_"
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		if strings.HasPrefix(payload, prefix) {
			p.handlers[prefix](ctx, senderID, payload, bc)
			return
		}
	}

	log.Printf("Postback router: unknown payload %q from %s", payload, senderID)
	if _, err := bc.SendMessage(ctx, senderID, "⚠️ Unknown action. Please try again."); err != nil {
		log.Printf("Postback router: failed to reply to %s: %v", senderID, err)
	}
}
