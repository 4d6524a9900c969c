package commands

import (
	"context"
	"log"

	"github.com/growagarden/gagstock-bot/internal/bot"
	"github.com/growagarden/gagstock-bot/internal/session"
)

// PostbackEngine is the engine surface the button handlers drive.
type PostbackEngine interface {
	Refresh(ctx context.Context, userID string, mode session.Mode) error
	Stop(userID string, mode session.Mode) bool
	Active(userID string, mode session.Mode) bool
}

// RegisterPostbacks wires the gagstock button payloads into the router.
func RegisterPostbacks(router *bot.PostbackRouter, engine PostbackEngine) {
	router.Register("gagstock_refresh_", func(ctx context.Context, senderID, payload string, bc bot.BotContext) {
		mode := session.ModeFull
		if !engine.Active(senderID, mode) {
			mode = session.ModeFavorites
		}
		if !engine.Active(senderID, mode) {
			if _, err := bc.SendMessage(ctx, senderID, "⚠️ You don't have an active gagstock session."); err != nil {
				log.Printf("Postback: reply failed for %s: %v", senderID, err)
			}
			return
		}
		if err := engine.Refresh(ctx, senderID, mode); err != nil {
			log.Printf("Postback: refresh failed for %s: %v", senderID, err)
		}
	})

	router.Register("gagstock_stop_", func(ctx context.Context, senderID, payload string, bc bot.BotContext) {
		stopped := engine.Stop(senderID, session.ModeFull)
		stopped = engine.Stop(senderID, session.ModeFavorites) || stopped
		if stopped {
			if _, err := bc.SendMessage(ctx, senderID, "🛑 Gagstock tracking stopped."); err != nil {
				log.Printf("Postback: reply failed for %s: %v", senderID, err)
			}
			return
		}
		if _, err := bc.SendMessage(ctx, senderID, "⚠️ You don't have an active gagstock session."); err != nil {
			log.Printf("Postback: reply failed for %s: %v", senderID, err)
		}
	})
}
