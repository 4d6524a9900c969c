package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/growagarden/gagstock-bot/internal/models"
	"github.com/growagarden/gagstock-bot/internal/session"
)

// Gagstockfav runs the favorites-only tracking session, independent
// from the full 'gagstock on/off' session.
type Gagstockfav struct {
	engine Engine
	store  TrackerStore
}

func NewGagstockfav(engine Engine, trackerStore TrackerStore) *Gagstockfav {
	return &Gagstockfav{
		engine: engine,
		store:  trackerStore,
	}
}

func (g *Gagstockfav) Name() string { return "gagstockfav" }

func (g *Gagstockfav) Description() string {
	return "Track only your favorite items"
}

func (g *Gagstockfav) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, g.usage())
	}

	switch strings.ToLower(args[0]) {
	case "on":
		return g.start(ctx, senderID, bc)
	case "off":
		return g.stop(ctx, senderID, bc)
	default:
		return reply(ctx, bc, senderID,
			"❌ Unknown gagstockfav command.\n"+
				"💡 Use 'gagstockfav on' or 'gagstockfav off'\n"+
				"💡 Use 'gagstockfav' without arguments for help")
	}
}

func (g *Gagstockfav) usage() string {
	return "📌 Gagstockfav Commands:\n\n" +
		"⭐ Favorites Tracking:\n" +
		"• 'gagstockfav on' - Start tracking only your favorite items\n" +
		"• 'gagstockfav off' - Stop favorites tracking\n\n" +
		"💡 This tracks only items from your favorites list and notifies\n" +
		"when they appear in stock. Independent from 'gagstock on/off'.\n\n" +
		"🔔 First add items to favorites:\n" +
		"• 'gagstock add category/item_name'\n" +
		"• 'gagstock list' to see your favorites\n\n" +
		fmt.Sprintf("📋 Categories: %s\n", strings.Join(models.Categories(), ", ")) +
		"🔍 Example: 'gagstock add gear/ancient_shovel'"
}

func (g *Gagstockfav) start(ctx context.Context, senderID string, bc BotCtx) error {
	tracked, err := g.store.TrackedItems(senderID)
	if err != nil {
		return err
	}
	if len(tracked) == 0 {
		return reply(ctx, bc, senderID,
			"⚠️ You need to add some favorite items first!\n\n"+
				"💡 Use 'gagstock add category/item_name' to add items.\n"+
				fmt.Sprintf("📋 Categories: %s\n\n", strings.Join(models.Categories(), ", "))+
				"Then use 'gagstockfav on' to track only those items.")
	}

	if g.engine.Active(senderID, session.ModeFavorites) {
		return reply(ctx, bc, senderID,
			"📡 Gagstockfav is already running!\n💡 Use 'gagstockfav off' to stop first.")
	}

	preview := make([]string, 0, 3)
	for i, item := range tracked {
		if i == 3 {
			break
		}
		preview = append(preview, item.Category+"/"+item.ItemName)
	}
	ellipsis := ""
	if len(tracked) > 3 {
		ellipsis = "..."
	}

	if err := reply(ctx, bc, senderID, fmt.Sprintf(
		"⭐ Gagstockfav started! Tracking %d favorite items.\n"+
			"🔔 You'll be notified only when your favorite items are in stock.\n\n"+
			"📋 Tracking: %s%s\n\n"+
			"💡 Use 'gagstock list' to see all favorite items.",
		len(tracked), strings.Join(preview, ", "), ellipsis)); err != nil {
		return err
	}

	if _, err := g.engine.Start(ctx, senderID, session.ModeFavorites); err != nil {
		return fmt.Errorf("start favorites session for %s: %w", senderID, err)
	}
	return nil
}

func (g *Gagstockfav) stop(ctx context.Context, senderID string, bc BotCtx) error {
	if g.engine.Stop(senderID, session.ModeFavorites) {
		return reply(ctx, bc, senderID, "🛑 Gagstockfav stopped.")
	}
	return reply(ctx, bc, senderID, "⚠️ Gagstockfav is not running.")
}
