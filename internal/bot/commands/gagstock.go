package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/growagarden/gagstock-bot/internal/models"
	"github.com/growagarden/gagstock-bot/internal/session"
	"github.com/growagarden/gagstock-bot/internal/store"
)

// Gagstock is the stock tracker command: session start/stop, favorites
// management, search, alerts, settings, stats, history and trends.
type Gagstock struct {
	engine  Engine
	store   TrackerStore
	fetcher StockFetcher
}

func NewGagstock(engine Engine, trackerStore TrackerStore, fetcher StockFetcher) *Gagstock {
	return &Gagstock{
		engine:  engine,
		store:   trackerStore,
		fetcher: fetcher,
	}
}

func (g *Gagstock) Name() string { return "gagstock" }

func (g *Gagstock) Description() string {
	return "Track Grow A Garden stock and weather changes"
}

func (g *Gagstock) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, g.usage())
	}

	switch strings.ToLower(args[0]) {
	case "on":
		return g.start(ctx, senderID, bc)
	case "off":
		return g.stop(ctx, senderID, bc)
	case "add":
		return g.add(ctx, senderID, args[1:], bc)
	case "remove":
		return g.remove(ctx, senderID, args[1:], bc)
	case "list":
		return g.list(ctx, senderID, bc)
	case "clear":
		return g.clear(ctx, senderID, bc)
	case "search":
		return g.search(ctx, senderID, args[1:], bc)
	case "alert":
		return g.alert(ctx, senderID, args[1:], bc)
	case "settings":
		return g.settings(ctx, senderID, args[1:], bc)
	case "stats":
		return g.stats(ctx, senderID, bc)
	case "history":
		return g.history(ctx, senderID, bc)
	case "trend":
		return g.trend(ctx, senderID, args[1:], bc)
	default:
		return reply(ctx, bc, senderID, g.usage())
	}
}

func (g *Gagstock) usage() string {
	return "📌 Gagstock Commands:\n\n" +
		"📡 Tracking:\n" +
		"• 'gagstock on' to start tracking\n" +
		"• 'gagstock off' to stop tracking\n\n" +
		"⭐ Favorites:\n" +
		"• 'gagstock add category/item_name [min_value]'\n" +
		"• 'gagstock remove category/item_name'\n" +
		"• 'gagstock list' / 'gagstock clear'\n" +
		"• 'gagstock alert category/item_name min_value'\n\n" +
		"🔍 More:\n" +
		"• 'gagstock search item_name'\n" +
		"• 'gagstock settings' / 'gagstock stats'\n" +
		"• 'gagstock history' / 'gagstock trend category/item_name'\n\n" +
		fmt.Sprintf("📋 Categories: %s", strings.Join(models.Categories(), ", "))
}

func (g *Gagstock) start(ctx context.Context, senderID string, bc BotCtx) error {
	if g.engine.Active(senderID, session.ModeFull) {
		return reply(ctx, bc, senderID, "📡 You're already tracking Gagstock. Use `gagstock off` to stop.")
	}

	// Confirmation goes out before the first tick so the user sees it
	// ahead of the initial stock dump.
	if err := reply(ctx, bc, senderID, "✅ Gagstock tracking started! You'll be notified when stock or weather changes."); err != nil {
		return err
	}

	if _, err := g.engine.Start(ctx, senderID, session.ModeFull); err != nil {
		return fmt.Errorf("start full session for %s: %w", senderID, err)
	}
	return nil
}

func (g *Gagstock) stop(ctx context.Context, senderID string, bc BotCtx) error {
	if g.engine.Stop(senderID, session.ModeFull) {
		return reply(ctx, bc, senderID, "🛑 Gagstock tracking stopped.")
	}
	return reply(ctx, bc, senderID, "⚠️ You don't have an active gagstock session.")
}

// parseItemRef splits "category/item_name" and validates the category.
func parseItemRef(ref string) (category, itemName string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected category/item_name, got %q", ref)
	}
	category = strings.ToLower(strings.TrimSpace(parts[0]))
	if !models.IsValidCategory(category) {
		return "", "", fmt.Errorf("unknown category %q", category)
	}
	return category, parts[1], nil
}

func (g *Gagstock) add(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID,
			"📌 Usage: 'gagstock add category/item_name [min_value]'\n"+
				fmt.Sprintf("📋 Categories: %s\n", strings.Join(models.Categories(), ", "))+
				"🔍 Example: 'gagstock add gear/ancient_shovel'")
	}

	category, itemName, err := parseItemRef(args[0])
	if err != nil {
		return reply(ctx, bc, senderID, fmt.Sprintf("❌ %v\n📋 Categories: %s", err, strings.Join(models.Categories(), ", ")))
	}

	threshold := 0
	if len(args) > 1 {
		threshold, err = strconv.Atoi(args[1])
		if err != nil || threshold < 0 {
			return reply(ctx, bc, senderID, fmt.Sprintf("❌ min_value must be a non-negative number, got %q", args[1]))
		}
	}

	item, err := g.store.AddTrackedItem(senderID, category, itemName, threshold)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateItem) {
			return reply(ctx, bc, senderID, fmt.Sprintf("⚠️ You're already tracking %s/%s.", category, models.NormalizeItemName(itemName)))
		}
		return err
	}

	msg := fmt.Sprintf("⭐ Added %s/%s to your favorites.", item.Category, item.ItemName)
	if threshold > 0 {
		msg += fmt.Sprintf("\n🔔 Alerts only at %s or more.", session.FormatValue(threshold))
	}
	msg += "\n💡 Use 'gagstockfav on' to track only favorites."
	return reply(ctx, bc, senderID, msg)
}

func (g *Gagstock) remove(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock remove category/item_name'")
	}

	category, itemName, err := parseItemRef(args[0])
	if err != nil {
		return reply(ctx, bc, senderID, fmt.Sprintf("❌ %v", err))
	}

	removed, err := g.store.RemoveTrackedItem(senderID, category, itemName)
	if err != nil {
		return err
	}
	if !removed {
		return reply(ctx, bc, senderID, fmt.Sprintf("⚠️ %s/%s is not in your favorites.", category, models.NormalizeItemName(itemName)))
	}
	return reply(ctx, bc, senderID, fmt.Sprintf("🗑️ Removed %s/%s from your favorites.", category, models.NormalizeItemName(itemName)))
}

func (g *Gagstock) list(ctx context.Context, senderID string, bc BotCtx) error {
	items, err := g.store.TrackedItems(senderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return reply(ctx, bc, senderID,
			"📭 Your favorites list is empty.\n💡 Use 'gagstock add category/item_name' to add items.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⭐ Your favorites (%d):\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "- %s/%s", item.Category, item.ItemName)
		if item.AlertThreshold > 0 {
			fmt.Fprintf(&b, " (alert ≥ %s)", session.FormatValue(item.AlertThreshold))
		}
		b.WriteString("\n")
	}
	return reply(ctx, bc, senderID, b.String())
}

func (g *Gagstock) clear(ctx context.Context, senderID string, bc BotCtx) error {
	n, err := g.store.ClearTrackedItems(senderID)
	if err != nil {
		return err
	}
	if n == 0 {
		return reply(ctx, bc, senderID, "📭 Your favorites list was already empty.")
	}
	return reply(ctx, bc, senderID, fmt.Sprintf("🗑️ Cleared %d favorites.", n))
}

func (g *Gagstock) search(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock search item_name'")
	}

	query := models.NormalizeItemName(strings.Join(args, " "))
	snapshot, err := g.fetcher.FetchStock(ctx)
	if err != nil {
		return reply(ctx, bc, senderID, "⚠️ Stock API temporarily unavailable, try again shortly.")
	}

	var matches []models.StockItem
	for _, item := range snapshot.Items {
		if strings.Contains(item.Name, query) {
			matches = append(matches, item)
		}
	}

	if len(matches) == 0 {
		return reply(ctx, bc, senderID, fmt.Sprintf("🔍 No items matching %q in the current stock.", query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Matches for %q:\n", query)
	for _, item := range matches {
		fmt.Fprintf(&b, "- %s/%s: %s\n", item.Category, item.DisplayName, session.FormatValue(item.Value))
	}
	return reply(ctx, bc, senderID, b.String())
}

func (g *Gagstock) alert(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) < 2 {
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock alert category/item_name min_value'")
	}

	category, itemName, err := parseItemRef(args[0])
	if err != nil {
		return reply(ctx, bc, senderID, fmt.Sprintf("❌ %v", err))
	}

	threshold, err := strconv.Atoi(args[1])
	if err != nil || threshold < 0 {
		return reply(ctx, bc, senderID, fmt.Sprintf("❌ min_value must be a non-negative number, got %q", args[1]))
	}

	updated, err := g.store.SetAlertThreshold(senderID, category, itemName, threshold)
	if err != nil {
		return err
	}
	if !updated {
		return reply(ctx, bc, senderID,
			fmt.Sprintf("⚠️ %s/%s is not in your favorites. Add it first with 'gagstock add'.", category, models.NormalizeItemName(itemName)))
	}
	if threshold == 0 {
		return reply(ctx, bc, senderID, fmt.Sprintf("🔔 Alert threshold cleared for %s/%s.", category, models.NormalizeItemName(itemName)))
	}
	return reply(ctx, bc, senderID,
		fmt.Sprintf("🔔 Will alert on %s/%s at %s or more.", category, models.NormalizeItemName(itemName), session.FormatValue(threshold)))
}

func (g *Gagstock) settings(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	prefs, err := g.store.Preferences(senderID)
	if err != nil {
		return err
	}

	if len(args) == 0 || strings.ToLower(args[0]) == "show" {
		priority := prefs.PriorityCategories
		if priority == "" {
			priority = "all"
		}
		rarity := "off"
		if prefs.ShowRarity {
			rarity = "on"
		}
		return reply(ctx, bc, senderID, fmt.Sprintf(
			"⚙️ Your settings:\n"+
				"- threshold: %d\n"+
				"- cooldown: %ds\n"+
				"- rarity markers: %s\n"+
				"- priority categories: %s\n\n"+
				"📌 Change with:\n"+
				"• 'gagstock settings threshold 500'\n"+
				"• 'gagstock settings cooldown 300'\n"+
				"• 'gagstock settings rarity on|off'\n"+
				"• 'gagstock settings priority gear,seed' (or 'priority clear')",
			prefs.ValueThreshold, prefs.CooldownSeconds, rarity, priority))
	}

	if len(args) < 2 {
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock settings <threshold|cooldown|rarity|priority> <value>'")
	}

	switch strings.ToLower(args[0]) {
	case "threshold":
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return reply(ctx, bc, senderID, fmt.Sprintf("❌ threshold must be a non-negative number, got %q", args[1]))
		}
		prefs.ValueThreshold = v

	case "cooldown":
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return reply(ctx, bc, senderID, fmt.Sprintf("❌ cooldown must be a non-negative number of seconds, got %q", args[1]))
		}
		prefs.CooldownSeconds = v

	case "rarity":
		switch strings.ToLower(args[1]) {
		case "on":
			prefs.ShowRarity = true
		case "off":
			prefs.ShowRarity = false
		default:
			return reply(ctx, bc, senderID, "❌ rarity must be 'on' or 'off'")
		}

	case "priority":
		if strings.ToLower(args[1]) == "clear" {
			prefs.PriorityCategories = ""
			break
		}
		var categories []string
		for _, c := range strings.Split(strings.Join(args[1:], ","), ",") {
			c = strings.ToLower(strings.TrimSpace(c))
			if c == "" {
				continue
			}
			if !models.IsValidCategory(c) {
				return reply(ctx, bc, senderID,
					fmt.Sprintf("❌ unknown category %q\n📋 Categories: %s", c, strings.Join(models.Categories(), ", ")))
			}
			categories = append(categories, c)
		}
		prefs.PriorityCategories = strings.Join(categories, ",")

	default:
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock settings <threshold|cooldown|rarity|priority> <value>'")
	}

	if err := g.store.SavePreferences(prefs); err != nil {
		return err
	}
	return reply(ctx, bc, senderID, "✅ Settings updated.")
}

func (g *Gagstock) stats(ctx context.Context, senderID string, bc BotCtx) error {
	stats, err := g.store.Stats(senderID)
	if err != nil {
		return err
	}

	full := "inactive"
	if g.engine.Active(senderID, session.ModeFull) {
		full = "active"
	}
	favorites := "inactive"
	if g.engine.Active(senderID, session.ModeFavorites) {
		favorites = "active"
	}

	return reply(ctx, bc, senderID, fmt.Sprintf(
		"📊 Your stats:\n"+
			"- sessions started: %d\n"+
			"- notifications received: %d\n"+
			"- commands handled: %d\n"+
			"- full tracking: %s\n"+
			"- favorites tracking: %s",
		stats.SessionsStarted, stats.NotificationsSent, stats.CommandsHandled, full, favorites))
}

func (g *Gagstock) history(ctx context.Context, senderID string, bc BotCtx) error {
	recs, err := g.store.Notifications(senderID, 10)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return reply(ctx, bc, senderID, "📭 No notifications yet.")
	}

	var b strings.Builder
	b.WriteString("🔔 Recent notifications:\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "- %s %s/%s: %s\n",
			rec.SentAt.Format("Jan 2 15:04"), rec.Category, rec.ItemName, session.FormatValue(rec.Value))
	}
	return reply(ctx, bc, senderID, b.String())
}

func (g *Gagstock) trend(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	if len(args) == 0 {
		return reply(ctx, bc, senderID, "📌 Usage: 'gagstock trend category/item_name'")
	}

	category, itemName, err := parseItemRef(args[0])
	if err != nil {
		return reply(ctx, bc, senderID, fmt.Sprintf("❌ %v", err))
	}

	points, err := g.store.PriceHistory(senderID, category, itemName, 100)
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return reply(ctx, bc, senderID,
			fmt.Sprintf("📉 Not enough history for %s/%s yet. Keep a session running to collect observations.",
				category, models.NormalizeItemName(itemName)))
	}

	// points are newest first
	latest := points[0].Value
	oldest := points[len(points)-1].Value

	direction := "stable ➡️"
	if latest > oldest {
		direction = "rising 📈"
	} else if latest < oldest {
		direction = "falling 📉"
	}

	return reply(ctx, bc, senderID, fmt.Sprintf(
		"📈 Trend for %s/%s over %d observations:\n"+
			"- oldest: %s\n"+
			"- latest: %s\n"+
			"- trend: %s",
		category, models.NormalizeItemName(itemName), len(points),
		session.FormatValue(oldest), session.FormatValue(latest), direction))
}
