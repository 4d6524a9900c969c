package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
)

// Rarity markers shown next to high-value items when the user's
// preferences enable them.
const (
	rareValue  = 10_000
	ultraValue = 100_000
)

// FormatValue renders a stock quantity the way the tracker always has:
// x500, x12.0K, x1.5M.
func FormatValue(value int) string {
	switch {
	case value >= 1_000_000:
		return fmt.Sprintf("x%.1fM", float64(value)/1_000_000)
	case value >= 1_000:
		return fmt.Sprintf("x%.1fK", float64(value)/1_000)
	default:
		return fmt.Sprintf("x%d", value)
	}
}

// RarityMarker returns an indicator for notable values, or "".
func RarityMarker(value int) string {
	switch {
	case value >= ultraValue:
		return "💎 Ultra"
	case value >= rareValue:
		return "🔥 Rare"
	default:
		return ""
	}
}

func formatItemList(items []models.StockItem) string {
	if len(items) == 0 {
		return "None."
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		emojiPart := ""
		if item.Emoji != "" {
			emojiPart = item.Emoji + " "
		}
		lines = append(lines, fmt.Sprintf("- %s%s: %s", emojiPart, item.DisplayName, FormatValue(item.Value)))
	}
	return strings.Join(lines, "\n")
}

func formatWeather(weather *models.WeatherReport) string {
	icon := weather.Icon
	if icon == "" {
		icon = "🌦️"
	}
	return fmt.Sprintf(
		"🌤️ Weather: %s %s\n"+
			"📖 Description: %s\n"+
			"📌 Effect: %s\n"+
			"🪄 Crop Bonus: %s\n"+
			"📢 Visual Cue: %s\n"+
			"🌟 Rarity: %s",
		icon, orUnknown(weather.Current),
		orDefault(weather.Description, "No description"),
		orDefault(weather.Effect, "No effect"),
		orDefault(weather.CropBonus, "No bonus"),
		orDefault(weather.VisualCue, "No visual cue"),
		orUnknown(weather.Rarity),
	)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orUnknown(s string) string {
	return orDefault(s, "Unknown")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// RenderFullUpdate renders the all-categories tracker message sent by
// full-mode sessions on every detected change.
func RenderFullUpdate(snapshot *models.StockSnapshot, weather *models.WeatherReport, now time.Time) string {
	byCategory := snapshot.ByCategory()
	restocks := Restocks(now)

	sections := []struct {
		header   string
		category string
	}{
		{"🛠️ Gear", models.CategoryGear},
		{"🌱 Seeds", models.CategorySeed},
		{"🥚 Eggs", models.CategoryEgg},
		{"🎨 Cosmetics", models.CategoryCosmetic},
		{"🍯 Honey", models.CategoryHoney},
	}

	var b strings.Builder
	b.WriteString("🌾 Grow A Garden — Tracker\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "%s:\n%s\n⏳ Restock in: %s\n\n",
			s.header, formatItemList(byCategory[s.category]), restocks[s.category])
	}
	b.WriteString(formatWeather(weather))
	return b.String()
}

// RenderFavoritesUpdate renders the favorites-only notification for the
// given eligible items. Returns "" when nothing is eligible.
func RenderFavoritesUpdate(eligible []models.StockItem, weather *models.WeatherReport, showRarity bool, now time.Time) string {
	if len(eligible) == 0 {
		return ""
	}

	restocks := Restocks(now)

	var b strings.Builder
	b.WriteString("⭐ Your favorite items are in stock!\n\n")
	for _, item := range eligible {
		emojiPart := ""
		if item.Emoji != "" {
			emojiPart = item.Emoji + " "
		}
		fmt.Fprintf(&b, "🔔 %s%s: %s", emojiPart, item.DisplayName, FormatValue(item.Value))
		if showRarity {
			if marker := RarityMarker(item.Value); marker != "" {
				fmt.Fprintf(&b, " (%s)", marker)
			}
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "   📦 Category: %s | ⏳ Restock in: %s\n\n",
			titleCase(item.Category), restocks[item.Category])
	}
	b.WriteString(formatWeather(weather))
	return b.String()
}
