package session

import (
	"strings"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
)

// MatchTrackedItem reports whether a stock item satisfies a tracked
// entry: category must match exactly, names match fuzzily (normalized
// equality or substring either way).
func MatchTrackedItem(tracked models.TrackedItem, item models.StockItem) bool {
	if tracked.Category != item.Category {
		return false
	}

	trackedName := models.NormalizeItemName(tracked.ItemName)
	itemName := item.Name
	if itemName == "" {
		itemName = models.NormalizeItemName(item.DisplayName)
	}

	return trackedName == itemName ||
		strings.Contains(itemName, trackedName) ||
		strings.Contains(trackedName, itemName)
}

// TrackedInStock returns the snapshot items matching any of the user's
// tracked entries, at most one match per tracked entry.
func TrackedInStock(tracked []models.TrackedItem, snapshot *models.StockSnapshot) []models.StockItem {
	var matched []models.StockItem
	for _, t := range tracked {
		for _, item := range snapshot.Items {
			if MatchTrackedItem(t, item) {
				if t.AlertThreshold > 0 && item.Value < t.AlertThreshold {
					continue
				}
				matched = append(matched, item)
				break
			}
		}
	}
	return matched
}

// FilterEligible applies the notification policy to candidate items:
// value at or above the preference threshold, category in the priority
// set (empty set means all), and not notified within the cooldown
// window. All three conditions are checked per candidate.
func FilterEligible(candidates []models.StockItem, prefs models.UserPreferences, recent []models.NotificationRecord, now time.Time) []models.StockItem {
	priority := prefs.PrioritySet()
	cooldown := time.Duration(prefs.CooldownSeconds) * time.Second

	var eligible []models.StockItem
	for _, item := range candidates {
		if item.Value < prefs.ValueThreshold {
			continue
		}
		if len(priority) > 0 && !priority[item.Category] {
			continue
		}
		if notifiedWithin(recent, item, cooldown, now) {
			continue
		}
		eligible = append(eligible, item)
	}
	return eligible
}

func notifiedWithin(recent []models.NotificationRecord, item models.StockItem, cooldown time.Duration, now time.Time) bool {
	if cooldown <= 0 {
		return false
	}
	for _, rec := range recent {
		if rec.Category != item.Category {
			continue
		}
		if models.NormalizeItemName(rec.ItemName) != item.Name {
			continue
		}
		if now.Sub(rec.SentAt) < cooldown {
			return true
		}
	}
	return false
}
