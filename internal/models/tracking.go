package models

import (
	"strings"
	"time"
)

// Categories the upstream stock API restocks on a fixed cadence.
const (
	CategoryGear     = "gear"
	CategorySeed     = "seed"
	CategoryEgg      = "egg"
	CategoryHoney    = "honey"
	CategoryCosmetic = "cosmetic"
)

func Categories() []string {
	return []string{CategoryGear, CategorySeed, CategoryEgg, CategoryHoney, CategoryCosmetic}
}

func IsValidCategory(category string) bool {
	for _, c := range Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizeItemName collapses case, surrounding whitespace and word
// separators so "Ancient_Shovel" and "ancient shovel" compare equal.
func NormalizeItemName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// TrackedItem is a (category, item) pair a user wants proactive
// notifications about. ItemName is stored normalized; the unique index
// enforces one entry per (user, category, item).
type TrackedItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index:idx_tracked_user_cat_item,unique;not null"`
	Category       string    `json:"category" gorm:"index:idx_tracked_user_cat_item,unique;not null"`
	ItemName       string    `json:"item_name" gorm:"index:idx_tracked_user_cat_item,unique;not null"`
	AlertThreshold int       `json:"alert_threshold"` // 0 = notify at any value
	CreatedAt      time.Time `json:"created_at"`
}

// UserPreferences is created lazily on first access, one row per user.
type UserPreferences struct {
	UserID             string    `json:"user_id" gorm:"primaryKey"`
	ShowRarity         bool      `json:"show_rarity"`
	ValueThreshold     int       `json:"value_threshold"`
	CooldownSeconds    int       `json:"cooldown_seconds"`
	PriorityCategories string    `json:"priority_categories"` // comma separated, empty = all
	UpdatedAt          time.Time `json:"updated_at"`
}

const DefaultCooldownSeconds = 300

// DefaultPreferences returns the record a user gets before ever touching
// settings.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:          userID,
		ShowRarity:      true,
		CooldownSeconds: DefaultCooldownSeconds,
	}
}

// PrioritySet parses PriorityCategories into a lookup set. An empty
// result means every category is eligible.
func (p UserPreferences) PrioritySet() map[string]bool {
	set := make(map[string]bool)
	for _, c := range strings.Split(p.PriorityCategories, ",") {
		c = strings.TrimSpace(strings.ToLower(c))
		if c != "" {
			set[c] = true
		}
	}
	return set
}

type UserStats struct {
	UserID            string    `json:"user_id" gorm:"primaryKey"`
	SessionsStarted   int       `json:"sessions_started"`
	NotificationsSent int       `json:"notifications_sent"`
	CommandsHandled   int       `json:"commands_handled"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

// PricePoint is one observed (timestamp, value) for a tracked item.
// History is bounded per key; used only for trend estimation.
type PricePoint struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index:idx_price_user_key"`
	Category   string    `json:"category" gorm:"index:idx_price_user_key"`
	ItemName   string    `json:"item_name" gorm:"index:idx_price_user_key"`
	Value      int       `json:"value"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index"`
}

// NotificationRecord logs a sent notification for cooldown suppression
// and history display.
type NotificationRecord struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	UserID   string    `json:"user_id" gorm:"index"`
	Category string    `json:"category"`
	ItemName string    `json:"item_name"`
	Value    int       `json:"value"`
	SentAt   time.Time `json:"sent_at" gorm:"index"`
}
