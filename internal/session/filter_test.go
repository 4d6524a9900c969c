package session

import (
	"testing"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
)

func TestMatchTrackedItem(t *testing.T) {
	tests := []struct {
		name     string
		tracked  models.TrackedItem
		item     models.StockItem
		expected bool
	}{
		{
			"exact normalized match",
			models.TrackedItem{Category: models.CategoryGear, ItemName: "shovel"},
			models.StockItem{Category: models.CategoryGear, Name: "shovel"},
			true,
		},
		{
			"tracked name is substring of stock name",
			models.TrackedItem{Category: models.CategorySeed, ItemName: "carrot"},
			models.StockItem{Category: models.CategorySeed, Name: "carrot seed"},
			true,
		},
		{
			"stock name is substring of tracked name",
			models.TrackedItem{Category: models.CategorySeed, ItemName: "golden carrot seed"},
			models.StockItem{Category: models.CategorySeed, Name: "carrot seed"},
			true,
		},
		{
			"underscores and case fold away",
			models.TrackedItem{Category: models.CategoryEgg, ItemName: "Rare_Egg"},
			models.StockItem{Category: models.CategoryEgg, Name: "rare egg"},
			true,
		},
		{
			"category mismatch beats name match",
			models.TrackedItem{Category: models.CategoryGear, ItemName: "shovel"},
			models.StockItem{Category: models.CategorySeed, Name: "shovel"},
			false,
		},
		{
			"unrelated names",
			models.TrackedItem{Category: models.CategoryGear, ItemName: "shovel"},
			models.StockItem{Category: models.CategoryGear, Name: "watering can"},
			false,
		},
		{
			"falls back to display name",
			models.TrackedItem{Category: models.CategoryGear, ItemName: "shovel"},
			models.StockItem{Category: models.CategoryGear, DisplayName: "Shovel"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTrackedItem(tt.tracked, tt.item); got != tt.expected {
				t.Errorf("MatchTrackedItem(%+v, %+v) = %v, want %v", tt.tracked, tt.item, got, tt.expected)
			}
		})
	}
}

func TestTrackedInStock(t *testing.T) {
	snapshot := &models.StockSnapshot{
		Items: []models.StockItem{
			{Category: models.CategoryGear, Name: "shovel", Value: 500},
			{Category: models.CategorySeed, Name: "carrot seed", Value: 50},
			{Category: models.CategoryEgg, Name: "rare egg", Value: 3},
		},
	}

	tracked := []models.TrackedItem{
		{Category: models.CategoryGear, ItemName: "shovel"},
		{Category: models.CategorySeed, ItemName: "carrot", AlertThreshold: 100}, // value 50 < threshold
		{Category: models.CategoryEgg, ItemName: "rare egg", AlertThreshold: 1},
		{Category: models.CategoryHoney, ItemName: "honey jar"}, // not in stock
	}

	matched := TrackedInStock(tracked, snapshot)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matched), matched)
	}
	if matched[0].Name != "shovel" || matched[1].Name != "rare egg" {
		t.Errorf("unexpected matches: %+v", matched)
	}
}

func TestFilterEligible(t *testing.T) {
	now := time.Now()
	candidates := []models.StockItem{
		{Category: models.CategoryGear, Name: "shovel", Value: 500},
		{Category: models.CategorySeed, Name: "carrot seed", Value: 50},
		{Category: models.CategoryEgg, Name: "rare egg", Value: 20000},
	}

	t.Run("defaults pass everything", func(t *testing.T) {
		prefs := models.DefaultPreferences("u1")
		eligible := FilterEligible(candidates, prefs, nil, now)
		if len(eligible) != 3 {
			t.Errorf("expected 3 eligible, got %d", len(eligible))
		}
	})

	t.Run("value threshold filters", func(t *testing.T) {
		prefs := models.DefaultPreferences("u1")
		prefs.ValueThreshold = 100
		eligible := FilterEligible(candidates, prefs, nil, now)
		if len(eligible) != 2 {
			t.Fatalf("expected 2 eligible, got %d", len(eligible))
		}
		for _, item := range eligible {
			if item.Value < 100 {
				t.Errorf("item below threshold passed: %+v", item)
			}
		}
	})

	t.Run("priority categories filter", func(t *testing.T) {
		prefs := models.DefaultPreferences("u1")
		prefs.PriorityCategories = "gear,egg"
		eligible := FilterEligible(candidates, prefs, nil, now)
		if len(eligible) != 2 {
			t.Fatalf("expected 2 eligible, got %d: %+v", len(eligible), eligible)
		}
		for _, item := range eligible {
			if item.Category == models.CategorySeed {
				t.Errorf("non-priority category passed: %+v", item)
			}
		}
	})

	t.Run("cooldown suppresses recent repeats", func(t *testing.T) {
		prefs := models.DefaultPreferences("u1") // 300s cooldown
		recent := []models.NotificationRecord{
			{Category: models.CategoryGear, ItemName: "shovel", SentAt: now.Add(-1 * time.Minute)},
			{Category: models.CategoryEgg, ItemName: "rare egg", SentAt: now.Add(-10 * time.Minute)},
		}
		eligible := FilterEligible(candidates, prefs, recent, now)
		if len(eligible) != 2 {
			t.Fatalf("expected 2 eligible, got %d: %+v", len(eligible), eligible)
		}
		for _, item := range eligible {
			if item.Name == "shovel" {
				t.Errorf("recently notified item passed cooldown: %+v", item)
			}
		}
	})

	t.Run("zero cooldown disables suppression", func(t *testing.T) {
		prefs := models.DefaultPreferences("u1")
		prefs.CooldownSeconds = 0
		recent := []models.NotificationRecord{
			{Category: models.CategoryGear, ItemName: "shovel", SentAt: now},
		}
		eligible := FilterEligible(candidates, prefs, recent, now)
		if len(eligible) != 3 {
			t.Errorf("expected 3 eligible with zero cooldown, got %d", len(eligible))
		}
	})
}
