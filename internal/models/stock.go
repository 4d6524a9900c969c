package models

// StockItem is one normalized entry from the upstream stock API.
// DisplayName keeps the upstream casing for rendering; Name is the
// normalized form used for matching.
type StockItem struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Emoji       string `json:"emoji"`
	Value       int    `json:"value"`
}

// StockSnapshot is the parsed stock payload for one polling cycle.
// Transient: never persisted wholesale, only its derived hash and the
// subset surfaced in notifications.
type StockSnapshot struct {
	Items     []StockItem `json:"items"`
	UpdatedAt string      `json:"updated_at"`
}

// ByCategory groups the snapshot's items preserving upstream order
// within each category.
func (s *StockSnapshot) ByCategory() map[string][]StockItem {
	out := make(map[string][]StockItem)
	for _, item := range s.Items {
		out[item.Category] = append(out[item.Category], item)
	}
	return out
}

// WeatherReport is the parsed weather payload for one polling cycle.
type WeatherReport struct {
	Icon        string `json:"icon"`
	Current     string `json:"currentWeather"`
	Description string `json:"description"`
	Effect      string `json:"effectDescription"`
	CropBonus   string `json:"cropBonuses"`
	VisualCue   string `json:"visualCue"`
	Rarity      string `json:"rarity"`
	UpdatedAt   string `json:"updatedAt"`
}
