// Package stock fetches and normalizes the upstream stock and weather
// JSON APIs. The fetcher does not retry; backoff is the polling
// engine's job via re-scheduling.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrUpstream covers non-2xx responses and transport failures.
	ErrUpstream = errors.New("upstream API error")
	// ErrDecode covers malformed JSON payloads.
	ErrDecode = errors.New("upstream payload decode error")
)

// IsTimeout reports whether err is a request timeout, which the engine
// backs off on silently (as opposed to other upstream errors, which get
// a best-effort user notice).
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type Fetcher struct {
	client     *http.Client
	stockURL   string
	weatherURL string
}

func NewFetcher(stockURL, weatherURL string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		stockURL:   stockURL,
		weatherURL: weatherURL,
	}
}

// rawStock accepts every field-name variant the upstream API has
// shipped. The external schema is unstable; mapping it to the
// normalized item list is this adapter's whole job.
type rawStock struct {
	Gear      []rawItem `json:"gear"`
	GearStock []rawItem `json:"gearStock"`

	Seed       []rawItem `json:"seed"`
	SeedsStock []rawItem `json:"seedsStock"`

	Egg      []rawItem `json:"egg"`
	EggStock []rawItem `json:"eggStock"`

	Honey      []rawItem `json:"honey"`
	HoneyStock []rawItem `json:"honeyStock"`

	Cosmetic       []rawItem `json:"cosmetic"`
	Costmetic      []rawItem `json:"costmetic"` // upstream typo, observed in the wild
	CosmeticsStock []rawItem `json:"cosmeticsStock"`

	UpdatedAt string `json:"updatedAt"`
}

type rawItem struct {
	Name  string          `json:"name"`
	Emoji string          `json:"emoji"`
	Value json.RawMessage `json:"value"`
}

// FetchStock retrieves and normalizes the current stock payload.
func (f *Fetcher) FetchStock(ctx context.Context) (*models.StockSnapshot, error) {
	var raw rawStock
	if err := f.getJSON(ctx, f.stockURL, &raw); err != nil {
		return nil, err
	}

	snapshot := &models.StockSnapshot{UpdatedAt: raw.UpdatedAt}
	appendItems := func(category string, groups ...[]rawItem) {
		for _, group := range groups {
			for _, item := range group {
				snapshot.Items = append(snapshot.Items, models.StockItem{
					Category:    category,
					Name:        models.NormalizeItemName(item.Name),
					DisplayName: item.Name,
					Emoji:       item.Emoji,
					Value:       parseValue(item.Value),
				})
			}
		}
	}
	appendItems(models.CategoryGear, raw.Gear, raw.GearStock)
	appendItems(models.CategorySeed, raw.Seed, raw.SeedsStock)
	appendItems(models.CategoryEgg, raw.Egg, raw.EggStock)
	appendItems(models.CategoryHoney, raw.Honey, raw.HoneyStock)
	appendItems(models.CategoryCosmetic, raw.Cosmetic, raw.Costmetic, raw.CosmeticsStock)

	return snapshot, nil
}

// FetchWeather retrieves the current weather payload.
func (f *Fetcher) FetchWeather(ctx context.Context) (*models.WeatherReport, error) {
	var report models.WeatherReport
	if err := f.getJSON(ctx, f.weatherURL, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (f *Fetcher) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", ErrUpstream, url, err)
	}
	req.Header.Set("User-Agent", "GagStock-Bot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrUpstream, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if IsTimeout(err) {
			return err
		}
		return fmt.Errorf("%w: read %s: %v", ErrUpstream, url, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, url, err)
	}
	return nil
}

// parseValue tolerates numeric and quoted-string values; the upstream
// API has served both.
func parseValue(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var parsed int
		if _, err := fmt.Sscanf(s, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

// CombinedKey is a deterministic fingerprint of the fields that matter
// for change detection, independent of upstream ordering.
func CombinedKey(snapshot *models.StockSnapshot, weather *models.WeatherReport) string {
	items := make([]models.StockItem, len(snapshot.Items))
	copy(items, snapshot.Items)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].Value < items[j].Value
	})

	payload := struct {
		Items            []models.StockItem `json:"items"`
		WeatherUpdatedAt string             `json:"weatherUpdatedAt"`
		WeatherCurrent   string             `json:"weatherCurrent"`
	}{
		Items:            items,
		WeatherUpdatedAt: weather.UpdatedAt,
		WeatherCurrent:   weather.Current,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Marshal of plain structs cannot fail; keep the engine moving.
		return fmt.Sprintf("unhashable-%d", time.Now().UnixNano())
	}
	return hashBytes(data)
}
