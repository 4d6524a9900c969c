// Package commands contains the chat command handlers. Each handler
// receives its collaborators at construction and the per-request
// capability surface (BotContext) at execution.
package commands

import (
	"context"

	"github.com/growagarden/gagstock-bot/internal/bot"
	"github.com/growagarden/gagstock-bot/internal/models"
	"github.com/growagarden/gagstock-bot/internal/session"
)

// BotCtx aliases the dispatcher's capability interface so handler
// signatures stay short.
type BotCtx = bot.BotContext

// reply sends a direct response to the user, wrapping the send error
// for the dispatcher boundary.
func reply(ctx context.Context, bc BotCtx, recipientID, text string) error {
	_, err := bc.SendMessage(ctx, recipientID, text)
	return err
}

// TrackerStore is the persistence surface the tracker commands use.
type TrackerStore interface {
	TrackedItems(userID string) ([]models.TrackedItem, error)
	AddTrackedItem(userID, category, itemName string, alertThreshold int) (models.TrackedItem, error)
	RemoveTrackedItem(userID, category, itemName string) (bool, error)
	SetAlertThreshold(userID, category, itemName string, threshold int) (bool, error)
	ClearTrackedItems(userID string) (int64, error)
	Preferences(userID string) (models.UserPreferences, error)
	SavePreferences(prefs models.UserPreferences) error
	Stats(userID string) (models.UserStats, error)
	Notifications(userID string, limit int) ([]models.NotificationRecord, error)
	PriceHistory(userID, category, itemName string, limit int) ([]models.PricePoint, error)
}

// Engine is the slice of the session engine the commands drive.
type Engine interface {
	Start(ctx context.Context, userID string, mode session.Mode) (bool, error)
	Stop(userID string, mode session.Mode) bool
	Active(userID string, mode session.Mode) bool
}

// StockFetcher backs the search command's one-shot lookups.
type StockFetcher interface {
	FetchStock(ctx context.Context) (*models.StockSnapshot, error)
}
