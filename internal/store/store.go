// Package store is the persistence layer: one durable kind per table
// (tracked items, preferences, stats, price history, notifications),
// loaded at command entry and written through synchronously.
package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/growagarden/gagstock-bot/internal/models"
)

const (
	// historyCap bounds price history per (user, category, item) key.
	historyCap = 100
	// notificationCap bounds the notification log per user.
	notificationCap = 100
)

var ErrDuplicateItem = errors.New("item is already tracked")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Tracked items ---

func (s *Store) TrackedItems(userID string) ([]models.TrackedItem, error) {
	var items []models.TrackedItem
	if err := s.db.Where("user_id = ?", userID).Order("category, item_name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load tracked items for %s: %w", userID, err)
	}
	return items, nil
}

func (s *Store) AddTrackedItem(userID, category, itemName string, alertThreshold int) (models.TrackedItem, error) {
	item := models.TrackedItem{
		UserID:         userID,
		Category:       category,
		ItemName:       models.NormalizeItemName(itemName),
		AlertThreshold: alertThreshold,
		CreatedAt:      time.Now(),
	}

	var count int64
	err := s.db.Model(&models.TrackedItem{}).
		Where("user_id = ? AND category = ? AND item_name = ?", item.UserID, item.Category, item.ItemName).
		Count(&count).Error
	if err != nil {
		return item, fmt.Errorf("check tracked item: %w", err)
	}
	if count > 0 {
		return item, ErrDuplicateItem
	}

	if err := s.db.Create(&item).Error; err != nil {
		return item, fmt.Errorf("add tracked item: %w", err)
	}
	return item, nil
}

func (s *Store) RemoveTrackedItem(userID, category, itemName string) (bool, error) {
	result := s.db.Where("user_id = ? AND category = ? AND item_name = ?",
		userID, category, models.NormalizeItemName(itemName)).
		Delete(&models.TrackedItem{})
	if result.Error != nil {
		return false, fmt.Errorf("remove tracked item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetAlertThreshold updates the minimum value for an existing tracked
// item. Returns false when the item is not tracked.
func (s *Store) SetAlertThreshold(userID, category, itemName string, threshold int) (bool, error) {
	result := s.db.Model(&models.TrackedItem{}).
		Where("user_id = ? AND category = ? AND item_name = ?",
			userID, category, models.NormalizeItemName(itemName)).
		Update("alert_threshold", threshold)
	if result.Error != nil {
		return false, fmt.Errorf("set alert threshold: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ClearTrackedItems(userID string) (int64, error) {
	result := s.db.Where("user_id = ?", userID).Delete(&models.TrackedItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("clear tracked items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// --- Preferences ---

// Preferences returns the user's record, creating the default lazily on
// first access. A load failure falls back to defaults rather than
// blocking the caller.
func (s *Store) Preferences(userID string) (models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := s.db.Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Store: failed to load preferences for %s, using defaults: %v", userID, err)
	}
	return models.DefaultPreferences(userID), nil
}

func (s *Store) SavePreferences(prefs models.UserPreferences) error {
	prefs.UpdatedAt = time.Now()
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&prefs).Error; err != nil {
		return fmt.Errorf("save preferences for %s: %w", prefs.UserID, err)
	}
	return nil
}

// --- Stats ---

func (s *Store) Stats(userID string) (models.UserStats, error) {
	var stats models.UserStats
	err := s.db.Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UserStats{UserID: userID}, nil
		}
		return stats, fmt.Errorf("load stats for %s: %w", userID, err)
	}
	return stats, nil
}

func (s *Store) BumpSessionStarted(userID string) error {
	return s.bumpStats(userID, func(st *models.UserStats) { st.SessionsStarted++ })
}

func (s *Store) BumpNotificationsSent(userID string, n int) error {
	return s.bumpStats(userID, func(st *models.UserStats) { st.NotificationsSent += n })
}

func (s *Store) BumpCommandsHandled(userID string) error {
	return s.bumpStats(userID, func(st *models.UserStats) { st.CommandsHandled++ })
}

func (s *Store) bumpStats(userID string, mutate func(*models.UserStats)) error {
	stats, err := s.Stats(userID)
	if err != nil {
		return err
	}
	mutate(&stats)
	stats.LastActiveAt = time.Now()
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&stats).Error; err != nil {
		return fmt.Errorf("save stats for %s: %w", userID, err)
	}
	return nil
}

// --- Price history ---

// RecordPricePoint appends an observation and trims the key's history
// back to the cap. The trim makes repeated saves idempotent in size.
func (s *Store) RecordPricePoint(point models.PricePoint) error {
	if point.RecordedAt.IsZero() {
		point.RecordedAt = time.Now()
	}
	if err := s.db.Create(&point).Error; err != nil {
		return fmt.Errorf("record price point: %w", err)
	}

	// Drop entries beyond the cap, oldest first. A failed trim is logged
	// but never fails the insert that triggered it.
	var stale []uint
	err := s.db.Model(&models.PricePoint{}).
		Where("user_id = ? AND category = ? AND item_name = ?", point.UserID, point.Category, point.ItemName).
		Order("recorded_at DESC").
		Offset(historyCap).
		Pluck("id", &stale).Error
	if err != nil {
		log.Printf("Store: failed to find stale price points for %s: %v", point.UserID, err)
		return nil
	}
	if len(stale) > 0 {
		if err := s.db.Delete(&models.PricePoint{}, stale).Error; err != nil {
			log.Printf("Store: failed to trim price history for %s: %v", point.UserID, err)
		}
	}
	return nil
}

func (s *Store) PriceHistory(userID, category, itemName string, limit int) ([]models.PricePoint, error) {
	if limit <= 0 || limit > historyCap {
		limit = historyCap
	}
	var points []models.PricePoint
	err := s.db.Where("user_id = ? AND category = ? AND item_name = ?",
		userID, category, models.NormalizeItemName(itemName)).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	return points, nil
}

// --- Notifications ---

func (s *Store) RecordNotification(rec models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	var stale []string
	err := s.db.Model(&models.NotificationRecord{}).
		Where("user_id = ?", rec.UserID).
		Order("sent_at DESC").
		Offset(notificationCap).
		Pluck("id", &stale).Error
	if err != nil {
		log.Printf("Store: failed to find stale notifications for %s: %v", rec.UserID, err)
		return nil
	}
	if len(stale) > 0 {
		if err := s.db.Delete(&models.NotificationRecord{}, "id IN ?", stale).Error; err != nil {
			log.Printf("Store: failed to trim notification log for %s: %v", rec.UserID, err)
		}
	}
	return nil
}

// RecentNotifications returns the user's notifications sent at or after
// the cutoff, newest first. Used for cooldown suppression.
func (s *Store) RecentNotifications(userID string, since time.Time) ([]models.NotificationRecord, error) {
	var recs []models.NotificationRecord
	err := s.db.Where("user_id = ? AND sent_at >= ?", userID, since).
		Order("sent_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent notifications: %w", err)
	}
	return recs, nil
}

func (s *Store) Notifications(userID string, limit int) ([]models.NotificationRecord, error) {
	if limit <= 0 || limit > notificationCap {
		limit = notificationCap
	}
	var recs []models.NotificationRecord
	err := s.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	return recs, nil
}
