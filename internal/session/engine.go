package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/growagarden/gagstock-bot/internal/metrics"
	"github.com/growagarden/gagstock-bot/internal/models"
	"github.com/growagarden/gagstock-bot/internal/stock"
)

// Fetcher is the engine's view of the upstream APIs.
type Fetcher interface {
	FetchStock(ctx context.Context) (*models.StockSnapshot, error)
	FetchWeather(ctx context.Context) (*models.WeatherReport, error)
}

// Sender delivers outbound notifications and returns the message ID.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) (string, error)
}

// Store is the slice of persistence the engine needs per tick.
type Store interface {
	TrackedItems(userID string) ([]models.TrackedItem, error)
	Preferences(userID string) (models.UserPreferences, error)
	RecentNotifications(userID string, since time.Time) ([]models.NotificationRecord, error)
	RecordNotification(rec models.NotificationRecord) error
	RecordPricePoint(point models.PricePoint) error
	BumpSessionStarted(userID string) error
	BumpNotificationsSent(userID string, n int) error
}

type Config struct {
	Interval time.Duration // delay between ticks when healthy
	Backoff  time.Duration // delay after a transient upstream failure
}

// Engine runs one polling loop per active session: fetch, diff against
// the stored hash, notify on meaningful change, reschedule. Ticks for a
// session never overlap; each completes fully before the next is
// scheduled.
type Engine struct {
	registry *Registry
	fetcher  Fetcher
	sender   Sender
	store    Store

	// base parents every session context: session lifetime belongs to
	// the engine, never to the webhook request that started it.
	base context.Context

	interval time.Duration
	backoff  time.Duration
}

func NewEngine(registry *Registry, fetcher Fetcher, sender Sender, store Store, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	return &Engine{
		registry: registry,
		fetcher:  fetcher,
		sender:   sender,
		store:    store,
		base:     context.Background(),
		interval: cfg.Interval,
		backoff:  cfg.Backoff,
	}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start creates a session and runs its first tick synchronously (the
// first fetch is bounded by the fetcher timeout), then hands the loop
// to a background goroutine. Returns false when the user already has a
// session in that mode. The passed context only bounds the start call
// itself; the session runs on the engine's own lifetime.
func (e *Engine) Start(ctx context.Context, userID string, mode Mode) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	sess, created := e.registry.Create(e.base, userID, mode)
	if !created {
		return false, nil
	}

	log.Printf("Session engine: started %s session for %s", mode, userID)
	if err := e.store.BumpSessionStarted(userID); err != nil {
		log.Printf("Session engine: failed to bump session stats for %s: %v", userID, err)
	}
	metrics.ActiveSessions.Set(float64(e.registry.Len()))

	delay, stop := e.tick(sess)
	if stop {
		e.teardown(sess)
		return true, nil
	}

	go e.loop(sess, delay)
	return true, nil
}

// Stop cancels the session's pending timer and removes it. An in-flight
// tick observes the cancellation before sending or rescheduling.
func (e *Engine) Stop(userID string, mode Mode) bool {
	removed := e.registry.Remove(userID, mode)
	if removed {
		log.Printf("Session engine: stopped %s session for %s", mode, userID)
		metrics.ActiveSessions.Set(float64(e.registry.Len()))
	}
	return removed
}

// StopAll tears down every session, used at process shutdown.
func (e *Engine) StopAll() {
	for _, sess := range e.registry.Snapshot() {
		e.registry.Remove(sess.UserID, sess.Mode)
	}
	metrics.ActiveSessions.Set(0)
}

// Active reports whether the user has a session in the given mode.
func (e *Engine) Active(userID string, mode Mode) bool {
	_, ok := e.registry.Get(userID, mode)
	return ok
}

// Refresh forces a fetch-render-send cycle for an active session,
// bypassing change detection. Used by the refresh postback button.
func (e *Engine) Refresh(ctx context.Context, userID string, mode Mode) error {
	sess, ok := e.registry.Get(userID, mode)
	if !ok {
		return fmt.Errorf("no active %s session for %s", mode, userID)
	}

	sess.resetLast()
	delay, stop := e.tick(sess)
	_ = delay
	if stop {
		e.teardown(sess)
	}
	return nil
}

func (e *Engine) loop(sess *Session, delay time.Duration) {
	for {
		timer := time.NewTimer(delay)
		select {
		case <-sess.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Guard against a tick firing after the session was removed.
		if sess.Cancelled() || !e.registry.Alive(sess) {
			return
		}

		var stop bool
		delay, stop = e.tick(sess)
		if stop {
			e.teardown(sess)
			return
		}
	}
}

func (e *Engine) teardown(sess *Session) {
	e.registry.Remove(sess.UserID, sess.Mode)
	metrics.ActiveSessions.Set(float64(e.registry.Len()))
}

// tick runs one full polling cycle and returns the delay before the
// next one, or stop=true when the session must be torn down. Ticks for
// a session never overlap: a Refresh arriving while the loop's tick is
// in flight waits for it to finish.
func (e *Engine) tick(sess *Session) (next time.Duration, stop bool) {
	sess.tickMu.Lock()
	defer sess.tickMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	ctx := sess.ctx

	snapshot, err := e.fetcher.FetchStock(ctx)
	if err == nil {
		var weather *models.WeatherReport
		weather, err = e.fetcher.FetchWeather(ctx)
		if err == nil {
			return e.processTick(sess, snapshot, weather)
		}
	}

	switch {
	case sess.Cancelled():
		// Stop arrived mid-fetch; nothing to report.
		return 0, true

	case stock.IsTimeout(err):
		metrics.FetchErrors.WithLabelValues("timeout").Inc()
		log.Printf("Session engine: fetch timeout for %s (%s), backing off %v", sess.UserID, sess.Mode, e.backoff)
		return e.backoff, false

	case errors.Is(err, stock.ErrUpstream):
		metrics.FetchErrors.WithLabelValues("upstream").Inc()
		log.Printf("Session engine: upstream error for %s (%s): %v", sess.UserID, sess.Mode, err)
		e.notify(sess, fmt.Sprintf("⚠️ Stock API temporarily unavailable\nRetrying in %d seconds...", int(e.backoff.Seconds())))
		return e.backoff, false

	default:
		// Decode failures and anything unexpected end the session.
		metrics.FetchErrors.WithLabelValues("fatal").Inc()
		log.Printf("Session engine: fatal error for %s (%s), stopping session: %v", sess.UserID, sess.Mode, err)
		restart := "gagstock on"
		if sess.Mode == ModeFavorites {
			restart = "gagstockfav on"
		}
		e.notify(sess, fmt.Sprintf("❌ Unexpected error occurred\nStopping tracker. Use '%s' to restart.", restart))
		return 0, true
	}
}

func (e *Engine) processTick(sess *Session, snapshot *models.StockSnapshot, weather *models.WeatherReport) (time.Duration, bool) {
	combinedKey := stock.CombinedKey(snapshot, weather)

	lastKey, lastText := sess.last()
	if combinedKey == lastKey {
		return e.interval, false
	}
	sess.setLastKey(combinedKey)

	now := time.Now()
	var text string
	var notified []models.StockItem

	switch sess.Mode {
	case ModeFavorites:
		tracked, err := e.store.TrackedItems(sess.UserID)
		if err != nil {
			log.Printf("Session engine: failed to load tracked items for %s: %v", sess.UserID, err)
			return e.interval, false
		}

		matched := TrackedInStock(tracked, snapshot)
		e.recordPriceHistory(sess.UserID, matched, now)

		prefs, err := e.store.Preferences(sess.UserID)
		if err != nil {
			prefs = models.DefaultPreferences(sess.UserID)
		}

		cooldown := time.Duration(prefs.CooldownSeconds) * time.Second
		recent, err := e.store.RecentNotifications(sess.UserID, now.Add(-cooldown))
		if err != nil {
			log.Printf("Session engine: failed to load notification history for %s: %v", sess.UserID, err)
		}

		eligible := FilterEligible(matched, prefs, recent, now)
		if len(eligible) == 0 {
			return e.interval, false
		}

		text = RenderFavoritesUpdate(eligible, weather, prefs.ShowRarity, now)
		notified = eligible

	default:
		tracked, err := e.store.TrackedItems(sess.UserID)
		if err == nil {
			e.recordPriceHistory(sess.UserID, TrackedInStock(tracked, snapshot), now)
		}
		text = RenderFullUpdate(snapshot, weather, now)
	}

	if text == "" || text == lastText {
		return e.interval, false
	}

	if !e.notify(sess, text) {
		return e.interval, false
	}
	sess.setLastText(text)

	for _, item := range notified {
		rec := models.NotificationRecord{
			UserID:   sess.UserID,
			Category: item.Category,
			ItemName: item.Name,
			Value:    item.Value,
			SentAt:   now,
		}
		if err := e.store.RecordNotification(rec); err != nil {
			log.Printf("Session engine: failed to record notification for %s: %v", sess.UserID, err)
		}
	}

	sent := len(notified)
	if sent == 0 {
		sent = 1 // full-mode update counts as one notification
	}
	if err := e.store.BumpNotificationsSent(sess.UserID, sent); err != nil {
		log.Printf("Session engine: failed to bump notification stats for %s: %v", sess.UserID, err)
	}
	metrics.NotificationsSent.Add(float64(sent))

	return e.interval, false
}

func (e *Engine) recordPriceHistory(userID string, matched []models.StockItem, now time.Time) {
	for _, item := range matched {
		point := models.PricePoint{
			UserID:     userID,
			Category:   item.Category,
			ItemName:   item.Name,
			Value:      item.Value,
			RecordedAt: now,
		}
		if err := e.store.RecordPricePoint(point); err != nil {
			log.Printf("Session engine: failed to record price point for %s: %v", userID, err)
		}
	}
}

// notify delivers a message if the session is still live. Send failures
// are logged and swallowed; they must never take down the loop.
func (e *Engine) notify(sess *Session, text string) bool {
	if sess.Cancelled() || !e.registry.Alive(sess) {
		return false
	}
	if _, err := e.sender.SendText(sess.ctx, sess.UserID, text); err != nil {
		log.Printf("Session engine: failed to send notification to %s: %v", sess.UserID, err)
		return false
	}
	return true
}
