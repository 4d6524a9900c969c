package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
	"github.com/growagarden/gagstock-bot/internal/stock"
)

type fakeFetcher struct {
	mu       sync.Mutex
	snapshot *models.StockSnapshot
	weather  *models.WeatherReport
	stockErr error

	// When set, FetchStock blocks until the channel is closed or the
	// context is cancelled.
	block chan struct{}
}

func (f *fakeFetcher) FetchStock(ctx context.Context) (*models.StockSnapshot, error) {
	f.mu.Lock()
	block := f.block
	snapshot, err := f.snapshot, f.stockErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeFetcher) FetchWeather(ctx context.Context) (*models.WeatherReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.weather, nil
}

func (f *fakeFetcher) setStock(snapshot *models.StockSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
	f.stockErr = err
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	seq   int
}

func (s *fakeSender) SendText(ctx context.Context, recipientID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("send failed")
	}
	s.sent = append(s.sent, text)
	s.seq++
	return fmt.Sprintf("mid.%d", s.seq), nil
}

func (s *fakeSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

type fakeStore struct {
	mu            sync.Mutex
	tracked       []models.TrackedItem
	prefs         map[string]models.UserPreferences
	notifications []models.NotificationRecord
	pricePoints   []models.PricePoint
	sentCount     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{prefs: make(map[string]models.UserPreferences)}
}

func (s *fakeStore) TrackedItems(userID string) ([]models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrackedItem(nil), s.tracked...), nil
}

func (s *fakeStore) Preferences(userID string) (models.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(userID), nil
}

func (s *fakeStore) RecentNotifications(userID string, since time.Time) ([]models.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NotificationRecord
	for _, rec := range s.notifications {
		if rec.UserID == userID && rec.SentAt.After(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) RecordNotification(rec models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *fakeStore) RecordPricePoint(point models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricePoints = append(s.pricePoints, point)
	return nil
}

func (s *fakeStore) BumpSessionStarted(userID string) error { return nil }

func (s *fakeStore) BumpNotificationsSent(userID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentCount += n
	return nil
}

func testSnapshot() *models.StockSnapshot {
	return &models.StockSnapshot{
		Items: []models.StockItem{
			{Category: models.CategoryGear, Name: "shovel", DisplayName: "Shovel", Value: 500},
			{Category: models.CategorySeed, Name: "carrot seed", DisplayName: "Carrot Seed", Value: 12000},
		},
	}
}

func newTestEngine(fetcher Fetcher, sender Sender, st Store) *Engine {
	return NewEngine(NewRegistry(), fetcher, sender, st, Config{
		Interval: 10 * time.Millisecond,
		Backoff:  20 * time.Millisecond,
	})
}

func TestStartRunsFirstTickAndNotifies(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: testSnapshot(), weather: sampleWeather()}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())
	defer engine.StopAll()

	created, err := engine.Start(context.Background(), "u1", ModeFull)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !created {
		t.Fatal("expected first Start to create a session")
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after first tick, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "Shovel") || !strings.Contains(msgs[0], "x500") {
		t.Errorf("first update missing item data:\n%s", msgs[0])
	}

	created, err = engine.Start(context.Background(), "u1", ModeFull)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if created {
		t.Error("second Start for same user and mode created a session")
	}
}

func TestUnchangedPayloadDoesNotRenotify(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: testSnapshot(), weather: sampleWeather()}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFull)
	defer engine.registry.Remove("u1", ModeFull)

	for i := 0; i < 3; i++ {
		if _, stop := engine.tick(sess); stop {
			t.Fatalf("tick %d requested stop", i)
		}
	}

	if got := len(sender.messages()); got != 1 {
		t.Errorf("expected 1 message across identical ticks, got %d", got)
	}

	// A changed payload notifies again.
	changed := testSnapshot()
	changed.Items[0].Value = 999
	fetcher.setStock(changed, nil)

	if _, stop := engine.tick(sess); stop {
		t.Fatal("tick after change requested stop")
	}
	if got := len(sender.messages()); got != 2 {
		t.Errorf("expected 2 messages after change, got %d", got)
	}
}

func TestTimeoutBacksOffSilently(t *testing.T) {
	fetcher := &fakeFetcher{stockErr: context.DeadlineExceeded}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFull)
	defer engine.registry.Remove("u1", ModeFull)

	delay, stop := engine.tick(sess)
	if stop {
		t.Fatal("timeout must not stop the session")
	}
	if delay != 20*time.Millisecond {
		t.Errorf("expected backoff delay, got %v", delay)
	}
	if got := len(sender.messages()); got != 0 {
		t.Errorf("timeout must be silent, got %d messages", got)
	}
}

func TestUpstreamErrorSendsNoticeAndBacksOff(t *testing.T) {
	fetcher := &fakeFetcher{stockErr: fmt.Errorf("%w: status 503", stock.ErrUpstream)}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFull)
	defer engine.registry.Remove("u1", ModeFull)

	delay, stop := engine.tick(sess)
	if stop {
		t.Fatal("upstream error must not stop the session")
	}
	if delay != 20*time.Millisecond {
		t.Errorf("expected backoff delay, got %v", delay)
	}

	msgs := sender.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "⚠️ Stock API temporarily unavailable") {
		t.Errorf("expected unavailable notice, got %v", msgs)
	}
}

func TestFatalErrorTearsDownWithRestartHint(t *testing.T) {
	fetcher := &fakeFetcher{stockErr: fmt.Errorf("%w: invalid body", stock.ErrDecode)}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())

	created, err := engine.Start(context.Background(), "u1", ModeFavorites)
	if err != nil || !created {
		t.Fatalf("Start = (%v, %v)", created, err)
	}

	if engine.Active("u1", ModeFavorites) {
		t.Error("session still active after fatal first tick")
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 teardown message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "❌ Unexpected error occurred") ||
		!strings.Contains(msgs[0], "'gagstockfav on'") {
		t.Errorf("unexpected teardown message: %q", msgs[0])
	}
}

func TestStopDuringFetchSuppressesNotification(t *testing.T) {
	fetcher := &fakeFetcher{
		snapshot: testSnapshot(),
		weather:  sampleWeather(),
		block:    make(chan struct{}),
	}
	sender := &fakeSender{}
	engine := newTestEngine(fetcher, sender, newFakeStore())

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFull)

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.tick(sess)
	}()

	// Stop while the fetch is in flight, then release it. Whichever way
	// the in-flight tick unwinds, nothing may reach the user and the
	// session must be gone.
	engine.Stop("u1", ModeFull)
	close(fetcher.block)
	<-done

	if got := len(sender.messages()); got != 0 {
		t.Errorf("stopped session still sent %d messages", got)
	}
	if engine.Active("u1", ModeFull) {
		t.Error("session still registered after Stop")
	}
}

func TestFavoritesTickFiltersAndRecords(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: testSnapshot(), weather: sampleWeather()}
	sender := &fakeSender{}
	st := newFakeStore()
	st.tracked = []models.TrackedItem{
		{UserID: "u1", Category: models.CategoryGear, ItemName: "shovel"},
	}
	engine := newTestEngine(fetcher, sender, st)

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFavorites)
	defer engine.registry.Remove("u1", ModeFavorites)

	if _, stop := engine.tick(sess); stop {
		t.Fatal("tick requested stop")
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 favorites message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "⭐ Your favorite items are in stock!") ||
		!strings.Contains(msgs[0], "Shovel") {
		t.Errorf("unexpected favorites message:\n%s", msgs[0])
	}
	if strings.Contains(msgs[0], "Carrot Seed") {
		t.Errorf("untracked item leaked into favorites message:\n%s", msgs[0])
	}

	st.mu.Lock()
	recs, points := len(st.notifications), len(st.pricePoints)
	st.mu.Unlock()
	if recs != 1 {
		t.Errorf("expected 1 notification record, got %d", recs)
	}
	if points != 1 {
		t.Errorf("expected 1 price point, got %d", points)
	}
}

func TestFavoritesCooldownSuppressesRepeat(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: testSnapshot(), weather: sampleWeather()}
	sender := &fakeSender{}
	st := newFakeStore()
	st.tracked = []models.TrackedItem{
		{UserID: "u1", Category: models.CategoryGear, ItemName: "shovel"},
	}
	engine := newTestEngine(fetcher, sender, st)

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFavorites)
	defer engine.registry.Remove("u1", ModeFavorites)

	if _, stop := engine.tick(sess); stop {
		t.Fatal("first tick requested stop")
	}

	// Same item restocks with a new value inside the cooldown window.
	changed := testSnapshot()
	changed.Items[0].Value = 600
	fetcher.setStock(changed, nil)

	if _, stop := engine.tick(sess); stop {
		t.Fatal("second tick requested stop")
	}
	if got := len(sender.messages()); got != 1 {
		t.Errorf("cooldown did not suppress repeat notification, got %d messages", got)
	}
}

// gatedFetcher parks FetchStock until released and records whether two
// fetches for the same session ever ran at the same time.
type gatedFetcher struct {
	snapshot *models.StockSnapshot
	weather  *models.WeatherReport

	entered chan struct{}
	release chan struct{}

	inFlight atomic.Int32
	calls    atomic.Int32
	overlap  atomic.Bool
}

func (f *gatedFetcher) FetchStock(ctx context.Context) (*models.StockSnapshot, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	f.calls.Add(1)

	select {
	case f.entered <- struct{}{}:
	default:
	}

	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.snapshot, nil
}

func (f *gatedFetcher) FetchWeather(ctx context.Context) (*models.WeatherReport, error) {
	return f.weather, nil
}

func TestRefreshSerializesWithInFlightTick(t *testing.T) {
	fetcher := &gatedFetcher{
		snapshot: testSnapshot(),
		weather:  sampleWeather(),
		entered:  make(chan struct{}, 2),
		release:  make(chan struct{}),
	}
	sender := &fakeSender{}
	engine := NewEngine(NewRegistry(), fetcher, sender, newFakeStore(), Config{
		Interval: time.Hour,
		Backoff:  time.Hour,
	})

	sess, _ := engine.registry.Create(context.Background(), "u1", ModeFull)
	defer engine.registry.Remove("u1", ModeFull)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.tick(sess)
	}()
	<-fetcher.entered // the loop's tick is now parked inside the fetch

	go func() {
		defer wg.Done()
		if err := engine.Refresh(context.Background(), "u1", ModeFull); err != nil {
			t.Errorf("Refresh: %v", err)
		}
	}()

	// Let the refresh contend for the session, then unblock everything.
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	if fetcher.overlap.Load() {
		t.Fatal("two ticks for one session were in flight at once")
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

func TestRefreshBypassesChangeDetection(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: testSnapshot(), weather: sampleWeather()}
	sender := &fakeSender{}
	// A long interval keeps the background loop out of the way; only the
	// synchronous first tick and the explicit Refresh run here.
	engine := NewEngine(NewRegistry(), fetcher, sender, newFakeStore(), Config{
		Interval: time.Hour,
		Backoff:  time.Hour,
	})
	defer engine.StopAll()

	if _, err := engine.Start(context.Background(), "u1", ModeFull); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := len(sender.messages())

	if err := engine.Refresh(context.Background(), "u1", ModeFull); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := len(sender.messages()); got != before+1 {
		t.Errorf("Refresh did not resend: %d messages before, %d after", before, got)
	}

	engine.StopAll()
	if err := engine.Refresh(context.Background(), "u1", ModeFull); err == nil {
		t.Error("Refresh of absent session returned nil error")
	}
}
