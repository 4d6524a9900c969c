package session

import (
	"fmt"
	"time"

	"github.com/growagarden/gagstock-bot/internal/models"
)

// Restock boundaries are computed on Philippine wall-clock time, the
// game's reference timezone.
var manila = loadManila()

func loadManila() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

const sevenHourStep = 7 * time.Hour

// NextRestock returns the next cadence boundary for a category at or
// after now. A time exactly on a boundary is its own next restock.
func NextRestock(category string, now time.Time) time.Time {
	now = now.In(manila)

	switch category {
	case models.CategoryGear, models.CategorySeed:
		return nextBoundary(now, 5*time.Minute)
	case models.CategoryEgg:
		return nextBoundary(now, 30*time.Minute)
	case models.CategoryHoney:
		return nextBoundary(now, time.Hour)
	case models.CategoryCosmetic:
		return nextSevenHourMark(now)
	default:
		return now
	}
}

// nextBoundary works for steps that divide an hour; Manila has a
// whole-hour UTC offset and no DST, so absolute truncation lines up
// with the wall clock.
func nextBoundary(now time.Time, step time.Duration) time.Time {
	t := now.Truncate(step)
	if t.Equal(now) {
		return now
	}
	return t.Add(step)
}

// nextSevenHourMark returns the next multiple of seven hours counted
// from local midnight (00:00, 07:00, 14:00, 21:00, then 04:00 the next
// day).
func nextSevenHourMark(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, manila)
	elapsed := now.Sub(midnight)
	if elapsed%sevenHourStep == 0 {
		return now
	}
	steps := elapsed/sevenHourStep + 1
	return midnight.Add(time.Duration(steps) * sevenHourStep)
}

// Countdown renders the time remaining until target as HHh MMm SSs.
// Anything at or past the target renders as zero.
func Countdown(target, now time.Time) string {
	left := target.Sub(now)
	if left <= 0 {
		return "00h 00m 00s"
	}

	total := int(left.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%02dh %02dm %02ds", hours, minutes, seconds)
}

// Restocks returns the rendered countdown per category for now.
func Restocks(now time.Time) map[string]string {
	out := make(map[string]string, len(models.Categories()))
	for _, category := range models.Categories() {
		out[category] = Countdown(NextRestock(category, now), now)
	}
	return out
}
