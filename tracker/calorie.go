package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// CALORIE TYPES
// =============================================================================

type MealSlot string

const (
	MealBreakfast MealSlot = "breakfast"
	MealLunch     MealSlot = "lunch"
	MealDinner    MealSlot = "dinner"
	MealSnack     MealSlot = "snack"
)

// CalorieEntry is one logged food item.
type CalorieEntry struct {
	ID         string
	AccountID  ledger.AccountID
	Food       string
	Calories   int64
	Meal       MealSlot
	OccurredOn time.Time // date granularity
	CreatedAt  time.Time
}

// DaySummary totals one day's intake.
type DaySummary struct {
	Day     string // "2026-08-28"
	Total   int64
	ByMeal  map[MealSlot]int64
	Entries []CalorieEntry
}

// =============================================================================
// SERVICE OPERATIONS
// =============================================================================

// AddCalorieEntry validates and persists one food log line.
func (s *Service) AddCalorieEntry(ctx context.Context, e CalorieEntry) (CalorieEntry, error) {
	if e.Food == "" {
		return CalorieEntry{}, fmt.Errorf("%w: food is required", ErrInvalidEntry)
	}
	if e.Calories < 0 {
		return CalorieEntry{}, fmt.Errorf("%w: calories must not be negative", ErrInvalidEntry)
	}
	switch e.Meal {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	case "":
		e.Meal = MealSnack
	default:
		return CalorieEntry{}, fmt.Errorf("%w: unknown meal slot %q", ErrInvalidEntry, e.Meal)
	}
	if e.OccurredOn.IsZero() {
		e.OccurredOn = s.now()
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	if err := s.store.AddCalorieEntry(ctx, e); err != nil {
		return CalorieEntry{}, err
	}
	return e, nil
}

// DeleteCalorieEntry removes one of the caller's entries.
func (s *Service) DeleteCalorieEntry(ctx context.Context, id ledger.AccountID, entryID string) error {
	return s.store.DeleteCalorieEntry(ctx, id, entryID)
}

// Day returns the totals and entries for one calendar day.
func (s *Service) Day(ctx context.Context, id ledger.AccountID, day time.Time) (DaySummary, error) {
	entries, err := s.store.ListCalorieEntries(ctx, id, day)
	if err != nil {
		return DaySummary{}, err
	}

	summary := DaySummary{
		Day:     day.UTC().Format("2006-01-02"),
		ByMeal:  make(map[MealSlot]int64),
		Entries: entries,
	}
	for _, e := range entries {
		summary.Total += e.Calories
		summary.ByMeal[e.Meal] += e.Calories
	}
	return summary, nil
}
