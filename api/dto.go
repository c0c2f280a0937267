/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/kabayanhub/points-engine/ledger"
	"github.com/kabayanhub/points-engine/tracker"
)

// =============================================================================
// AUTH
// =============================================================================

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionDTO struct {
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
	Account   AccountDTO `json:"account"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Role             string  `json:"role"`
	Balance          int64   `json:"balance"`
	LastDailyCheckin *string `json:"last_daily_checkin,omitempty"`
	LastWeeklyQuiz   *string `json:"last_weekly_quiz,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:               string(a.ID),
		Name:             a.Name,
		Role:             string(a.Role),
		Balance:          a.Balance,
		LastDailyCheckin: formatTimePtr(a.LastDailyCheckin),
		LastWeeklyQuiz:   formatTimePtr(a.LastWeeklyQuiz),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// POINTS
// =============================================================================

type ClaimRequest struct {
	Action    string `json:"action"`     // news_read | video_watch | share
	ContentID string `json:"content_id"` // id of the news/video/content shared
}

type QuizRequest struct {
	Correct int `json:"correct"` // number of correctly answered questions
}

type EntryDTO struct {
	ID        string `json:"id"`
	ActionKey string `json:"action_key"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

func toEntryDTO(e ledger.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:        string(e.ID),
		ActionKey: string(e.ActionKey),
		Amount:    e.Amount,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

type AwardDTO struct {
	Entry   EntryDTO `json:"entry"`
	Balance int64    `json:"balance"`
}

type LeaderboardRowDTO struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Earned    int64  `json:"earned"`
}

// =============================================================================
// MARKETPLACE
// =============================================================================

type ItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       *int64 `json:"stock"` // null = unlimited
	Active      *bool  `json:"active"`
}

type ItemDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       *int64 `json:"stock"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toItemDTO(i ledger.RewardItem) ItemDTO {
	return ItemDTO{
		ID:          string(i.ID),
		Name:        i.Name,
		Description: i.Description,
		Price:       i.Price,
		Stock:       i.Stock,
		Active:      i.Active,
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   i.UpdatedAt.Format(time.RFC3339),
	}
}

type RedemptionDTO struct {
	ID         string  `json:"id"`
	AccountID  string  `json:"account_id"`
	ItemID     string  `json:"item_id"`
	ItemName   string  `json:"item_name"`
	Price      int64   `json:"price"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	RedeemedAt *string `json:"redeemed_at,omitempty"`
}

func toRedemptionDTO(r ledger.RedemptionRecord) RedemptionDTO {
	return RedemptionDTO{
		ID:         string(r.ID),
		AccountID:  string(r.AccountID),
		ItemID:     string(r.ItemID),
		ItemName:   r.ItemName,
		Price:      r.Price,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		RedeemedAt: formatTimePtr(r.RedeemedAt),
	}
}

// =============================================================================
// TRACKERS
// =============================================================================

type BudgetEntryRequest struct {
	Kind       string `json:"kind"` // income | expense
	Category   string `json:"category"`
	Amount     string `json:"amount"` // decimal string, e.g. "1250.75"
	Note       string `json:"note"`
	OccurredOn string `json:"occurred_on"` // YYYY-MM-DD, default today
}

type BudgetEntryDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Note       string `json:"note"`
	OccurredOn string `json:"occurred_on"`
}

func toBudgetEntryDTO(e tracker.BudgetEntry) BudgetEntryDTO {
	return BudgetEntryDTO{
		ID:         e.ID,
		Kind:       string(e.Kind),
		Category:   e.Category,
		Amount:     e.Amount.String(),
		Note:       e.Note,
		OccurredOn: e.OccurredOn.Format("2006-01-02"),
	}
}

type BudgetSummaryDTO struct {
	Month   string `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type CalorieEntryRequest struct {
	Food       string `json:"food"`
	Calories   int64  `json:"calories"`
	Meal       string `json:"meal"` // breakfast | lunch | dinner | snack
	OccurredOn string `json:"occurred_on"`
}

type CalorieEntryDTO struct {
	ID         string `json:"id"`
	Food       string `json:"food"`
	Calories   int64  `json:"calories"`
	Meal       string `json:"meal"`
	OccurredOn string `json:"occurred_on"`
}

func toCalorieEntryDTO(e tracker.CalorieEntry) CalorieEntryDTO {
	return CalorieEntryDTO{
		ID:         e.ID,
		Food:       e.Food,
		Calories:   e.Calories,
		Meal:       string(e.Meal),
		OccurredOn: e.OccurredOn.Format("2006-01-02"),
	}
}

type DaySummaryDTO struct {
	Day     string            `json:"day"`
	Total   int64             `json:"total"`
	ByMeal  map[string]int64  `json:"by_meal"`
	Entries []CalorieEntryDTO `json:"entries"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// RetryAfterSeconds is set for cooldown rejections so clients can show
	// a countdown.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
