/*
handlers.go - HTTP API handlers for the Kabayan points engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates every state change to the domain services.
  No handler ever writes balance or stock directly; only the engine does.

ENDPOINTS:
  Auth:
    POST /api/auth/signup              Create account (balance 0) + session
    POST /api/auth/login               Issue bearer token
    POST /api/auth/logout              Invalidate token

  Accounts:
    GET  /api/accounts/me              Balance, role, cooldowns
    GET  /api/accounts/me/entries      Activity feed

  Points:
    POST /api/points/claim             Award-once for news/video/share
    POST /api/points/checkin           Daily check-in (24h elapsed window)
    POST /api/points/quiz              Weekly quiz (7d elapsed window)
    GET  /api/leaderboard              Points earned ranking

  Marketplace:
    GET  /api/market/items             Catalog
    POST /api/market/items             Create item (admin, engine role gate)
    PUT  /api/market/items/{id}        Update item (admin, engine role gate)
    POST /api/market/items/{id}/redeem Redeem
    GET  /api/market/redemptions       Redemption queue (admin)
    POST /api/market/redemptions/{id}/redeem  Mark fulfilled (admin)

  Trackers:
    /api/budget/*                      Budget entries and month summary
    /api/calories/*                    Calorie entries and day summary

ERROR HANDLING:
  Domain errors map to HTTP status:
  - 400: validation
  - 401: no/invalid session
  - 403: role gate
  - 404: account/item/redemption/entry not found
  - 409: already claimed, cooldown active, invalid state, name taken
  - 422: insufficient balance, sold out
  - 503: store contention (retryable)

SEE ALSO:
  - dto.go:    request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kabayanhub/points-engine/auth"
	"github.com/kabayanhub/points-engine/chat"
	"github.com/kabayanhub/points-engine/ledger"
	"github.com/kabayanhub/points-engine/store/sqlite"
	"github.com/kabayanhub/points-engine/tracker"
)

// =============================================================================
// AWARD TABLE - Fixed point values per action
// =============================================================================

const (
	pointsNewsRead   = 10
	pointsVideoWatch = 15
	pointsShare      = 5
	pointsCheckin    = 20

	pointsPerQuizAnswer = 10
	quizPointsCap       = 50

	leaderboardWindow = 30 * 24 * time.Hour
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *ledger.Engine
	Auth    *auth.Service
	Tracker *tracker.Service
	Hub     *chat.Hub
}

// NewHandler wires the handler over a single SQLite store.
func NewHandler(store *sqlite.Store, hub *chat.Hub) *Handler {
	return &Handler{
		Store:   store,
		Engine:  ledger.NewEngine(store),
		Auth:    auth.NewService(store),
		Tracker: tracker.NewService(store),
		Hub:     hub,
	}
}

func (h *Handler) broadcast(msg chat.Message) {
	if h.Hub != nil {
		h.Hub.Broadcast(msg)
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Signup creates an account with balance 0 and returns a session.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, sess, err := h.Auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, "Signup failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionDTO{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		Account:   toAccountDTO(account),
	})
}

// Login verifies credentials and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, sess, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, "Login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SessionDTO{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		Account:   toAccountDTO(account),
	})
}

// Logout invalidates the caller's token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "Logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Me returns the caller's account with balance and cooldown timestamps.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.Store.GetAccount(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		writeDomainError(w, "Failed to load account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// MyEntries returns the caller's activity feed, newest first.
func (h *Handler) MyEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Store.ListEntries(r.Context(), auth.AccountID(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POINTS HANDLERS
// =============================================================================

// ClaimAction awards points exactly once for a content action.
func (h *Handler) ClaimAction(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ContentID == "" {
		writeError(w, http.StatusBadRequest, "content_id is required", nil)
		return
	}

	var (
		key    ledger.ActionKey
		amount int64
	)
	switch req.Action {
	case "news_read":
		key, amount = ledger.NewsReadKey(req.ContentID), pointsNewsRead
	case "video_watch":
		key, amount = ledger.VideoWatchKey(req.ContentID), pointsVideoWatch
	case "share":
		key, amount = ledger.ShareKey(req.ContentID), pointsShare
	default:
		writeError(w, http.StatusBadRequest, "Unknown action (use news_read, video_watch, or share)", nil)
		return
	}

	h.award(w, r, func() (ledger.LedgerEntry, error) {
		return h.Engine.AwardOnce(r.Context(), auth.AccountID(r.Context()), key, amount)
	})
}

// Checkin awards the daily check-in bonus if 24 hours have elapsed since
// the previous successful check-in.
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	h.award(w, r, func() (ledger.LedgerEntry, error) {
		return h.Engine.AwardWithCooldown(r.Context(), auth.AccountID(r.Context()),
			ledger.CooldownDailyCheckin, pointsCheckin, ledger.DailyCheckinWindow)
	})
}

// Quiz awards points proportional to correct answers, capped, once per
// 7 elapsed days.
func (h *Handler) Quiz(w http.ResponseWriter, r *http.Request) {
	var req QuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Correct <= 0 {
		writeError(w, http.StatusBadRequest, "correct must be positive", nil)
		return
	}

	amount := int64(req.Correct) * pointsPerQuizAnswer
	if amount > quizPointsCap {
		amount = quizPointsCap
	}

	h.award(w, r, func() (ledger.LedgerEntry, error) {
		return h.Engine.AwardWithCooldown(r.Context(), auth.AccountID(r.Context()),
			ledger.CooldownWeeklyQuiz, amount, ledger.WeeklyQuizWindow)
	})
}

// award runs an engine award operation, broadcasts the event, and responds
// with the entry and fresh balance.
func (h *Handler) award(w http.ResponseWriter, r *http.Request, op func() (ledger.LedgerEntry, error)) {
	entry, err := op()
	if err != nil {
		writeDomainError(w, "Award rejected", err)
		return
	}

	account, err := h.Store.GetAccount(r.Context(), entry.AccountID)
	if err != nil {
		writeDomainError(w, "Failed to load account", err)
		return
	}

	h.broadcast(chat.NewEventMessage(chat.TypePoints, map[string]any{
		"account": account.Name,
		"amount":  entry.Amount,
		"reason":  entry.Reason,
	}))

	writeJSON(w, http.StatusOK, AwardDTO{Entry: toEntryDTO(entry), Balance: account.Balance})
}

// Leaderboard returns the points-earned ranking over the last 30 days.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	since := time.Now().UTC().Add(-leaderboardWindow)

	rows, err := h.Store.Leaderboard(r.Context(), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard", err)
		return
	}

	dtos := make([]LeaderboardRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = LeaderboardRowDTO{
			AccountID: string(row.AccountID),
			Name:      row.Name,
			Earned:    row.Earned,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MARKETPLACE HANDLERS
// =============================================================================

// ListItems returns the catalog. Non-active items are included only with
// ?all=true (intended for the admin panel; harmless for others).
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	items, err := h.Store.ListItems(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateItem adds a catalog item. The engine enforces the admin role gate.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	item, err := h.Engine.CreateItem(r.Context(), auth.AccountID(r.Context()), ledger.RewardItem{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      active,
	})
	if err != nil {
		writeDomainError(w, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// UpdateItem replaces a catalog item's fields. Engine role gate applies.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	item, err := h.Engine.UpdateItem(r.Context(), auth.AccountID(r.Context()), ledger.RewardItem{
		ID:          ledger.ItemID(chi.URLParam(r, "id")),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      active,
	})
	if err != nil {
		writeDomainError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// RedeemItem exchanges the caller's points for an item.
func (h *Handler) RedeemItem(w http.ResponseWriter, r *http.Request) {
	itemID := ledger.ItemID(chi.URLParam(r, "id"))

	rec, err := h.Engine.Redeem(r.Context(), auth.AccountID(r.Context()), itemID)
	if err != nil {
		writeDomainError(w, "Redemption rejected", err)
		return
	}

	account, _ := auth.FromContext(r.Context())
	h.broadcast(chat.NewEventMessage(chat.TypeRedemption, map[string]any{
		"account": account.Name,
		"item":    rec.ItemName,
		"price":   rec.Price,
	}))

	writeJSON(w, http.StatusCreated, toRedemptionDTO(rec))
}

// ListRedemptions returns the redemption queue. Admin only; the role is
// read fresh from the store, not from the session.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	actor, err := h.Store.GetAccount(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		writeDomainError(w, "Failed to load account", err)
		return
	}
	if actor.Role != ledger.RoleAdmin {
		writeDomainError(w, "Admin only", ledger.ErrForbidden)
		return
	}

	status := ledger.RedemptionStatus(r.URL.Query().Get("status"))
	recs, err := h.Store.ListRedemptions(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toRedemptionDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkRedeemed fulfills a pending redemption. Engine role gate applies.
func (h *Handler) MarkRedeemed(w http.ResponseWriter, r *http.Request) {
	id := ledger.RedemptionID(chi.URLParam(r, "id"))

	rec, err := h.Engine.MarkRedeemed(r.Context(), id, auth.AccountID(r.Context()))
	if err != nil {
		writeDomainError(w, "Failed to mark redeemed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(rec))
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudget returns the caller's entries for a month (?month=2026-08,
// default current).
func (h *Handler) ListBudget(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseMonth(r.URL.Query().Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", nil)
		return
	}

	entries, err := h.Tracker.MonthEntries(r.Context(), auth.AccountID(r.Context()), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budget entries", err)
		return
	}

	dtos := make([]BudgetEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toBudgetEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBudgetEntry adds one income/expense line.
func (h *Handler) CreateBudgetEntry(w http.ResponseWriter, r *http.Request) {
	var req BudgetEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string)", err)
		return
	}
	occurredOn, ok := parseDay(req.OccurredOn)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid occurred_on (use YYYY-MM-DD)", nil)
		return
	}

	entry, err := h.Tracker.AddBudgetEntry(r.Context(), tracker.BudgetEntry{
		AccountID:  auth.AccountID(r.Context()),
		Kind:       tracker.BudgetKind(req.Kind),
		Category:   req.Category,
		Amount:     amount,
		Note:       req.Note,
		OccurredOn: occurredOn,
	})
	if err != nil {
		writeDomainError(w, "Failed to add budget entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetEntryDTO(entry))
}

// DeleteBudgetEntry removes one of the caller's entries.
func (h *Handler) DeleteBudgetEntry(w http.ResponseWriter, r *http.Request) {
	err := h.Tracker.DeleteBudgetEntry(r.Context(), auth.AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to delete budget entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BudgetSummary nets income against expense for a month.
func (h *Handler) BudgetSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseMonth(r.URL.Query().Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", nil)
		return
	}

	summary, err := h.Tracker.MonthSummary(r.Context(), auth.AccountID(r.Context()), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize budget", err)
		return
	}
	writeJSON(w, http.StatusOK, BudgetSummaryDTO{
		Month:   summary.Month,
		Income:  summary.Income.String(),
		Expense: summary.Expense.String(),
		Net:     summary.Net.String(),
	})
}

// =============================================================================
// CALORIE HANDLERS
// =============================================================================

// CreateCalorieEntry logs one food item.
func (h *Handler) CreateCalorieEntry(w http.ResponseWriter, r *http.Request) {
	var req CalorieEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	occurredOn, ok := parseDay(req.OccurredOn)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid occurred_on (use YYYY-MM-DD)", nil)
		return
	}

	entry, err := h.Tracker.AddCalorieEntry(r.Context(), tracker.CalorieEntry{
		AccountID:  auth.AccountID(r.Context()),
		Food:       req.Food,
		Calories:   req.Calories,
		Meal:       tracker.MealSlot(req.Meal),
		OccurredOn: occurredOn,
	})
	if err != nil {
		writeDomainError(w, "Failed to add calorie entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalorieEntryDTO(entry))
}

// DeleteCalorieEntry removes one of the caller's entries.
func (h *Handler) DeleteCalorieEntry(w http.ResponseWriter, r *http.Request) {
	err := h.Tracker.DeleteCalorieEntry(r.Context(), auth.AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to delete calorie entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CalorieDay returns totals and entries for a day (?date=2026-08-28,
// default today).
func (h *Handler) CalorieDay(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", nil)
		return
	}

	summary, err := h.Tracker.Day(r.Context(), auth.AccountID(r.Context()), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize day", err)
		return
	}

	dto := DaySummaryDTO{
		Day:     summary.Day,
		Total:   summary.Total,
		ByMeal:  make(map[string]int64, len(summary.ByMeal)),
		Entries: make([]CalorieEntryDTO, len(summary.Entries)),
	}
	for meal, total := range summary.ByMeal {
		dto.ByMeal[string(meal)] = total
	}
	for i, e := range summary.Entries {
		dto.Entries[i] = toCalorieEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMonth(s string) (int, time.Month, bool) {
	if s == "" {
		now := time.Now().UTC()
		return now.Year(), now.Month(), true
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var cd *ledger.CooldownError
	if errors.As(err, &cd) {
		resp.RetryAfterSeconds = int64(cd.Remaining.Seconds() + 0.5)
	}

	writeJSON(w, statusForError(err), resp)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case ledger.IsNotFound(err), errors.Is(err, tracker.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrCooldownActive),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, auth.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrSoldOut):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, tracker.ErrInvalidEntry),
		errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	case ledger.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
