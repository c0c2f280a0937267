package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabayanhub/points-engine/api"
	"github.com/kabayanhub/points-engine/chat"
	"github.com/kabayanhub/points-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP - Full HTTP stack over an in-memory database
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store, chat.NewHub(nil))
	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

// do sends a JSON request and decodes the response body into out (if non-nil).
func do(t *testing.T, srv *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signup registers an account and returns its session token. The first
// signup on a fresh server is the bootstrap admin.
func signup(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	var sess api.SessionDTO
	status := do(t, srv, http.MethodPost, "/api/auth/signup", "",
		map[string]string{"username": name, "password": name + "-password"}, &sess)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

// fund earns points for the token's account through award-once claims.
// Each news_read claim is worth 10 points.
func fund(t *testing.T, srv *httptest.Server, token string, claims int) {
	t.Helper()
	for i := 0; i < claims; i++ {
		var award api.AwardDTO
		status := do(t, srv, http.MethodPost, "/api/points/claim", token,
			map[string]string{"action": "news_read", "content_id": fmt.Sprintf("fund-%d", i)}, &award)
		require.Equal(t, http.StatusOK, status)
	}
}

// =============================================================================
// AUTH FLOW
// =============================================================================

func TestAPI_SignupLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	// First account bootstraps as admin.
	var created api.SessionDTO
	status := do(t, srv, http.MethodPost, "/api/auth/signup", "",
		map[string]string{"username": "maria", "password": "mahal-kita-123"}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "admin", created.Account.Role)
	assert.Equal(t, int64(0), created.Account.Balance)

	// Duplicate username conflicts.
	status = do(t, srv, http.MethodPost, "/api/auth/signup", "",
		map[string]string{"username": "maria", "password": "another-pass-99"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Login issues a fresh token.
	var logged api.SessionDTO
	status = do(t, srv, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "maria", "password": "mahal-kita-123"}, &logged)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, created.Token, logged.Token)

	// Logout kills the token.
	status = do(t, srv, http.MethodPost, "/api/auth/logout", logged.Token, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	status = do(t, srv, http.MethodGet, "/api/accounts/me", logged.Token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_ProtectedRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/accounts/me"},
		{http.MethodPost, "/api/points/checkin"},
		{http.MethodGet, "/api/budget/summary"},
		{http.MethodGet, "/api/market/redemptions"},
	}
	for _, rt := range routes {
		status := do(t, srv, rt.method, rt.path, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", rt.method, rt.path)
	}
}

// =============================================================================
// POINTS FLOW
// =============================================================================

func TestAPI_ClaimOnce_ThenConflict(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	var award api.AwardDTO
	status := do(t, srv, http.MethodPost, "/api/points/claim", token,
		map[string]string{"action": "news_read", "content_id": "news-42"}, &award)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(10), award.Entry.Amount)
	assert.Equal(t, int64(10), award.Balance)

	status = do(t, srv, http.MethodPost, "/api/points/claim", token,
		map[string]string{"action": "news_read", "content_id": "news-42"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	var me api.AccountDTO
	status = do(t, srv, http.MethodGet, "/api/accounts/me", token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(10), me.Balance)
}

func TestAPI_Claim_UnknownAction_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	status := do(t, srv, http.MethodPost, "/api/points/claim", token,
		map[string]string{"action": "lurk", "content_id": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = do(t, srv, http.MethodPost, "/api/points/claim", token,
		map[string]string{"action": "news_read"}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "missing content_id")
}

func TestAPI_Checkin_SecondWithin24h_ConflictWithRetryAfter(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	var award api.AwardDTO
	status := do(t, srv, http.MethodPost, "/api/points/checkin", token, nil, &award)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(20), award.Balance)

	var errResp api.ErrorResponse
	status = do(t, srv, http.MethodPost, "/api/points/checkin", token, nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Greater(t, errResp.RetryAfterSeconds, int64(0))

	// Cooldown timestamp surfaces on the account.
	var me api.AccountDTO
	status = do(t, srv, http.MethodGet, "/api/accounts/me", token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, me.LastDailyCheckin)
}

func TestAPI_Quiz_CapsPoints(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	var award api.AwardDTO
	status := do(t, srv, http.MethodPost, "/api/points/quiz", token,
		map[string]int{"correct": 9}, &award)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(50), award.Entry.Amount, "9 correct answers cap at 50")
}

func TestAPI_Entries_NewestFirst(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")
	fund(t, srv, token, 3)

	var entries []api.EntryDTO
	status := do(t, srv, http.MethodGet, "/api/accounts/me/entries", token, nil, &entries)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, entries, 3)
}

func TestAPI_Leaderboard_RanksByEarned(t *testing.T) {
	srv := newTestServer(t)
	maria := signup(t, srv, "maria")
	jose := signup(t, srv, "jose")
	fund(t, srv, maria, 3) // 30 points
	fund(t, srv, jose, 1)  // 10 points

	var rows []api.LeaderboardRowDTO
	status := do(t, srv, http.MethodGet, "/api/leaderboard", "", nil, &rows)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, rows, 2)
	assert.Equal(t, "maria", rows[0].Name)
	assert.Equal(t, int64(30), rows[0].Earned)
	assert.Equal(t, "jose", rows[1].Name)
}

// =============================================================================
// MARKETPLACE FLOW
// =============================================================================

func TestAPI_MarketplaceLifecycle(t *testing.T) {
	srv := newTestServer(t)
	admin := signup(t, srv, "staff") // first signup = admin
	user := signup(t, srv, "maria")

	// Non-admin cannot create items.
	status := do(t, srv, http.MethodPost, "/api/market/items", user,
		map[string]any{"name": "Mug", "price": 60}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Admin creates an item with stock 1.
	var item api.ItemDTO
	status = do(t, srv, http.MethodPost, "/api/market/items", admin,
		map[string]any{"name": "Barong mug", "price": 60, "stock": 1}, &item)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, item.ID)

	// Broke user cannot redeem.
	var errResp api.ErrorResponse
	status = do(t, srv, http.MethodPost, "/api/market/items/"+item.ID+"/redeem", user, nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Funded user redeems; balance 100 - 60 = 40.
	fund(t, srv, user, 10)
	var rec api.RedemptionDTO
	status = do(t, srv, http.MethodPost, "/api/market/items/"+item.ID+"/redeem", user, nil, &rec)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", rec.Status)

	var me api.AccountDTO
	do(t, srv, http.MethodGet, "/api/accounts/me", user, nil, &me)
	assert.Equal(t, int64(40), me.Balance)

	// Stock is exhausted for the next buyer.
	other := signup(t, srv, "jose")
	fund(t, srv, other, 10)
	status = do(t, srv, http.MethodPost, "/api/market/items/"+item.ID+"/redeem", other, nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Queue is admin only.
	status = do(t, srv, http.MethodGet, "/api/market/redemptions", user, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var queue []api.RedemptionDTO
	status = do(t, srv, http.MethodGet, "/api/market/redemptions?status=pending", admin, nil, &queue)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, queue, 1)

	// Fulfillment transitions pending -> redeemed exactly once.
	status = do(t, srv, http.MethodPost, "/api/market/redemptions/"+rec.ID+"/redeem", user, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var fulfilled api.RedemptionDTO
	status = do(t, srv, http.MethodPost, "/api/market/redemptions/"+rec.ID+"/redeem", admin, nil, &fulfilled)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "redeemed", fulfilled.Status)
	assert.NotNil(t, fulfilled.RedeemedAt)

	status = do(t, srv, http.MethodPost, "/api/market/redemptions/"+rec.ID+"/redeem", admin, nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_ListItems_ActiveFilter(t *testing.T) {
	srv := newTestServer(t)
	admin := signup(t, srv, "staff")

	var visible api.ItemDTO
	status := do(t, srv, http.MethodPost, "/api/market/items", admin,
		map[string]any{"name": "Visible", "price": 10}, &visible)
	require.Equal(t, http.StatusCreated, status)
	status = do(t, srv, http.MethodPost, "/api/market/items", admin,
		map[string]any{"name": "Hidden", "price": 10, "active": false}, nil)
	require.Equal(t, http.StatusCreated, status)

	var items []api.ItemDTO
	status = do(t, srv, http.MethodGet, "/api/market/items", "", nil, &items)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, items, 1)

	status = do(t, srv, http.MethodGet, "/api/market/items?all=true", "", nil, &items)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, items, 2)
}

// =============================================================================
// TRACKER ENDPOINTS
// =============================================================================

func TestAPI_BudgetRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	var entry api.BudgetEntryDTO
	status := do(t, srv, http.MethodPost, "/api/budget/entries", token,
		map[string]string{
			"kind": "expense", "category": "rent", "amount": "1250.75",
			"occurred_on": "2026-08-01",
		}, &entry)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "1250.75", entry.Amount)

	status = do(t, srv, http.MethodPost, "/api/budget/entries", token,
		map[string]string{
			"kind": "income", "category": "salary", "amount": "50000",
			"occurred_on": "2026-08-15",
		}, nil)
	require.Equal(t, http.StatusCreated, status)

	var summary api.BudgetSummaryDTO
	status = do(t, srv, http.MethodGet, "/api/budget/summary?month=2026-08", token, nil, &summary)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "48749.25", summary.Net)

	status = do(t, srv, http.MethodGet, "/api/budget/summary?month=not-a-month", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = do(t, srv, http.MethodDelete, "/api/budget/entries/"+entry.ID, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPI_CalorieRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "maria")

	status := do(t, srv, http.MethodPost, "/api/calories/entries", token,
		map[string]any{"food": "adobo", "calories": 700, "meal": "lunch", "occurred_on": "2026-08-28"}, nil)
	require.Equal(t, http.StatusCreated, status)
	status = do(t, srv, http.MethodPost, "/api/calories/entries", token,
		map[string]any{"food": "pandesal", "calories": 450, "meal": "breakfast", "occurred_on": "2026-08-28"}, nil)
	require.Equal(t, http.StatusCreated, status)

	var day api.DaySummaryDTO
	status = do(t, srv, http.MethodGet, "/api/calories/summary?date=2026-08-28", token, nil, &day)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1150), day.Total)
	assert.Equal(t, int64(700), day.ByMeal["lunch"])
	assert.Len(t, day.Entries, 2)
}
