package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabayanhub/points-engine/auth"
	"github.com/kabayanhub/points-engine/ledger"
)

func newChatServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	// Inject the authenticated account the middleware would normally add.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithAccount(r.Context(), ledger.Account{ID: "maria", Name: "maria"})
		Handler(hub)(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ConnectChatDisconnect(t *testing.T) {
	// GIVEN: A connected WebSocket client
	// WHEN: It sends a chat line and then closes the connection
	// THEN: The line comes back attributed to the authenticated account,
	//       and the hub releases the client on disconnect

	hub := NewHub(nil)
	srv := newChatServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Write(ctx, ws.MessageText, []byte(`{"body":"  kumusta!  "}`)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, TypeChat, msg.Type)
	assert.Equal(t, "maria", msg.Sender, "sender comes from the account, not the wire")
	assert.Equal(t, "kumusta!", msg.Body, "body is trimmed")

	require.NoError(t, conn.Close(ws.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Count() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestHandler_Unauthenticated_Rejected(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(Handler(hub))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, hub.Count())
}
