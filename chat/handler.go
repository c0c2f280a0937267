package chat

import (
	"log"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/kabayanhub/points-engine/auth"
)

// Handler returns an HTTP handler that upgrades connections to WebSocket
// and runs them as room clients. Requires an authenticated request context
// (see auth.RequireAuth).
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			log.Printf("chat: accept: %v", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, account.Name)
		client.Run(r.Context())
	}
}
