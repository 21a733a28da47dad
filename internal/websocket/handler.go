package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and runs it as a Hub client. The
// optional "user" query parameter limits the stream to one user's changes.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}

		client := NewClient(hub, conn, r.URL.Query().Get("user"))
		client.Run(r.Context())
	}
}
