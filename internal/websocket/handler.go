package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and runs it as a hub client. The
// optional ?entities=chore,health query limits what the client receives. An
// empty originPatterns accepts any origin.
func HandleWebSocket(hub *Hub, originPatterns ...string) http.HandlerFunc {
	opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
	if len(originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			hub.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		subs := ParseSubscriptions(r.URL.Query().Get("entities"))
		NewClient(hub, conn, subs).Run(r.Context())
	}
}
