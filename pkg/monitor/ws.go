package monitor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler streams hub events as JSON text frames over a WebSocket.
type Handler struct {
	Hub *Hub
	// Token, when set, must match the "token" query parameter.
	Token  string
	Logger *slog.Logger

	upgrader websocket.Upgrader
}

// NewHandler creates a Handler for hub.
func NewHandler(hub *Hub, token string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Hub:    hub,
		Token:  token,
		Logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Token != "" && r.URL.Query().Get("token") != h.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Debug("monitor: upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	sub := h.Hub.Subscribe()
	defer sub.Close()
	h.Logger.Info("monitor: subscriber connected", "remote", r.RemoteAddr)

	// Reader goroutine: detects client close; frames from the client are
	// ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			h.Logger.Info("monitor: subscriber disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
