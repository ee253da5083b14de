package dashboard

import (
	"log/slog"
	"net/http"
	"time"

	"crawl-dashboard/internal/observability/metrics"

	"github.com/gorilla/websocket"
)

const (
	writeWait           = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxClientMessage    = 512
)

// LiveHandler pushes the dashboard state over a WebSocket: the current
// state on connect, then every published snapshot and every change of the
// loading flag. The connection closes
// when the request context ends, so cancelling the server's base context
// disconnects every client.
type LiveHandler struct {
	Poller       Poller
	Logger       *slog.Logger
	PingInterval time.Duration

	upgrader websocket.Upgrader
}

// NewLiveHandler creates a LiveHandler. Cross-origin upgrades are refused.
func NewLiveHandler(poller Poller, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{
		Poller:       poller,
		Logger:       logger,
		PingInterval: defaultPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	disconnected := metrics.LiveClientConnected()
	defer disconnected()

	query := r.URL.Query().Get("q")
	updates, unsubscribe := h.Poller.Subscribe()
	defer unsubscribe()
	loading, unwatch := h.Poller.WatchLoading()
	defer unwatch()

	h.Logger.Debug("live client connected", slog.String("remote_addr", r.RemoteAddr))

	// The client sends nothing; reading only notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxClientMessage)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(st State) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(st)
	}
	if err := send(NewState(h.Poller.Snapshot(), h.Poller.Loading(), query)); err != nil {
		return
	}

	interval := h.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ping := time.NewTicker(interval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.Logger.Debug("live client disconnected", slog.String("remote_addr", r.RemoteAddr))
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case snap := <-updates:
			if err := send(NewState(snap, h.Poller.Loading(), query)); err != nil {
				h.Logger.Debug("live update failed", slog.Any("error", err))
				return
			}
		case <-loading:
			if err := send(NewState(h.Poller.Snapshot(), h.Poller.Loading(), query)); err != nil {
				h.Logger.Debug("live update failed", slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
