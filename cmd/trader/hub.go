package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alim08/cryptotrader/pkg/engine"
	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 50 * time.Second
	sendBacklog = 16
)

// Hub pushes every controller state change to connected websocket clients.
type Hub struct {
	ctrl     *engine.Controller
	upgrader websocket.Upgrader
}

func NewHub(ctrl *engine.Controller) *Hub {
	return &Hub{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and streams state until the client leaves.
// A slow client drops intermediate states; it always gets the latest one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	send := make(chan engine.State, sendBacklog)
	push := func(s engine.State) {
		select {
		case send <- s:
		default:
			// drop oldest, keep newest
			select {
			case <-send:
			default:
			}
			select {
			case send <- s:
			default:
			}
		}
	}
	unsubscribe := h.ctrl.Subscribe(push)
	defer unsubscribe()
	push(h.ctrl.State())

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case <-done:
			return
		case s := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s); err != nil {
				logger.Log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
