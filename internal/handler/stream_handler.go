package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// ============================================================
// Dashboard stream: GET /v1/dashboard/stream (WebSocket)
// ============================================================

// dashboardStreamHandler pushes one JSON MetricsEvent per publish or failure.
// The first message is the current metrics. Client messages are ignored;
// reading only serves to notice the close.
func dashboardStreamHandler(sessions *service.Sessions, allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := SessionFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("stream: upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		events, cancel := sessions.For(session).Subscribe()
		defer cancel()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()

		logger.Debug("stream: client connected", zap.String("subject", session.Subject))
		for {
			select {
			case ev, ok := <-events:
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if !ok {
					// session expired or dropped
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("stream: write failed", zap.Error(err))
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				logger.Debug("stream: client disconnected", zap.String("subject", session.Subject))
				return
			}
		}
	}
}

// originChecker accepts same-origin handshakes and the configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
