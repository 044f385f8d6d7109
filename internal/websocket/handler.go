package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codecast/internal/auth"
	"codecast/internal/metrics"
	"codecast/internal/router"
	"codecast/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is the reverse proxy's job in deployment.
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket links, authenticates them, and
// runs each connection's read pump against the event router.
type Handler struct {
	tokens       *auth.Manager
	router       *router.Router
	metrics      *metrics.Metrics
	log          *zap.Logger
	bufferSize   int
	pingInterval time.Duration
	readTimeout  time.Duration
}

func NewHandler(tokens *auth.Manager, eventRouter *router.Router, m *metrics.Metrics, log *zap.Logger,
	bufferSize int, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		tokens:       tokens,
		router:       eventRouter,
		metrics:      m,
		log:          log,
		bufferSize:   bufferSize,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket authenticates the `token` query parameter, upgrades, and
// hands the connection to the read pump. Authentication happens before the
// upgrade so rejected clients get proper HTTP status codes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.Verify(tokenString)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(wsConn, h.bufferSize)
	conn.SetIdentity(claims.UserID, claims.Name, claims.Role)
	h.metrics.ConnectionOpened()

	h.log.Info("connection opened",
		zap.String("user", claims.UserID),
		zap.String("role", claims.Role),
	)

	go h.readPump(conn)
}

// readPump processes inbound events to completion in arrival order for this
// connection. Exiting the loop for any reason counts as the disconnect.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.router.HandleDisconnect(conn)
		_ = conn.Close()
		h.metrics.ConnectionClosed()
		h.log.Info("connection closed",
			zap.String("user", conn.UserID()),
			zap.String("name", conn.UserName()),
			zap.String("role", conn.Role()),
		)
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		var ev types.Event
		if err := conn.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		h.router.HandleEvent(context.Background(), conn, ev)
	}
}
