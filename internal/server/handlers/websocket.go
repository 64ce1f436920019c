package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/K33P-repo/k33p-backend/internal/server/websocket"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

const wsWriteWait = 10 * time.Second

type WebSocketHandler struct {
	hub        *websocket.WsHub
	upgrader   gorillaws.Upgrader
	pingPeriod time.Duration
}

func NewWebSocketHandler(hub *websocket.WsHub, cfg config.WebSocketConfig) *WebSocketHandler {
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 30 * time.Second
	}

	return &WebSocketHandler{
		hub:        hub,
		pingPeriod: pingPeriod,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return !cfg.CheckOrigin
			},
		},
	}
}

// HandleConnection upgrades the request and subscribes the client to
// status updates for one user address (?address=...).
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "address query parameter is required",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &websocket.WsClient{
		UserAddress: address,
		Conn:        conn,
	}
	h.hub.Register <- client

	// A peer that stops answering pings is dropped by the read
	// deadline.
	pongWait := h.pingPeriod * 2
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// WriteControl is safe alongside the hub's WriteJSON calls.
	go func() {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(gorillaws.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}()

	// Reader loop only detects disconnects; clients do not send data.
	go func() {
		defer func() {
			h.hub.Unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
