package websocket

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

// WsHub fans lifecycle status updates out to connected clients,
// per user address.
type WsHub struct {
	Clients    map[string]map[*websocket.Conn]bool
	Updates    chan *models.StatusUpdate
	Register   chan *WsClient
	Unregister chan *WsClient
	Logger     zerolog.Logger
}

type WsClient struct {
	UserAddress string
	Conn        *websocket.Conn
}

func NewWsHub(logger zerolog.Logger) *WsHub {
	return &WsHub{
		Clients:    make(map[string]map[*websocket.Conn]bool),
		Updates:    make(chan *models.StatusUpdate, 100),
		Register:   make(chan *WsClient, 100),
		Unregister: make(chan *WsClient, 100),
		Logger:     logger,
	}
}

// Broadcast implements interfaces.StatusBroadcaster. Updates are
// dropped rather than blocking the lifecycle path when the hub is
// backed up.
func (h *WsHub) Broadcast(update *models.StatusUpdate) {
	select {
	case h.Updates <- update:
	default:
		h.Logger.Warn().
			Str("type", update.Type).
			Str("user_address", update.UserAddress).
			Msg("Status update channel full, dropping update")
	}
}

func (h *WsHub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.Clients[client.UserAddress] == nil {
				h.Clients[client.UserAddress] = make(map[*websocket.Conn]bool)
			}
			h.Clients[client.UserAddress][client.Conn] = true
			h.Logger.Info().
				Str("user_address", client.UserAddress).
				Int("connection_count", len(h.Clients[client.UserAddress])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			if clients, ok := h.Clients[client.UserAddress]; ok {
				delete(clients, client.Conn)
				h.Logger.Info().
					Str("user_address", client.UserAddress).
					Int("connection_count", len(clients)).
					Msg("WebSocket client unregistered")
				if len(clients) == 0 {
					delete(h.Clients, client.UserAddress)
				}
				client.Conn.Close()
			}

		case update := <-h.Updates:
			clients, ok := h.Clients[update.UserAddress]
			if !ok || update.UserAddress == "" {
				h.Logger.Debug().
					Str("user_address", update.UserAddress).
					Str("type", update.Type).
					Msg("No clients connected for status update")
				continue
			}

			for conn := range clients {
				if err := conn.WriteJSON(update); err != nil {
					h.Logger.Err(err).
						Str("user_address", update.UserAddress).
						Str("type", update.Type).
						Msg("Failed to send WebSocket message")
					conn.Close()
					delete(clients, conn)
				}
			}
			if len(clients) == 0 {
				delete(h.Clients, update.UserAddress)
			}
		}
	}
}
