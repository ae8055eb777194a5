package handlers

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Dias221467/ZielManager/internal/events"
	"github.com/Dias221467/ZielManager/pkg/jwt"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer = 16
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// StreamMessage is pushed to connected clients when a notification for them
// is stored.
type StreamMessage struct {
	Type         string                     `json:"type"`
	Notification events.NotificationCreated `json:"notification"`
}

type streamClient struct {
	send chan events.NotificationCreated
}

// NotificationHub fans notification events out to the websocket
// connections of their recipients. Slow clients miss events rather than
// block the bus; they can always reload the list.
type NotificationHub struct {
	mu      sync.Mutex
	clients map[string]map[*streamClient]struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[string]map[*streamClient]struct{})}
}

// HandleNotificationCreated is an events.Handler.
func (h *NotificationHub) HandleNotificationCreated(_ context.Context, ev events.NotificationCreated) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.RecipientID] {
		select {
		case c.send <- ev:
		default:
			logger.Log.WithField("user_id", ev.RecipientID).Debug("Notification stream full, event dropped")
		}
	}
	return nil
}

func (h *NotificationHub) add(userID string) *streamClient {
	c := &streamClient{send: make(chan events.NotificationCreated, streamBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*streamClient]struct{})
	}
	h.clients[userID][c] = struct{}{}
	return c
}

func (h *NotificationHub) remove(userID string, c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], c)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// StreamHandler upgrades authenticated requests to a websocket that
// receives the caller's notifications. Browsers cannot set headers on a
// websocket handshake, so the token travels as ?token=.
type StreamHandler struct {
	Hub       *NotificationHub
	JWTSecret string
	upgrader  websocket.Upgrader
}

// NewStreamHandler accepts handshakes from allowedOrigins, or from any
// origin when the list is empty.
func NewStreamHandler(hub *NotificationHub, jwtSecret string, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		Hub:       hub,
		JWTSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *StreamHandler) Register(r *mux.Router) {
	r.HandleFunc("/notifications/stream", h.NotificationStreamHandler).Methods(http.MethodGet)
}

func (h *StreamHandler) NotificationStreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwt.ParseToken(token, h.JWTSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	// Registered before the handshake completes so no event published after
	// the client is connected can be missed.
	client := h.Hub.add(claims.UserID)
	defer h.Hub.remove(claims.UserID, client)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	log := logger.Log.WithField("user_id", claims.UserID)
	log.Info("Notification stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
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
	for {
		select {
		case <-closed:
			log.Info("Notification stream disconnected")
			return
		case <-r.Context().Done():
			return
		case ev := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(StreamMessage{Type: "notification_created", Notification: ev}); err != nil {
				log.WithError(err).Warn("Notification stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
