package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

type WSClient struct {
	UserID uint
	Conn   *websocket.Conn

	mu sync.Mutex // serialises writes; gorilla allows one concurrent writer
}

func (c *WSClient) Write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// RealtimeHub fans out change notifications to every open dashboard of a user.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
	log     *zap.Logger
}

func NewRealtimeHub(log *zap.Logger) *RealtimeHub {
	return &RealtimeHub{clients: make(map[uint]map[*WSClient]struct{}), log: log}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// Connections reports how many sockets a user has open.
func (h *RealtimeHub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends {"kind": kind, "data": payload} to the user's sockets. Failed
// writes are dropped; the read loop of that socket unregisters it.
func (h *RealtimeHub) Publish(userID uint, kind string, payload any) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(map[string]any{"kind": kind, "data": payload})
	if err != nil {
		h.log.Warn("realtime marshal failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Write(websocket.TextMessage, msg); err != nil {
			h.log.Debug("realtime write failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
}
