package livelog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
)

// ErrMsgNotFound is the message returned when an operation names an unregistered client.
const ErrMsgNotFound = "WebSocket connection not found"

// Hub owns every live-log connection and the clientId registry.
type Hub struct {
	pingInterval time.Duration
	logger       *logger.Logger

	mu       sync.RWMutex
	conns    map[*Client]struct{}
	registry map[string]*Client
}

// NewHub creates a hub that pings every pingInterval.
func NewHub(pingInterval time.Duration, log *logger.Logger) *Hub {
	return &Hub{
		pingInterval: pingInterval,
		logger:       log.WithFields(zap.String("component", "livelog-hub")),
		conns:        make(map[*Client]struct{}),
		registry:     make(map[string]*Client),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// Register binds clientID to c. A second registration under the same ID replaces the first;
// operations that already resolved the earlier socket keep writing to it.
func (h *Hub) Register(clientID string, c *Client) {
	h.mu.Lock()
	if oldID := c.ID(); oldID != "" && oldID != clientID && h.registry[oldID] == c {
		delete(h.registry, oldID)
	}
	c.id.Store(clientID)
	prev, existed := h.registry[clientID]
	h.registry[clientID] = c
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	if existed && prev != c {
		h.logger.Warn("client id re-registered, replacing previous socket", zap.String("client_id", clientID))
		return
	}
	h.logger.Debug("client registered", zap.String("client_id", clientID))
}

// Lookup returns the socket registered under clientID.
func (h *Hub) Lookup(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.registry[clientID]
	if !ok || c.Closed() {
		return nil, false
	}
	return c, true
}

// Resolve is Lookup returning a PRECONDITION error for unknown IDs.
func (h *Hub) Resolve(clientID string) (*Client, error) {
	if clientID == "" {
		return nil, apperrors.Precondition("clientId is required")
	}
	c, ok := h.Lookup(clientID)
	if !ok {
		return nil, apperrors.Precondition(ErrMsgNotFound)
	}
	return c, nil
}

// remove forgets c. The registry entry is only dropped if it still points at c.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.conns, c)
	if id := c.ID(); id != "" && h.registry[id] == c {
		delete(h.registry, id)
	}
	h.mu.Unlock()
}

// Len returns the number of registered client IDs.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.registry)
}

// Run drives the heartbeat until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	h.logger.Info("live-log hub started", zap.Duration("ping_interval", h.pingInterval))
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("live-log hub stopped")
			return nil
		case <-ticker.C:
			h.heartbeat()
		}
	}
}

// heartbeat terminates connections that missed the previous ping and pings the rest.
func (h *Hub) heartbeat() {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if c.ping() {
			continue
		}
		h.logger.Debug("terminating unresponsive socket", zap.String("client_id", c.ID()))
		c.terminate()
		h.remove(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*Client]struct{})
	h.registry = make(map[string]*Client)
	h.mu.Unlock()

	for c := range conns {
		_ = c.Close()
	}
}
