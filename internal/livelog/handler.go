package livelog

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts non-browser clients, localhost origins and same-host origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if h, _, ok := strings.Cut(host, ":"); ok && !strings.HasPrefix(host, "[") {
		host = h
	}
	return host != "" && strings.EqualFold(u.Hostname(), strings.Trim(host, "[]"))
}

// Handler upgrades HTTP requests into live-log connections.
type Handler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewHandler creates a Handler bound to hub.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "livelog-handler")),
	}
}

// RegisterRoutes mounts the WebSocket endpoint at path.
func (h *Handler) RegisterRoutes(router gin.IRoutes, path string) {
	router.GET(path, h.HandleConnection)
}

// HandleConnection upgrades the request and reads register messages until the peer goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("live-log upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, h.logger)
	h.hub.add(client)
	h.logger.Debug("live-log connection opened", zap.String("remote_addr", c.Request.RemoteAddr))

	h.readLoop(client)
}

func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.hub.remove(client)
		client.terminate()
		h.logger.Debug("live-log connection closed", zap.String("client_id", client.ID()))
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetPongHandler(func(string) error {
		client.alive.Store(true)
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("live-log read error", zap.Error(err))
			}
			return
		}
		client.alive.Store(true)

		msg, err := parseInbound(data)
		if err != nil {
			h.logger.Debug("ignoring malformed live-log message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case msgRegister:
			if msg.ClientID == "" {
				h.logger.Debug("register without clientId ignored")
				continue
			}
			h.hub.Register(msg.ClientID, client)
		default:
			h.logger.Debug("ignoring live-log message", zap.String("type", msg.Type))
		}
	}
}
