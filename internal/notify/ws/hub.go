// Package ws exposes lead lifecycle events to agent consoles over a
// WebSocket endpoint.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadworks/leadgate/internal/notify"
)

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second
	// Per-client buffer. A console that falls this far behind is dropped
	// rather than allowed to block the hub.
	sendBuffer = 64
)

type Config struct {
	Host string
	Port int
	// Token authenticates console connections. Empty disables the server.
	Token          string
	AllowedOrigins []string
}

// Hub is a notify.Notifier that fans events out to connected consoles.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	httpServer *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var _ notify.Notifier = (*Hub)(nil)

func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	allowed := h.cfg.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	h.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Publish implements notify.Notifier. Events go to every connected console;
// slow consoles are disconnected, never waited on.
func (h *Hub) Publish(ev notify.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("event encode failed", "kind", ev.Kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Buffer full: close the connection from a goroutine so the
			// read loop unblocks and tears the client down.
			go c.conn.Close()
		}
	}
}

// Start serves the /ws endpoint until ctx is cancelled. It returns
// immediately when no token is configured.
func (h *Hub) Start(ctx context.Context) error {
	if h.cfg.Token == "" {
		h.logger.Info("notify server disabled, no token configured")
		<-ctx.Done()
		return ctx.Err()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	addr := fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port)
	h.httpServer = &http.Server{Addr: addr, Handler: mux}

	h.logger.Info("notify server starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.httpServer.Shutdown(shutdownCtx)
	}()

	if err := h.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("notify server: %w", err)
	}
	return nil
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = "Bearer " + r.URL.Query().Get("token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte("Bearer "+h.cfg.Token)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	go c.writePump()

	// Read pump: consoles never send application messages; reading only
	// services pings and detects closure.
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("console connected", "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("console disconnected", "clients", n)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
