package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/gorilla/websocket"
)

const (
	defaultPongWait   = 60 * time.Second
	defaultWriteWait  = 10 * time.Second
	controlBufferSize = 16
)

// Server upgrades dashboard connections to websockets, marks their users
// online and streams the events addressed to them.
type Server struct {
	presence service.PresenceService
	hub      *events.Hub
	clock    clock.Clock
	logger   *slog.Logger

	upgrader  websocket.Upgrader
	pongWait  time.Duration
	writeWait time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type Option func(*Server)

// WithPongWait sets how long a silent client is kept. Pings go out at 9/10
// of this interval.
func WithPongWait(d time.Duration) Option {
	return func(s *Server) { s.pongWait = d }
}

func NewServer(presence service.PresenceService, hub *events.Hub, clk clock.Clock, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		presence: presence,
		hub:      hub,
		clock:    clk,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the authenticating proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pongWait:  defaultPongWait,
		writeWait: defaultWriteWait,
		clients:   make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts the HTTP
// server down and closes every open socket.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.CloseAll()
	s.logger.Info("http server stopped")
	return err
}

// Clients returns the number of open sockets.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// CloseAll sends a going-away close frame to every client and drops it.
func (s *Server) CloseAll() {
	s.mu.Lock()
	open := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.writeWait))
		_ = c.ws.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"clients":     s.Clients(),
		"subscribers": s.hub.Subscribers(),
		"dropped":     s.hub.Dropped(),
		"timestamp":   s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	// Cleanup must run even after the request context ends.
	ctx := context.WithoutCancel(r.Context())

	// Subscribe before reading the snapshot so nothing committed after it
	// is missed.
	sub := s.hub.Subscribe(events.User(id.UserID), events.Organization(id.OrganizationID))
	active, err := s.presence.Connect(ctx, id)
	if err != nil {
		s.hub.Unsubscribe(sub)
		s.logger.ErrorContext(ctx, "presence connect failed", "user_id", id.UserID, "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "presence unavailable"),
			time.Now().Add(s.writeWait))
		_ = ws.Close()
		return
	}

	c := &client{
		ws:      ws,
		id:      id,
		sub:     sub,
		control: make(chan Message, controlBufferSize),
		done:    make(chan struct{}),
	}
	syncEv := events.Sync(active, s.clock.Now())
	c.syncSessionID, c.syncVersion = syncEv.SessionID, syncEv.Version

	s.track(c, true)
	s.logger.InfoContext(ctx, "client connected", "user_id", id.UserID, "organization_id", id.OrganizationID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx, c, syncEv)
	}()
	s.readPump(ctx, c)

	close(c.done)
	<-writerDone
	s.hub.Unsubscribe(sub)
	s.track(c, false)
	_ = ws.Close()
	if err := s.presence.Disconnect(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "presence disconnect failed", "user_id", id.UserID, "error", err)
	}
	s.logger.InfoContext(ctx, "client disconnected",
		"user_id", id.UserID,
		"dropped", sub.Dropped(),
		"stale", sub.Stale(),
	)
}

func (s *Server) track(c *client, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.clients[c] = struct{}{}
	} else {
		delete(s.clients, c)
	}
}

type client struct {
	ws      *websocket.Conn
	id      domain.Identity
	sub     *events.Subscription
	control chan Message
	done    chan struct{}

	syncSessionID string
	syncVersion   int64
}

// supersededBySync reports whether ev was queued before the sync snapshot
// and describes an older version of the same session.
func (c *client) supersededBySync(ev events.Event) bool {
	return c.syncSessionID != "" && ev.SessionID == c.syncSessionID &&
		ev.Version > 0 && ev.Version < c.syncVersion
}

func (s *Server) readPump(ctx context.Context, c *client) {
	_ = c.ws.SetReadDeadline(time.Now().Add(s.pongWait))
	// Browsers answer protocol pings without sending PING messages, so pong
	// frames refresh presence too.
	c.ws.SetPongHandler(func(string) error {
		s.touch(ctx, c)
		return c.ws.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.WarnContext(ctx, "websocket read failed", "user_id", c.id.UserID, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(s.pongWait))

		switch msg.Type {
		case TypePing:
			s.touch(ctx, c)
			c.reply(Message{Type: TypePong, Timestamp: s.clock.Now()})
		default:
			s.logger.DebugContext(ctx, "ignoring client message", "user_id", c.id.UserID, "type", msg.Type)
		}
	}
}

func (s *Server) touch(ctx context.Context, c *client) {
	if err := s.presence.Touch(ctx, c.id); err != nil {
		s.logger.WarnContext(ctx, "presence touch failed", "user_id", c.id.UserID, "error", err)
	}
}

// reply queues a control message without blocking the reader.
func (c *client) reply(msg Message) {
	select {
	case c.control <- msg:
	default:
	}
}

func (s *Server) writePump(ctx context.Context, c *client, syncEv events.Event) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		// Unblock the reader if the writer gave up first.
		_ = c.ws.Close()
	}()

	if !s.writeEvent(ctx, c, syncEv) {
		return
	}
	for {
		select {
		case <-c.done:
			return

		case msg := <-c.control:
			if !s.write(c, msg) {
				return
			}

		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			if c.supersededBySync(ev) {
				continue
			}
			if !s.writeEvent(ctx, c, ev) {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, c *client, ev events.Event) bool {
	msg, err := FromEvent(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "encoding event failed", "event", ev.Name, "error", err)
		return true
	}
	return s.write(c, msg)
}

func (s *Server) write(c *client, msg Message) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(s.writeWait))
	return c.ws.WriteJSON(msg) == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
