package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/models"
)

// Stream message types.
const (
	MessageTypeSession  = "session"
	MessageTypeLocation = "location"
	MessageTypeError    = "error"

	// Sent by clients.
	MessageTypeStart  = "start"
	MessageTypeUpdate = "update"
	MessageTypeEnd    = "end"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Message is a websocket message in either direction.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StreamServer pushes session and location snapshots to websocket
// clients and accepts start/update/end commands from them.
type StreamServer struct {
	sessions Sessions
	locator  emergency.Locator
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan *Message
	done chan struct{}
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue hands m to the write pump. It gives up once the client is gone.
func (c *streamClient) enqueue(m *Message) bool {
	select {
	case c.send <- m:
		return true
	case <-c.done:
		return false
	}
}

// NewStreamServer creates a stream server. locator may be nil.
func NewStreamServer(sessions Sessions, locator emergency.Locator, logger *zap.Logger) *StreamServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamServer{
		sessions: sessions,
		locator:  locator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local device UI
			},
		},
		logger:  logger.Named("stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (s *StreamServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *StreamServer) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *StreamServer) register(c *streamClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.logger.Debug("client registered", zap.Int("client_count", len(s.clients)))
	return true
}

func (s *StreamServer) unregister(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	s.logger.Debug("client unregistered", zap.Int("client_count", len(s.clients)))
}

// HandleConnection upgrades the request and serves the client until it
// disconnects.
func (s *StreamServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan *Message, 16),
		done: make(chan struct{}),
	}
	if !s.register(c) {
		_ = conn.Close()
		return
	}
	s.logger.Info("stream client connected", zap.String("remote_addr", r.RemoteAddr))

	go s.forward(c)
	go s.writePump(c)
	s.readPump(r.Context(), c)
}

// forward relays snapshots from the session and location streams.
func (s *StreamServer) forward(c *streamClient) {
	sessions, stopSessions := s.sessions.Subscribe()
	defer stopSessions()

	var locations <-chan models.LocationState
	stopLocations := func() {}
	if s.locator != nil {
		locations, stopLocations = s.locator.Subscribe()
	}
	defer stopLocations()

	for {
		select {
		case <-c.done:
			return
		case snap, ok := <-sessions:
			if !ok {
				sessions = nil
				continue
			}
			if !c.enqueue(&Message{Type: MessageTypeSession, Data: snap}) {
				return
			}
		case loc, ok := <-locations:
			if !ok {
				locations = nil
				continue
			}
			if !c.enqueue(&Message{Type: MessageTypeLocation, Data: loc}) {
				return
			}
		}
	}
}

func (s *StreamServer) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case m := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *StreamServer) readPump(ctx context.Context, c *streamClient) {
	defer func() {
		s.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(errorMessage("invalid message"))
			continue
		}
		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Debug("stream command failed", zap.String("type", msg.Type), zap.Error(err))
			c.enqueue(errorMessage(err.Error()))
		}
	}
}

// handleMessage runs a client command. The resulting snapshot reaches the
// client through the session stream, so only errors are answered.
func (s *StreamServer) handleMessage(ctx context.Context, msg inboundMessage) error {
	switch msg.Type {
	case MessageTypeStart:
		var req startRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		hint, ok := parseHint(req.Category)
		if !ok {
			return &commandError{"unknown category: " + req.Category}
		}
		_, err := s.sessions.Start(ctx, hint, req.Description)
		return err
	case MessageTypeUpdate:
		var req updateRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		_, err := s.sessions.Update(ctx, req.Description)
		return err
	case MessageTypeEnd:
		_, err := s.sessions.End(ctx)
		return err
	default:
		return &commandError{"unknown message type: " + msg.Type}
	}
}

type commandError struct{ msg string }

func (e *commandError) Error() string { return e.msg }

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &commandError{"invalid message data"}
	}
	return nil
}

func errorMessage(msg string) *Message {
	return &Message{Type: MessageTypeError, Data: map[string]string{"error": msg}}
}
