package handler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vyrodovalexey/pizzaboard/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// pizzaTemplateName is the data-template attribute of the row template.
const pizzaTemplateName = "pizza"

//go:embed assets/index.html
var indexHTML []byte

// Surface errors.
var (
	ErrTemplateNotFound = errors.New("pizza template not found in document")
	ErrUnknownTarget    = errors.New("unknown click target")
	ErrNotBound         = errors.New("no handler bound for click target")
)

// surfaceClient is one connected browser.
type surfaceClient struct {
	send   chan model.SurfaceMessage
	cancel context.CancelFunc
}

// Surface is the render surface shared by every connected browser. It keeps
// the list content server-side so a client that connects late starts from
// the current list, and it fans each clear and append out to all clients.
type Surface struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	document []byte

	mu        sync.RWMutex
	clients   map[*websocket.Conn]*surfaceClient
	fragments []string
	onAdd     func(ctx context.Context)
	onRemove  func(ctx context.Context, row map[string]string)
}

// NewSurface creates a Surface backed by the embedded page document. The
// WebSocket handshake is accepted only from allowedOrigins; "*" accepts any
// origin.
func NewSurface(logger *zap.Logger, allowedOrigins []string) *Surface {
	return &Surface{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:   logger,
		document: indexHTML,
		clients:  make(map[*websocket.Conn]*surfaceClient),
	}
}

// RegisterRoutes registers the WebSocket route with the router.
func (s *Surface) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", s.HandleWebSocket).Methods(http.MethodGet)
}

// Template returns the row template declared in the page document as
// <script type="text/template" data-template="pizza">.
func (s *Surface) Template() (string, error) {
	root, err := html.Parse(bytes.NewReader(s.document))
	if err != nil {
		return "", fmt.Errorf("parse page document: %w", err)
	}

	node := findTemplate(root, pizzaTemplateName)
	if node == nil {
		return "", ErrTemplateNotFound
	}

	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// Clear empties the list on the server-side copy and on every client.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fragments = s.fragments[:0]
	s.broadcastLocked(model.NewClearMessage())
}

// Append adds a fragment to the server-side copy and to every client.
func (s *Surface) Append(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fragments = append(s.fragments, fragment)
	s.broadcastLocked(model.NewAppendMessage(fragment))
}

// OnAdd binds the add control.
func (s *Surface) OnAdd(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAdd = fn
}

// OnRemove binds the delegated handler for remove controls in the list.
func (s *Surface) OnRemove(fn func(ctx context.Context, row map[string]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemove = fn
}

// Fragments returns a copy of the current list content.
func (s *Surface) Fragments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// Click dispatches a click on target to the bound handler. For the remove
// target, row holds the data attributes of the row containing the control.
func (s *Surface) Click(ctx context.Context, target string, row map[string]string) error {
	s.mu.RLock()
	onAdd, onRemove := s.onAdd, s.onRemove
	s.mu.RUnlock()

	switch target {
	case model.TargetAddPizza:
		if onAdd == nil {
			return fmt.Errorf("%s: %w", target, ErrNotBound)
		}
		onAdd(ctx)
	case model.TargetRemovePizza:
		if onRemove == nil {
			return fmt.Errorf("%s: %w", target, ErrNotBound)
		}
		onRemove(ctx, row)
	default:
		return fmt.Errorf("%q: %w", target, ErrUnknownTarget)
	}

	return nil
}

// ClientCount returns the number of connected clients.
func (s *Surface) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleWebSocket upgrades the request and attaches the client to the surface.
//
//nolint:contextcheck // intentional: WebSocket connections outlive the HTTP request context
func (s *Surface) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &surfaceClient{
		send:   make(chan model.SurfaceMessage, sendBufferSize),
		cancel: cancel,
	}

	// The snapshot and the registration happen under one lock so the client
	// sees every later broadcast exactly once.
	s.mu.Lock()
	snapshot := make([]string, len(s.fragments))
	copy(snapshot, s.fragments)
	s.clients[conn] = client
	s.mu.Unlock()

	s.logger.Info("surface client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go s.writePump(ctx, conn, client, snapshot)
	go s.readPump(ctx, conn, cancel)
}

// readPump turns click messages from the client into surface clicks.
func (s *Surface) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		s.removeClient(conn)
		if err := conn.Close(); err != nil {
			s.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg model.SurfaceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed surface message", zap.Error(err))
			continue
		}

		if msg.Type != model.SurfaceMessageClick {
			s.logger.Debug("ignoring surface message", zap.String("type", msg.Type))
			continue
		}

		if err := s.Click(ctx, msg.Target, msg.Row); err != nil {
			s.logger.Warn("surface click rejected", zap.String("target", msg.Target), zap.Error(err))
		}
	}
}

// writePump replays the snapshot, then forwards broadcasts and keeps the
// connection alive with pings.
func (s *Surface) writePump(
	ctx context.Context,
	conn *websocket.Conn,
	client *surfaceClient,
	snapshot []string,
) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	if err := s.writeSnapshot(conn, snapshot); err != nil {
		s.logger.Debug("failed to send snapshot", zap.Error(err))
		client.cancel()
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.sendCloseMessage(conn)
			return
		case msg := <-client.send:
			if err := s.writeMessage(conn, msg); err != nil {
				s.logger.Debug("failed to send surface message", zap.Error(err))
				client.cancel()
				return
			}
		case <-pingTicker.C:
			if err := s.sendPing(conn); err != nil {
				s.logger.Debug("failed to send ping", zap.Error(err))
				client.cancel()
				return
			}
		}
	}
}

func (s *Surface) writeSnapshot(conn *websocket.Conn, snapshot []string) error {
	if err := s.writeMessage(conn, model.NewClearMessage()); err != nil {
		return err
	}
	for _, fragment := range snapshot {
		if err := s.writeMessage(conn, model.NewAppendMessage(fragment)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Surface) writeMessage(conn *websocket.Conn, msg model.SurfaceMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// broadcastLocked queues msg for every client. A client whose buffer is full
// is cut off; it will get a fresh snapshot when it reconnects.
func (s *Surface) broadcastLocked(msg model.SurfaceMessage) {
	for conn, client := range s.clients {
		select {
		case client.send <- msg:
		default:
			s.logger.Warn("surface client too slow, disconnecting",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			client.cancel()
		}
	}
}

// sendPing sends a ping message to the connection.
func (s *Surface) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// sendCloseMessage sends a close message to the connection.
func (s *Surface) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		s.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (s *Surface) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, exists := s.clients[conn]; exists {
		client.cancel()
		delete(s.clients, conn)
		s.logger.Info("surface client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (s *Surface) CloseAllConnections() {
	s.mu.Lock()
	clients := make(map[*websocket.Conn]*surfaceClient, len(s.clients))
	for conn, client := range s.clients {
		clients[conn] = client
	}
	s.mu.Unlock()

	// Cancelling first lets each writePump send its close frame.
	for _, client := range clients {
		client.cancel()
	}

	time.Sleep(100 * time.Millisecond)

	s.mu.Lock()
	for conn := range s.clients {
		if err := conn.Close(); err != nil {
			s.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	s.logger.Info("all surface connections closed")
}

// originChecker accepts handshakes without an Origin header (non-browser
// clients) and those from a listed origin.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	anyOrigin := allowed["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return anyOrigin || origin == "" || allowed[origin]
	}
}

// findTemplate walks the document for a script element whose data-template
// attribute equals name.
func findTemplate(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, attr := range n.Attr {
			if attr.Key == "data-template" && attr.Val == name {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTemplate(c, name); found != nil {
			return found
		}
	}
	return nil
}
