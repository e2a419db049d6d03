package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/doeshing/compai/internal/ports"
)

// BridgePath is where the host extension panel connects.
const BridgePath = "/bridge"

var (
	errNoPanel           = errors.New("no host panel connected")
	errPanelDisconnected = errors.New("host panel disconnected")
)

// scriptFrame is sent to the panel.
type scriptFrame struct {
	ID     string `json:"id"`
	Script string `json:"script"`
}

// replyFrame is what the panel sends back for one script.
type replyFrame struct {
	ID     string  `json:"id"`
	Result *string `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type evalReply struct {
	result string
	err    error
}

type panelConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending map[string]chan evalReply
}

// WebsocketHost is a ScriptHost backed by the host extension panel.
// Only one panel is attached at a time; a new connection replaces the old one.
type WebsocketHost struct {
	upgrader websocket.Upgrader
	timeout  time.Duration
	logger   ports.Logger

	mu    sync.Mutex
	panel *panelConn
}

// NewWebsocketHost creates a host that waits at most timeout for each script.
func NewWebsocketHost(timeout time.Duration, logger ports.Logger) *WebsocketHost {
	return &WebsocketHost{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The panel runs inside the host application and has no stable origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		timeout: timeout,
		logger:  logger,
	}
}

// ServeHTTP upgrades the panel connection and reads replies until it closes.
func (h *WebsocketHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("panel upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	panel := &panelConn{id: uuid.NewString(), conn: conn, pending: map[string]chan evalReply{}}
	h.mu.Lock()
	previous := h.panel
	h.panel = panel
	h.mu.Unlock()
	if previous != nil {
		_ = previous.conn.Close()
	}
	h.logger.Info("host panel connected", map[string]interface{}{"session": panel.id, "remote": r.RemoteAddr})

	h.readLoop(panel)
}

func (h *WebsocketHost) readLoop(panel *panelConn) {
	defer h.detach(panel)
	for {
		var frame replyFrame
		if err := panel.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("panel read ended", map[string]interface{}{"session": panel.id, "error": err.Error()})
			}
			return
		}

		h.mu.Lock()
		ch, ok := panel.pending[frame.ID]
		delete(panel.pending, frame.ID)
		h.mu.Unlock()
		if !ok {
			h.logger.Debug("dropping reply for unknown script", map[string]interface{}{"id": frame.ID})
			continue
		}

		switch {
		case frame.Error != "":
			ch <- evalReply{err: errors.New(frame.Error)}
		case frame.Result == nil:
			ch <- evalReply{result: "undefined"}
		default:
			ch <- evalReply{result: *frame.Result}
		}
	}
}

func (h *WebsocketHost) detach(panel *panelConn) {
	_ = panel.conn.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panel == panel {
		h.panel = nil
	}
	for id, ch := range panel.pending {
		ch <- evalReply{err: errPanelDisconnected}
		delete(panel.pending, id)
	}
	h.logger.Info("host panel disconnected", map[string]interface{}{"session": panel.id})
}

// Session identifies the attached panel; empty when none is attached.
func (h *WebsocketHost) Session() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panel == nil {
		return ""
	}
	return h.panel.id
}

// Connected reports whether a panel is attached.
func (h *WebsocketHost) Connected() bool {
	return h.Session() != ""
}

// EvalScript sends the script to the panel and waits for its matching reply.
func (h *WebsocketHost) EvalScript(ctx context.Context, script string) (string, error) {
	id := uuid.NewString()
	ch := make(chan evalReply, 1)

	h.mu.Lock()
	panel := h.panel
	if panel == nil {
		h.mu.Unlock()
		return "", errNoPanel
	}
	panel.pending[id] = ch
	h.mu.Unlock()

	panel.writeMu.Lock()
	err := panel.conn.WriteJSON(scriptFrame{ID: id, Script: script})
	panel.writeMu.Unlock()
	if err != nil {
		h.forget(panel, id)
		return "", fmt.Errorf("send script: %w", err)
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		return reply.result, reply.err
	case <-timer.C:
		h.forget(panel, id)
		return "", fmt.Errorf("script %s timed out after %s", id, h.timeout)
	case <-ctx.Done():
		h.forget(panel, id)
		return "", ctx.Err()
	}
}

func (h *WebsocketHost) forget(panel *panelConn, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(panel.pending, id)
}

// Server exposes the websocket host on an address.
type Server struct {
	host *WebsocketHost
	srv  *http.Server
}

// NewServer mounts host at BridgePath.
func NewServer(addr string, host *WebsocketHost) *Server {
	mux := http.NewServeMux()
	mux.Handle(BridgePath, host)
	return &Server{
		host: host,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start listens in the background and shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	return errCh
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

var _ ports.ScriptHost = (*WebsocketHost)(nil)
