package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/moodchat/backend/internal/errx"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

const (
	defaultPongWait = 60 * time.Second
	writeWait       = 10 * time.Second
)

// Analyzer runs one chat turn.
type Analyzer interface {
	Analyze(ctx context.Context, user, input string) (pipeline.Result, error)
}

// Handler runs chat turns over a WebSocket connection, one frame per message.
type Handler struct {
	analyzer Analyzer
	upgrader websocket.Upgrader
	// pongWait is how long the client may stay silent between frames. The
	// clock restarts after every reply, so turn latency does not count.
	pongWait time.Duration
}

// New creates a WebSocket chat handler. allowedOrigin mirrors the CORS setting;
// "*" accepts any origin.
func New(analyzer Analyzer, allowedOrigin string) *Handler {
	return &Handler{
		analyzer: analyzer,
		pongWait: defaultPongWait,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{user}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type  string           `json:"type"`
	Data  *pipeline.Result `json:"data,omitempty"`
	Error string           `json:"error,omitempty"`
}

// conn serialises writes; gorilla allows one concurrent writer only.
type conn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) send(msg outgoingMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(msg)
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if utils.IsBlank(user) {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn().Err(err).Str("user", user).Msg("websocket upgrade failed")
		return
	}
	c := &conn{Conn: raw}
	defer c.Close()

	logx.Debug().Str("user", user).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = c.SetReadDeadline(time.Now().Add(h.pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, c)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logx.Warn().Err(err).Str("user", user).Msg("websocket read failed")
			}
			return
		}
		if err := c.send(h.handleMessage(ctx, user, data)); err != nil {
			logx.Warn().Err(err).Str("user", user).Msg("websocket write failed")
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

func (h *Handler) handleMessage(ctx context.Context, user string, data []byte) outgoingMessage {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return outgoingMessage{Type: "error", Error: utils.ErrInvalidBody.Error()}
	}
	if utils.IsBlank(msg.Message) {
		return outgoingMessage{Type: "error", Error: "message is required"}
	}

	result, err := h.analyzer.Analyze(ctx, user, msg.Message)
	if err != nil {
		return outgoingMessage{Type: "error", Error: errx.MessageOf(err)}
	}
	return outgoingMessage{Type: "reply", Data: &result}
}

func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
