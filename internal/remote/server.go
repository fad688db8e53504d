package remote

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/gorilla/websocket"
)

// Game is what an agent endpoint serves: something that can be read and
// acted upon.
type Game interface {
	Capture(ctx context.Context) (career.Snapshot, error)
	Execute(ctx context.Context, action career.Action) error
}

// Handler serves a Game as a capture agent. It is how the simulator is
// exposed to a bot running against a real agent URL.
type Handler struct {
	game     Game
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates an agent endpoint for game. Requests are served one at a
// time per connection, in arrival order.
func NewHandler(game Game, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		game:   game,
		logger: logger.WithPrefix("agent-server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the request and answers capture and execute requests
// until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("Bot connected", "remote", r.RemoteAddr)
	ctx := r.Context()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Connection dropped", "error", err)
			}
			return
		}

		reply := h.handle(ctx, &msg)
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("Failed to write reply", "error", err)
			return
		}
	}
}

func (h *Handler) handle(ctx context.Context, msg *Message) *Message {
	switch msg.Type {
	case MessageTypeCapture:
		snap, err := h.game.Capture(ctx)
		if err != nil {
			return h.reply(MessageTypeReadFailure, msg.ID, FailureData{Error: err.Error()})
		}
		return h.reply(MessageTypeSnapshot, msg.ID, FromSnapshot(snap))

	case MessageTypeExecute:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return h.reply(MessageTypeError, msg.ID, FailureData{Error: "malformed action: " + err.Error()})
		}
		action, err := data.ToAction()
		if err != nil {
			return h.reply(MessageTypeError, msg.ID, FailureData{Error: err.Error()})
		}
		h.logger.Debug("Executing", "action", action)
		if err := h.game.Execute(ctx, action); err != nil {
			return h.reply(MessageTypeExecutionFailure, msg.ID, FailureData{Error: err.Error()})
		}
		return h.reply(MessageTypeAck, msg.ID, nil)

	default:
		return h.reply(MessageTypeError, msg.ID, FailureData{Error: "unknown message type " + string(msg.Type)})
	}
}

func (h *Handler) reply(msgType MessageType, id string, data any) *Message {
	msg, err := NewMessage(msgType, id, data)
	if err != nil {
		msg, _ = NewMessage(MessageTypeError, id, FailureData{Error: err.Error()})
	}
	return msg
}
