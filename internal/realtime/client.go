package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/response"
)

const writeWait = 10 * time.Second

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one organizer dashboard watching an event.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger
}

// Identity is the caller resolved from a token.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// TokenValidator resolves a JWT into an identity.
type TokenValidator func(token string) (Identity, error)

// EventGetter loads the event a dashboard asks to watch.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// ErrForbidden is returned by Authorize when the caller may not watch the event.
var ErrForbidden = errors.New("not the owner of this event")

// Authorize checks that the identity may follow the event's live feed.
func Authorize(ctx context.Context, events EventGetter, eventID uuid.UUID, who Identity) error {
	e, err := events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if e.OwnerID != who.UserID && who.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// ServeWs handles GET /ws?event_id=&token=: upgrade and stream the event's updates.
func ServeWs(hub *Hub, events EventGetter, validate TokenValidator, allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Query("event_id"))
		if err != nil {
			response.BadRequest(c, "event_id required")
			return
		}
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "token required")
			return
		}
		who, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		if err := Authorize(c.Request.Context(), events, eventID, who); err != nil {
			if errors.Is(err, ErrForbidden) {
				response.Forbidden(c, err.Error())
				return
			}
			response.NotFound(c, "event not found")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			ID:      uuid.NewString(),
			EventID: eventID,
			UserID:  who.UserID,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, sendBuffer),
			logger:  logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set["*"] || set[origin]
	}
}

// readPump only keeps the connection alive; dashboards are receive-only apart from ping.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: "pong"}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
