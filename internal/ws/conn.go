package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/auth"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Client is one live websocket connection. All outbound traffic goes
// through the buffered send channel and the write pump; the read pump
// handles inbound messages strictly in arrival order.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	userID     uint
	workshopID uint
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve authenticates the handshake, upgrades and runs the pumps. An
// invalid session rejects with 401 before any registration happens.
func Serve(h *Handler, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.ResolveSession(db, auth.SessionToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Nicht angemeldet"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			conn:       conn,
			send:       make(chan []byte, 256),
			userID:     user.ID,
			workshopID: user.WorkshopID,
		}
		h.registry.Register(client)

		go client.writePump()
		h.sendInitialState(user)
		client.readPump(h, c.Request.Context(), user)
	}
}

func (c *Client) readPump(h *Handler, ctx context.Context, user *models.User) {
	defer func() {
		h.registry.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		h.dispatch(ctx, c, user, data)
	}
	log.Debug().Uint("user_id", c.userID).Msg("ws read loop ended")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
