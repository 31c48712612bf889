// Package adapters binds the session core to its transports: the
// websocket controller, the message envelope codec and the gin router.
package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/config"
	"github.com/Marc-We/Meldeliste/internal/core"
	"github.com/Marc-We/Meldeliste/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSController struct {
	sessions *core.SessionManager
	cfg      *config.Config
	rate     *msgRateLimiter
}

func NewWSController(sessions *core.SessionManager, cfg *config.Config) *WSController {
	return &WSController{
		sessions: sessions,
		cfg:      cfg,
		rate:     newMsgRateLimiter(cfg.MsgRateLimit, cfg.MsgRateInterval),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame
	once sync.Once
}

func (c *wsConn) TrySend(f core.Frame) error {
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

func (ctl *WSController) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 64),
	}
	client := core.NewClient(uuid.NewString(), conn)
	log.Info().Str("module", "adapters.ws").Str("conn", client.ID).Msg("socket open")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, client, conn)
}

func (ctl *WSController) writePump(ctx context.Context, c *wsConn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, cancel context.CancelFunc, client *core.Client, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("conn", client.ID).Msg("socket closed")
		ctl.sessions.Disconnect(client)
		ctl.rate.Forget(client.ID)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleMessage(client, data)
		}
	}
}

// inbound is the flattened envelope; one message carries one event and
// only the fields its type needs.
type inbound struct {
	Type       string   `json:"type"`
	Mode       string   `json:"mode"`
	Role       string   `json:"role"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Salutation string   `json:"salutation"`
	ClassName  string   `json:"className"`
	Password   string   `json:"password"`
	UserID     string   `json:"userId"`
	RoomID     string   `json:"roomId"`
	Name       string   `json:"name"`
	Subject    string   `json:"subject"`
	Text       string   `json:"text"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Multiple   bool     `json:"multiple"`
	Rating     string   `json:"rating"`
	Allow      bool     `json:"allow"`
	TemplateID string   `json:"templateId"`
	EntryID    string   `json:"entryId"`
	FileName   string   `json:"fileName"`
	Data       string   `json:"data"`
}

func (ctl *WSController) handleMessage(client *core.Client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		log.Debug().Err(err).Str("module", "adapters.ws").Str("conn", client.ID).Msg("bad envelope")
		return
	}

	if in.Type == "initProfile" {
		ctl.sessions.InitProfile(client, core.ProfileInit{
			Mode:       in.Mode,
			Role:       in.Role,
			FirstName:  in.FirstName,
			LastName:   in.LastName,
			Salutation: in.Salutation,
			ClassName:  in.ClassName,
			Password:   in.Password,
			UserID:     in.UserID,
		})
		return
	}

	if !ctl.rate.Allow(client.ID) {
		log.Warn().Str("module", "adapters.ws").Str("conn", client.ID).Msg("rate limited")
		return
	}

	cmd, ok := commandFrom(in)
	if !ok {
		return
	}
	if ctl.sessions.Dispatch(client, cmd) == core.Rejected {
		// Dropped commands get no reply, only a debug line.
		log.Debug().Str("module", "adapters.ws").Str("conn", client.ID).Str("type", in.Type).Msg("command rejected")
	}
}

func commandFrom(in inbound) (core.Command, bool) {
	cmd := core.Command{
		Kind:       core.Kind(in.Type),
		RoomID:     domain.RoomID(in.RoomID),
		TargetID:   domain.UserID(in.UserID),
		Name:       in.Name,
		Subject:    in.Subject,
		ClassName:  in.ClassName,
		Text:       in.Text,
		Question:   in.Question,
		Options:    in.Options,
		Multiple:   in.Multiple,
		Rating:     in.Rating,
		Allow:      in.Allow,
		TemplateID: in.TemplateID,
		EntryID:    in.EntryID,
		FileName:   in.FileName,
	}
	if in.Data != "" {
		raw, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return core.Command{}, false
		}
		cmd.Data = raw
	}
	return cmd, true
}
