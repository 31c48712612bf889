package core

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// Frame is one outbound wire message, already encoded.
type Frame []byte

// Sender is the transport half of a connection. TrySend must not block;
// a full or closed socket returns an error and the frame is dropped.
type Sender interface {
	TrySend(Frame) error
}

// Client is one live socket. User and Role are set on profile init,
// Room changes on join/leave. All fields are mutated only while the
// session manager holds its lock.
type Client struct {
	ID     string
	User   domain.UserID
	Role   domain.Role
	Room   domain.RoomID
	sender Sender
}

func NewClient(id string, sender Sender) *Client {
	return &Client{ID: id, sender: sender}
}

func (c *Client) send(v any) {
	f, ok := encode(v)
	if !ok {
		return
	}
	if err := c.sender.TrySend(f); err != nil {
		log.Debug().Str("module", "core.registry").Str("conn", c.ID).Err(err).Msg("frame dropped")
	}
}

func encode(v any) (Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.registry").Msg("encode failed")
		return nil, false
	}
	return b, true
}

// Registry maps users to their open sockets. A user may be attached
// through several devices at once; they are online iff at least one
// socket is attached.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[*Client]struct{}
	all    map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]map[*Client]struct{}),
		all:    make(map[*Client]struct{}),
	}
}

func (r *Registry) Attach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byUser[c.User]
	if !ok {
		set = make(map[*Client]struct{})
		r.byUser[c.User] = set
	}
	set[c] = struct{}{}
	r.all[c] = struct{}{}
	log.Info().Str("module", "core.registry").Str("conn", c.ID).Str("user", string(c.User)).Msg("attached")
}

func (r *Registry) Detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.byUser[c.User]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byUser, c.User)
		}
	}
	delete(r.all, c)
	log.Info().Str("module", "core.registry").Str("conn", c.ID).Str("user", string(c.User)).Msg("detached")
}

func (r *Registry) Online(id domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[id]) > 0
}

// ClientsOf returns a snapshot of the user's open sockets.
func (r *Registry) ClientsOf(id domain.UserID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser[id]))
	for c := range r.byUser[id] {
		out = append(out, c)
	}
	return out
}

// SendToUser delivers to every open socket of the user, best effort.
func (r *Registry) SendToUser(id domain.UserID, v any) {
	f, ok := encode(v)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.byUser[id] {
		if err := c.sender.TrySend(f); err != nil {
			log.Debug().Str("module", "core.registry").Str("conn", c.ID).Err(err).Msg("frame dropped")
		}
	}
}

// BroadcastRoom delivers to every socket currently in the room,
// optionally excluding one.
func (r *Registry) BroadcastRoom(roomID domain.RoomID, v any, exclude *Client) {
	f, ok := encode(v)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.all {
		if c.Room != roomID || c == exclude {
			continue
		}
		_ = c.sender.TrySend(f)
	}
}

// BroadcastFiltered builds a per-socket message for every socket in the
// room that passes pred. A nil message from build skips the socket.
func (r *Registry) BroadcastFiltered(roomID domain.RoomID, pred func(*Client) bool, build func(*Client) any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.all {
		if c.Room != roomID || !pred(c) {
			continue
		}
		v := build(c)
		if v == nil {
			continue
		}
		if f, ok := encode(v); ok {
			_ = c.sender.TrySend(f)
		}
	}
}

// BroadcastEach builds a per-socket message for every attached socket.
// A nil message from build skips the socket.
func (r *Registry) BroadcastEach(build func(*Client) any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.all {
		v := build(c)
		if v == nil {
			continue
		}
		if f, ok := encode(v); ok {
			_ = c.sender.TrySend(f)
		}
	}
}
