package ws

import (
	"encoding/json"
	"sync"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Registry tracks the single live connection per user. A second login
// replaces the first; the replaced connection is closed. All sends are
// best-effort: a slow or dead client is dropped, never waited on.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint]*Client)}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	if old, ok := r.clients[c.userID]; ok {
		close(old.send)
		metrics.WsConnections.Dec()
	}
	r.clients[c.userID] = c
	r.mu.Unlock()
	metrics.WsConnections.Inc()
	log.Info().Uint("user_id", c.userID).Msg("ws client registered")
}

// Unregister removes the client if it is still the user's current one.
// Idempotent; a connection already replaced by a newer login is ignored.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[c.userID]; ok && cur == c {
		delete(r.clients, c.userID)
		close(c.send)
		metrics.WsConnections.Dec()
		log.Info().Uint("user_id", c.userID).Msg("ws client unregistered")
	}
}

// envelope flattens the payload fields next to the type tag, matching
// what the browser client expects.
func envelope(msgType string, payload interface{}) ([]byte, error) {
	m := map[string]interface{}{"type": msgType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			if k != "type" {
				m[k] = v
			}
		}
	}
	return json.Marshal(m)
}

// SendTo delivers one message to one user. Unknown users and marshal
// failures are logged and swallowed; a full send buffer drops the client.
func (r *Registry) SendTo(userID uint, msgType string, payload interface{}) {
	b, err := envelope(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("msg_type", msgType).Msg("ws marshal failed")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[userID]
	if !ok {
		return
	}
	select {
	case c.send <- b:
	default:
		delete(r.clients, userID)
		close(c.send)
		metrics.WsConnections.Dec()
		log.Warn().Uint("user_id", userID).Msg("ws send buffer full, dropping client")
	}
}

// Broadcast delivers one message to every connected user in a workshop,
// optionally excluding one user id.
func (r *Registry) Broadcast(msgType string, payload interface{}, workshopID, exclude uint) {
	b, err := envelope(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("msg_type", msgType).Msg("ws marshal failed")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if c.workshopID != workshopID || id == exclude {
			continue
		}
		select {
		case c.send <- b:
		default:
			delete(r.clients, id)
			close(c.send)
			metrics.WsConnections.Dec()
		}
	}
}

// Online reports how many users of a workshop are connected.
func (r *Registry) Online(workshopID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clients {
		if c.workshopID == workshopID {
			n++
		}
	}
	return n
}
