// internal/hub/hub.go
package hub

import (
	"encoding/json"
	"sync"

	"github.com/magyk-ai/mvow/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the number of outbound frames queued per connection before it
// is treated as a slow consumer and dropped.
const DefaultBuffer = 64

// Conn is one registered socket. The write pump drains OutChan in order.
type Conn struct {
	ID      string
	OutChan chan []byte

	drop     func()
	dropOnce sync.Once
}

// Hub tracks live connections and the rooms they are in. It implements
// lobby.Broadcaster.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[string]map[string]*Conn
	buffer int
	log    logrus.FieldLogger
}

func New(logger logrus.FieldLogger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]map[string]*Conn),
		buffer: buffer,
		log:    logger,
	}
}

// Register adds a connection. drop is called at most once if the connection falls
// too far behind; it should tear the socket down.
func (h *Hub) Register(id string, drop func()) *Conn {
	c := &Conn{ID: id, OutChan: make(chan []byte, h.buffer), drop: drop}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[id]; ok {
		h.removeLocked(old)
	}
	h.conns[id] = c
	return c
}

// Unregister removes a connection from every room and closes its OutChan.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[id]; ok {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *Conn) {
	for room, members := range h.rooms {
		if members[c.ID] == c {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.conns, c.ID)
	close(c.OutChan)
}

func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[connID] = c
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Emit sends one event to a single connection.
func (h *Hub) Emit(connID, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[connID]; ok {
		h.deliver(c, event, frame)
	}
}

// Broadcast sends one event to every connection in room. The frame is encoded once.
func (h *Hub) Broadcast(room, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		h.deliver(c, event, frame)
	}
}

// deliver queues frame without blocking. Assumes h.mu is held.
func (h *Hub) deliver(c *Conn, event string, frame []byte) {
	select {
	case c.OutChan <- frame:
	default:
		h.log.WithFields(logrus.Fields{"conn": c.ID, "event": event}).Warn("Outbound queue full, dropping connection")
		if c.drop != nil {
			c.dropOnce.Do(c.drop)
		}
	}
}

// RoomSize reports how many connections are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Count reports the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
