package server

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/stats"
)

var errNotAuthenticated = errors.New("connection has no authenticated user")

// ConnectionRegistry tracks every live connection by its connection id and
// owns the connection-to-room binding. A connection is attached to at most
// one room at a time; attach and detach are always invoked from the room's
// serialized event path, so the binding never races the roster.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]*Client
	log   *log.Logger
	stats stats.StatsProvider
}

func NewConnectionRegistry(logger *log.Logger, sp stats.StatsProvider) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Client),
		log:   logger,
		stats: sp,
	}
}

// Register allocates a connection id and stores the connection. Called once
// per transport handshake, after the bearer credential has been verified.
func (reg *ConnectionRegistry) Register(c *Client) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	c.id = uuid.NewString()
	reg.conns[c.id] = c
	reg.stats.Incr("NumActiveConnections")

	return c.id
}

func (reg *ConnectionRegistry) Get(connId string) (*Client, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	c, ok := reg.conns[connId]
	return c, ok
}

func (reg *ConnectionRegistry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.conns)
}

// Attach binds the connection to a room, returning the room it was attached
// to before, if any. Fails if the connection carries no verified identity.
func (reg *ConnectionRegistry) Attach(c *Client, r *Room) (*Room, error) {
	if c.user.Id == "" {
		return nil, errNotAuthenticated
	}

	prev := c.swapRoom(r)
	return prev, nil
}

// Detach clears the connection's room binding, but only if it still points
// at r: a leave that raced a newer attach must not clobber the new binding.
// Idempotent: detaching an unattached connection is not an error.
func (reg *ConnectionRegistry) Detach(c *Client, r *Room) bool {
	return c.detachIfRoom(r)
}

// Unregister removes the connection entirely. Runs exactly once per
// connection lifetime; the caller is responsible for having detached the
// connection from its room first (Client.cleanup guarantees this even on
// abrupt network loss).
func (reg *ConnectionRegistry) Unregister(c *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.conns[c.id]; !ok {
		return
	}

	delete(reg.conns, c.id)
	reg.stats.Decr("NumActiveConnections")
	reg.log.Printf("unregistered connection %q (%s)", c.id, c.user.Username)
}
