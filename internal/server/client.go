package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/stats"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a single live connection. Its room binding is owned by the
// ConnectionRegistry and mutated only from room event loops.
type Client struct {
	id       string
	conn     *websocket.Conn
	server   *StudyServer
	log      *log.Logger
	stats    stats.StatsProvider
	user     types.User
	send     chan *ServerMessage
	room     *Room
	roomLock sync.RWMutex
	stop     chan struct{}
	once     sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, ss *StudyServer, l *log.Logger, sp stats.StatsProvider) *Client {
	return &Client{
		conn:   conn,
		server: ss,
		log:    l,
		stats:  sp,
		user:   user,
		send:   make(chan *ServerMessage, 256),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidPayload(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()
		c.route(&msg)
	}
}

// route dispatches a single inbound event. Events from this connection are
// routed in the order they were read, preserving per-connection ordering.
func (c *Client) route(msg *ClientMessage) {
	switch {
	case msg.JoinRoom != nil:
		select {
		case c.server.joinChan <- msg:
		default:
			c.log.Println("joinChan full")
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	case msg.LeaveRoom != nil:
		r := c.currentRoom()
		if r == nil {
			// leaving while not attached is a no-op, not an error
			c.queueMessage(NoErrOK(msg.Id))
			return
		}
		c.forwardToRoom(r, r.leaveChan, msg)
	case msg.UpdateNotes != nil:
		c.routeRoomEvent(msg, msg.UpdateNotes.RoomId)
	case msg.SendChat != nil:
		c.routeRoomEvent(msg, msg.SendChat.RoomId)
	case msg.Drawing != nil:
		c.routeRoomEvent(msg, msg.Drawing.RoomId)
	default:
		c.queueMessage(ErrInvalidPayload(msg.Id))
	}
}

// routeRoomEvent forwards a room-scoped event to the room this connection
// is attached to. Events naming a room the connection is not attached to
// are rejected without touching any room state.
func (c *Client) routeRoomEvent(msg *ClientMessage, roomId string) {
	r := c.currentRoom()
	if r == nil || (roomId != "" && roomId != r.id) {
		c.queueMessage(ErrNotAttached(msg.Id))
		return
	}

	c.forwardToRoom(r, r.eventChan, msg)
}

func (c *Client) forwardToRoom(r *Room, ch chan *ClientMessage, msg *ClientMessage) {
	select {
	case ch <- msg:
	default:
		c.log.Printf("event channel full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// cleanup tears the connection down exactly once, even when both pumps
// observe the transport failure. Disconnect is an implicit leave: the room
// is notified first so the roster never carries a dead connection.
func (c *Client) cleanup() {
	c.once.Do(func() {
		if r := c.currentRoom(); r != nil {
			leave := &ClientMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				LeaveRoom:   &LeaveRoom{RoomId: r.id},
				client:      c,
			}
			select {
			case r.leaveChan <- leave:
			default:
				c.log.Printf("leaveChan full for room %q on disconnect", r.id)
			}
		}

		c.server.DeRegisterClient(c)
		close(c.stop)
	})
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()

	return c.room
}

func (c *Client) swapRoom(r *Room) *Room {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	prev := c.room
	c.room = r
	return prev
}

func (c *Client) detachIfRoom(r *Room) bool {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	if c.room != r {
		return false
	}

	c.room = nil
	return true
}
