package server

import (
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/database"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

const (
	idleRoomTimeout = 30 * time.Second
	// chatHistoryLimit bounds the in-memory chat tail kept for snapshots;
	// the full history lives in the database.
	chatHistoryLimit = 100
)

type exitReq struct {
	done chan string
}

// Room is the authoritative live state for one study room. All state
// mutations go through the room's event loop, so chat sequencing, notes
// last-write-wins and roster consistency need no further locking. The
// clientLock only guards the client set against concurrent snapshot reads.
type Room struct {
	id         string
	name       string
	joinCode   string
	notes      string
	seq        int
	chat       []types.ChatMessage
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
	cs         *StudyServer
	db         database.StudyRepository
	log        *log.Logger
	joinChan   chan *ClientMessage
	leaveChan  chan *ClientMessage
	eventChan  chan *ClientMessage
	// killTimer unloads the room once it has been empty for a while
	killTimer *time.Timer
	exit      chan exitReq
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.id)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.eventChan:
			switch {
			case msg.UpdateNotes != nil:
				r.handleNotesUpdate(msg)
			case msg.SendChat != nil:
				r.handleChatMessage(msg)
			case msg.Drawing != nil:
				r.handleDrawing(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q idle, requesting unload", r.id)
	select {
	case r.cs.unloadRoomChan <- unloadRoomRequest{roomId: r.id}:
	default:
		r.log.Printf("unload channel full, retrying room %q later", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.id)

	r.clientLock.Lock()
	for c := range r.clients {
		r.cs.registry.Detach(c, r)
		delete(r.clients, c)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		e.done <- r.id
	}
}

// handleJoin attaches the connection, seeds it with a consistent snapshot
// and announces the new roster to everyone else. The roster the snapshot
// carries already includes the joiner.
func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	prev, err := r.cs.registry.Attach(c, r)
	if err != nil {
		c.queueMessage(ErrNotAuthenticated(join.Id))
		r.resetTimerIfEmpty()
		return
	}

	if prev != nil && prev != r {
		// a connection is in at most one room; hand the old room an
		// implicit leave before joining here
		select {
		case prev.leaveChan <- &ClientMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			LeaveRoom:   &LeaveRoom{RoomId: prev.id},
			client:      c,
		}:
		default:
			r.log.Printf("leaveChan full for room %q during room switch", prev.id)
		}
	}

	// joining establishes persisted membership if it does not exist yet
	if !r.db.ParticipantExists(r.id, c.user.Id) {
		if err := r.db.AddParticipant(r.id, c.user.Id); err != nil {
			r.log.Println("AddParticipant:", err)
			r.cs.registry.Detach(c, r)
			c.queueMessage(ErrInternalError(join.Id))
			r.resetTimerIfEmpty()
			return
		}
	}

	r.addClient(c)

	state := r.snapshot()
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Id: join.Id, Timestamp: Now()},
		RoomState:   &state,
	})

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserJoined: &RosterUpdate{
			RoomId:   r.id,
			Username: c.user.Username,
			Users:    r.roster(),
		},
		SkipClient: c,
	})
}

// handleLeave detaches the connection and announces the shrunken roster.
// A leave for a connection that is not in the room is a no-op.
func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client

	r.cs.registry.Detach(c, r)
	if !r.removeClient(c) {
		if leaveMsg.Id > 0 {
			c.queueMessage(NoErrOK(leaveMsg.Id))
		}
		return
	}

	if leaveMsg.Id > 0 {
		c.queueMessage(NoErrOK(leaveMsg.Id))
	}

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserLeft: &RosterUpdate{
			RoomId:   r.id,
			Username: c.user.Username,
			Users:    r.roster(),
		},
	})
}

// handleNotesUpdate applies a last-write-wins replacement of the notes
// content, then fans the new content out to every other connection.
func (r *Room) handleNotesUpdate(msg *ClientMessage) {
	r.notes = msg.UpdateNotes.Content

	// mirror to the database so an idle unload/reload keeps the latest write
	if err := r.db.UpdateRoomNotes(r.id, r.notes); err != nil {
		r.log.Println("UpdateRoomNotes:", err)
	}

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		NotesUpdated: &NotesUpdated{
			RoomId:  r.id,
			Content: r.notes,
		},
		SkipClient: msg.client,
	})
}

// handleChatMessage assigns the next sequence number and the canonical
// server timestamp, persists the message, then broadcasts the stored copy
// to every connection in the room, sender included.
func (r *Room) handleChatMessage(msg *ClientMessage) {
	c := msg.client

	text := strings.TrimSpace(msg.SendChat.Message)
	if text == "" {
		c.queueMessage(ErrInvalidPayload(msg.Id))
		return
	}

	stored := types.ChatMessage{
		Id:        uuid.NewString(),
		RoomId:    r.id,
		UserId:    c.user.Id,
		Username:  c.user.Username,
		Message:   text,
		Sequence:  r.seq + 1,
		Timestamp: Now(),
	}

	if err := r.db.CreateMessage(database.Message{
		Id:        stored.Id,
		SeqId:     stored.Sequence,
		RoomId:    stored.RoomId,
		UserId:    stored.UserId,
		Content:   stored.Message,
		CreatedAt: stored.Timestamp,
	}); err != nil {
		r.log.Println("CreateMessage:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	r.seq++
	r.chat = append(r.chat, stored)
	if len(r.chat) > chatHistoryLimit {
		r.chat = r.chat[len(r.chat)-chatHistoryLimit:]
	}

	r.cs.stats.Incr("NumChatMessages")

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: stored.Timestamp},
		ChatMessage: &stored,
	})
}

// handleDrawing relays the stroke verbatim to every other connection.
// Strokes are never validated or stored.
func (r *Room) handleDrawing(msg *ClientMessage) {
	r.cs.stats.Incr("NumDrawingEvents")

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		DrawingUpdate: &DrawingUpdate{
			RoomId: r.id,
			Data:   msg.Drawing.Data,
		},
		SkipClient: msg.client,
	})
}

// snapshot reads notes, chat tail and roster in one critical section so a
// joiner never observes chat from before a notes write combined with a
// roster from after it.
func (r *Room) snapshot() RoomState {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return RoomState{
		RoomId:       r.id,
		NotesContent: r.notes,
		ChatMessages: slices.Clone(r.chat),
		Users:        r.rosterLocked(),
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
}

func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}

	delete(r.clients, c)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
	return true
}

func (r *Room) resetTimerIfEmpty() {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	if len(r.clients) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// broadcast fans a message out to every connection currently in the room,
// in the order the mutations were applied. Fan-out never crosses rooms:
// the only targets are this room's client set.
func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
