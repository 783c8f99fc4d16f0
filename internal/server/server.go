package server

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/database"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/stats"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

const (
	joinChanSize      = 256
	roomEventChanSize = 256
)

type unloadRoomRequest struct {
	roomId string
	done   chan string
}

type stopRequest struct {
	done chan struct{}
}

// StudyServer is the hub that owns the set of live rooms. Rooms are loaded
// on first join, run their own event loop, and are unloaded again once they
// sit empty past the idle timeout.
type StudyServer struct {
	log            *log.Logger
	db             database.StudyRepository
	stats          stats.StatsProvider
	registry       *ConnectionRegistry
	rooms          map[string]*Room
	joinChan       chan *ClientMessage
	unloadRoomChan chan unloadRoomRequest
	stop           chan stopRequest
}

func NewStudyServer(logger *log.Logger, db database.StudyRepository, sp stats.StatsProvider) *StudyServer {
	for _, metric := range []string{
		"NumActiveConnections",
		"NumActiveRooms",
		"NumChatMessages",
		"NumDrawingEvents",
	} {
		sp.RegisterMetric(metric)
	}

	return &StudyServer{
		log:            logger,
		db:             db,
		stats:          sp,
		registry:       NewConnectionRegistry(logger, sp),
		rooms:          make(map[string]*Room),
		joinChan:       make(chan *ClientMessage, joinChanSize),
		unloadRoomChan: make(chan unloadRoomRequest, 16),
		stop:           make(chan stopRequest),
	}
}

func (cs *StudyServer) Run() {
	for {
		select {
		case msg := <-cs.joinChan:
			cs.handleJoinRoom(msg)
		case req := <-cs.unloadRoomChan:
			cs.unloadRoom(req)
		case req := <-cs.stop:
			cs.unloadAllRooms()
			req.done <- struct{}{}
			return
		}
	}
}

// handleJoinRoom resolves the target room, loading it from the database if
// it is not live yet, and forwards the join to the room's own event loop.
func (cs *StudyServer) handleJoinRoom(msg *ClientMessage) {
	c := msg.client

	if c.user.Id == "" {
		c.queueMessage(ErrNotAuthenticated(msg.Id))
		return
	}

	roomId := msg.JoinRoom.RoomId
	if roomId == "" {
		c.queueMessage(ErrInvalidPayload(msg.Id))
		return
	}

	r, ok := cs.rooms[roomId]
	if !ok {
		dbRoom, err := cs.db.GetRoomById(roomId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.queueMessage(ErrRoomNotFound(msg.Id))
			} else {
				cs.log.Println("GetRoomById:", err)
				c.queueMessage(ErrInternalError(msg.Id))
			}
			return
		}

		r, err = cs.loadRoom(dbRoom)
		if err != nil {
			cs.log.Printf("failed to load room %q: %s", roomId, err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}
	}

	select {
	case r.joinChan <- msg:
	default:
		cs.log.Printf("joinChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// loadRoom rehydrates a room from its persisted state and starts its event
// loop. Chat sequencing resumes from the stored counter so sequence numbers
// stay gapless across unload and reload.
func (cs *StudyServer) loadRoom(dbRoom database.Room) (*Room, error) {
	messages, err := cs.db.GetMessages(dbRoom.Id, chatHistoryLimit)
	if err != nil {
		return nil, err
	}

	chat := make([]types.ChatMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, types.ChatMessage{
			Id:        m.Id,
			RoomId:    m.RoomId,
			UserId:    m.UserId,
			Username:  m.Username,
			Message:   m.Content,
			Sequence:  m.SeqId,
			Timestamp: m.CreatedAt,
		})
	}

	r := &Room{
		id:        dbRoom.Id,
		name:      dbRoom.Name,
		joinCode:  dbRoom.JoinCode,
		notes:     dbRoom.NotesContent,
		seq:       dbRoom.SeqId,
		chat:      chat,
		clients:   make(map[*Client]struct{}),
		cs:        cs,
		db:        cs.db,
		log:       cs.log,
		joinChan:  make(chan *ClientMessage, roomEventChanSize),
		leaveChan: make(chan *ClientMessage, roomEventChanSize),
		eventChan: make(chan *ClientMessage, roomEventChanSize),
		exit:      make(chan exitReq),
	}

	cs.rooms[r.id] = r
	cs.stats.Incr("NumActiveRooms")
	go r.start()

	return r, nil
}

func (cs *StudyServer) unloadRoom(req unloadRoomRequest) {
	r, ok := cs.rooms[req.roomId]
	if !ok {
		if req.done != nil {
			req.done <- req.roomId
		}
		return
	}

	done := make(chan string)
	r.exit <- exitReq{done: done}
	<-done

	delete(cs.rooms, req.roomId)
	cs.stats.Decr("NumActiveRooms")
	cs.log.Printf("unloaded room %q", req.roomId)

	if req.done != nil {
		req.done <- req.roomId
	}
}

func (cs *StudyServer) unloadAllRooms() {
	for id := range cs.rooms {
		cs.unloadRoom(unloadRoomRequest{roomId: id})
	}
}

// Shutdown stops the hub, unloading every live room first. Returns the
// context's error if it expires before the hub acknowledges.
func (cs *StudyServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	select {
	case cs.stop <- stopRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *StudyServer) RegisterClient(c *Client) string {
	return cs.registry.Register(c)
}

func (cs *StudyServer) DeRegisterClient(c *Client) {
	cs.registry.Unregister(c)
}

func (cs *StudyServer) Registry() *ConnectionRegistry {
	return cs.registry
}
