package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/database"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/stats"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/testutil"
	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

func newTestClient(t *testing.T, cs *StudyServer) *Client {
	return &Client{
		user:   types.User{Id: "u1", Username: "testuser"},
		server: cs,
		log:    testutil.TestLogger(t),
		send:   make(chan *ServerMessage, 256),
		stop:   make(chan struct{}),
	}
}

func Test_route(t *testing.T) {
	t.Run("forwards join to server", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			JoinRoom:    &JoinRoom{RoomId: "testroom"},
			client:      c,
		}
		c.route(msg)

		select {
		case got := <-cs.joinChan:
			assert.Equal(t, msg, got, "expected join message on server joinChan")
		default:
			t.Error("expected join message to be forwarded to server")
		}
	})

	t.Run("join channel full", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		cs.joinChan = make(chan *ClientMessage) // unbuffered with no reader

		c := newTestClient(t, cs)
		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			JoinRoom:    &JoinRoom{RoomId: "testroom"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusServiceUnavailable, msg.Response.ResponseCode, "expected 503")
		default:
			t.Error("expected client to receive response message, but did not")
		}
	})

	t.Run("leave while unattached is acknowledged", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			LeaveRoom:   &LeaveRoom{RoomId: "testroom"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected 200 for no-op leave")
		default:
			t.Error("expected client to receive acknowledgement")
		}
	})

	t.Run("leave forwards to attached room", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		room := &Room{id: "testroom", leaveChan: make(chan *ClientMessage, 1)}
		c.swapRoom(room)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			LeaveRoom:   &LeaveRoom{RoomId: room.id},
			client:      c,
		}
		c.route(msg)

		select {
		case got := <-room.leaveChan:
			assert.Equal(t, msg, got, "expected leave message on room leaveChan")
		default:
			t.Error("expected leave message to be forwarded to room")
		}
	})

	t.Run("room event while unattached is rejected", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			SendChat:    &SendChat{RoomId: "testroom", Message: "hello"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusConflict, msg.Response.ResponseCode, "expected 409")
			assert.Equal(t, "not attached to room", msg.Response.Error, "expected not attached error message")
		default:
			t.Error("expected client to receive response message, but did not")
		}
	})

	t.Run("room event naming another room is rejected", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		room := &Room{id: "testroom", eventChan: make(chan *ClientMessage, 1)}
		c.swapRoom(room)

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			UpdateNotes: &UpdateNotes{RoomId: "otherroom", Content: "notes"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusConflict, msg.Response.ResponseCode, "expected 409")
		default:
			t.Error("expected client to receive response message, but did not")
		}

		assert.Empty(t, room.eventChan, "expected no event forwarded to room")
	})

	t.Run("room event forwards to attached room", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		room := &Room{id: "testroom", eventChan: make(chan *ClientMessage, 1)}
		c.swapRoom(room)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 4},
			Drawing:     &DrawingData{RoomId: room.id, Data: types.DrawingStroke{X: 1, Y: 2}},
			client:      c,
		}
		c.route(msg)

		select {
		case got := <-room.eventChan:
			assert.Equal(t, msg, got, "expected drawing event on room eventChan")
		default:
			t.Error("expected drawing event to be forwarded to room")
		}
	})

	t.Run("empty envelope is rejected", func(t *testing.T) {
		cs := newTestStudyServer(t, &database.MockStudyRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, cs)

		c.route(&ClientMessage{BaseMessage: BaseMessage{Id: 5}, client: c})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode, "expected 400")
		default:
			t.Error("expected client to receive response message, but did not")
		}
	})
}

func Test_queueMessage(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	assert.True(t, c.queueMessage(NoErrOK(1)), "expected message to be queued")
	assert.False(t, c.queueMessage(NoErrOK(2)), "expected queue to reject when full")
}

func Test_cleanup(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Decr", "NumActiveConnections").Once()

	cs := newTestStudyServer(t, &database.MockStudyRepository{}, su)

	c := newTestClient(t, cs)
	cs.RegisterClient(c)

	room := &Room{id: "testroom", leaveChan: make(chan *ClientMessage, 1)}
	c.swapRoom(room)

	c.cleanup()

	select {
	case leave := <-room.leaveChan:
		assert.NotNil(t, leave.LeaveRoom, "expected implicit leave on disconnect")
		assert.Equal(t, room.id, leave.LeaveRoom.RoomId, "expected leave to name the attached room")
		assert.Equal(t, c, leave.client, "expected leave to carry the disconnecting client")
	default:
		t.Error("expected room to receive implicit leave on disconnect")
	}

	select {
	case <-c.stop:
		// stop channel closed
	default:
		t.Error("expected stop channel to be closed")
	}

	assert.Equal(t, 0, cs.registry.Len(), "expected connection to be unregistered")

	// a second cleanup must be a no-op
	c.cleanup()
	su.AssertExpectations(t)
}
