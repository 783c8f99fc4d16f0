package server

import (
	"net/http"
	"time"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every inbound real-time event. Exactly
// one of the event fields is set.
type ClientMessage struct {
	BaseMessage
	JoinRoom    *JoinRoom    `json:"join_room,omitempty"`
	LeaveRoom   *LeaveRoom   `json:"leave_room,omitempty"`
	UpdateNotes *UpdateNotes `json:"update_notes,omitempty"`
	SendChat    *SendChat    `json:"send_chat_message,omitempty"`
	Drawing     *DrawingData `json:"drawing_data,omitempty"`
	client      *Client
}

type JoinRoom struct {
	RoomId string `json:"room_id"`
	// User is accepted for wire compatibility but ignored: the identity
	// bound to the connection at registration is authoritative.
	User *types.User `json:"user,omitempty"`
}

type LeaveRoom struct {
	RoomId string `json:"room_id"`
}

type UpdateNotes struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type SendChat struct {
	RoomId  string `json:"room_id"`
	Message string `json:"message"`
}

type DrawingData struct {
	RoomId string              `json:"room_id"`
	Data   types.DrawingStroke `json:"data"`
}

// ServerMessage is the envelope for every outbound event.
type ServerMessage struct {
	BaseMessage
	Response      *Response          `json:"response,omitempty"`
	RoomState     *RoomState         `json:"room_state,omitempty"`
	NotesUpdated  *NotesUpdated      `json:"notes_updated,omitempty"`
	ChatMessage   *types.ChatMessage `json:"chat_message,omitempty"`
	UserJoined    *RosterUpdate      `json:"user_joined,omitempty"`
	UserLeft      *RosterUpdate      `json:"user_left,omitempty"`
	DrawingUpdate *DrawingUpdate     `json:"drawing_update,omitempty"`
	SkipClient    *Client            `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

// RoomState is the full snapshot sent to a joining connection.
type RoomState struct {
	RoomId       string                `json:"room_id"`
	NotesContent string                `json:"notes_content"`
	ChatMessages []types.ChatMessage   `json:"chat_messages"`
	Users        []types.PresenceEntry `json:"users"`
}

type NotesUpdated struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

// RosterUpdate carries the full recomputed roster after a membership
// change, plus the user that caused it.
type RosterUpdate struct {
	RoomId   string                `json:"room_id"`
	Username string                `json:"username"`
	Users    []types.PresenceEntry `json:"users"`
}

type DrawingUpdate struct {
	RoomId string              `json:"room_id"`
	Data   types.DrawingStroke `json:"data"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func ErrNotAuthenticated(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        "not authenticated",
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrNotAttached(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "not attached to room",
		},
	}
}

func ErrInvalidPayload(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid payload",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
