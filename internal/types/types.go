package types

import "time"

type User struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	JoinCode     string    `json:"room_code"`
	CreatedBy    string    `json:"created_by"`
	Participants []User    `json:"participants"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type ChatMessage struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	UserId    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceEntry describes one live connection in a room. Presence is
// derived from the connection set and never stored.
type PresenceEntry struct {
	ConnectionId string `json:"connection_id"`
	UserId       string `json:"user_id"`
	Username     string `json:"username"`
}

type DrawingStroke struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}
