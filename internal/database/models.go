package database

import "time"

type User struct {
	Id           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	Id           string
	Name         string
	JoinCode     string
	CreatedBy    string
	NotesContent string
	SeqId        int
	CreatedAt    time.Time
	Participants []Participant
}

type Participant struct {
	Id        int
	RoomId    string
	UserId    string
	Username  string
	CreatedAt time.Time
}

type Message struct {
	Id        string
	SeqId     int
	RoomId    string
	UserId    string
	Username  string
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	Email        string
	PasswordHash string
}

type CreateRoomParams struct {
	Id        string
	Name      string
	JoinCode  string
	CreatedBy string
}
