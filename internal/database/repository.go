package database

type StudyRepository interface {
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(id string) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountByUsername(username string) (User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomById(id string) (Room, error)
	GetRoomByJoinCode(code string) (Room, error)
	JoinCodeExists(code string) (bool, error)
	AddParticipant(roomId, userId string) error
	ParticipantExists(roomId, userId string) bool
	GetParticipants(roomId string) ([]User, error)
	ListRoomsForUser(userId string) ([]Room, error)
	CreateMessage(msg Message) error
	GetMessages(roomId string, limit int) ([]Message, error)
	UpdateRoomNotes(roomId, content string) error
}
