package app

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"quizmaster/internal/domain"
	"quizmaster/internal/quiz"
	"quizmaster/internal/store"
)

// QuizRepository loads library quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RoomService owns the room lifecycle: creating rooms, admitting and
// removing participants, and minting the reconnect sessions the websocket
// layer authenticates with.
type RoomService struct {
	rooms    store.RoomStore
	sessions store.SessionStore
	quizzes  QuizRepository

	clock func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRoomService(rooms store.RoomStore, sessions store.SessionStore, quizzes QuizRepository) *RoomService {
	return &RoomService{
		rooms:    rooms,
		sessions: sessions,
		quizzes:  quizzes,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewRoomServiceWithClock is test-only for deterministic timestamps and shuffles.
func NewRoomServiceWithClock(rooms store.RoomStore, sessions store.SessionStore, quizzes QuizRepository, now func() time.Time, seed int64) *RoomService {
	s := NewRoomService(rooms, sessions, quizzes)
	s.clock = now
	s.rnd = rand.New(rand.NewSource(seed))
	return s
}

// Membership identifies a participant admitted to a room, plus the token
// that lets them reconnect an engine later.
type Membership struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	IsHost   bool   `json:"isHost"`
}

// CreateRoom validates and shuffles the uploaded quiz, writes the room
// document in the lobby state, and seats the host as its first player.
func (s *RoomService) CreateRoom(ctx context.Context, hostName string, quizJSON []byte) (Membership, error) {
	parsed, err := quiz.Parse(quizJSON)
	if err != nil {
		return Membership{}, err
	}
	return s.createRoom(ctx, hostName, parsed)
}

// CreateRoomFromLibrary is CreateRoom for a stored quiz referenced by ID.
func (s *RoomService) CreateRoomFromLibrary(ctx context.Context, hostName, quizID string) (Membership, error) {
	if s.quizzes == nil {
		return Membership{}, domain.ErrQuizNotFound
	}
	loaded, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Membership{}, err
	}
	if err := quiz.Validate(loaded); err != nil {
		return Membership{}, err
	}
	return s.createRoom(ctx, hostName, loaded)
}

func (s *RoomService) createRoom(ctx context.Context, hostName string, parsed domain.Quiz) (Membership, error) {
	if err := validateName(hostName); err != nil {
		return Membership{}, err
	}

	s.mu.Lock()
	shuffled := quiz.Shuffle(parsed, s.rnd)
	s.mu.Unlock()

	roomID, err := newRoomCode()
	if err != nil {
		return Membership{}, err
	}
	hostID, err := newID(16)
	if err != nil {
		return Membership{}, err
	}

	now := s.clock().UnixMilli()
	room := domain.Room{
		RoomID:    roomID,
		HostID:    hostID,
		HostName:  hostName,
		Quiz:      shuffled,
		State:     domain.StateLobby,
		CreatedAt: now,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return Membership{}, err
	}

	if err := s.rooms.PutPlayer(ctx, roomID, domain.Player{
		ID:       hostID,
		Name:     hostName,
		IsHost:   true,
		JoinedAt: now,
	}); err != nil {
		return Membership{}, err
	}

	return s.mintSession(ctx, roomID, hostID, hostName, true)
}

// JoinRoom admits a participant to a room still in the lobby.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, playerName string) (Membership, error) {
	if err := validateName(playerName); err != nil {
		return Membership{}, err
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Membership{}, err
	}
	if room.State != domain.StateLobby {
		return Membership{}, domain.ErrRoomNotJoinable
	}

	playerID, err := newID(16)
	if err != nil {
		return Membership{}, err
	}
	if err := s.rooms.PutPlayer(ctx, roomID, domain.Player{
		ID:       playerID,
		Name:     playerName,
		JoinedAt: s.clock().UnixMilli(),
	}); err != nil {
		return Membership{}, err
	}

	return s.mintSession(ctx, roomID, playerID, playerName, false)
}

// LeaveRoom removes the participant and their session. A leaving host
// deletes the whole room, which every other client observes as closure.
func (s *RoomService) LeaveRoom(ctx context.Context, token string) error {
	data, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}

	if data.IsHost {
		if err := s.rooms.DeleteRoom(ctx, data.RoomID); err != nil {
			return err
		}
	} else if err := s.rooms.DeletePlayer(ctx, data.RoomID, data.PlayerID); err != nil && err != domain.ErrRoomNotFound {
		return err
	}

	return s.sessions.Delete(ctx, token)
}

// Room returns the current room document.
func (s *RoomService) Room(ctx context.Context, roomID string) (domain.Room, error) {
	return s.rooms.GetRoom(ctx, roomID)
}

// Engine resolves a token and builds the synchronization engine for that
// participant. The caller owns the engine's lifecycle.
func (s *RoomService) Engine(ctx context.Context, token string) (*Engine, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return NewEngine(s.rooms, session), nil
}

// Session resolves a reconnect token.
func (s *RoomService) Session(ctx context.Context, token string) (domain.SessionData, error) {
	return s.sessions.Get(ctx, token)
}

func (s *RoomService) mintSession(ctx context.Context, roomID, playerID, name string, isHost bool) (Membership, error) {
	token, err := newID(24)
	if err != nil {
		return Membership{}, err
	}
	if err := s.sessions.Put(ctx, token, domain.SessionData{
		RoomID:     roomID,
		PlayerID:   playerID,
		PlayerName: name,
		IsHost:     isHost,
	}); err != nil {
		return Membership{}, err
	}
	return Membership{RoomID: roomID, PlayerID: playerID, Token: token, IsHost: isHost}, nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 2 || n > 20 {
		return domain.ErrInvalidPlayerName
	}
	return nil
}
