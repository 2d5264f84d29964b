package store

import (
	"context"

	"quizmaster/internal/domain"
)

// RoomSnapshot is one delivery from a room-document subscription. Exists is
// false once the document has been deleted; clients treat that as the
// terminal "room closed by host" signal.
type RoomSnapshot struct {
	Room   domain.Room
	Exists bool
}

// RoomUpdate is a partial update of the room's game-progression fields. Nil
// fields are left untouched. Only the host client writes these.
type RoomUpdate struct {
	State                *domain.RoomState
	CurrentQuestionIndex *int
	QuestionStartTime    *int64
}

// PlayerUpdate is a partial update of a participant's own document.
type PlayerUpdate struct {
	Score        *int
	ReadyForNext *bool
}

// RoomStore is the document-store port the protocol runs on: room documents,
// a players subcollection, an append-only chat subcollection, and live
// snapshot subscriptions over each. Subscriptions deliver an initial snapshot
// and then the latest state after every write (at-least-once, latest wins);
// there is no ordering guarantee across the three streams. No multi-document
// transaction is offered; readiness resets and score increments are
// best-effort by design.
type RoomStore interface {
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	UpdateRoom(ctx context.Context, roomID string, update RoomUpdate) error
	// DeleteRoom removes the room document and its subcollections.
	DeleteRoom(ctx context.Context, roomID string) error

	PutPlayer(ctx context.Context, roomID string, player domain.Player) error
	GetPlayer(ctx context.Context, roomID, playerID string) (domain.Player, error)
	UpdatePlayer(ctx context.Context, roomID, playerID string, update PlayerUpdate) error
	DeletePlayer(ctx context.Context, roomID, playerID string) error
	// ListPlayers returns players in arrival order.
	ListPlayers(ctx context.Context, roomID string) ([]domain.Player, error)

	AppendChat(ctx context.Context, roomID string, msg domain.ChatMessage) error
	// ListChat returns up to limit messages ordered by timestamp ascending.
	ListChat(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)

	// SubscribeRoom streams room-document snapshots until cancel is called.
	SubscribeRoom(ctx context.Context, roomID string) (<-chan RoomSnapshot, func(), error)
	// SubscribePlayers streams the full player list on every change.
	SubscribePlayers(ctx context.Context, roomID string) (<-chan []domain.Player, func(), error)
	// SubscribeChat streams the chat tail (up to limit) on every append.
	SubscribeChat(ctx context.Context, roomID string, limit int) (<-chan []domain.ChatMessage, func(), error)
}

// SessionStore persists reconnect tokens: the server-side analogue of the
// browser's session-scoped {roomId, playerName, isHost} key.
type SessionStore interface {
	Put(ctx context.Context, token string, data domain.SessionData) error
	Get(ctx context.Context, token string) (domain.SessionData, error)
	Delete(ctx context.Context, token string) error
}
