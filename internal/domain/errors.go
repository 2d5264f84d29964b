package domain

import "errors"

var (
	// ErrInvalidQuiz is returned when quiz content lacks a non-empty questions array.
	ErrInvalidQuiz = errors.New("invalid quiz format")
	// ErrRoomNotFound is returned when a room code resolves to no document.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotJoinable is returned when joining a room that has left the lobby.
	ErrRoomNotJoinable = errors.New("game already started or finished")
	// ErrInvalidPlayerName is returned for names outside 2-20 characters.
	ErrInvalidPlayerName = errors.New("player name must be 2-20 characters")
	// ErrPlayerNotFound is returned when a participant document is missing.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrSessionNotFound is returned for actions without an established identity.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotHost is returned when a non-host invokes a host-only operation.
	ErrNotHost = errors.New("operation restricted to host")
	// ErrAlreadyStarted rejects a start on a room that has left the lobby.
	ErrAlreadyStarted = errors.New("game already started")
	// ErrAlreadyAnswered makes repeat submissions for one question a no-op.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotPlaying is returned for game actions outside the playing state.
	ErrNotPlaying = errors.New("room is not in the playing state")
	// ErrQuizNotFound indicates library quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
