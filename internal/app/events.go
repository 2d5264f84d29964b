package app

import (
	"sort"

	"quizmaster/internal/domain"
)

// EventType enumerates the view updates an engine derives from snapshots.
type EventType string

const (
	// EventPlayers carries the lobby roster and the live scoreboard.
	EventPlayers EventType = "players"
	// EventQuestion signals a question became current; local per-question
	// state (answered, readiness control) has been reset.
	EventQuestion EventType = "question"
	// EventFinished signals the terminal scoreboard view.
	EventFinished EventType = "finished"
	// EventRoomClosed signals the room document disappeared (host left).
	// Terminal and unrecoverable: the client returns to the entry screen.
	EventRoomClosed EventType = "roomClosed"
	// EventChat carries the current chat tail.
	EventChat EventType = "chat"
)

// Event is one derived view update pushed to the participant.
type Event struct {
	Type       EventType            `json:"type"`
	Roster     []RosterEntry        `json:"roster,omitempty"`
	Scoreboard []ScoreboardEntry    `json:"scoreboard,omitempty"`
	Question   *QuestionView        `json:"question,omitempty"`
	Chat       []domain.ChatMessage `json:"chat,omitempty"`
}

// RosterEntry is a lobby row; the host sorts first.
type RosterEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// ScoreboardEntry is a live scoreboard row, sorted by score descending with
// ties broken by arrival order.
type ScoreboardEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	ReadyForNext bool   `json:"readyForNext"`
}

// QuestionView is the render model for the current question. The correct
// index stays server-side; feedback is returned from SubmitAnswer.
type QuestionView struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// buildRoster orders players host-first, preserving arrival order otherwise.
func buildRoster(players []domain.Player) []RosterEntry {
	sorted := make([]domain.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsHost && !sorted[j].IsHost
	})

	roster := make([]RosterEntry, len(sorted))
	for i, p := range sorted {
		roster[i] = RosterEntry{ID: p.ID, Name: p.Name, IsHost: p.IsHost}
	}
	return roster
}

// buildScoreboard orders players by score descending; the stable sort keeps
// arrival order for ties.
func buildScoreboard(players []domain.Player) []ScoreboardEntry {
	sorted := make([]domain.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	board := make([]ScoreboardEntry, len(sorted))
	for i, p := range sorted {
		board[i] = ScoreboardEntry{ID: p.ID, Name: p.Name, Score: p.Score, ReadyForNext: p.ReadyForNext}
	}
	return board
}
