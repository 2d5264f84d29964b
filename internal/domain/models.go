package domain

// RoomState is the phase of a multiplayer room. Transitions are monotonic
// and host-driven: lobby -> playing -> finished.
type RoomState string

const (
	StateLobby    RoomState = "lobby"
	StatePlaying  RoomState = "playing"
	StateFinished RoomState = "finished"
)

// Question models an MCQ question. Options are stored in their shuffled
// order; Correct indexes into the shuffled Options slice.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is an ordered question set, embedded in the room document at creation.
type Quiz struct {
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// QuizSummary identifies a library quiz without its question payload.
type QuizSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Room is the shared game-session document. The host is the only writer of
// State, CurrentQuestionIndex, and QuestionStartTime; every other client
// treats its local copy as a read-only projection.
type Room struct {
	RoomID               string    `json:"roomId"`
	HostID               string    `json:"hostId"`
	HostName             string    `json:"hostName"`
	Quiz                 Quiz      `json:"quiz"`
	State                RoomState `json:"state"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	// QuestionStartTime is unix milliseconds; zero before play starts.
	QuestionStartTime int64 `json:"questionStartTime"`
	CreatedAt         int64 `json:"createdAt"`
}

// Player is one participant's document in the room's players subcollection.
// Score and ReadyForNext are written only by the owning participant.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	IsHost       bool   `json:"isHost"`
	ReadyForNext bool   `json:"readyForNext"`
	// JoinedAt (unix milliseconds) fixes arrival order for scoreboard ties.
	JoinedAt int64 `json:"joinedAt"`
}

// ChatMessage is one entry in the room's append-only chat log.
type ChatMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// AnswerResult summarizes a participant's submission for local feedback.
// It is never persisted; only the score delta reaches the store.
type AnswerResult struct {
	Correct     bool   `json:"correct"`
	Awarded     int    `json:"awarded"`
	CorrectText string `json:"correctText"`
	Explanation string `json:"explanation,omitempty"`
	TotalScore  int    `json:"totalScore"`
}

// SessionData is the server-side analogue of the browser's session-scoped
// room key: it lets a participant reconnect their engine after a navigation.
type SessionData struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsHost     bool   `json:"isHost"`
}
