package app

import (
	"context"
	"log"
	"sync"
	"time"

	"quizmaster/internal/domain"
	"quizmaster/internal/store"
)

const chatTailLimit = 100

// Engine is one participant's synchronization engine: it subscribes to the
// room document, the players subcollection, and the chat log, derives view
// events from every snapshot, and (for the host) drives phase transitions.
// All cross-client coordination flows through the store; engines never talk
// to each other directly.
//
// Cross-stream snapshot order is not guaranteed, so every derivation here is
// recomputed idempotently from the latest snapshot rather than assuming an
// interleaving. Host auto-advance re-reads live state before acting for the
// same reason.
type Engine struct {
	rooms store.RoomStore

	roomID     string
	playerID   string
	playerName string
	isHost     bool

	clock func() time.Time
	// settleDelay lets the UI settle between "everyone ready" and the
	// advance. Correctness comes from the in-flight guard, not the timer.
	settleDelay time.Duration

	events  chan Event
	done    chan struct{}
	cancels []func()

	mu              sync.Mutex
	quiz            domain.Quiz
	state           domain.RoomState
	questionIndex   int
	answered        bool
	leaving         bool
	advancing       bool
	lastAdvanceFrom int
}

// NewEngine builds an engine for an admitted participant. Call Run to start
// streaming events and Close to tear the subscriptions down.
func NewEngine(rooms store.RoomStore, session domain.SessionData) *Engine {
	return &Engine{
		rooms:           rooms,
		roomID:          session.RoomID,
		playerID:        session.PlayerID,
		playerName:      session.PlayerName,
		isHost:          session.IsHost,
		clock:           time.Now,
		settleDelay:     500 * time.Millisecond,
		events:          make(chan Event, 32),
		done:            make(chan struct{}),
		lastAdvanceFrom: -1,
	}
}

// SetClock is test-only for deterministic elapsed-time computation.
func (e *Engine) SetClock(now func() time.Time) { e.clock = now }

// SetSettleDelay overrides the advance settle delay (zero in tests).
func (e *Engine) SetSettleDelay(d time.Duration) { e.settleDelay = d }

// Events is the stream of derived view updates. It closes when the engine
// stops: after Close, or after the room-closed signal.
func (e *Engine) Events() <-chan Event { return e.events }

// Run subscribes to the three streams and starts the snapshot loop.
func (e *Engine) Run(ctx context.Context) error {
	roomCh, cancelRoom, err := e.rooms.SubscribeRoom(ctx, e.roomID)
	if err != nil {
		return err
	}
	playersCh, cancelPlayers, err := e.rooms.SubscribePlayers(ctx, e.roomID)
	if err != nil {
		cancelRoom()
		return err
	}
	chatCh, cancelChat, err := e.rooms.SubscribeChat(ctx, e.roomID, chatTailLimit)
	if err != nil {
		cancelRoom()
		cancelPlayers()
		return err
	}
	e.cancels = []func(){cancelRoom, cancelPlayers, cancelChat}

	go e.loop(ctx, roomCh, playersCh, chatCh)
	return nil
}

// Close tears down the subscriptions without touching persisted state
// (a dropped connection is not a leave; the session token still resumes).
func (e *Engine) Close() {
	e.mu.Lock()
	if e.leaving {
		e.mu.Unlock()
		return
	}
	e.leaving = true
	e.mu.Unlock()
	close(e.done)
}

func (e *Engine) loop(ctx context.Context, roomCh <-chan store.RoomSnapshot, playersCh <-chan []domain.Player, chatCh <-chan []domain.ChatMessage) {
	defer func() {
		for _, cancel := range e.cancels {
			cancel()
		}
		close(e.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case snap := <-roomCh:
			if !e.onRoomSnapshot(ctx, snap) {
				return
			}
		case players := <-playersCh:
			e.onPlayersSnapshot(ctx, players)
		case msgs := <-chatCh:
			e.emit(ctx, Event{Type: EventChat, Chat: msgs})
		}
	}
}

// onRoomSnapshot applies a room snapshot and reports whether to keep running.
func (e *Engine) onRoomSnapshot(ctx context.Context, snap store.RoomSnapshot) bool {
	if !snap.Exists {
		e.mu.Lock()
		leaving := e.leaving
		e.mu.Unlock()
		if !leaving {
			e.emit(ctx, Event{Type: EventRoomClosed})
		}
		return false
	}

	e.mu.Lock()
	prevState := e.state
	prevIndex := e.questionIndex
	e.quiz = snap.Room.Quiz
	e.state = snap.Room.State
	e.questionIndex = snap.Room.CurrentQuestionIndex

	var question *QuestionView
	finished := false
	switch snap.Room.State {
	case domain.StatePlaying:
		if prevState != domain.StatePlaying || prevIndex != snap.Room.CurrentQuestionIndex {
			// New question: reset local per-question state.
			e.answered = false
			if q := questionAt(snap.Room.Quiz, snap.Room.CurrentQuestionIndex); q != nil {
				question = &QuestionView{
					Index:    snap.Room.CurrentQuestionIndex,
					Total:    len(snap.Room.Quiz.Questions),
					Question: q.Question,
					Options:  q.Options,
				}
			}
		}
	case domain.StateFinished:
		finished = prevState != domain.StateFinished
	}
	e.mu.Unlock()

	if question != nil {
		e.emit(ctx, Event{Type: EventQuestion, Question: question})
	}
	if finished {
		e.emit(ctx, Event{Type: EventFinished})
	}
	return true
}

func (e *Engine) onPlayersSnapshot(ctx context.Context, players []domain.Player) {
	e.emit(ctx, Event{
		Type:       EventPlayers,
		Roster:     buildRoster(players),
		Scoreboard: buildScoreboard(players),
	})

	if e.isHost {
		e.maybeAdvance(ctx, players)
	}
}

// maybeAdvance triggers host auto-advance once per readiness batch: the
// in-flight flag blocks concurrent triggers, and lastAdvanceFrom blocks
// re-triggering for an index that was already advanced past.
func (e *Engine) maybeAdvance(ctx context.Context, players []domain.Player) {
	if len(players) == 0 || !allReady(players) {
		return
	}

	e.mu.Lock()
	if e.state != domain.StatePlaying || e.advancing || e.questionIndex == e.lastAdvanceFrom {
		e.mu.Unlock()
		return
	}
	from := e.questionIndex
	e.advancing = true
	e.mu.Unlock()

	go e.advanceAfterSettle(ctx, from)
}

func (e *Engine) advanceAfterSettle(ctx context.Context, from int) {
	defer func() {
		e.mu.Lock()
		e.advancing = false
		e.mu.Unlock()
	}()

	if e.settleDelay > 0 {
		timer := time.NewTimer(e.settleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-e.done:
			return
		case <-ctx.Done():
			return
		}
	}

	// The triggering snapshot may be stale: re-read live state and only
	// advance if the room is still on this question with everyone ready.
	room, err := e.rooms.GetRoom(ctx, e.roomID)
	if err != nil || room.State != domain.StatePlaying || room.CurrentQuestionIndex != from {
		return
	}
	players, err := e.rooms.ListPlayers(ctx, e.roomID)
	if err != nil || len(players) == 0 || !allReady(players) {
		return
	}

	if err := e.advanceQuestion(ctx, room, players); err != nil {
		log.Printf("room %s: advance from %d failed: %v", e.roomID, from, err)
		return
	}

	e.mu.Lock()
	e.lastAdvanceFrom = from
	e.mu.Unlock()
}

// advanceQuestion resets readiness best-effort, then either bumps the index
// with a fresh questionStartTime or finishes the game. A failed per-player
// reset leaves that flag stale until the next advance resets it again.
func (e *Engine) advanceQuestion(ctx context.Context, room domain.Room, players []domain.Player) error {
	notReady := false
	for _, p := range players {
		if err := e.rooms.UpdatePlayer(ctx, e.roomID, p.ID, store.PlayerUpdate{ReadyForNext: &notReady}); err != nil {
			log.Printf("room %s: readiness reset for %s failed: %v", e.roomID, p.ID, err)
		}
	}

	next := room.CurrentQuestionIndex + 1
	if next >= len(room.Quiz.Questions) {
		finished := domain.StateFinished
		return e.rooms.UpdateRoom(ctx, e.roomID, store.RoomUpdate{State: &finished})
	}

	start := e.clock().UnixMilli()
	return e.rooms.UpdateRoom(ctx, e.roomID, store.RoomUpdate{
		CurrentQuestionIndex: &next,
		QuestionStartTime:    &start,
	})
}

// StartGame moves the room from lobby to playing. Host only, and only once:
// room state never regresses, so a repeat start against a playing or
// finished room is refused against a fresh read.
func (e *Engine) StartGame(ctx context.Context) error {
	if !e.isHost {
		return domain.ErrNotHost
	}
	room, err := e.rooms.GetRoom(ctx, e.roomID)
	if err != nil {
		return err
	}
	if room.State != domain.StateLobby {
		return domain.ErrAlreadyStarted
	}
	playing := domain.StatePlaying
	zero := 0
	start := e.clock().UnixMilli()
	return e.rooms.UpdateRoom(ctx, e.roomID, store.RoomUpdate{
		State:                &playing,
		CurrentQuestionIndex: &zero,
		QuestionStartTime:    &start,
	})
}

// SubmitAnswer scores the participant's selection for the current question.
// Repeat submissions for the same question are rejected locally; the award
// write is a non-transactional read-modify-write of the participant's own
// score, acceptable because each participant is its only writer.
func (e *Engine) SubmitAnswer(ctx context.Context, selected int) (domain.AnswerResult, error) {
	e.mu.Lock()
	if e.state != domain.StatePlaying {
		e.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNotPlaying
	}
	if e.answered {
		e.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}
	q := questionAt(e.quiz, e.questionIndex)
	if q == nil {
		e.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNotPlaying
	}
	e.answered = true
	question := *q
	e.mu.Unlock()

	result := domain.AnswerResult{
		Correct:     selected == question.Correct,
		CorrectText: question.Options[question.Correct],
		Explanation: question.Explanation,
	}
	if !result.Correct {
		return result, nil
	}

	// Read questionStartTime at the moment of submission. A failed read
	// costs the bonus, not the base award.
	award := BasePoints
	if room, err := e.rooms.GetRoom(ctx, e.roomID); err == nil && room.QuestionStartTime > 0 {
		elapsed := time.Duration(e.clock().UnixMilli()-room.QuestionStartTime) * time.Millisecond
		award = Award(elapsed)
	} else if err != nil {
		log.Printf("room %s: speed bonus read failed: %v", e.roomID, err)
	}
	result.Awarded = award

	// Best-effort score increment; a failure under-counts and is surfaced
	// locally, never retried. The next snapshot resynchronizes the view.
	player, err := e.rooms.GetPlayer(ctx, e.roomID, e.playerID)
	if err != nil {
		log.Printf("room %s: score read for %s failed: %v", e.roomID, e.playerID, err)
		return result, nil
	}
	total := player.Score + award
	if err := e.rooms.UpdatePlayer(ctx, e.roomID, e.playerID, store.PlayerUpdate{Score: &total}); err != nil {
		log.Printf("room %s: score write for %s failed: %v", e.roomID, e.playerID, err)
		return result, nil
	}
	result.TotalScore = total
	return result, nil
}

// MarkReady raises the participant's readiness flag. Idempotent.
func (e *Engine) MarkReady(ctx context.Context) error {
	ready := true
	return e.rooms.UpdatePlayer(ctx, e.roomID, e.playerID, store.PlayerUpdate{ReadyForNext: &ready})
}

// SendChat appends to the room's chat log.
func (e *Engine) SendChat(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return e.rooms.AppendChat(ctx, e.roomID, domain.ChatMessage{
		SenderID:   e.playerID,
		SenderName: e.playerName,
		Text:       text,
		Timestamp:  e.clock().UnixMilli(),
	})
}

func questionAt(q domain.Quiz, index int) *domain.Question {
	if index < 0 || index >= len(q.Questions) {
		return nil
	}
	return &q.Questions[index]
}

func allReady(players []domain.Player) bool {
	for _, p := range players {
		if !p.ReadyForNext {
			return false
		}
	}
	return true
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	case <-ctx.Done():
	}
}
