package memory

import (
	"context"
	"sort"
	"sync"

	"quizmaster/internal/domain"
	"quizmaster/internal/store"
)

// RoomStore is the in-memory implementation of store.RoomStore. It backs
// dockerless runs and every protocol test: the engine logic is exercised
// against this fake exactly as it runs against Redis.
//
// Subscriber channels are conflated (buffer of one, latest snapshot wins) so
// a slow consumer never blocks a write and always observes the newest state.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomDoc
	subs  map[string]*roomSubs
}

type roomDoc struct {
	room    domain.Room
	players map[string]domain.Player
	order   []string
	chat    []domain.ChatMessage
}

// roomSubs outlives the room document so deletion can still reach listeners.
type roomSubs struct {
	room    map[chan store.RoomSnapshot]struct{}
	players map[chan []domain.Player]struct{}
	chat    map[chan []domain.ChatMessage]int
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*roomDoc),
		subs:  make(map[string]*roomSubs),
	}
}

func (s *RoomStore) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.RoomID] = &roomDoc{
		room:    room,
		players: make(map[string]domain.Player),
	}
	s.notifyRoomLocked(room.RoomID)
	return nil
}

func (s *RoomStore) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return doc.room, nil
}

func (s *RoomStore) UpdateRoom(_ context.Context, roomID string, update store.RoomUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if update.State != nil {
		doc.room.State = *update.State
	}
	if update.CurrentQuestionIndex != nil {
		doc.room.CurrentQuestionIndex = *update.CurrentQuestionIndex
	}
	if update.QuestionStartTime != nil {
		doc.room.QuestionStartTime = *update.QuestionStartTime
	}
	s.notifyRoomLocked(roomID)
	return nil
}

func (s *RoomStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	s.notifyRoomLocked(roomID)
	return nil
}

func (s *RoomStore) PutPlayer(_ context.Context, roomID string, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if _, exists := doc.players[player.ID]; !exists {
		doc.order = append(doc.order, player.ID)
	}
	doc.players[player.ID] = player
	s.notifyPlayersLocked(roomID)
	return nil
}

func (s *RoomStore) GetPlayer(_ context.Context, roomID, playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.Player{}, domain.ErrRoomNotFound
	}
	player, ok := doc.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

func (s *RoomStore) UpdatePlayer(_ context.Context, roomID, playerID string, update store.PlayerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	player, ok := doc.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if update.Score != nil {
		player.Score = *update.Score
	}
	if update.ReadyForNext != nil {
		player.ReadyForNext = *update.ReadyForNext
	}
	doc.players[playerID] = player
	s.notifyPlayersLocked(roomID)
	return nil
}

func (s *RoomStore) DeletePlayer(_ context.Context, roomID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if _, exists := doc.players[playerID]; exists {
		delete(doc.players, playerID)
		for i, id := range doc.order {
			if id == playerID {
				doc.order = append(doc.order[:i], doc.order[i+1:]...)
				break
			}
		}
		s.notifyPlayersLocked(roomID)
	}
	return nil
}

func (s *RoomStore) ListPlayers(_ context.Context, roomID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return doc.playerList(), nil
}

func (s *RoomStore) AppendChat(_ context.Context, roomID string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	doc.chat = append(doc.chat, msg)
	sort.SliceStable(doc.chat, func(i, j int) bool {
		return doc.chat[i].Timestamp < doc.chat[j].Timestamp
	})
	s.notifyChatLocked(roomID)
	return nil
}

func (s *RoomStore) ListChat(_ context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return doc.chatTail(limit), nil
}

func (s *RoomStore) SubscribeRoom(_ context.Context, roomID string) (<-chan store.RoomSnapshot, func(), error) {
	ch := make(chan store.RoomSnapshot, 1)

	s.mu.Lock()
	subs := s.subsLocked(roomID)
	subs.room[ch] = struct{}{}
	ch <- s.roomSnapshotLocked(roomID)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(subs.room, ch)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) SubscribePlayers(_ context.Context, roomID string) (<-chan []domain.Player, func(), error) {
	ch := make(chan []domain.Player, 1)

	s.mu.Lock()
	subs := s.subsLocked(roomID)
	subs.players[ch] = struct{}{}
	if doc, ok := s.rooms[roomID]; ok {
		ch <- doc.playerList()
	} else {
		ch <- nil
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(subs.players, ch)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) SubscribeChat(_ context.Context, roomID string, limit int) (<-chan []domain.ChatMessage, func(), error) {
	ch := make(chan []domain.ChatMessage, 1)

	s.mu.Lock()
	subs := s.subsLocked(roomID)
	subs.chat[ch] = limit
	if doc, ok := s.rooms[roomID]; ok {
		ch <- doc.chatTail(limit)
	} else {
		ch <- nil
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(subs.chat, ch)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) subsLocked(roomID string) *roomSubs {
	subs, ok := s.subs[roomID]
	if !ok {
		subs = &roomSubs{
			room:    make(map[chan store.RoomSnapshot]struct{}),
			players: make(map[chan []domain.Player]struct{}),
			chat:    make(map[chan []domain.ChatMessage]int),
		}
		s.subs[roomID] = subs
	}
	return subs
}

func (s *RoomStore) roomSnapshotLocked(roomID string) store.RoomSnapshot {
	if doc, ok := s.rooms[roomID]; ok {
		return store.RoomSnapshot{Room: doc.room, Exists: true}
	}
	return store.RoomSnapshot{}
}

func (s *RoomStore) notifyRoomLocked(roomID string) {
	subs, ok := s.subs[roomID]
	if !ok {
		return
	}
	snap := s.roomSnapshotLocked(roomID)
	for ch := range subs.room {
		sendLatest(ch, snap)
	}
}

func (s *RoomStore) notifyPlayersLocked(roomID string) {
	subs, ok := s.subs[roomID]
	if !ok {
		return
	}
	doc, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for ch := range subs.players {
		sendLatest(ch, doc.playerList())
	}
}

func (s *RoomStore) notifyChatLocked(roomID string) {
	subs, ok := s.subs[roomID]
	if !ok {
		return
	}
	doc, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for ch, limit := range subs.chat {
		sendLatest(ch, doc.chatTail(limit))
	}
}

func (d *roomDoc) playerList() []domain.Player {
	players := make([]domain.Player, 0, len(d.players))
	for _, id := range d.order {
		players = append(players, d.players[id])
	}
	return players
}

func (d *roomDoc) chatTail(limit int) []domain.ChatMessage {
	msgs := d.chat
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// sendLatest replaces any undelivered snapshot so subscribers always see the
// newest state without ever blocking a write.
func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
