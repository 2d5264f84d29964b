package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmaster/internal/domain"
	"quizmaster/internal/store"
)

// Topics published on a room's notify channel after each write. Subscribers
// re-read the affected documents on notify, so deliveries conflate naturally
// to latest state.
const (
	topicRoom    = "room"
	topicPlayers = "players"
	topicChat    = "chat"
)

// RoomStore is the Redis implementation of store.RoomStore. Layout per room:
//
//	room:{id}          room document JSON
//	room:{id}:players  hash playerID -> player JSON
//	room:{id}:chat     list of chat message JSON, append order
//	room:{id}:notify   pub/sub channel carrying dirty topics
//
// Progression updates are read-modify-write without WATCH: last write wins,
// which the protocol accepts because each field has a single writer.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{client: client, ttl: ttl}
}

func (s *RoomStore) CreateRoom(ctx context.Context, room domain.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := s.client.Set(ctx, s.roomKey(room.RoomID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write room: %w", err)
	}
	s.notify(ctx, room.RoomID, topicRoom)
	return nil
}

func (s *RoomStore) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	raw, err := s.client.Get(ctx, s.roomKey(roomID)).Bytes()
	if err == redis.Nil {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("read room: %w", err)
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return domain.Room{}, fmt.Errorf("unmarshal room: %w", err)
	}
	return room, nil
}

func (s *RoomStore) UpdateRoom(ctx context.Context, roomID string, update store.RoomUpdate) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if update.State != nil {
		room.State = *update.State
	}
	if update.CurrentQuestionIndex != nil {
		room.CurrentQuestionIndex = *update.CurrentQuestionIndex
	}
	if update.QuestionStartTime != nil {
		room.QuestionStartTime = *update.QuestionStartTime
	}
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := s.client.Set(ctx, s.roomKey(roomID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write room: %w", err)
	}
	s.notify(ctx, roomID, topicRoom)
	return nil
}

func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	err := s.client.Del(ctx, s.roomKey(roomID), s.playersKey(roomID), s.chatKey(roomID)).Err()
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	s.notify(ctx, roomID, topicRoom)
	s.notify(ctx, roomID, topicPlayers)
	return nil
}

func (s *RoomStore) PutPlayer(ctx context.Context, roomID string, player domain.Player) error {
	if exists, err := s.client.Exists(ctx, s.roomKey(roomID)).Result(); err != nil {
		return fmt.Errorf("check room: %w", err)
	} else if exists == 0 {
		return domain.ErrRoomNotFound
	}
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	if err := s.client.HSet(ctx, s.playersKey(roomID), player.ID, raw).Err(); err != nil {
		return fmt.Errorf("write player: %w", err)
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.playersKey(roomID), s.ttl).Err()
	}
	s.notify(ctx, roomID, topicPlayers)
	return nil
}

func (s *RoomStore) GetPlayer(ctx context.Context, roomID, playerID string) (domain.Player, error) {
	raw, err := s.client.HGet(ctx, s.playersKey(roomID), playerID).Bytes()
	if err == redis.Nil {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("read player: %w", err)
	}
	var player domain.Player
	if err := json.Unmarshal(raw, &player); err != nil {
		return domain.Player{}, fmt.Errorf("unmarshal player: %w", err)
	}
	return player, nil
}

func (s *RoomStore) UpdatePlayer(ctx context.Context, roomID, playerID string, update store.PlayerUpdate) error {
	player, err := s.GetPlayer(ctx, roomID, playerID)
	if err != nil {
		return err
	}
	if update.Score != nil {
		player.Score = *update.Score
	}
	if update.ReadyForNext != nil {
		player.ReadyForNext = *update.ReadyForNext
	}
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	if err := s.client.HSet(ctx, s.playersKey(roomID), playerID, raw).Err(); err != nil {
		return fmt.Errorf("write player: %w", err)
	}
	s.notify(ctx, roomID, topicPlayers)
	return nil
}

func (s *RoomStore) DeletePlayer(ctx context.Context, roomID, playerID string) error {
	if err := s.client.HDel(ctx, s.playersKey(roomID), playerID).Err(); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	s.notify(ctx, roomID, topicPlayers)
	return nil
}

func (s *RoomStore) ListPlayers(ctx context.Context, roomID string) ([]domain.Player, error) {
	if exists, err := s.client.Exists(ctx, s.roomKey(roomID)).Result(); err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	} else if exists == 0 {
		return nil, domain.ErrRoomNotFound
	}
	return s.readPlayers(ctx, roomID)
}

func (s *RoomStore) readPlayers(ctx context.Context, roomID string) ([]domain.Player, error) {
	entries, err := s.client.HGetAll(ctx, s.playersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}
	players := make([]domain.Player, 0, len(entries))
	for _, raw := range entries {
		var player domain.Player
		if err := json.Unmarshal([]byte(raw), &player); err != nil {
			return nil, fmt.Errorf("unmarshal player: %w", err)
		}
		players = append(players, player)
	}
	// Hash fields carry no order; arrival order is reconstructed from the
	// join timestamp, with the ID as a deterministic tie break.
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (s *RoomStore) AppendChat(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}
	if err := s.client.RPush(ctx, s.chatKey(roomID), raw).Err(); err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.chatKey(roomID), s.ttl).Err()
	}
	s.notify(ctx, roomID, topicChat)
	return nil
}

func (s *RoomStore) ListChat(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raws, err := s.client.LRange(ctx, s.chatKey(roomID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat: %w", err)
	}
	msgs := make([]domain.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal chat: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RoomStore) SubscribeRoom(ctx context.Context, roomID string) (<-chan store.RoomSnapshot, func(), error) {
	return subscribe(ctx, s, roomID, topicRoom, s.roomSnapshot(roomID))
}

// roomSnapshot builds the re-read callback for a room subscription. Only a
// missing document maps to the terminal Exists=false snapshot; a transient
// read failure is logged and the delivery skipped, so an I/O blip never
// masquerades as room closure.
func (s *RoomStore) roomSnapshot(roomID string) func(context.Context) (store.RoomSnapshot, bool) {
	return func(ctx context.Context) (store.RoomSnapshot, bool) {
		room, err := s.GetRoom(ctx, roomID)
		if errors.Is(err, domain.ErrRoomNotFound) {
			return store.RoomSnapshot{}, true
		}
		if err != nil {
			log.Printf("room %s: re-read after notify: %v", roomID, err)
			return store.RoomSnapshot{}, false
		}
		return store.RoomSnapshot{Room: room, Exists: true}, true
	}
}

func (s *RoomStore) SubscribePlayers(ctx context.Context, roomID string) (<-chan []domain.Player, func(), error) {
	return subscribe(ctx, s, roomID, topicPlayers, func(ctx context.Context) ([]domain.Player, bool) {
		players, err := s.readPlayers(ctx, roomID)
		if err != nil {
			log.Printf("room %s: re-read players after notify: %v", roomID, err)
			return nil, false
		}
		return players, true
	})
}

func (s *RoomStore) SubscribeChat(ctx context.Context, roomID string, limit int) (<-chan []domain.ChatMessage, func(), error) {
	return subscribe(ctx, s, roomID, topicChat, func(ctx context.Context) ([]domain.ChatMessage, bool) {
		msgs, err := s.ListChat(ctx, roomID, limit)
		if err != nil {
			log.Printf("room %s: re-read chat after notify: %v", roomID, err)
			return nil, false
		}
		return msgs, true
	})
}

// subscribe wires a pub/sub listener that re-reads the latest state on every
// matching notify. The snapshot channel is conflated: an undelivered snapshot
// is replaced by a newer one rather than blocking the listener.
func subscribe[T any](ctx context.Context, s *RoomStore, roomID, topic string, read func(context.Context) (T, bool)) (<-chan T, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.notifyKey(roomID))
	// Force the subscription to be established before the initial read, so
	// no write between read and subscribe goes unobserved.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	ch := make(chan T, 1)
	if v, ok := read(ctx); ok {
		ch <- v
	}

	go func() {
		for msg := range pubsub.Channel() {
			if msg.Payload != topic {
				continue
			}
			if v, ok := read(ctx); ok {
				sendLatest(ch, v)
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return ch, cancel, nil
}

// notify is best-effort: a lost publish only delays the view until the next
// write, it never corrupts state.
func (s *RoomStore) notify(ctx context.Context, roomID, topic string) {
	_ = s.client.Publish(ctx, s.notifyKey(roomID), topic).Err()
}

func (s *RoomStore) roomKey(roomID string) string    { return "room:" + roomID }
func (s *RoomStore) playersKey(roomID string) string { return "room:" + roomID + ":players" }
func (s *RoomStore) chatKey(roomID string) string    { return "room:" + roomID + ":chat" }
func (s *RoomStore) notifyKey(roomID string) string  { return "room:" + roomID + ":notify" }

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
