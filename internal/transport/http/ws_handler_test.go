package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

const testQuiz = `{
	"title": "Capitals",
	"questions": [
		{"question": "Capital of France?", "options": ["Paris", "Rome"], "correct": 0},
		{"question": "Capital of Italy?", "options": ["Paris", "Rome"], "correct": 1}
	]
}`

func newTestRouter(t *testing.T) (*httptest.Server, *app.RoomService) {
	t.Helper()
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{})
	service := app.NewRoomService(
		memory.NewRoomStore(),
		memory.NewSessionStore(),
		memory.NewQuizRepository(loader, time.Minute),
	)
	server := httptest.NewServer(NewRouter(service, nil, loader, "http://example.test"))
	t.Cleanup(server.Close)
	return server, service
}

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) (string, any) {
	t.Helper()
	var msg struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}

// readUntil drains messages until the wanted type arrives. Snapshot-driven
// events interleave freely, so tests pick out what they assert on.
func readUntil(t *testing.T, conn *websocket.Conn, want string) any {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(t, conn)
		if typ == want {
			return payload
		}
	}
	t.Fatalf("never received %q", want)
	return nil
}

// readUntilObject is readUntil for object payloads.
func readUntilObject(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	payload, ok := readUntil(t, conn, want).(map[string]any)
	if !ok {
		t.Fatalf("expected object payload for %q", want)
	}
	return payload
}

func TestWebSocketGameFlow(t *testing.T) {
	server, service := newTestRouter(t)
	ctx := context.Background()

	host, err := service.CreateRoom(ctx, "Alice", []byte(testQuiz))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	conn := dialWS(t, server, "/ws?token="+host.Token)

	// Initial snapshots produce a players event with the seated host.
	players := readUntilObject(t, conn, "players")
	roster, ok := players["roster"].([]any)
	if !ok || len(roster) != 1 {
		t.Fatalf("expected one roster entry, got %+v", players)
	}

	if err := conn.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	question := readUntilObject(t, conn, "question")
	if question["index"].(float64) != 0 || question["total"].(float64) != 2 {
		t.Fatalf("unexpected question: %+v", question)
	}

	// Paris is correct regardless of the room's shuffled option order.
	correct := -1
	for i, opt := range question["options"].([]any) {
		if opt.(string) == "Paris" {
			correct = i
		}
	}
	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"selected": correct}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	result := readUntilObject(t, conn, "answerResult")
	if result["correct"] != true {
		t.Fatalf("expected correct answer, got %+v", result)
	}

	// Repeat submission is rejected.
	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"selected": correct}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(t, conn, "error")

	// Sole participant marks ready; the host engine advances to question 1.
	if err := conn.WriteJSON(map[string]any{"type": "ready"}); err != nil {
		t.Fatalf("write ready: %v", err)
	}
	for {
		q := readUntilObject(t, conn, "question")
		if q["index"].(float64) == 1 {
			break
		}
	}

	// Chat round-trips through the engine.
	if err := conn.WriteJSON(map[string]any{"type": "chat", "payload": map[string]any{"text": "gg"}}); err != nil {
		t.Fatalf("write chat: %v", err)
	}
	for {
		msgs, _ := readUntil(t, conn, "chat").([]any)
		if len(msgs) == 1 {
			break
		}
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	server, _ := newTestRouter(t)

	conn := dialWS(t, server, "/ws?token=bogus")
	typ, _ := readNext(t, conn)
	if typ != "error" {
		t.Fatalf("expected error message, got %s", typ)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	server, _ := newTestRouter(t)

	u := "ws" + server.URL[len("http"):] + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}
