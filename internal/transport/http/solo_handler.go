package http

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizmaster/internal/quiz"
	"quizmaster/internal/solo"
)

// SoloHandler runs single-player games over a websocket. The game state
// lives in the connection; closing the socket discards the run.
type SoloHandler struct {
	upgrader websocket.Upgrader
}

func NewSoloHandler() *SoloHandler {
	return &SoloHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type soloStartPayload struct {
	Quiz json.RawMessage `json:"quiz"`
	Mode string          `json:"mode"`
}

func (h *SoloHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("solo ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var game *solo.Game

	writeErr := func(msg string) {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}})
	}
	writeQuestion := func() {
		view, ok := game.Question()
		if ok {
			_ = conn.WriteJSON(outboundMessage[solo.QuestionView]{Type: "question", Payload: view})
			return
		}
		_ = conn.WriteJSON(outboundMessage[solo.Summary]{Type: "summary", Payload: game.Summarize()})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		if inbound.Type == "start" {
			var payload soloStartPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				writeErr("invalid start payload")
				continue
			}
			parsed, err := quiz.Parse(payload.Quiz)
			if err != nil {
				writeErr(err.Error())
				continue
			}
			game, err = solo.NewGame(parsed, solo.Mode(payload.Mode), rnd)
			if err != nil {
				writeErr(err.Error())
				continue
			}
			writeQuestion()
			continue
		}

		if game == nil {
			writeErr("no game in progress")
			continue
		}

		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				writeErr("invalid answer payload")
				continue
			}
			result, err := game.Answer(payload.Selected)
			if err != nil {
				writeErr(err.Error())
				continue
			}
			_ = conn.WriteJSON(outboundMessage[solo.Result]{Type: "answerResult", Payload: result})
			if result.GameOver {
				_ = conn.WriteJSON(outboundMessage[solo.Summary]{Type: "summary", Payload: game.Summarize()})
			}
		case "timeout":
			result, err := game.Timeout()
			if err != nil {
				writeErr(err.Error())
				continue
			}
			_ = conn.WriteJSON(outboundMessage[solo.Result]{Type: "answerResult", Payload: result})
			if result.GameOver {
				_ = conn.WriteJSON(outboundMessage[solo.Summary]{Type: "summary", Payload: game.Summarize()})
			}
		case "next":
			game.Next()
			writeQuestion()
		case "review":
			next, err := game.ReviewWrong(rnd)
			if err != nil {
				writeErr(err.Error())
				continue
			}
			game = next
			writeQuestion()
		default:
			writeErr("unsupported message type")
		}
	}
}
