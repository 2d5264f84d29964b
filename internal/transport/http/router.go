package http

import (
	"net/http"

	"quizmaster/internal/app"
)

// NewRouter mounts the full HTTP surface. The assist proxy and quiz lister
// are optional; without them /api/chat and /quizzes are simply absent.
func NewRouter(service *app.RoomService, assistProxy http.Handler, lister QuizLister, baseURL string) *http.ServeMux {
	rooms := NewRoomHandler(service, baseURL)
	ws := NewWSHandler(service)
	soloWS := NewSoloHandler()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /rooms", rooms.CreateRoom)
	if lister != nil {
		mux.HandleFunc("GET /quizzes", NewQuizHandler(lister).ListQuizzes)
	}
	mux.HandleFunc("POST /rooms/{code}/join", rooms.JoinRoom)
	mux.HandleFunc("GET /rooms/{code}/qr", rooms.JoinQR)
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("/ws/solo", soloWS.ServeWS)
	if assistProxy != nil {
		mux.Handle("/api/chat", assistProxy)
	}
	return mux
}
