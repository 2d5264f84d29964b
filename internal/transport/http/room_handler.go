package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
)

// RoomHandler exposes room creation and join over plain HTTP. The returned
// membership token is what the game socket authenticates with.
type RoomHandler struct {
	service *app.RoomService
	baseURL string
}

func NewRoomHandler(service *app.RoomService, baseURL string) *RoomHandler {
	return &RoomHandler{service: service, baseURL: baseURL}
}

type createRoomRequest struct {
	HostName string          `json:"hostName"`
	Quiz     json.RawMessage `json:"quiz,omitempty"`
	QuizID   string          `json:"quizId,omitempty"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var membership app.Membership
	var err error
	switch {
	case req.QuizID != "":
		membership, err = h.service.CreateRoomFromLibrary(r.Context(), req.HostName, req.QuizID)
	case len(req.Quiz) > 0:
		membership, err = h.service.CreateRoom(r.Context(), req.HostName, req.Quiz)
	default:
		writeJSONError(w, http.StatusBadRequest, "either quiz or quizId is required")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("code")
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	membership, err := h.service.JoinRoom(r.Context(), roomID, req.PlayerName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

// JoinQR renders the pre-filled join link for a room as a PNG, for scanning
// from the host's screen.
func (h *RoomHandler) JoinQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("code")
	if _, err := h.service.Room(r.Context(), roomID); err != nil {
		writeDomainError(w, err)
		return
	}

	joinURL := h.baseURL + "/join?room=" + roomID
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("qr encode: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrQuizNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRoomNotJoinable):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidQuiz), errors.Is(err, domain.ErrInvalidPlayerName):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
