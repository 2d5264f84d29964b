package memory

import (
	"context"
	"testing"

	"quizmaster/internal/domain"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	data := domain.SessionData{RoomID: "ABC123", PlayerID: "p1", PlayerName: "Alice", IsHost: true}
	if err := s.Put(ctx, "tok-1", data); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != data {
		t.Fatalf("expected %+v, got %+v", data, got)
	}

	if err := s.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "tok-1"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
