package solo

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"quizmaster/internal/domain"
)

func fourQuestionQuiz() domain.Quiz {
	questions := make([]domain.Question, 4)
	for i := range questions {
		questions[i] = domain.Question{
			Question: string(rune('A' + i)),
			Options:  []string{"right", "wrong"},
			Correct:  0,
		}
	}
	return domain.Quiz{Title: "Sample", Questions: questions}
}

func newClassicGame(t *testing.T) *Game {
	t.Helper()
	g, err := NewGame(fourQuestionQuiz(), ModeClassic, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

// answerCorrectly finds the right option from the view so tests stay
// independent of shuffling.
func answerCorrectly(t *testing.T, g *Game) Result {
	t.Helper()
	view, ok := g.Question()
	if !ok {
		t.Fatal("expected a current question")
	}
	selected := -1
	for i, opt := range view.Options {
		if opt == "right" {
			selected = i
		}
	}
	res, err := g.Answer(selected)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Correct {
		t.Fatalf("expected correct answer, got %+v", res)
	}
	return res
}

func answerWrong(t *testing.T, g *Game) Result {
	t.Helper()
	view, ok := g.Question()
	if !ok {
		t.Fatal("expected a current question")
	}
	selected := -1
	for i, opt := range view.Options {
		if opt == "wrong" {
			selected = i
		}
	}
	res, err := g.Answer(selected)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Correct {
		t.Fatalf("expected wrong answer, got %+v", res)
	}
	return res
}

func TestClassicScoringAndStreaks(t *testing.T) {
	g := newClassicGame(t)

	res := answerCorrectly(t, g)
	if res.Earned != 100 || res.Streak != 1 {
		t.Fatalf("q1: expected 100 points streak 1, got %+v", res)
	}
	g.Next()

	res = answerCorrectly(t, g)
	if res.Earned != 100 || res.Streak != 2 {
		t.Fatalf("q2: expected 100 points streak 2, got %+v", res)
	}
	g.Next()

	// Streak 3 adds 50*(3-2).
	res = answerCorrectly(t, g)
	if res.Earned != 150 || res.Streak != 3 {
		t.Fatalf("q3: expected 150 points streak 3, got %+v", res)
	}
	g.Next()

	// Streak 4 adds 50*(4-2).
	res = answerCorrectly(t, g)
	if res.Earned != 200 || res.Streak != 4 {
		t.Fatalf("q4: expected 200 points streak 4, got %+v", res)
	}
	if res.Points != 100+100+150+200 {
		t.Fatalf("unexpected running total: %+v", res)
	}

	if g.Next() {
		t.Fatal("expected run to finish after last question")
	}
	sum := g.Summarize()
	if sum.Percentage != 100 || sum.Accuracy != 100 || sum.BestStreak != 4 || sum.Points != 550 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestWrongAnswersCostLivesAndEndGame(t *testing.T) {
	g := newClassicGame(t)

	res := answerWrong(t, g)
	if res.Lives != 2 || res.GameOver {
		t.Fatalf("first miss: %+v", res)
	}
	g.Next()

	res = answerWrong(t, g)
	if res.Lives != 1 || res.GameOver {
		t.Fatalf("second miss: %+v", res)
	}
	g.Next()

	res = answerWrong(t, g)
	if res.Lives != 0 || !res.GameOver {
		t.Fatalf("third miss should end the game: %+v", res)
	}

	if _, err := g.Answer(0); !errors.Is(err, domain.ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying after game over, got %v", err)
	}
	sum := g.Summarize()
	if !sum.GameOver || sum.ReviewableWrong != 3 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCorrectAnswerHealsHalfLife(t *testing.T) {
	g := newClassicGame(t)

	answerWrong(t, g)
	g.Next()
	res := answerCorrectly(t, g)
	if res.Lives != 2.5 {
		t.Fatalf("expected half-heart heal, got %+v", res)
	}
	g.Next()
	res = answerCorrectly(t, g)
	if res.Lives != 3 {
		t.Fatalf("expected full heal cap path, got %+v", res)
	}
	g.Next()
	res = answerCorrectly(t, g)
	if res.Lives != 3 {
		t.Fatalf("lives must not exceed max: %+v", res)
	}
}

func TestBlitzPointsScaleWithTimeLeft(t *testing.T) {
	g, err := NewGame(fourQuestionQuiz(), ModeBlitz, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	now := time.Unix(1700000000, 0)
	g.SetClock(func() time.Time { return now })

	// Instant answer keeps the full window.
	res := answerCorrectly(t, g)
	if res.Earned != 100 {
		t.Fatalf("instant answer should earn base points, got %+v", res)
	}
	g.Next()

	// Two thirds of the window left after 5s.
	now = now.Add(5 * time.Second)
	res = answerCorrectly(t, g)
	if res.Earned != 67 {
		t.Fatalf("expected 67 points at 10s remaining, got %+v", res)
	}
}

func TestBlitzLateAnswerIsTimeout(t *testing.T) {
	g, err := NewGame(fourQuestionQuiz(), ModeBlitz, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	now := time.Unix(1700000000, 0)
	g.SetClock(func() time.Time { return now })

	now = now.Add(16 * time.Second)
	res, err := g.Answer(0)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Correct || !res.TimedOut || res.Lives != 2 {
		t.Fatalf("expected timeout miss: %+v", res)
	}
}

func TestBlitzTimeout(t *testing.T) {
	g, err := NewGame(fourQuestionQuiz(), ModeBlitz, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	res, err := g.Timeout()
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if !res.TimedOut || res.Lives != 2 || res.Streak != 0 {
		t.Fatalf("unexpected timeout result: %+v", res)
	}
	if _, err := g.Timeout(); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestClassicHasNoTimeout(t *testing.T) {
	g := newClassicGame(t)
	if _, err := g.Timeout(); !errors.Is(err, domain.ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying, got %v", err)
	}
}

func TestReviewWrongReplaysMissedQuestions(t *testing.T) {
	g := newClassicGame(t)

	answerWrong(t, g)
	g.Next()
	answerCorrectly(t, g)
	g.Next()
	answerWrong(t, g)
	g.Next()
	answerCorrectly(t, g)
	g.Next()

	review, err := g.ReviewWrong(rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("review wrong: %v", err)
	}
	view, ok := review.Question()
	if !ok || view.Total != 2 {
		t.Fatalf("expected two review questions, got %+v", view)
	}

	// Misses in a review round are not collected again.
	answerWrong(t, review)
	if got := review.Summarize().ReviewableWrong; got != 0 {
		t.Fatalf("review round must not collect wrong answers, got %d", got)
	}

	fresh := newClassicGame(t)
	if _, err := fresh.ReviewWrong(rand.New(rand.NewSource(3))); !errors.Is(err, ErrNothingToReview) {
		t.Fatalf("expected ErrNothingToReview, got %v", err)
	}
}

func TestAnswerTwiceRejected(t *testing.T) {
	g := newClassicGame(t)
	answerCorrectly(t, g)
	if _, err := g.Answer(0); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}
