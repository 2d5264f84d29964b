package solo

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"quizmaster/internal/domain"
	"quizmaster/internal/quiz"
)

// Mode selects the single-player rule set. Classic is untimed; blitz puts a
// window on every question and scales points by the time left in it.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeBlitz   Mode = "blitz"
)

// ErrNothingToReview is returned when a review round is requested but no
// questions were missed.
var ErrNothingToReview = errors.New("no wrong answers to review")

const (
	MaxLives        = 3.0
	HealAmount      = 0.5
	BasePoints      = 100
	StreakBonus     = 50
	StreakThreshold = 3
	BlitzWindow     = 15 * time.Second
)

// Game runs a single-player session over one quiz. It is not safe for
// concurrent use; the owning connection serializes calls.
type Game struct {
	mode  Mode
	quiz  domain.Quiz
	clock func() time.Time

	index         int
	answered      bool
	finished      bool
	gameOver      bool
	questionShown time.Time

	lives      float64
	streak     int
	bestStreak int
	points     int
	correct    int
	attempts   int

	// wrong collects missed questions for a review round, keyed by prompt
	// so repeats within a run are not duplicated.
	wrong     []domain.Question
	wrongSeen map[string]bool
	review    bool
}

// Result is the outcome of one answer or timeout.
type Result struct {
	Correct     bool    `json:"correct"`
	TimedOut    bool    `json:"timedOut,omitempty"`
	Earned      int     `json:"earned"`
	CorrectText string  `json:"correctText"`
	Explanation string  `json:"explanation,omitempty"`
	Lives       float64 `json:"lives"`
	Streak      int     `json:"streak"`
	Points      int     `json:"points"`
	GameOver    bool    `json:"gameOver"`
}

// Summary is the end-of-run report.
type Summary struct {
	Mode            Mode    `json:"mode"`
	TotalQuestions  int     `json:"totalQuestions"`
	CorrectCount    int     `json:"correctCount"`
	WrongCount      int     `json:"wrongCount"`
	Percentage      int     `json:"percentage"`
	Accuracy        int     `json:"accuracy"`
	Points          int     `json:"points"`
	BestStreak      int     `json:"bestStreak"`
	LivesRemaining  float64 `json:"livesRemaining"`
	GameOver        bool    `json:"gameOver"`
	ReviewableWrong int     `json:"reviewableWrong"`
}

// QuestionView is a single question with the answer key stripped.
type QuestionView struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Mode     Mode     `json:"mode"`
}

// NewGame validates the quiz and prepares a shuffled run. Question order and
// option order are both permuted; the correct index follows its option.
func NewGame(q domain.Quiz, mode Mode, rnd *rand.Rand) (*Game, error) {
	if mode != ModeClassic && mode != ModeBlitz {
		mode = ModeClassic
	}
	if err := quiz.Validate(q); err != nil {
		return nil, err
	}
	prepared := quiz.Shuffle(quiz.ShuffleQuestions(q, rnd), rnd)
	g := &Game{
		mode:      mode,
		quiz:      prepared,
		clock:     time.Now,
		lives:     MaxLives,
		wrongSeen: make(map[string]bool),
	}
	g.questionShown = g.clock()
	return g, nil
}

// SetClock overrides the time source. Test hook.
func (g *Game) SetClock(now func() time.Time) {
	g.clock = now
	g.questionShown = now()
}

// Question returns the current question, or false once the run is over.
func (g *Game) Question() (QuestionView, bool) {
	if g.finished || g.gameOver {
		return QuestionView{}, false
	}
	q := g.quiz.Questions[g.index]
	return QuestionView{
		Index:    g.index,
		Total:    len(g.quiz.Questions),
		Question: q.Question,
		Options:  q.Options,
		Mode:     g.mode,
	}, true
}

// Answer grades the current question. In blitz mode an answer arriving after
// the window closes is scored as a timeout.
func (g *Game) Answer(selected int) (Result, error) {
	if g.finished || g.gameOver {
		return Result{}, domain.ErrNotPlaying
	}
	if g.answered {
		return Result{}, domain.ErrAlreadyAnswered
	}

	q := g.quiz.Questions[g.index]
	if g.mode == ModeBlitz && g.remainingFraction() <= 0 {
		return g.miss(q, true), nil
	}
	if selected < 0 || selected >= len(q.Options) {
		return g.miss(q, false), nil
	}
	if selected != q.Correct {
		return g.miss(q, false), nil
	}

	g.answered = true
	g.attempts++
	g.correct++
	g.streak++
	if g.streak > g.bestStreak {
		g.bestStreak = g.streak
	}
	if g.lives < MaxLives {
		g.lives = math.Min(g.lives+HealAmount, MaxLives)
	}

	earned := BasePoints
	if g.mode == ModeBlitz {
		earned = int(math.Round(BasePoints * g.remainingFraction()))
	}
	if g.streak >= StreakThreshold {
		earned += StreakBonus * (g.streak - 2)
	}
	g.points += earned

	return Result{
		Correct:     true,
		Earned:      earned,
		CorrectText: q.Options[q.Correct],
		Explanation: q.Explanation,
		Lives:       g.lives,
		Streak:      g.streak,
		Points:      g.points,
	}, nil
}

// Timeout records an expired blitz question. Classic questions never time out.
func (g *Game) Timeout() (Result, error) {
	if g.mode != ModeBlitz {
		return Result{}, domain.ErrNotPlaying
	}
	if g.finished || g.gameOver {
		return Result{}, domain.ErrNotPlaying
	}
	if g.answered {
		return Result{}, domain.ErrAlreadyAnswered
	}
	return g.miss(g.quiz.Questions[g.index], true), nil
}

func (g *Game) miss(q domain.Question, timedOut bool) Result {
	g.answered = true
	g.attempts++
	g.streak = 0
	g.lives -= 1
	if !g.review && !g.wrongSeen[q.Question] {
		g.wrongSeen[q.Question] = true
		g.wrong = append(g.wrong, q)
	}
	if g.lives <= 0 {
		g.gameOver = true
	}
	return Result{
		Correct:     false,
		TimedOut:    timedOut,
		CorrectText: q.Options[q.Correct],
		Explanation: q.Explanation,
		Lives:       g.lives,
		Streak:      g.streak,
		Points:      g.points,
		GameOver:    g.gameOver,
	}
}

// Next moves to the following question. It reports whether another question
// is available; false means the run is finished.
func (g *Game) Next() bool {
	if g.gameOver || g.finished {
		return false
	}
	if !g.answered {
		return true
	}
	if g.index+1 >= len(g.quiz.Questions) {
		g.finished = true
		return false
	}
	g.index++
	g.answered = false
	g.questionShown = g.clock()
	return true
}

// Summarize reports the final tally. Valid at any point; most useful once
// Next has returned false or a miss ended the run.
func (g *Game) Summarize() Summary {
	total := len(g.quiz.Questions)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(g.correct) / float64(total) * 100))
	}
	accuracy := 0
	if g.attempts > 0 {
		accuracy = int(math.Round(float64(g.correct) / float64(g.attempts) * 100))
	}
	return Summary{
		Mode:            g.mode,
		TotalQuestions:  total,
		CorrectCount:    g.correct,
		WrongCount:      g.attempts - g.correct,
		Percentage:      percentage,
		Accuracy:        accuracy,
		Points:          g.points,
		BestStreak:      g.bestStreak,
		LivesRemaining:  g.lives,
		GameOver:        g.gameOver,
		ReviewableWrong: len(g.wrong),
	}
}

// ReviewWrong starts a fresh run over the questions missed in this one.
// Review runs keep the mode but do not collect a further wrong set.
func (g *Game) ReviewWrong(rnd *rand.Rand) (*Game, error) {
	if len(g.wrong) == 0 {
		return nil, ErrNothingToReview
	}
	reviewQuiz := domain.Quiz{Title: g.quiz.Title, Questions: g.wrong}
	next, err := NewGame(reviewQuiz, g.mode, rnd)
	if err != nil {
		return nil, err
	}
	next.review = true
	return next, nil
}

func (g *Game) remainingFraction() float64 {
	elapsed := g.clock().Sub(g.questionShown)
	remaining := BlitzWindow - elapsed
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) / float64(BlitzWindow)
}
