package quiz

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"quizmaster/internal/domain"
)

// Parse decodes and validates quiz JSON. A quiz must carry a non-empty
// questions array; anything else is rejected before a room is created.
func Parse(raw []byte) (domain.Quiz, error) {
	var q domain.Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	if err := Validate(q); err != nil {
		return domain.Quiz{}, err
	}
	return q, nil
}

// Validate checks the structural rules shared by uploaded files, library
// quizzes, and assistant-generated content.
func Validate(q domain.Quiz) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: missing or empty questions array", domain.ErrInvalidQuiz)
	}
	for i, question := range q.Questions {
		if len(question.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", domain.ErrInvalidQuiz, i)
		}
		if question.Correct < 0 || question.Correct >= len(question.Options) {
			return fmt.Errorf("%w: question %d correct index out of range", domain.ErrInvalidQuiz, i)
		}
	}
	return nil
}

// ShuffleQuestions permutes question order. Used by solo play so replays of
// the same file do not repeat the same sequence.
func ShuffleQuestions(q domain.Quiz, rnd *rand.Rand) domain.Quiz {
	out := domain.Quiz{Title: q.Title, Questions: make([]domain.Question, len(q.Questions))}
	copy(out.Questions, q.Questions)
	rnd.Shuffle(len(out.Questions), func(i, j int) {
		out.Questions[i], out.Questions[j] = out.Questions[j], out.Questions[i]
	})
	return out
}

// Shuffle permutes each question's options with Fisher-Yates and remaps the
// correct index to follow its option. The shuffled quiz is what gets
// persisted, so every participant sees the same stable order for the room's
// lifetime.
func Shuffle(q domain.Quiz, rnd *rand.Rand) domain.Quiz {
	out := domain.Quiz{Title: q.Title, Questions: make([]domain.Question, len(q.Questions))}
	for i, question := range q.Questions {
		indices := make([]int, len(question.Options))
		for j := range indices {
			indices[j] = j
		}
		for j := len(indices) - 1; j > 0; j-- {
			k := rnd.Intn(j + 1)
			indices[j], indices[k] = indices[k], indices[j]
		}

		shuffled := make([]string, len(question.Options))
		correct := 0
		for j, idx := range indices {
			shuffled[j] = question.Options[idx]
			if idx == question.Correct {
				correct = j
			}
		}

		out.Questions[i] = domain.Question{
			Question:    question.Question,
			Options:     shuffled,
			Correct:     correct,
			Explanation: question.Explanation,
		}
	}
	return out
}
