package assist

import (
	"regexp"

	"quizmaster/internal/domain"
	"quizmaster/internal/quiz"
)

var jsonBlock = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractQuiz pulls a quiz out of model output. The model often wraps its
// JSON in prose or a code fence, so a failed whole-string parse falls back
// to the outermost brace-delimited block.
func ExtractQuiz(text string) (domain.Quiz, error) {
	if q, err := quiz.Parse([]byte(text)); err == nil {
		return q, nil
	}
	match := jsonBlock.FindString(text)
	if match == "" {
		return domain.Quiz{}, domain.ErrInvalidQuiz
	}
	return quiz.Parse([]byte(match))
}
