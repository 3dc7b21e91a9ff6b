package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Likert scale bounds and the size of the fixed questionnaire.
const (
	LikertMin     = 1
	LikertMax     = 5
	QuestionCount = 44
)

// Trait names one of the five personality dimensions.
type Trait string

const (
	Extraversion      Trait = "Extraversion"
	Agreeableness     Trait = "Agreeableness"
	Conscientiousness Trait = "Conscientiousness"
	Neuroticism       Trait = "Neuroticism"
	Openness          Trait = "Openness"
)

// Traits lists the five traits in their canonical presentation order.
var Traits = []Trait{Extraversion, Agreeableness, Conscientiousness, Neuroticism, Openness}

// Answers maps a question index (1..44) to the Likert value chosen for it.
type Answers map[int]int

// TraitScoreSet holds one averaged score per trait.
type TraitScoreSet map[Trait]float64

// SurveyResult is the payload stored in the big5 section.
type SurveyResult struct {
	Scores    TraitScoreSet  `json:"scores"`
	Responses map[string]int `json:"responses"`
}

var (
	// ErrInvalidAnswer reports a Likert value outside [1,5].
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrIncompleteSurvey reports a submission that does not cover every question.
	ErrIncompleteSurvey = errors.New("survey incomplete")
)

// ParseAnswers converts answers keyed by question number as text. Keys that
// are not numbers, or that name the same question twice ("1" and "01"), are
// rejected.
func ParseAnswers(raw map[string]int) (Answers, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	answers := make(Answers, len(raw))
	for _, key := range keys {
		q, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: question key %q is not a number", ErrInvalidAnswer, key)
		}
		if _, dup := answers[q]; dup {
			return nil, fmt.Errorf("%w: question %d is answered more than once", ErrInvalidAnswer, q)
		}
		answers[q] = raw[key]
	}
	return answers, nil
}

// Validate rejects values outside the Likert scale. Indices outside the
// questionnaire are tolerated; scoring ignores them.
func (a Answers) Validate() error {
	for _, q := range a.sortedIndices() {
		v := a[q]
		if v < LikertMin || v > LikertMax {
			return fmt.Errorf("%w: question %d has value %d", ErrInvalidAnswer, q, v)
		}
	}
	return nil
}

// Missing returns the questionnaire indices without an answer, ascending.
func (a Answers) Missing() []int {
	var missing []int
	for q := 1; q <= QuestionCount; q++ {
		if _, ok := a[q]; !ok {
			missing = append(missing, q)
		}
	}
	return missing
}

// Complete reports whether every question has an answer.
func (a Answers) Complete() bool {
	return len(a.Missing()) == 0
}

func (a Answers) sortedIndices() []int {
	keys := make([]int, 0, len(a))
	for q := range a {
		keys = append(keys, q)
	}
	sort.Ints(keys)
	return keys
}
