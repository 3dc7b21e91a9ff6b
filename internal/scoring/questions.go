package scoring

import (
	"strconv"
	"strings"

	"github.com/vanshika/tunetraits/internal/domain"
)

// Questions holds the statement text of each item, index 0 being question 1.
// Every statement completes "I see myself as someone who...".
var Questions = [domain.QuestionCount]string{
	"Is talkative",
	"Tends to find fault with others",
	"Does a thorough job",
	"Is depressed, blue",
	"Is original, comes up with new ideas",
	"Is reserved",
	"Is helpful and unselfish with others",
	"Can be somewhat careless",
	"Is relaxed, handles stress well",
	"Is curious about many different things",
	"Is full of energy",
	"Starts quarrels with others",
	"Is a reliable worker",
	"Can be tense",
	"Is ingenious, a deep thinker",
	"Generates a lot of enthusiasm",
	"Has a forgiving nature",
	"Tends to be disorganized",
	"Worries a lot",
	"Has an active imagination",
	"Tends to be quiet",
	"Is generally trusting",
	"Tends to be lazy",
	"Is emotionally stable, not easily upset",
	"Is inventive",
	"Has an assertive personality",
	"Can be cold and aloof",
	"Perseveres until the task is finished",
	"Can be moody",
	"Values artistic, aesthetic experiences",
	"Is sometimes shy, inhibited",
	"Is considerate and kind to almost everyone",
	"Does things efficiently",
	"Remains calm in tense situations",
	"Prefers work that is routine",
	"Is outgoing, sociable",
	"Is sometimes rude to others",
	"Makes plans and follows through with them",
	"Gets nervous easily",
	"Likes to reflect, play with ideas",
	"Has few artistic interests",
	"Likes to cooperate with others",
	"Is easily distracted",
	"Is sophisticated in art, music, or literature",
}

// ScaleLabels describes each Likert value.
var ScaleLabels = map[int]string{
	1: "Disagree strongly",
	2: "Disagree a little",
	3: "Neither agree nor disagree",
	4: "Agree a little",
	5: "Agree strongly",
}

var questionIndex = func() map[string]int {
	idx := make(map[string]int, len(Questions))
	for i, text := range Questions {
		idx[text] = i + 1
	}
	return idx
}()

// QuestionText returns the statement for a 1-based question index.
func QuestionText(q int) (string, bool) {
	if q < 1 || q > domain.QuestionCount {
		return "", false
	}
	return Questions[q-1], true
}

// ResponsesByText keys answers by statement text, which is how responses are
// persisted. Answers outside the questionnaire are dropped.
func ResponsesByText(answers domain.Answers) map[string]int {
	out := make(map[string]int, len(answers))
	for q, v := range answers {
		if text, ok := QuestionText(q); ok {
			out[text] = v
		}
	}
	return out
}

// AnswersFromResponses reverses ResponsesByText. Keys that are plain question
// numbers are accepted as well, since older records stored them that way.
func AnswersFromResponses(responses map[string]int) domain.Answers {
	answers := make(domain.Answers, len(responses))
	for key, v := range responses {
		if q, ok := questionIndex[key]; ok {
			answers[q] = v
			continue
		}
		if q, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
			if _, ok := QuestionText(q); ok {
				answers[q] = v
			}
		}
	}
	return answers
}
