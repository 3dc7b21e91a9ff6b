// Package scoring turns Big Five Inventory answers into trait scores.
package scoring

import "github.com/vanshika/tunetraits/internal/domain"

// Item is one question contributing to a trait.
type Item struct {
	Question int
	Reverse  bool
}

// keys is the BFI-44 scoring key.
var keys = map[domain.Trait][]Item{
	domain.Extraversion: {
		{1, false}, {6, true}, {11, false}, {16, false},
		{21, true}, {26, false}, {31, true}, {36, false},
	},
	domain.Agreeableness: {
		{2, true}, {7, false}, {12, true}, {17, false}, {22, false},
		{27, true}, {32, false}, {37, true}, {42, false},
	},
	domain.Conscientiousness: {
		{3, false}, {8, true}, {13, false}, {18, true}, {23, true},
		{28, false}, {33, false}, {38, false}, {43, true},
	},
	domain.Neuroticism: {
		{4, false}, {9, true}, {14, false}, {19, false},
		{24, true}, {29, false}, {34, true}, {39, false},
	},
	domain.Openness: {
		{5, false}, {10, false}, {15, false}, {20, false}, {25, false},
		{30, false}, {35, true}, {40, false}, {41, true}, {44, false},
	},
}

// Key returns a copy of the items scored for trait.
func Key(trait domain.Trait) []Item {
	return append([]Item(nil), keys[trait]...)
}

// Reverse inverts a value on the 1..5 scale.
func Reverse(v int) int {
	return domain.LikertMin + domain.LikertMax - v
}

// Contribution is the value an answer adds to its trait's average.
func (it Item) Contribution(v int) int {
	if it.Reverse {
		return Reverse(v)
	}
	return v
}

// Coverage counts how many of a trait's items were answered.
type Coverage struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Scored reports whether at least one item contributed.
func (c Coverage) Scored() bool {
	return c.Answered > 0
}

// Result bundles scores with the coverage they were computed from.
type Result struct {
	Scores   domain.TraitScoreSet      `json:"scores"`
	Coverage map[domain.Trait]Coverage `json:"coverage"`
}

// Score averages the contributions of the answered items of each trait. A
// trait with no answered items scores 0.
func Score(answers domain.Answers) domain.TraitScoreSet {
	return Evaluate(answers).Scores
}

// Evaluate computes scores and coverage in one pass.
func Evaluate(answers domain.Answers) Result {
	res := Result{
		Scores:   make(domain.TraitScoreSet, len(domain.Traits)),
		Coverage: make(map[domain.Trait]Coverage, len(domain.Traits)),
	}
	for _, trait := range domain.Traits {
		items := keys[trait]
		total, count := 0, 0
		for _, it := range items {
			v, ok := answers[it.Question]
			if !ok {
				continue
			}
			total += it.Contribution(v)
			count++
		}
		if count > 0 {
			res.Scores[trait] = float64(total) / float64(count)
		} else {
			res.Scores[trait] = 0
		}
		res.Coverage[trait] = Coverage{Answered: count, Total: len(items)}
	}
	return res
}
