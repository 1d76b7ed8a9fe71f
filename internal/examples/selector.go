package examples

import (
	"errors"
	"strings"
)

// ErrEmptyCorpus is returned when there is no example to select from.
var ErrEmptyCorpus = errors.New("example corpus is empty")

// SelectBest returns the example whose question shares the most lowercase
// whitespace-delimited tokens with question. Ties keep the earliest example,
// and when nothing overlaps the first example is returned.
func SelectBest(question string, examples []Example) (Example, error) {
	if len(examples) == 0 {
		return Example{}, ErrEmptyCorpus
	}

	userTokens := tokenSet(question)
	best := 0
	maxOverlap := 0
	for i, ex := range examples {
		overlap := intersect(userTokens, tokenSet(ex.Question))
		if overlap > maxOverlap {
			maxOverlap = overlap
			best = i
		}
	}
	return examples[best], nil
}

// Overlap counts the distinct tokens a and b share after lowercasing.
func Overlap(a, b string) int {
	return intersect(tokenSet(a), tokenSet(b))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}
