package curate

import "strings"

// Phrasing cues for the quality heuristic. Concrete success language
// ranks an example up; hedging ranks it down. The score is a ranking
// signal only, never a correctness gate.
var (
	specificPhrases = []string{
		"in stock",
		"add to cart",
		"ships",
		"available for purchase",
		"buy now",
		"price shown",
		"listed",
	}
	vaguePhrases = []string{
		"maybe",
		"unclear",
		"not sure",
		"possibly",
		"might",
		"unknown",
		"could not determine",
		"hard to tell",
	}
)

// QualityScore ranks a positive example by its notes text: a base score
// for being positive, a bonus for length and concrete success phrasing,
// a penalty for hedged phrasing.
func QualityScore(e Example) float64 {
	score := 10.0
	notes := strings.ToLower(e.Notes())
	if notes == "" {
		return score
	}
	switch {
	case len(notes) >= 120:
		score += 4
	case len(notes) >= 40:
		score += 2
	}
	for _, p := range specificPhrases {
		if strings.Contains(notes, p) {
			score += 3
			break
		}
	}
	for _, p := range vaguePhrases {
		if strings.Contains(notes, p) {
			score -= 5
			break
		}
	}
	return score
}
