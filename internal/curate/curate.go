package curate

import (
	"fmt"
	"sort"

	"tracelens/internal/logging"
)

// Stats describes a curation outcome, including why the output is
// smaller than the target when supply ran short.
type Stats struct {
	Candidates      int
	Negatives       int // distinct negatives kept
	NegativeDupes   int // negatives dropped by URL dedup
	Positives       int // positives selected
	DistinctDomains int
	Shortfall       string // empty when output hit the target size
}

// Curate reduces candidate examples to at most targetSize:
//
//  1. Negative retention: every is_available=false example survives,
//     de-duplicated by normalized URL keeping the most recently created.
//  2. Positive selection: remaining slots go to is_available=true
//     examples, the best-scoring one per distinct domain first, then the
//     best-scoring leftovers regardless of domain.
//
// The curated set is validated before returning; a validation failure
// aborts the call and names the violated invariant.
func Curate(examples []Example, targetSize int) ([]Example, Stats, error) {
	logger := logging.New("curator")
	stats := Stats{Candidates: len(examples)}

	if targetSize <= 0 {
		return nil, stats, fmt.Errorf("curate: target size %d must be positive", targetSize)
	}

	var negatives, positives []Example
	for _, e := range examples {
		avail, ok := e.Available()
		if !ok {
			return nil, stats, fmt.Errorf("curate: example %s has no boolean is_available output", e.describe())
		}
		if avail {
			positives = append(positives, e)
		} else {
			negatives = append(negatives, e)
		}
	}

	// Stage 1: negative retention with URL dedup, most recent wins.
	kept := dedupByURL(negatives)
	stats.NegativeDupes = len(negatives) - len(kept)
	if len(kept) > targetSize {
		// Negative supply alone exceeds the bound: keep the most recent.
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Meta.CreatedAt.After(kept[j].Meta.CreatedAt)
		})
		stats.Shortfall = fmt.Sprintf("negative supply (%d) exceeds target size %d; most recent kept", len(kept), targetSize)
		kept = kept[:targetSize]
	}
	stats.Negatives = len(kept)

	selected := make([]Example, 0, targetSize)
	selected = append(selected, kept...)

	// Stage 2: positive selection into the remaining slots.
	slots := targetSize - len(selected)
	taken := make(map[string]bool, len(selected))
	for _, e := range selected {
		taken[NormalizeURL(e.URL())] = true
	}
	picked := pickPositives(positives, slots, taken)
	selected = append(selected, picked...)
	stats.Positives = len(picked)

	domains := make(map[string]bool)
	for _, e := range picked {
		domains[Domain(e.URL())] = true
	}
	stats.DistinctDomains = len(domains)

	if len(selected) < targetSize && stats.Shortfall == "" {
		stats.Shortfall = fmt.Sprintf("insufficient supply: %d negatives + %d distinct positives < target %d",
			stats.Negatives, stats.Positives, targetSize)
	}

	if err := Validate(selected); err != nil {
		return nil, stats, err
	}

	logger.Info("curated dataset",
		"candidates", stats.Candidates, "selected", len(selected),
		"negatives", stats.Negatives, "positives", stats.Positives,
		"distinct_domains", stats.DistinctDomains, "shortfall", stats.Shortfall)
	return selected, stats, nil
}

// dedupByURL keeps one example per normalized URL, preferring the most
// recent Meta.CreatedAt (ties keep the earlier-listed example).
func dedupByURL(examples []Example) []Example {
	best := make(map[string]int)
	order := make([]string, 0, len(examples))
	for i, e := range examples {
		key := NormalizeURL(e.URL())
		prev, seen := best[key]
		if !seen {
			best[key] = i
			order = append(order, key)
			continue
		}
		if e.Meta.CreatedAt.After(examples[prev].Meta.CreatedAt) {
			best[key] = i
		}
	}
	out := make([]Example, 0, len(order))
	for _, key := range order {
		out = append(out, examples[best[key]])
	}
	return out
}

// pickPositives fills up to slots from positives: first the single
// best-scoring example per distinct domain (maximizing diversity), then
// the best-scoring leftovers regardless of domain. URLs in taken are
// skipped so the curated set stays unique.
func pickPositives(positives []Example, slots int, taken map[string]bool) []Example {
	if slots <= 0 {
		return nil
	}

	// Stable quality ranking; URL as final tiebreak for determinism.
	ranked := make([]Example, len(positives))
	copy(ranked, positives)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := QualityScore(ranked[i]), QualityScore(ranked[j])
		if si != sj {
			return si > sj
		}
		return NormalizeURL(ranked[i].URL()) < NormalizeURL(ranked[j].URL())
	})

	out := make([]Example, 0, slots)
	usedDomain := make(map[string]bool)
	var leftovers []Example

	for _, e := range ranked {
		key := NormalizeURL(e.URL())
		if taken[key] {
			continue
		}
		dom := Domain(e.URL())
		if usedDomain[dom] {
			leftovers = append(leftovers, e)
			continue
		}
		usedDomain[dom] = true
		taken[key] = true
		out = append(out, e)
		if len(out) == slots {
			return out
		}
	}

	for _, e := range leftovers {
		key := NormalizeURL(e.URL())
		if taken[key] {
			continue
		}
		taken[key] = true
		out = append(out, e)
		if len(out) == slots {
			break
		}
	}
	return out
}

// Validate is the dataset's final quality gate: no duplicate normalized
// URLs, every example carries a non-empty input URL and a strict boolean
// availability output. Violations are fatal to the curation call.
func Validate(examples []Example) error {
	seen := make(map[string]string, len(examples))
	for _, e := range examples {
		url := e.URL()
		if url == "" {
			return fmt.Errorf("curate: validation failed: example %s has an empty input url", e.describe())
		}
		if _, ok := e.Available(); !ok {
			return fmt.Errorf("curate: validation failed: example %s lacks a boolean is_available output", e.describe())
		}
		key := NormalizeURL(url)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("curate: validation failed: duplicate normalized url %q (traces %s and %s)", key, prev, e.Meta.TraceID)
		}
		seen[key] = e.Meta.TraceID
	}
	return nil
}
