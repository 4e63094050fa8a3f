package ui

import (
	"sort"
	"strings"
)

// MaxSuggestDistance is the largest edit distance Suggest reports
const MaxSuggestDistance = 3

// Suggest returns up to three candidates closest to target by edit distance, ignoring
// case, nearest first. Exact matches are not suggested.
func Suggest(target string, candidates []string) []string {
	type match struct {
		value string
		dist  int
	}

	t := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if lc == t {
			continue
		}
		if d := Distance(t, lc); d <= MaxSuggestDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].value < matches[j].value
	})

	var out []string
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b counted in runes
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
