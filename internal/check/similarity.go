package check

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggestion scoring is a three-tier heuristic, evaluated in order and
// short-circuited at the first applicable tier:
//  1. case-insensitive, slash-trimmed substring containment in either
//     direction: fixed 0.8;
//  2. token overlap on "/", "-", "_": when the ratio of
//     matching-or-mutually-substring tokens to the larger token count
//     exceeds 0.3, score 0.5 + ratio×0.3;
//  3. normalized edit-distance similarity.

const (
	suggestionThreshold = 0.3
	maxSuggestions      = 3
)

func pathSimilarity(a, b string) float64 {
	an := strings.ToLower(strings.Trim(a, "/"))
	bn := strings.ToLower(strings.Trim(b, "/"))
	if an == "" || bn == "" {
		return 0
	}

	if strings.Contains(an, bn) || strings.Contains(bn, an) {
		return 0.8
	}

	if ratio := tokenOverlap(an, bn); ratio > 0.3 {
		return 0.5 + ratio*0.3
	}

	maxLen := len(an)
	if len(bn) > maxLen {
		maxLen = len(bn)
	}
	dist := levenshtein.ComputeDistance(an, bn)
	return float64(maxLen-dist) / float64(maxLen)
}

func tokenOverlap(a, b string) float64 {
	at := splitPathTokens(a)
	bt := splitPathTokens(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	larger := len(at)
	if len(bt) > larger {
		larger = len(bt)
	}
	matches := 0
	for _, ta := range at {
		for _, tb := range bt {
			if ta == tb || strings.Contains(ta, tb) || strings.Contains(tb, ta) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(larger)
}

func splitPathTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-' || r == '_'
	})
}

// suggestPaths scores every candidate against the missing path, keeps those
// above the threshold, and returns the top candidates sorted by descending
// score (ties broken lexically for determinism).
func suggestPaths(missing string, candidates []string) []string {
	type scored struct {
		path  string
		score float64
	}
	var kept []scored
	for _, c := range candidates {
		if s := pathSimilarity(missing, c); s > suggestionThreshold {
			kept = append(kept, scored{path: c, score: s})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].path < kept[j].path
	})
	if len(kept) > maxSuggestions {
		kept = kept[:maxSuggestions]
	}
	out := make([]string, 0, len(kept))
	for _, s := range kept {
		out = append(out, s.path)
	}
	return out
}
