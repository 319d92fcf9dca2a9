package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// FuzzyResult is one ranked fuzzy candidate. Lower score is better, 0 is an exact match.
type FuzzyResult struct {
	Path  string
	Score float64
}

// fuzzyScore compares two normalized strings.
// A containment hit scores by length ratio only; otherwise the edit distance is
// normalized by the longer string.
func fuzzyScore(query, target string) float64 {
	if query == "" || target == "" {
		return 1
	}
	if query == target {
		return 0
	}

	ql := utf8.RuneCountInString(query)
	tl := utf8.RuneCountInString(target)
	shorter, longer := ql, tl
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	if strings.Contains(target, query) || strings.Contains(query, target) {
		return 0.25 * (1 - float64(shorter)/float64(longer))
	}

	dist := levenshtein.ComputeDistance(query, target)
	return float64(dist) / float64(longer)
}

// RankFuzzy scores every script against every query and returns the best score per
// file, dropping anything above threshold, sorted ascending and capped at maxResults.
func RankFuzzy(scripts []string, queries []string, threshold float64, maxResults int) []FuzzyResult {
	var normQueries []string
	for _, q := range queries {
		if n := normalizeFuzzy(q); utf8.RuneCountInString(n) >= 2 {
			normQueries = append(normQueries, n)
		}
	}
	if len(normQueries) == 0 || len(scripts) == 0 {
		return nil
	}

	best := make(map[string]float64, len(scripts))
	for _, path := range scripts {
		stem := scriptStem(path)
		keys := []string{fold(stem), normalizeFuzzy(stem), normalizeFuzzy(splitCamel(stem))}
		for _, q := range normQueries {
			for _, k := range keys {
				s := fuzzyScore(q, k)
				if s > threshold {
					continue
				}
				if prev, ok := best[path]; !ok || s < prev {
					best[path] = s
				}
			}
		}
	}

	results := make([]FuzzyResult, 0, len(best))
	for path, score := range best {
		results = append(results, FuzzyResult{Path: path, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// fuzzyCandidates converts ranked fuzzy results to script candidates.
// Scores are offset so fuzzy candidates always rank below exact tiers.
func fuzzyCandidates(results []FuzzyResult) []domain.ScriptCandidate {
	out := make([]domain.ScriptCandidate, 0, len(results))
	for i, r := range results {
		out = append(out, domain.ScriptCandidate{
			Path:   r.Path,
			Reason: domain.ReasonFuzzyName,
			Score:  fuzzyScoreOffset + r.Score + float64(i)*0.001,
		})
	}
	return out
}
