package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinTitleOverlap is the share of the smaller token set that must match.
const MinTitleOverlap = 0.6

var titleFolder = cases.Fold()

// NormalizeTitle folds case and width and collapses everything that is not a
// letter or digit into single spaces.
func NormalizeTitle(s string) string {
	s = titleFolder.String(norm.NFKC.String(s))
	var b strings.Builder
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// TitlesRoughlyMatch reports whether a live window title plausibly belongs to
// the expected game: containment either way, or token overlap of at least
// MinTitleOverlap of the smaller token set.
func TitlesRoughlyMatch(expected, title string) bool {
	e := NormalizeTitle(expected)
	t := NormalizeTitle(title)
	if e == "" || t == "" {
		return false
	}
	if strings.Contains(t, e) || strings.Contains(e, t) {
		return true
	}

	eTokens := tokenSet(e)
	tTokens := tokenSet(t)
	overlap := 0
	for tok := range eTokens {
		if tTokens[tok] {
			overlap++
		}
	}
	smaller := min(len(eTokens), len(tTokens))
	if smaller == 0 {
		return false
	}
	return float64(overlap)/float64(smaller) >= MinTitleOverlap
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(s) {
		set[f] = true
	}
	return set
}
