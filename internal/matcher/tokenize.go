package matcher

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/eliteGoblin/scenehook/internal/policy"
)

// stopWords never count toward a name match.
var stopWords = func() map[string]bool {
	words := []string{
		"the", "and", "for", "with",
		"launcher", "release", "debug", "build", "msvc",
		"vulkan", "opengl", "nintendo", "switch",
		"version", "bit", "fps", "title", "scene",
		"exe",
	}
	words = append(words, policy.SwitchEmulatorHints...)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

var (
	hexTitleIDPattern = regexp.MustCompile(`\b([0-9A-Fa-f]{16})\b`)
	folder            = cases.Fold()
)

// ExtractTitleIDs returns the distinct 16-hex-digit title IDs in value, uppercased, in order.
func ExtractTitleIDs(value string) []string {
	if value == "" {
		return nil
	}
	var ids []string
	for _, m := range hexTitleIDPattern.FindAllStringSubmatch(value, -1) {
		ids = append(ids, strings.ToUpper(m[1]))
	}
	return dedupe(ids)
}

// Tokenize splits value into lowercase letter/number tokens of at least two runes,
// splitting camelCase boundaries and dropping stop words.
func Tokenize(value string) []string {
	folded := fold(splitCamel(norm.NFKC.String(value)))
	var tokens []string
	for _, tok := range strings.FieldsFunc(folded, isSeparator) {
		if len([]rune(tok)) < 2 || stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// normalizeFuzzy folds value and collapses every non letter/number run into one space.
func normalizeFuzzy(value string) string {
	folded := fold(norm.NFKC.String(value))
	return strings.Join(strings.FieldsFunc(folded, isSeparator), " ")
}

func fold(value string) string {
	return strings.ToLower(folder.String(value))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// splitCamel inserts spaces at lower->Upper and ACRONYMWord boundaries ("GameAlpha" -> "Game Alpha").
func splitCamel(value string) string {
	runes := []rune(value)
	var b strings.Builder
	b.Grow(len(value) + 8)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// nameCandidates builds the query strings: scene name, process stem, window title
// and the title's "|" and "-" segments.
func nameCandidates(sceneName, windowTitle, processName string) []string {
	var out []string
	if s := strings.TrimSpace(sceneName); s != "" {
		out = append(out, s)
	}
	if p := strings.TrimSpace(processName); p != "" {
		base := filepath.Base(strings.ReplaceAll(p, `\`, "/"))
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
			out = append(out, stem)
		}
	}
	if t := strings.TrimSpace(windowTitle); t != "" {
		out = append(out, t)
		for _, sep := range []string{"|", "-"} {
			for _, seg := range strings.Split(t, sep) {
				if seg = strings.TrimSpace(seg); seg != "" {
					out = append(out, seg)
				}
			}
		}
	}
	return dedupe(out)
}

// dedupe keeps the first occurrence of each value, compared case-insensitively.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
