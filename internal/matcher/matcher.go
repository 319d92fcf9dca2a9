// Package matcher maps a detected game identity to a helper script file.
//
// Resolution runs four tiers in strict precedence: explicit ID, embedded hex
// title ID, name-token overlap, and fuzzy name matching. Every function here is
// pure over a directory listing.
package matcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/policy"
)

// Candidate scores per tier. Lower is better.
const (
	explicitIDScore  = 0.001
	titleIDScore     = 0.01
	nameScore        = 0.12
	fuzzyScoreOffset = 0.2
)

// ScriptExtensions are the recognized helper script extensions.
var ScriptExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
}

// Options tunes the heuristic thresholds.
type Options struct {
	// NameMinScore is the minimum token overlap for a name match.
	NameMinScore int
	// FuzzyThreshold drops fuzzy candidates scoring above it (0 exact, 1 unrelated).
	FuzzyThreshold float64
	// FuzzyMaxResults caps the ranked fuzzy candidate list.
	FuzzyMaxResults int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		NameMinScore:    2,
		FuzzyThreshold:  0.4,
		FuzzyMaxResults: 15,
	}
}

// Resolver implements domain.ScriptResolver over the local filesystem.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolver. Zero option fields fall back to defaults.
func NewResolver(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.NameMinScore <= 0 {
		opts.NameMinScore = def.NameMinScore
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = def.FuzzyThreshold
	}
	if opts.FuzzyMaxResults <= 0 {
		opts.FuzzyMaxResults = def.FuzzyMaxResults
	}
	return &Resolver{opts: opts}
}

// Options returns the effective options.
func (r *Resolver) Options() Options {
	return r.opts
}

// ListScripts returns the script files directly under dir, sorted by name.
// Returns an error if dir cannot be read.
func ListScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var scripts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ScriptExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			scripts = append(scripts, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(scripts)
	return scripts, nil
}

// FindScriptByID returns the first script whose file name contains id, case-insensitively.
func FindScriptByID(scripts []string, id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	for _, path := range scripts {
		if strings.Contains(strings.ToLower(filepath.Base(path)), id) {
			return path
		}
	}
	return ""
}

// FindBestNameMatch scores every script by token overlap with the query names.
// It returns the best script when its score is at least minScore and strictly
// greater than the runner-up. ambiguous is true when the top score is tied.
func FindBestNameMatch(scripts []string, names []string, minScore int) (best string, ambiguous bool) {
	query := make(map[string]bool)
	for _, n := range names {
		for _, tok := range Tokenize(n) {
			query[tok] = true
		}
	}
	if len(query) == 0 {
		return "", false
	}

	bestScore, secondScore := 0, 0
	for _, path := range scripts {
		score := overlap(query, Tokenize(scriptStem(path)))
		if score > bestScore {
			secondScore = bestScore
			bestScore = score
			best = path
		} else if score > secondScore {
			secondScore = score
		}
	}

	if bestScore < minScore {
		return "", false
	}
	if bestScore == secondScore {
		return "", true
	}
	return best, false
}

// tiedNameMatches returns every script sharing the top overlap score.
func tiedNameMatches(scripts []string, names []string) []string {
	query := make(map[string]bool)
	for _, n := range names {
		for _, tok := range Tokenize(n) {
			query[tok] = true
		}
	}
	top := 0
	var tied []string
	for _, path := range scripts {
		score := overlap(query, Tokenize(scriptStem(path)))
		switch {
		case score > top:
			top = score
			tied = []string{path}
		case score == top && score > 0:
			tied = append(tied, path)
		}
	}
	return tied
}

func overlap(query map[string]bool, tokens []string) int {
	seen := make(map[string]bool, len(tokens))
	score := 0
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if query[tok] {
			score++
		}
	}
	return score
}

func scriptStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FindByID implements domain.ScriptResolver.
func (r *Resolver) FindByID(scriptsDir, id string) string {
	scripts, err := ListScripts(scriptsDir)
	if err != nil {
		return ""
	}
	return FindScriptByID(scripts, id)
}

// Resolve implements domain.ScriptResolver.
//
// The explicit ID tier searches every script. The remaining tiers exclude
// Switch-prefixed scripts unless the target is a Switch emulator.
func (r *Resolver) Resolve(q domain.ScriptQuery) domain.ScriptResolution {
	isSwitch := policy.IsSwitchEmulatorTarget(q.ProcessName, q.WindowTitle)
	res := domain.ScriptResolution{
		Reason:         domain.ReasonNoMatch,
		IsSwitchTarget: isSwitch,
		Candidates:     []domain.ScriptCandidate{},
	}

	dir := strings.TrimSpace(q.ScriptsDir)
	if dir == "" {
		res.Reason = domain.ReasonScriptsPathMissing
		return res
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		res.Reason = domain.ReasonScriptsPathMissing
		return res
	}
	scripts, err := ListScripts(dir)
	if err != nil || len(scripts) == 0 {
		res.Reason = domain.ReasonScriptsUnreadable
		return res
	}

	titleIDs := dedupe(append(ExtractTitleIDs(q.WindowTitle), ExtractTitleIDs(q.SceneName)...))
	if len(titleIDs) > 0 {
		res.TitleID = titleIDs[0]
	}

	if id := strings.TrimSpace(q.ExplicitGameID); id != "" {
		if match := FindScriptByID(scripts, id); match != "" {
			return matched(res, match, domain.ReasonExplicitID, explicitIDScore, strings.ToUpper(id))
		}
	}

	eligible := scripts
	if !isSwitch {
		eligible = make([]string, 0, len(scripts))
		for _, s := range scripts {
			if !policy.IsSwitchScript(filepath.Base(s)) {
				eligible = append(eligible, s)
			}
		}
	}
	if len(eligible) == 0 {
		return res
	}

	for _, id := range titleIDs {
		if match := FindScriptByID(eligible, id); match != "" {
			return matched(res, match, domain.ReasonTitleID, titleIDScore, id)
		}
	}

	names := nameCandidates(q.SceneName, q.WindowTitle, q.ProcessName)
	best, ambiguous := FindBestNameMatch(eligible, names, r.opts.NameMinScore)
	if best != "" {
		return matched(res, best, domain.ReasonName, nameScore, res.TitleID)
	}
	if ambiguous {
		// Tied names never fall through to fuzzy; report them for manual override.
		for _, path := range tiedNameMatches(eligible, names) {
			res.Candidates = append(res.Candidates, domain.ScriptCandidate{
				Path:   path,
				Reason: domain.ReasonName,
				Score:  nameScore,
			})
		}
		return res
	}

	ranked := RankFuzzy(eligible, names, r.opts.FuzzyThreshold, r.opts.FuzzyMaxResults)
	if len(ranked) == 0 {
		return res
	}
	res.Candidates = fuzzyCandidates(ranked)
	res.Path = res.Candidates[0].Path
	res.Reason = domain.ReasonFuzzyName
	return res
}

func matched(res domain.ScriptResolution, path string, reason domain.MatchReason, score float64, titleID string) domain.ScriptResolution {
	res.Path = path
	res.Reason = reason
	res.TitleID = titleID
	res.Candidates = []domain.ScriptCandidate{{Path: path, Reason: reason, Score: score}}
	return res
}

// Ensure Resolver implements domain.ScriptResolver.
var _ domain.ScriptResolver = (*Resolver)(nil)
