// Package naming maps between structured identifiers and the literal
// display names of directory objects. The directory is the only persistent
// store, so these strings are the engine's on-disk format: encode and
// decode must stay exact inverses for every well-formed input.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
)

// LeaderboardChannel is the fixed name of a category's leaderboard channel.
const LeaderboardChannel = "leaderboard"

var (
	categoryPattern = regexp.MustCompile(`^\[(\d+)\] (.+) - Levels$`)
	levelPattern    = regexp.MustCompile(`^level-(\d+)$`)
	solutionPattern = regexp.MustCompile(`^solution-(\d+)$`)
	masterPattern   = regexp.MustCompile(`^Master of (.+)$`)
)

// Category encodes a category group name, e.g. "[3] Math - Levels".
func Category(id int, label string) string {
	return fmt.Sprintf("[%d] %s - Levels", id, label)
}

// ParseCategory decodes a category group name. The match is anchored over
// the whole name; anything else reports ok=false.
func ParseCategory(name string) (id int, label string, ok bool) {
	m := categoryPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return id, m[2], true
}

// LevelChannel encodes a level discussion channel name, e.g. "level-4".
func LevelChannel(n int) string {
	return fmt.Sprintf("level-%d", n)
}

// ParseLevelChannel decodes a level discussion channel name.
func ParseLevelChannel(name string) (int, bool) {
	return parseNumbered(levelPattern, name)
}

// SolutionChannel encodes a solution channel name, e.g. "solution-4".
func SolutionChannel(n int) string {
	return fmt.Sprintf("solution-%d", n)
}

// ParseSolutionChannel decodes a solution channel name.
func ParseSolutionChannel(name string) (int, bool) {
	return parseNumbered(solutionPattern, name)
}

// LevelRole encodes a gating role name, e.g. "Math - Level 4".
func LevelRole(label string, n int) string {
	return fmt.Sprintf("%s - Level %d", label, n)
}

// ParseLevelRole decodes a gating role name belonging to the category with
// the given label. The label is quoted before being embedded in the
// pattern: labels may contain regex metacharacters, and an unescaped label
// either fails to decode or matches roles of other categories.
func ParseLevelRole(label, name string) (int, bool) {
	p, err := regexp.Compile(`^` + regexp.QuoteMeta(label) + ` - Level (\d+)$`)
	if err != nil {
		return 0, false
	}
	return parseNumbered(p, name)
}

// CompletionRole encodes a category completion role name, e.g.
// "Master of Math".
func CompletionRole(label string) string {
	return fmt.Sprintf("Master of %s", label)
}

// ParseCompletionRole decodes a completion role name into its label.
func ParseCompletionRole(name string) (string, bool) {
	m := masterPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func parseNumbered(p *regexp.Regexp, name string) (int, bool) {
	m := p.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
