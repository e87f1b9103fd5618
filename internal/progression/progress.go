package progression

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/naming"
)

// Progress derives a member's standing in a category from the roles they
// hold. Exactly one of {gating role, completion role} should be present;
// a member holding neither is reported uninitialized and left for the
// repair routine. When several gating roles are present the lowest level
// wins, so a drifted member is never advanced past unsolved levels.
func (m *Manager) Progress(ctx context.Context, cat models.Category, member models.Member) (models.Progress, error) {
	if cat.CompletionRole != nil && member.HasRole(cat.CompletionRole.ID) {
		return models.Progress{State: models.ProgressCompleted}, nil
	}

	roles, err := m.dir.Roles(ctx)
	if err != nil {
		return models.Progress{}, fmt.Errorf("failed to list roles: %w", err)
	}
	byID := make(map[string]string, len(roles))
	for _, r := range roles {
		byID[r.ID] = r.Name
	}

	lowest := 0
	for _, roleID := range member.Roles {
		name, ok := byID[roleID]
		if !ok {
			continue
		}
		if n, ok := naming.ParseLevelRole(cat.Label, name); ok {
			if lowest == 0 || n < lowest {
				lowest = n
			}
		}
	}
	if lowest == 0 {
		return models.Progress{State: models.ProgressUninitialized}, nil
	}
	return models.Progress{State: models.ProgressOnLevel, Level: lowest}, nil
}

// InitMember moves an uninitialized member into a valid standing: the
// level-1 gating role, or the completion role when the category has no
// levels yet. It returns the level the member was placed on; completed is
// true for the zero-level case.
func (m *Manager) InitMember(ctx context.Context, cat models.Category, memberID string) (lvl models.Level, completed bool, err error) {
	levels, err := m.idx.Levels(ctx, cat.Label)
	if err != nil {
		return models.Level{}, false, err
	}

	if len(levels) == 0 {
		if cat.CompletionRole == nil {
			return models.Level{}, false, fmt.Errorf("%w: completion role of category %d", directory.ErrNotFound, cat.ID)
		}
		if err := m.dir.GrantRole(ctx, memberID, cat.CompletionRole.ID); err != nil {
			return models.Level{}, false, fmt.Errorf("failed to grant completion role: %w", err)
		}
		return models.Level{}, true, nil
	}

	first, err := m.idx.Level(ctx, cat, 1)
	if err != nil {
		return models.Level{}, false, err
	}
	if first.Role == nil {
		return models.Level{}, false, fmt.Errorf("%w: gating role of level 1 in category %d", ErrLevelNotFound, cat.ID)
	}
	if err := m.dir.GrantRole(ctx, memberID, first.Role.ID); err != nil {
		return models.Level{}, false, fmt.Errorf("failed to grant level 1 role: %w", err)
	}
	return first, false, nil
}

// Advance moves a member off their current level: the gating role is
// revoked, then either the next level's role or the category completion
// role is granted. It returns the unlocked level, or completed=true when
// the category is finished.
func (m *Manager) Advance(ctx context.Context, cat models.Category, memberID string, current int) (next models.Level, completed bool, err error) {
	unlock := m.lockCategory(cat.ID)
	defer unlock()

	cur, err := m.idx.Level(ctx, cat, current)
	if err != nil {
		return models.Level{}, false, err
	}
	if cur.Role != nil {
		if err := m.dir.RevokeRole(ctx, memberID, cur.Role.ID); err != nil {
			return models.Level{}, false, fmt.Errorf("failed to revoke level %d role: %w", current, err)
		}
	}

	nxt, err := m.idx.Level(ctx, cat, current+1)
	if err != nil {
		return models.Level{}, false, err
	}
	if nxt.Role != nil {
		if err := m.dir.GrantRole(ctx, memberID, nxt.Role.ID); err != nil {
			return models.Level{}, false, fmt.Errorf("failed to grant level %d role: %w", current+1, err)
		}
		return nxt, false, nil
	}

	if cat.CompletionRole == nil {
		return models.Level{}, false, fmt.Errorf("%w: completion role of category %d", directory.ErrNotFound, cat.ID)
	}
	if err := m.dir.GrantRole(ctx, memberID, cat.CompletionRole.ID); err != nil {
		return models.Level{}, false, fmt.Errorf("failed to grant completion role: %w", err)
	}
	return models.Level{}, true, nil
}

// SolutionText returns the accepted answer for a level: the most recent
// message in its solution channel.
func (m *Manager) SolutionText(ctx context.Context, cat models.Category, n int) (string, error) {
	lvl, err := m.idx.Level(ctx, cat, n)
	if err != nil {
		return "", err
	}
	if lvl.Solution == nil {
		return "", fmt.Errorf("%w: solution channel of level %d in category %d", ErrLevelNotFound, n, cat.ID)
	}
	history, err := m.dir.History(ctx, lvl.Solution.ID, 1)
	if err != nil {
		return "", fmt.Errorf("failed to read solution channel: %w", err)
	}
	if len(history) == 0 {
		return "", fmt.Errorf("%w: no solution posted for level %d in category %d", directory.ErrNotFound, n, cat.ID)
	}
	return history[0].Content, nil
}

// CheckAnswer tests a submission against the stored solution: literal
// comparison, case-insensitive, surrounding whitespace ignored.
func CheckAnswer(solution, submission string) bool {
	return strings.EqualFold(strings.TrimSpace(solution), strings.TrimSpace(submission))
}

// CategoryScores computes the leaderboard input for one category: every
// non-admin, non-bot member with an initialized standing, with their
// score, plus the live level count.
func (m *Manager) CategoryScores(ctx context.Context, cat models.Category) ([]models.LeaderboardEntry, int, error) {
	count, err := m.idx.LevelCount(ctx, cat.Label)
	if err != nil {
		return nil, 0, err
	}
	members, err := m.dir.Members(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}

	var entries []models.LeaderboardEntry
	for _, member := range members {
		if member.Admin || member.Bot {
			continue
		}
		prog, err := m.Progress(ctx, cat, member)
		if err != nil {
			return nil, 0, err
		}
		if prog.State == models.ProgressUninitialized {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			MemberID: member.ID,
			Name:     member.Name,
			Score:    prog.Score(count),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries, count, nil
}

// ScoreLine is one row of a member's score report.
type ScoreLine struct {
	Category models.CategoryInfo
	Score    int
}

// MemberScore computes a member's points per category and in total, using
// the same derivation as the leaderboard.
func (m *Manager) MemberScore(ctx context.Context, memberID string) ([]ScoreLine, int, error) {
	member, err := m.dir.Member(ctx, memberID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve member: %w", err)
	}
	cats, err := m.idx.Categories(ctx)
	if err != nil {
		return nil, 0, err
	}

	var lines []ScoreLine
	total := 0
	for _, cat := range cats {
		count, err := m.idx.LevelCount(ctx, cat.Label)
		if err != nil {
			return nil, 0, err
		}
		prog, err := m.Progress(ctx, cat, member)
		if err != nil {
			return nil, 0, err
		}
		score := prog.Score(count)
		total += score
		lines = append(lines, ScoreLine{
			Category: models.CategoryInfo{ID: cat.ID, Label: cat.Label, LevelCount: count},
			Score:    score,
		})
	}
	return lines, total, nil
}

// Infos summarizes every category with its live level count, ordered by
// category ID.
func (m *Manager) Infos(ctx context.Context) ([]models.CategoryInfo, error) {
	cats, err := m.idx.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CategoryInfo, 0, len(cats))
	for _, cat := range cats {
		count, err := m.idx.LevelCount(ctx, cat.Label)
		if err != nil {
			return nil, err
		}
		out = append(out, models.CategoryInfo{ID: cat.ID, Label: cat.Label, LevelCount: count})
	}
	return out, nil
}
