package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/naming"
)

// Index answers read-side queries by scanning the live directory through
// the naming codec. It holds no state of its own: every call re-derives
// from current listings, since the directory can be mutated between calls
// by this engine or by guild admins acting manually. Callers wanting fewer
// rescans wrap the Service in NewCached.
type Index struct {
	dir Service
}

// NewIndex creates an Index over the given directory service.
func NewIndex(dir Service) *Index {
	return &Index{dir: dir}
}

// Categories returns all live categories ordered by ID. A duplicate
// category ID or completion role is reported as ErrAmbiguous.
func (x *Index) Categories(ctx context.Context) ([]models.Category, error) {
	channels, err := x.dir.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	roles, err := x.dir.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	seen := make(map[int]bool)
	var out []models.Category
	for _, ch := range channels {
		if ch.Kind != models.ChannelGroup {
			continue
		}
		id, label, ok := naming.ParseCategory(ch.Name)
		if !ok {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: category id %d appears more than once", ErrAmbiguous, id)
		}
		seen[id] = true

		cat := models.Category{ID: id, Label: label, GroupID: ch.ID}
		role, err := findRole(roles, naming.CompletionRole(label))
		if err != nil {
			return nil, fmt.Errorf("completion role for %q: %w", label, err)
		}
		cat.CompletionRole = role
		for _, child := range channels {
			if child.ParentID == ch.ID && child.Kind == models.ChannelText && child.Name == naming.LeaderboardChannel {
				cat.LeaderboardID = child.ID
				break
			}
		}
		out = append(out, cat)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Category resolves one category by ID.
func (x *Index) Category(ctx context.Context, id int) (models.Category, error) {
	cats, err := x.Categories(ctx)
	if err != nil {
		return models.Category{}, err
	}
	for _, cat := range cats {
		if cat.ID == id {
			return cat, nil
		}
	}
	return models.Category{}, fmt.Errorf("%w: category %d", ErrNotFound, id)
}

// NextCategoryID returns max(existing IDs)+1, or 1 when no category exists.
func (x *Index) NextCategoryID(ctx context.Context) (int, error) {
	cats, err := x.Categories(ctx)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, cat := range cats {
		if cat.ID >= next {
			next = cat.ID + 1
		}
	}
	return next, nil
}

// Levels returns the ascending level numbers of a category, derived from
// its gating roles.
func (x *Index) Levels(ctx context.Context, label string) ([]int, error) {
	roles, err := x.dir.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	var out []int
	for _, r := range roles {
		if n, ok := naming.ParseLevelRole(label, r.Name); ok {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

// LevelCount returns the number of live levels in a category.
func (x *Index) LevelCount(ctx context.Context, label string) (int, error) {
	levels, err := x.Levels(ctx, label)
	if err != nil {
		return 0, err
	}
	return len(levels), nil
}

// NextLevelNumber returns max(existing levels)+1, or 1 when none exist.
func (x *Index) NextLevelNumber(ctx context.Context, label string) (int, error) {
	levels, err := x.Levels(ctx, label)
	if err != nil {
		return 0, err
	}
	if len(levels) == 0 {
		return 1, nil
	}
	return levels[len(levels)-1] + 1, nil
}

// Level resolves the directory objects of one level. Missing objects leave
// nil fields rather than erroring, so that destructive bulk operations can
// skip what is already gone; duplicates report ErrAmbiguous.
func (x *Index) Level(ctx context.Context, cat models.Category, n int) (models.Level, error) {
	channels, err := x.dir.Channels(ctx)
	if err != nil {
		return models.Level{}, fmt.Errorf("failed to list channels: %w", err)
	}
	roles, err := x.dir.Roles(ctx)
	if err != nil {
		return models.Level{}, fmt.Errorf("failed to list roles: %w", err)
	}

	lvl := models.Level{Number: n}
	lvl.Channel, err = findChild(channels, cat.GroupID, naming.LevelChannel(n))
	if err != nil {
		return models.Level{}, fmt.Errorf("level channel %d of %q: %w", n, cat.Label, err)
	}
	lvl.Solution, err = findChild(channels, cat.GroupID, naming.SolutionChannel(n))
	if err != nil {
		return models.Level{}, fmt.Errorf("solution channel %d of %q: %w", n, cat.Label, err)
	}
	lvl.Role, err = findRole(roles, naming.LevelRole(cat.Label, n))
	if err != nil {
		return models.Level{}, fmt.Errorf("gating role %d of %q: %w", n, cat.Label, err)
	}
	return lvl, nil
}

func findRole(roles []models.Role, name string) (*models.Role, error) {
	var found *models.Role
	for i := range roles {
		if roles[i].Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: role %q", ErrAmbiguous, name)
		}
		r := roles[i]
		found = &r
	}
	return found, nil
}

func findChild(channels []models.Channel, parentID, name string) (*models.Channel, error) {
	var found *models.Channel
	for i := range channels {
		if channels[i].ParentID != parentID || channels[i].Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: channel %q", ErrAmbiguous, name)
		}
		c := channels[i]
		found = &c
	}
	return found, nil
}
