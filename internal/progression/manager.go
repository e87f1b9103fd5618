// Package progression drives the puzzle-progression state machine. All
// durable state lives in the external directory; this package owns the
// workflows that keep the denormalized objects of a category (group
// channel, leaderboard channel, level channels, solution channels, gating
// roles, completion role) mutually consistent.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/naming"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

// Common errors
var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidRange  = errors.New("invalid level range")
)

// notifyConcurrency bounds the DM fan-out of Notify.
const notifyConcurrency = 4

// Manager executes progression workflows against the directory. Mutating
// workflows hold a per-category lock for their whole duration so that two
// concurrent commands cannot interleave half-applied changes to the same
// category.
type Manager struct {
	dir directory.Service
	idx *directory.Index
	tx  texts.Texts

	// notifyRoleID is the opt-in notification role configured at startup.
	notifyRoleID string

	locksMu sync.Mutex
	locks   map[int]*sync.Mutex
	// createMu serializes category creation, which allocates IDs before
	// any per-category lock can exist.
	createMu sync.Mutex

	selfMu sync.Mutex
	selfID string
}

// NewManager creates a Manager over the given directory.
func NewManager(dir directory.Service, tx texts.Texts, notifyRoleID string) *Manager {
	return &Manager{
		dir:          dir,
		idx:          directory.NewIndex(dir),
		tx:           tx,
		notifyRoleID: notifyRoleID,
		locks:        make(map[int]*sync.Mutex),
	}
}

// Index exposes the read-side queries backing this manager.
func (m *Manager) Index() *directory.Index {
	return m.idx
}

// lockCategory acquires the mutex for a category ID and returns its
// unlock function.
func (m *Manager) lockCategory(id int) func() {
	m.locksMu.Lock()
	mu, ok := m.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[id] = mu
	}
	m.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// selfID resolves and caches the bot's own member ID.
func (m *Manager) self(ctx context.Context) (string, error) {
	m.selfMu.Lock()
	defer m.selfMu.Unlock()
	if m.selfID != "" {
		return m.selfID, nil
	}
	self, err := m.dir.Self(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve bot identity: %w", err)
	}
	m.selfID = self.ID
	return m.selfID, nil
}

// CreateCategory allocates the next category ID and creates the group
// channel, leaderboard channel and completion role. Every current member
// except the bot is granted the completion role: with zero levels the
// category is vacuously complete, and Notify later moves those members
// onto the first level.
func (m *Manager) CreateCategory(ctx context.Context, label string) (models.Category, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	id, err := m.idx.NextCategoryID(ctx)
	if err != nil {
		return models.Category{}, err
	}

	group, err := m.dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name: naming.Category(id, label),
		Kind: models.ChannelGroup,
	})
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to create category group: %w", err)
	}

	board, err := m.dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name:     naming.LeaderboardChannel,
		Kind:     models.ChannelText,
		ParentID: group.ID,
		Overwrites: []models.Overwrite{
			{TargetID: models.EveryoneTarget, Read: true, Send: false},
		},
	})
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to create leaderboard channel: %w", err)
	}

	role, err := m.dir.CreateRole(ctx, naming.CompletionRole(label), rand.IntN(0x1000000))
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to create completion role: %w", err)
	}

	selfID, err := m.self(ctx)
	if err != nil {
		return models.Category{}, err
	}
	members, err := m.dir.Members(ctx)
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to list members: %w", err)
	}
	for _, member := range members {
		if member.ID == selfID {
			continue
		}
		if err := m.dir.GrantRole(ctx, member.ID, role.ID); err != nil {
			return models.Category{}, fmt.Errorf("failed to grant completion role to %s: %w", member.ID, err)
		}
	}

	slog.Info("category created", "id", id, "label", label, "group", group.ID)

	return models.Category{
		ID:             id,
		Label:          label,
		GroupID:        group.ID,
		CompletionRole: &role,
		LeaderboardID:  board.ID,
	}, nil
}

// CreateLevel allocates the next level number of a category and creates
// its gating role, discussion channel and solution channel. The discussion
// channel is read-only for gated members and hidden from everyone else;
// the solution channel is visible to the bot alone.
func (m *Manager) CreateLevel(ctx context.Context, catID int) (models.Category, models.Level, error) {
	unlock := m.lockCategory(catID)
	defer unlock()

	cat, err := m.idx.Category(ctx, catID)
	if err != nil {
		return models.Category{}, models.Level{}, err
	}

	n, err := m.idx.NextLevelNumber(ctx, cat.Label)
	if err != nil {
		return models.Category{}, models.Level{}, err
	}

	role, err := m.dir.CreateRole(ctx, naming.LevelRole(cat.Label, n), 0)
	if err != nil {
		return models.Category{}, models.Level{}, fmt.Errorf("failed to create gating role: %w", err)
	}

	channel, err := m.dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name:     naming.LevelChannel(n),
		Kind:     models.ChannelText,
		ParentID: cat.GroupID,
		Overwrites: []models.Overwrite{
			{TargetID: models.EveryoneTarget, Read: false},
			{TargetID: role.ID, Read: true, Send: false, React: false},
		},
	})
	if err != nil {
		return models.Category{}, models.Level{}, fmt.Errorf("failed to create level channel: %w", err)
	}

	solution, err := m.dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name:     naming.SolutionChannel(n),
		Kind:     models.ChannelText,
		ParentID: cat.GroupID,
		Overwrites: []models.Overwrite{
			{TargetID: models.EveryoneTarget, Read: false},
		},
	})
	if err != nil {
		return models.Category{}, models.Level{}, fmt.Errorf("failed to create solution channel: %w", err)
	}

	slog.Info("level created", "category", cat.ID, "level", n)

	return cat, models.Level{Number: n, Channel: &channel, Solution: &solution, Role: &role}, nil
}

// PostRiddle publishes the riddle text into a level's discussion channel.
func (m *Manager) PostRiddle(ctx context.Context, cat models.Category, lvl models.Level, riddle string) error {
	if lvl.Channel == nil {
		return fmt.Errorf("%w: level %d of category %d has no channel", ErrLevelNotFound, lvl.Number, cat.ID)
	}
	_, err := m.dir.SendEmbed(ctx, lvl.Channel.ID, models.Embed{
		Title:       fmt.Sprintf("%s - Level %d", cat.Label, lvl.Number),
		Description: riddle,
	})
	if err != nil {
		return fmt.Errorf("failed to post riddle: %w", err)
	}
	return nil
}

// DeleteCategory removes every level's objects, then the leaderboard
// channel, the group and the completion role, children before parent.
// Missing children are skipped: a partially deleted category must still be
// removable.
func (m *Manager) DeleteCategory(ctx context.Context, catID int) error {
	unlock := m.lockCategory(catID)
	defer unlock()

	cat, err := m.idx.Category(ctx, catID)
	if err != nil {
		return err
	}

	levels, err := m.idx.Levels(ctx, cat.Label)
	if err != nil {
		return err
	}
	for _, n := range levels {
		if _, err := m.deleteLevelObjects(ctx, cat, n); err != nil {
			return err
		}
	}

	if cat.LeaderboardID != "" {
		if err := m.dir.DeleteChannel(ctx, cat.LeaderboardID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("failed to delete leaderboard channel: %w", err)
		}
	}
	if err := m.dir.DeleteChannel(ctx, cat.GroupID); err != nil && !errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("failed to delete category group: %w", err)
	}
	if cat.CompletionRole != nil {
		if err := m.dir.DeleteRole(ctx, cat.CompletionRole.ID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("failed to delete completion role: %w", err)
		}
	}

	slog.Info("category deleted", "id", catID, "label", cat.Label, "levels", len(levels))
	return nil
}

// DeleteLevels removes levels from..to inclusive and renumbers every
// remaining higher level downward to restore density. It returns the level
// numbers that actually existed.
func (m *Manager) DeleteLevels(ctx context.Context, catID, from, to int) ([]int, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidRange, from, to)
	}

	unlock := m.lockCategory(catID)
	defer unlock()

	cat, err := m.idx.Category(ctx, catID)
	if err != nil {
		return nil, err
	}

	var deleted []int
	for n := from; n <= to; n++ {
		existed, err := m.deleteLevelObjects(ctx, cat, n)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted = append(deleted, n)
		}
	}

	// Renumber everything above the deleted range. Renames must all land;
	// a failure here leaves the numbering sparse with no rollback, so it
	// is surfaced to the operator immediately.
	span := to - from + 1
	remaining, err := m.idx.Levels(ctx, cat.Label)
	if err != nil {
		return deleted, err
	}
	for _, n := range remaining {
		if n <= to {
			continue
		}
		if err := m.renumberLevel(ctx, cat, n, n-span); err != nil {
			return deleted, err
		}
	}

	slog.Info("levels deleted", "category", catID, "from", from, "to", to, "deleted", deleted)
	return deleted, nil
}

// deleteLevelObjects removes the channels and role of one level, skipping
// whatever is already gone, and reports whether anything existed.
func (m *Manager) deleteLevelObjects(ctx context.Context, cat models.Category, n int) (bool, error) {
	lvl, err := m.idx.Level(ctx, cat, n)
	if err != nil {
		return false, err
	}
	existed := false
	if lvl.Channel != nil {
		if err := m.dir.DeleteChannel(ctx, lvl.Channel.ID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return existed, fmt.Errorf("failed to delete level channel %d: %w", n, err)
		}
		existed = true
	}
	if lvl.Solution != nil {
		if err := m.dir.DeleteChannel(ctx, lvl.Solution.ID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return existed, fmt.Errorf("failed to delete solution channel %d: %w", n, err)
		}
		existed = true
	}
	if lvl.Role != nil {
		if err := m.dir.DeleteRole(ctx, lvl.Role.ID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return existed, fmt.Errorf("failed to delete gating role %d: %w", n, err)
		}
		existed = true
	}
	return existed, nil
}

// renumberLevel renames the channels and role of level n to level target.
func (m *Manager) renumberLevel(ctx context.Context, cat models.Category, n, target int) error {
	lvl, err := m.idx.Level(ctx, cat, n)
	if err != nil {
		return err
	}
	if lvl.Channel != nil {
		if err := m.dir.RenameChannel(ctx, lvl.Channel.ID, naming.LevelChannel(target)); err != nil {
			return fmt.Errorf("failed to renumber level channel %d -> %d: %w", n, target, err)
		}
	}
	if lvl.Solution != nil {
		if err := m.dir.RenameChannel(ctx, lvl.Solution.ID, naming.SolutionChannel(target)); err != nil {
			return fmt.Errorf("failed to renumber solution channel %d -> %d: %w", n, target, err)
		}
	}
	if lvl.Role != nil {
		if err := m.dir.RenameRole(ctx, lvl.Role.ID, naming.LevelRole(cat.Label, target)); err != nil {
			return fmt.Errorf("failed to renumber gating role %d -> %d: %w", n, target, err)
		}
	}
	return nil
}

// Notify moves every completion-role holder of a category onto the given
// level and sends a direct pointer to members who opted into
// notifications. It returns the number of members notified by DM.
func (m *Manager) Notify(ctx context.Context, catID, levelN int) (int, error) {
	unlock := m.lockCategory(catID)
	defer unlock()

	cat, err := m.idx.Category(ctx, catID)
	if err != nil {
		return 0, err
	}
	if cat.CompletionRole == nil {
		return 0, fmt.Errorf("%w: completion role of category %d", directory.ErrNotFound, catID)
	}
	lvl, err := m.idx.Level(ctx, cat, levelN)
	if err != nil {
		return 0, err
	}
	if lvl.Role == nil || lvl.Channel == nil {
		return 0, fmt.Errorf("%w: level %d of category %d", ErrLevelNotFound, levelN, catID)
	}

	members, err := m.dir.Members(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	// Role moves stay sequential so a partial failure leaves an
	// inspectable prefix of moved members.
	var toNotify []models.Member
	for _, member := range members {
		if !member.HasRole(cat.CompletionRole.ID) {
			continue
		}
		if err := m.dir.RevokeRole(ctx, member.ID, cat.CompletionRole.ID); err != nil {
			return 0, fmt.Errorf("failed to revoke completion role from %s: %w", member.ID, err)
		}
		if err := m.dir.GrantRole(ctx, member.ID, lvl.Role.ID); err != nil {
			return 0, fmt.Errorf("failed to grant gating role to %s: %w", member.ID, err)
		}
		if m.notifyRoleID != "" && member.HasRole(m.notifyRoleID) {
			toNotify = append(toNotify, member)
		}
	}

	body := texts.Render(m.tx.NotifyDM, map[string]string{
		"channel": models.ChannelMention(lvl.Channel.ID),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(notifyConcurrency)
	for _, member := range toNotify {
		g.Go(func() error {
			if _, err := m.dir.DirectMessage(gctx, member.ID, body); err != nil {
				return fmt.Errorf("failed to notify %s: %w", member.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return len(toNotify), err
	}

	slog.Info("members notified", "category", catID, "level", levelN, "notified", len(toNotify))
	return len(toNotify), nil
}
