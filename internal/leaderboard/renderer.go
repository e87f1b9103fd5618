// Package leaderboard recomputes and republishes the ranked score table of
// a category. The rendered message is the only persisted form; it is
// located again on every refresh by scanning the leaderboard channel for
// the bot's most recent message and edited in place.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
)

// maxEntries caps the rendered table.
const maxEntries = 20

// historyScan bounds how far back the renderer looks for its own message.
const historyScan = 50

// Renderer publishes category leaderboards.
type Renderer struct {
	dir directory.Service
	mgr *progression.Manager
}

// NewRenderer creates a Renderer.
func NewRenderer(dir directory.Service, mgr *progression.Manager) *Renderer {
	return &Renderer{dir: dir, mgr: mgr}
}

// Refresh recomputes the category's scores and rewrites the rendered
// message, creating it when none exists yet.
func (r *Renderer) Refresh(ctx context.Context, cat models.Category) error {
	if cat.LeaderboardID == "" {
		return fmt.Errorf("%w: leaderboard channel of category %d", directory.ErrNotFound, cat.ID)
	}

	entries, _, err := r.mgr.CategoryScores(ctx, cat)
	if err != nil {
		return err
	}
	body := Format(cat.Label, entries)

	self, err := r.dir.Self(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve bot identity: %w", err)
	}
	history, err := r.dir.History(ctx, cat.LeaderboardID, historyScan)
	if err != nil {
		return fmt.Errorf("failed to read leaderboard channel: %w", err)
	}
	for _, msg := range history {
		if msg.AuthorID != self.ID {
			continue
		}
		if err := r.dir.EditMessage(ctx, cat.LeaderboardID, msg.ID, body); err != nil {
			return fmt.Errorf("failed to edit leaderboard message: %w", err)
		}
		slog.Debug("leaderboard updated", "category", cat.ID, "entries", len(entries))
		return nil
	}

	if _, err := r.dir.Send(ctx, cat.LeaderboardID, body); err != nil {
		return fmt.Errorf("failed to post leaderboard message: %w", err)
	}
	slog.Info("leaderboard created", "category", cat.ID, "entries", len(entries))
	return nil
}

// Format renders the top entries as a fixed-width two-column table: names
// left-justified to the widest name, scores after a fixed gap.
func Format(label string, entries []models.LeaderboardEntry) string {
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard - %s\n```\n", label)
	if len(entries) == 0 {
		b.WriteString("no scores yet\n")
	} else {
		width := 0
		for _, e := range entries {
			if len(e.Name) > width {
				width = len(e.Name)
			}
		}
		for _, e := range entries {
			fmt.Fprintf(&b, "%-*s  %d\n", width, e.Name, e.Score)
		}
	}
	b.WriteString("```")
	return b.String()
}
