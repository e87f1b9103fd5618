// Package repair restores the membership invariant: for every member and
// category, exactly one of {some gating role, the completion role} must be
// held. Members who drifted (typically by joining before any roles
// existed) are placed onto level 1, or onto the completion role when the
// category has no levels.
package repair

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
)

// Fixer heals drifted members, on demand and on a periodic sweep.
type Fixer struct {
	dir      directory.Service
	mgr      *progression.Manager
	interval time.Duration
}

// NewFixer creates a Fixer. A non-positive interval disables nothing here;
// it only defaults the periodic sweep to 15 minutes.
func NewFixer(dir directory.Service, mgr *progression.Manager, interval time.Duration) *Fixer {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Fixer{dir: dir, mgr: mgr, interval: interval}
}

// FixMember checks one member against every category and repairs missing
// standings. It returns the number of categories repaired.
func (f *Fixer) FixMember(ctx context.Context, memberID string) (int, error) {
	member, err := f.dir.Member(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return f.fix(ctx, member)
}

// FixAll repairs every non-bot member and returns the number of repairs
// applied.
func (f *Fixer) FixAll(ctx context.Context) (int, error) {
	members, err := f.dir.Members(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, member := range members {
		if member.Bot {
			continue
		}
		n, err := f.fix(ctx, member)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f *Fixer) fix(ctx context.Context, member models.Member) (int, error) {
	if member.Bot {
		return 0, nil
	}
	cats, err := f.mgr.Index().Categories(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, cat := range cats {
		prog, err := f.mgr.Progress(ctx, cat, member)
		if err != nil {
			return fixed, err
		}
		if prog.State != models.ProgressUninitialized {
			continue
		}
		if _, _, err := f.mgr.InitMember(ctx, cat, member.ID); err != nil {
			return fixed, err
		}
		slog.Info("member repaired", "member", member.ID, "category", cat.ID)
		fixed++
	}
	return fixed, nil
}

// Start begins the periodic sweep in a goroutine.
func (f *Fixer) Start(ctx context.Context) {
	go f.run(ctx)
}

// run is the main loop for the repair sweep.
func (f *Fixer) run(ctx context.Context) {
	slog.Info("repair sweep started", "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("repair sweep stopped")
			return
		case <-ticker.C:
			if n, err := f.FixAll(ctx); err != nil {
				slog.Error("repair sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("repair sweep applied fixes", "count", n)
			}
		}
	}
}
