package repair

import (
	"context"
	"testing"
	"time"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

func holdsExactlyOne(t *testing.T, mgr *progression.Manager, dir *directory.InMemory, cat models.Category, memberID string) {
	t.Helper()
	member, err := dir.Member(context.Background(), memberID)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	prog, err := mgr.Progress(context.Background(), cat, member)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if prog.State == models.ProgressUninitialized {
		t.Errorf("member %s still uninitialized in category %d", memberID, cat.ID)
	}
}

func TestFixMemberGrantsMissingLevelRole(t *testing.T) {
	dir := directory.NewInMemory("riddle-bot")
	mgr := progression.NewManager(dir, texts.Default(), "")
	f := NewFixer(dir, mgr, time.Hour)
	ctx := context.Background()

	cat, err := mgr.CreateCategory(ctx, "Math")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, _, err := mgr.CreateLevel(ctx, cat.ID); err != nil {
		t.Fatalf("CreateLevel: %v", err)
	}

	// Joined after the category: no roles at all.
	late := dir.AddMember("latecomer", false)

	n, err := f.FixMember(ctx, late.ID)
	if err != nil {
		t.Fatalf("FixMember: %v", err)
	}
	if n != 1 {
		t.Errorf("repairs = %d, want 1", n)
	}
	holdsExactlyOne(t, mgr, dir, cat, late.ID)

	// Repair is idempotent.
	n, err = f.FixMember(ctx, late.ID)
	if err != nil {
		t.Fatalf("FixMember: %v", err)
	}
	if n != 0 {
		t.Errorf("second run repairs = %d, want 0", n)
	}
}

func TestFixMemberZeroLevelCategoryGrantsCompletion(t *testing.T) {
	dir := directory.NewInMemory("riddle-bot")
	mgr := progression.NewManager(dir, texts.Default(), "")
	f := NewFixer(dir, mgr, time.Hour)
	ctx := context.Background()

	cat, err := mgr.CreateCategory(ctx, "Empty")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	late := dir.AddMember("latecomer", false)

	if _, err := f.FixMember(ctx, late.ID); err != nil {
		t.Fatalf("FixMember: %v", err)
	}
	member, err := dir.Member(ctx, late.ID)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if !member.HasRole(cat.CompletionRole.ID) {
		t.Error("completion role not granted for zero-level category")
	}
}

func TestFixAllRepairsEveryoneButBots(t *testing.T) {
	dir := directory.NewInMemory("riddle-bot")
	mgr := progression.NewManager(dir, texts.Default(), "")
	f := NewFixer(dir, mgr, time.Hour)
	ctx := context.Background()

	cat, err := mgr.CreateCategory(ctx, "Math")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, _, err := mgr.CreateLevel(ctx, cat.ID); err != nil {
		t.Fatalf("CreateLevel: %v", err)
	}

	a := dir.AddMember("a", false)
	b := dir.AddMember("b", false)

	n, err := f.FixAll(ctx)
	if err != nil {
		t.Fatalf("FixAll: %v", err)
	}
	if n != 2 {
		t.Errorf("repairs = %d, want 2", n)
	}
	holdsExactlyOne(t, mgr, dir, cat, a.ID)
	holdsExactlyOne(t, mgr, dir, cat, b.ID)

	bot, err := dir.Self(ctx)
	if err != nil {
		t.Fatalf("Self: %v", err)
	}
	if len(bot.Roles) != 0 {
		t.Errorf("bot received roles: %v", bot.Roles)
	}
}
