package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/naming"
)

func seedCategory(t *testing.T, dir *InMemory, id int, label string, levels int) models.Category {
	t.Helper()
	ctx := context.Background()

	group, err := dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name: naming.Category(id, label),
		Kind: models.ChannelGroup,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	lb, err := dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name:     naming.LeaderboardChannel,
		Kind:     models.ChannelText,
		ParentID: group.ID,
	})
	if err != nil {
		t.Fatalf("create leaderboard: %v", err)
	}
	role, err := dir.CreateRole(ctx, naming.CompletionRole(label), 0)
	if err != nil {
		t.Fatalf("create completion role: %v", err)
	}

	for n := 1; n <= levels; n++ {
		if _, err := dir.CreateRole(ctx, naming.LevelRole(label, n), 0); err != nil {
			t.Fatalf("create level role: %v", err)
		}
		if _, err := dir.CreateChannel(ctx, models.CreateChannelRequest{
			Name: naming.LevelChannel(n), Kind: models.ChannelText, ParentID: group.ID,
		}); err != nil {
			t.Fatalf("create level channel: %v", err)
		}
		if _, err := dir.CreateChannel(ctx, models.CreateChannelRequest{
			Name: naming.SolutionChannel(n), Kind: models.ChannelText, ParentID: group.ID,
		}); err != nil {
			t.Fatalf("create solution channel: %v", err)
		}
	}

	return models.Category{ID: id, Label: label, GroupID: group.ID, CompletionRole: &role, LeaderboardID: lb.ID}
}

func TestCategoriesOrderedByID(t *testing.T) {
	dir := NewInMemory("bot")
	seedCategory(t, dir, 3, "History", 0)
	seedCategory(t, dir, 1, "Math", 2)

	idx := NewIndex(dir)
	cats, err := idx.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	if cats[0].ID != 1 || cats[0].Label != "Math" {
		t.Errorf("first category = %+v", cats[0])
	}
	if cats[1].ID != 3 || cats[1].Label != "History" {
		t.Errorf("second category = %+v", cats[1])
	}
	if cats[0].CompletionRole == nil {
		t.Error("completion role not attached")
	}
	if cats[0].LeaderboardID == "" {
		t.Error("leaderboard channel not attached")
	}
}

func TestNextCategoryID(t *testing.T) {
	dir := NewInMemory("bot")
	idx := NewIndex(dir)
	ctx := context.Background()

	next, err := idx.NextCategoryID(ctx)
	if err != nil {
		t.Fatalf("NextCategoryID: %v", err)
	}
	if next != 1 {
		t.Errorf("empty guild: next id = %d, want 1", next)
	}

	seedCategory(t, dir, 5, "Math", 0)
	next, err = idx.NextCategoryID(ctx)
	if err != nil {
		t.Fatalf("NextCategoryID: %v", err)
	}
	if next != 6 {
		t.Errorf("next id = %d, want 6", next)
	}
}

func TestLevelsSortedAndCounted(t *testing.T) {
	dir := NewInMemory("bot")
	seedCategory(t, dir, 1, "Math", 3)
	idx := NewIndex(dir)
	ctx := context.Background()

	levels, err := idx.Levels(ctx, "Math")
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	want := []int{1, 2, 3}
	if len(levels) != len(want) {
		t.Fatalf("levels = %v, want %v", levels, want)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("levels = %v, want %v", levels, want)
		}
	}

	next, err := idx.NextLevelNumber(ctx, "Math")
	if err != nil {
		t.Fatalf("NextLevelNumber: %v", err)
	}
	if next != 4 {
		t.Errorf("next level = %d, want 4", next)
	}
}

func TestLevelResolvesObjects(t *testing.T) {
	dir := NewInMemory("bot")
	cat := seedCategory(t, dir, 1, "Math", 2)
	idx := NewIndex(dir)

	lvl, err := idx.Level(context.Background(), cat, 2)
	if err != nil {
		t.Fatalf("Level: %v", err)
	}
	if lvl.Channel == nil || lvl.Channel.Name != "level-2" {
		t.Errorf("channel = %+v", lvl.Channel)
	}
	if lvl.Solution == nil || lvl.Solution.Name != "solution-2" {
		t.Errorf("solution = %+v", lvl.Solution)
	}
	if lvl.Role == nil || lvl.Role.Name != "Math - Level 2" {
		t.Errorf("role = %+v", lvl.Role)
	}

	missing, err := idx.Level(context.Background(), cat, 9)
	if err != nil {
		t.Fatalf("Level(9): %v", err)
	}
	if missing.Exists() {
		t.Errorf("level 9 should not exist, got %+v", missing)
	}
}

func TestDuplicateCategoryIDIsAmbiguous(t *testing.T) {
	dir := NewInMemory("bot")
	seedCategory(t, dir, 1, "Math", 0)
	ctx := context.Background()
	if _, err := dir.CreateChannel(ctx, models.CreateChannelRequest{
		Name: naming.Category(1, "Other"), Kind: models.ChannelGroup,
	}); err != nil {
		t.Fatalf("create duplicate group: %v", err)
	}

	idx := NewIndex(dir)
	if _, err := idx.Categories(ctx); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestDuplicateCompletionRoleIsAmbiguous(t *testing.T) {
	dir := NewInMemory("bot")
	seedCategory(t, dir, 1, "Math", 0)
	ctx := context.Background()
	if _, err := dir.CreateRole(ctx, naming.CompletionRole("Math"), 0); err != nil {
		t.Fatalf("create duplicate role: %v", err)
	}

	idx := NewIndex(dir)
	if _, err := idx.Categories(ctx); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestCategoryNotFound(t *testing.T) {
	dir := NewInMemory("bot")
	idx := NewIndex(dir)
	if _, err := idx.Category(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
