package leaderboard

import (
	"context"
	"strings"
	"testing"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

func setup(t *testing.T) (*Renderer, *progression.Manager, *directory.InMemory) {
	t.Helper()
	dir := directory.NewInMemory("riddle-bot")
	mgr := progression.NewManager(dir, texts.Default(), "")
	return NewRenderer(dir, mgr), mgr, dir
}

func TestFormatAlignsColumns(t *testing.T) {
	out := Format("Math", []models.LeaderboardEntry{
		{Name: "alexandra", Score: 12},
		{Name: "bo", Score: 3},
	})
	if !strings.Contains(out, "alexandra  12\n") {
		t.Errorf("widest name misaligned:\n%s", out)
	}
	if !strings.Contains(out, "bo         3\n") {
		t.Errorf("short name not padded to widest:\n%s", out)
	}
}

func TestFormatCapsAtTwenty(t *testing.T) {
	entries := make([]models.LeaderboardEntry, 25)
	for i := range entries {
		entries[i] = models.LeaderboardEntry{Name: "member", Score: 25 - i}
	}
	out := Format("Math", entries)
	if got := strings.Count(out, "\n") - 2; got != 20 {
		t.Errorf("rendered %d rows, want 20:\n%s", got, out)
	}
}

func TestFormatEmpty(t *testing.T) {
	out := Format("Math", nil)
	if !strings.Contains(out, "no scores yet") {
		t.Errorf("empty leaderboard rendering:\n%s", out)
	}
}

func TestRefreshCreatesThenEditsInPlace(t *testing.T) {
	r, mgr, dir := setup(t)
	ctx := context.Background()

	dir.AddMember("alice", false)
	cat, err := mgr.CreateCategory(ctx, "Math")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	if err := r.Refresh(ctx, cat); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	history, err := dir.History(ctx, cat.LeaderboardID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("messages after first refresh = %d, want 1", len(history))
	}
	first := history[0]

	if err := r.Refresh(ctx, cat); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	history, err = dir.History(ctx, cat.LeaderboardID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("messages after second refresh = %d, want 1 (edit in place)", len(history))
	}
	if history[0].ID != first.ID {
		t.Error("refresh replaced the message instead of editing it")
	}
}

func TestRefreshScoresAndOrder(t *testing.T) {
	r, mgr, dir := setup(t)
	ctx := context.Background()

	alice := dir.AddMember("alice", false)
	bob := dir.AddMember("bob", false)
	admin := dir.AddMember("admin", true)
	_ = admin

	cat, err := mgr.CreateCategory(ctx, "Math")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := mgr.CreateLevel(ctx, cat.ID); err != nil {
			t.Fatalf("CreateLevel: %v", err)
		}
	}

	// bob drops to level 2 (score 1); alice stays a master (score 3).
	lvl2, err := mgr.Index().Level(ctx, cat, 2)
	if err != nil {
		t.Fatalf("Level: %v", err)
	}
	if err := dir.RevokeRole(ctx, bob.ID, cat.CompletionRole.ID); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if err := dir.GrantRole(ctx, bob.ID, lvl2.Role.ID); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	entries, count, err := mgr.CategoryScores(ctx, cat)
	if err != nil {
		t.Fatalf("CategoryScores: %v", err)
	}
	if count != 3 {
		t.Errorf("level count = %d, want 3", count)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v (admins must be excluded)", entries)
	}
	if entries[0].MemberID != alice.ID || entries[0].Score != 3 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].MemberID != bob.ID || entries[1].Score != 1 {
		t.Errorf("second entry = %+v", entries[1])
	}

	if err := r.Refresh(ctx, cat); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	history, err := dir.History(ctx, cat.LeaderboardID, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	body := history[0].Content
	if !strings.Contains(body, "alice") || !strings.Contains(body, "bob") {
		t.Errorf("rendered board:\n%s", body)
	}
	if strings.Index(body, "alice") > strings.Index(body, "bob") {
		t.Errorf("descending order violated:\n%s", body)
	}
}
