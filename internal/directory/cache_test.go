package directory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// countingService wraps InMemory and counts listing calls that reach it.
type countingService struct {
	*InMemory
	roleLists int64
}

func (c *countingService) Roles(ctx context.Context) ([]models.Role, error) {
	atomic.AddInt64(&c.roleLists, 1)
	return c.InMemory.Roles(ctx)
}

func TestCachedServesSnapshot(t *testing.T) {
	inner := &countingService{InMemory: NewInMemory("bot")}
	ctx := context.Background()
	if _, err := inner.CreateRole(ctx, "one", 0); err != nil {
		t.Fatalf("seed role: %v", err)
	}

	cached := NewCached(inner, time.Minute)
	for i := 0; i < 3; i++ {
		roles, err := cached.Roles(ctx)
		if err != nil {
			t.Fatalf("Roles: %v", err)
		}
		if len(roles) != 1 {
			t.Fatalf("roles = %v", roles)
		}
	}
	if n := atomic.LoadInt64(&inner.roleLists); n != 1 {
		t.Errorf("underlying service hit %d times, want 1", n)
	}
}

func TestCachedInvalidatesOnMutation(t *testing.T) {
	inner := &countingService{InMemory: NewInMemory("bot")}
	cached := NewCached(inner, time.Minute)
	ctx := context.Background()

	if _, err := cached.Roles(ctx); err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if _, err := cached.CreateRole(ctx, "new", 0); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	roles, err := cached.Roles(ctx)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "new" {
		t.Errorf("mutation not visible through cache: %v", roles)
	}
	if n := atomic.LoadInt64(&inner.roleLists); n != 2 {
		t.Errorf("underlying service hit %d times, want 2", n)
	}
}

func TestCachedExplicitInvalidate(t *testing.T) {
	inner := &countingService{InMemory: NewInMemory("bot")}
	cached := NewCached(inner, time.Minute)
	ctx := context.Background()

	if _, err := cached.Roles(ctx); err != nil {
		t.Fatalf("Roles: %v", err)
	}
	// Simulate a manual admin mutation that bypassed the cache.
	if _, err := inner.CreateRole(ctx, "manual", 0); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	cached.Invalidate()

	roles, err := cached.Roles(ctx)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(roles) != 1 {
		t.Errorf("roles after invalidate = %v", roles)
	}
}

func TestCachedGrantRoleDropsMembers(t *testing.T) {
	inner := NewInMemory("bot")
	member := inner.AddMember("alice", false)
	ctx := context.Background()
	role, err := inner.CreateRole(ctx, "r", 0)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	cached := NewCached(inner, time.Minute)
	if _, err := cached.Members(ctx); err != nil {
		t.Fatalf("Members: %v", err)
	}
	if err := cached.GrantRole(ctx, member.ID, role.ID); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	members, err := cached.Members(ctx)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	for _, m := range members {
		if m.ID == member.ID && !m.HasRole(role.ID) {
			t.Error("grant not visible through cache")
		}
	}
}
