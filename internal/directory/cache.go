package directory

import (
	"context"
	"sync"
	"time"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// Cached is a read-through decorator over a Service. Listing calls are
// served from a snapshot until the TTL elapses or a mutation routed
// through this decorator invalidates them. The directory stays the single
// source of truth: nothing is ever written to the cache that was not read
// back from the platform.
type Cached struct {
	Service

	ttl time.Duration

	mu         sync.RWMutex
	roles      []models.Role
	rolesAt    time.Time
	channels   []models.Channel
	channelsAt time.Time
	members    []models.Member
	membersAt  time.Time
}

// NewCached wraps dir with a read-through cache. A non-positive TTL
// defaults to 30 seconds.
func NewCached(dir Service, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{Service: dir, ttl: ttl}
}

// Invalidate drops every cached snapshot. Mutations performed outside this
// decorator (manual admin action) become visible after the next call.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles, c.channels, c.members = nil, nil, nil
}

// Roles implements Service.
func (c *Cached) Roles(ctx context.Context) ([]models.Role, error) {
	c.mu.RLock()
	if c.roles != nil && time.Since(c.rolesAt) < c.ttl {
		out := append([]models.Role(nil), c.roles...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	roles, err := c.Service.Roles(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.roles = append([]models.Role(nil), roles...)
	c.rolesAt = time.Now()
	c.mu.Unlock()
	return roles, nil
}

// Channels implements Service.
func (c *Cached) Channels(ctx context.Context) ([]models.Channel, error) {
	c.mu.RLock()
	if c.channels != nil && time.Since(c.channelsAt) < c.ttl {
		out := append([]models.Channel(nil), c.channels...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	channels, err := c.Service.Channels(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.channels = append([]models.Channel(nil), channels...)
	c.channelsAt = time.Now()
	c.mu.Unlock()
	return channels, nil
}

// Members implements Service.
func (c *Cached) Members(ctx context.Context) ([]models.Member, error) {
	c.mu.RLock()
	if c.members != nil && time.Since(c.membersAt) < c.ttl {
		out := append([]models.Member(nil), c.members...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	members, err := c.Service.Members(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.members = append([]models.Member(nil), members...)
	c.membersAt = time.Now()
	c.mu.Unlock()
	return members, nil
}

func (c *Cached) dropRoles() {
	c.mu.Lock()
	c.roles = nil
	c.mu.Unlock()
}

func (c *Cached) dropChannels() {
	c.mu.Lock()
	c.channels = nil
	c.mu.Unlock()
}

func (c *Cached) dropMembers() {
	c.mu.Lock()
	c.members = nil
	c.mu.Unlock()
}

// CreateRole implements Service.
func (c *Cached) CreateRole(ctx context.Context, name string, color int) (models.Role, error) {
	role, err := c.Service.CreateRole(ctx, name, color)
	if err == nil {
		c.dropRoles()
	}
	return role, err
}

// RenameRole implements Service.
func (c *Cached) RenameRole(ctx context.Context, id, name string) error {
	err := c.Service.RenameRole(ctx, id, name)
	if err == nil {
		c.dropRoles()
	}
	return err
}

// DeleteRole implements Service. Member snapshots are dropped too since
// the platform strips deleted roles from members.
func (c *Cached) DeleteRole(ctx context.Context, id string) error {
	err := c.Service.DeleteRole(ctx, id)
	if err == nil {
		c.dropRoles()
		c.dropMembers()
	}
	return err
}

// CreateChannel implements Service.
func (c *Cached) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error) {
	ch, err := c.Service.CreateChannel(ctx, req)
	if err == nil {
		c.dropChannels()
	}
	return ch, err
}

// RenameChannel implements Service.
func (c *Cached) RenameChannel(ctx context.Context, id, name string) error {
	err := c.Service.RenameChannel(ctx, id, name)
	if err == nil {
		c.dropChannels()
	}
	return err
}

// SetChannelTopic implements Service.
func (c *Cached) SetChannelTopic(ctx context.Context, id, topic string) error {
	err := c.Service.SetChannelTopic(ctx, id, topic)
	if err == nil {
		c.dropChannels()
	}
	return err
}

// DeleteChannel implements Service.
func (c *Cached) DeleteChannel(ctx context.Context, id string) error {
	err := c.Service.DeleteChannel(ctx, id)
	if err == nil {
		c.dropChannels()
	}
	return err
}

// GrantRole implements Service.
func (c *Cached) GrantRole(ctx context.Context, memberID, roleID string) error {
	err := c.Service.GrantRole(ctx, memberID, roleID)
	if err == nil {
		c.dropMembers()
	}
	return err
}

// RevokeRole implements Service.
func (c *Cached) RevokeRole(ctx context.Context, memberID, roleID string) error {
	err := c.Service.RevokeRole(ctx, memberID, roleID)
	if err == nil {
		c.dropMembers()
	}
	return err
}
