package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// InMemory is a Service backed by process memory. It exists for tests and
// local development; production uses the platform REST client.
type InMemory struct {
	mu       sync.Mutex
	seq      int
	botID    string
	roles    map[string]*models.Role
	channels map[string]*models.Channel
	members  map[string]*models.Member
	// messages per channel, oldest first
	messages  map[string][]models.Message
	reactions map[string][]string // messageID -> emojis added by the bot
}

// NewInMemory creates an empty in-memory directory containing only the bot
// member itself.
func NewInMemory(botName string) *InMemory {
	d := &InMemory{
		roles:     make(map[string]*models.Role),
		channels:  make(map[string]*models.Channel),
		members:   make(map[string]*models.Member),
		messages:  make(map[string][]models.Message),
		reactions: make(map[string][]string),
	}
	bot := d.addMemberLocked(botName, false)
	bot.Bot = true
	d.botID = bot.ID
	return d
}

func (d *InMemory) nextID(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s-%d", prefix, d.seq)
}

// AddMember registers a guild member, for seeding test fixtures.
func (d *InMemory) AddMember(name string, admin bool) models.Member {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.addMemberLocked(name, admin)
	return *m
}

func (d *InMemory) addMemberLocked(name string, admin bool) *models.Member {
	m := &models.Member{ID: d.nextID("member"), Name: name, Admin: admin}
	d.members[m.ID] = m
	return m
}

// DirectChannelID returns the private channel ID used for a member's DMs.
func (d *InMemory) DirectChannelID(memberID string) string {
	return "dm-" + memberID
}

// Reactions returns the emojis the bot added to a message.
func (d *InMemory) Reactions(messageID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.reactions[messageID]...)
}

// Self implements Service.
func (d *InMemory) Self(ctx context.Context) (models.Member, error) {
	return d.Member(ctx, d.botID)
}

// Roles implements Service.
func (d *InMemory) Roles(ctx context.Context) ([]models.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Role, 0, len(d.roles))
	for _, r := range d.roles {
		out = append(out, *r)
	}
	return out, nil
}

// Channels implements Service.
func (d *InMemory) Channels(ctx context.Context) ([]models.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Channel, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, *c)
	}
	return out, nil
}

// Members implements Service.
func (d *InMemory) Members(ctx context.Context) ([]models.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Member, 0, len(d.members))
	for _, m := range d.members {
		cp := *m
		cp.Roles = append([]string(nil), m.Roles...)
		out = append(out, cp)
	}
	return out, nil
}

// Member implements Service.
func (d *InMemory) Member(ctx context.Context, id string) (models.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[id]
	if !ok {
		return models.Member{}, ErrNotFound
	}
	cp := *m
	cp.Roles = append([]string(nil), m.Roles...)
	return cp, nil
}

// CreateRole implements Service.
func (d *InMemory) CreateRole(ctx context.Context, name string, color int) (models.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := &models.Role{ID: d.nextID("role"), Name: name, Color: color}
	d.roles[r.ID] = r
	return *r, nil
}

// RenameRole implements Service.
func (d *InMemory) RenameRole(ctx context.Context, id, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[id]
	if !ok {
		return ErrNotFound
	}
	r.Name = name
	return nil
}

// DeleteRole implements Service.
func (d *InMemory) DeleteRole(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.roles[id]; !ok {
		return ErrNotFound
	}
	delete(d.roles, id)
	for _, m := range d.members {
		m.Roles = removeString(m.Roles, id)
	}
	return nil
}

// CreateChannel implements Service.
func (d *InMemory) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &models.Channel{
		ID:       d.nextID("chan"),
		Name:     req.Name,
		Kind:     req.Kind,
		ParentID: req.ParentID,
		Topic:    req.Topic,
	}
	d.channels[c.ID] = c
	return *c, nil
}

// RenameChannel implements Service.
func (d *InMemory) RenameChannel(ctx context.Context, id, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[id]
	if !ok {
		return ErrNotFound
	}
	c.Name = name
	return nil
}

// SetChannelTopic implements Service.
func (d *InMemory) SetChannelTopic(ctx context.Context, id, topic string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[id]
	if !ok {
		return ErrNotFound
	}
	c.Topic = topic
	return nil
}

// DeleteChannel implements Service. Deleting a group channel orphans its
// children, matching platform behavior.
func (d *InMemory) DeleteChannel(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.channels[id]; !ok {
		return ErrNotFound
	}
	delete(d.channels, id)
	delete(d.messages, id)
	return nil
}

// GrantRole implements Service.
func (d *InMemory) GrantRole(ctx context.Context, memberID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[memberID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := d.roles[roleID]; !ok {
		return ErrNotFound
	}
	for _, id := range m.Roles {
		if id == roleID {
			return nil
		}
	}
	m.Roles = append(m.Roles, roleID)
	return nil
}

// RevokeRole implements Service.
func (d *InMemory) RevokeRole(ctx context.Context, memberID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[memberID]
	if !ok {
		return ErrNotFound
	}
	m.Roles = removeString(m.Roles, roleID)
	return nil
}

// History implements Service.
func (d *InMemory) History(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msgs := d.messages[channelID]
	out := make([]models.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Send implements Service.
func (d *InMemory) Send(ctx context.Context, channelID, content string) (models.Message, error) {
	return d.post(channelID, content)
}

// SendEmbed implements Service. The in-memory directory flattens embeds to
// "title\ndescription" for history assertions.
func (d *InMemory) SendEmbed(ctx context.Context, channelID string, embed models.Embed) (models.Message, error) {
	content := embed.Title
	if embed.Description != "" {
		if content != "" {
			content += "\n"
		}
		content += embed.Description
	}
	return d.post(channelID, content)
}

func (d *InMemory) post(channelID, content string) (models.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := models.Message{
		ID:        d.nextID("msg"),
		ChannelID: channelID,
		AuthorID:  d.botID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	d.messages[channelID] = append(d.messages[channelID], msg)
	return msg, nil
}

// EditMessage implements Service.
func (d *InMemory) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	msgs := d.messages[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			return nil
		}
	}
	return ErrNotFound
}

// DeleteMessage implements Service.
func (d *InMemory) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	msgs := d.messages[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			d.messages[channelID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DirectMessage implements Service.
func (d *InMemory) DirectMessage(ctx context.Context, memberID, content string) (models.Message, error) {
	d.mu.Lock()
	if _, ok := d.members[memberID]; !ok {
		d.mu.Unlock()
		return models.Message{}, ErrNotFound
	}
	d.mu.Unlock()
	msg, err := d.post(d.DirectChannelID(memberID), content)
	if err != nil {
		return models.Message{}, err
	}
	msg.Direct = true
	return msg, nil
}

// React implements Service.
func (d *InMemory) React(ctx context.Context, channelID, messageID, emoji string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reactions[messageID] = append(d.reactions[messageID], emoji)
	return nil
}

// SeedMessage appends a message authored by the given member, for test
// fixtures that need pre-existing history.
func (d *InMemory) SeedMessage(channelID, authorID, content string) models.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := models.Message{
		ID:        d.nextID("msg"),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	d.messages[channelID] = append(d.messages[channelID], msg)
	return msg
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
