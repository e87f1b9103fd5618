// Package bot assembles gateway events into engine behavior: inbound
// messages feed pending conversations first and the command dispatcher
// second, reactions on the settings message toggle the notification role,
// and joining members are greeted and placed into every category.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/terra-clan/riddle-engine/internal/command"
	"github.com/terra-clan/riddle-engine/internal/conversation"
	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/repair"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

// BellEmoji is the reaction that opts a member into level notifications.
const BellEmoji = "\U0001F514"

// settingsTopicKey marks the settings channel topic entry holding the
// published settings message ID, so restarts can re-arm the toggle.
const settingsTopicKey = "settings-message="

// Bot wires gateway events to the engine.
type Bot struct {
	dir        directory.Service
	dispatcher *command.Dispatcher
	waiter     *conversation.Waiter
	fixer      *repair.Fixer
	tx         texts.Texts

	prefix          string
	settingsChannel string
	notifyRole      string

	mu            sync.Mutex
	selfID        string
	settingsMsgID string
}

// New creates a Bot. settingsChannel and notifyRole may be empty, which
// disables the settings toggle. The dispatcher is wired afterwards via
// SetDispatcher because it takes the Bot as its settings publisher.
func New(dir directory.Service, waiter *conversation.Waiter, fixer *repair.Fixer, tx texts.Texts, prefix, settingsChannel, notifyRole string) *Bot {
	return &Bot{
		dir:             dir,
		waiter:          waiter,
		fixer:           fixer,
		tx:              tx,
		prefix:          prefix,
		settingsChannel: settingsChannel,
		notifyRole:      notifyRole,
	}
}

// SetDispatcher completes the wiring between Bot and Dispatcher.
func (b *Bot) SetDispatcher(d *command.Dispatcher) {
	b.dispatcher = d
}

func (b *Bot) self(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selfID != "" {
		return b.selfID, nil
	}
	self, err := b.dir.Self(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve bot identity: %w", err)
	}
	b.selfID = self.ID
	return b.selfID, nil
}

// Restore recovers state that survives restarts: the settings message ID
// is read back from the settings channel topic.
func (b *Bot) Restore(ctx context.Context) error {
	if b.settingsChannel == "" {
		return nil
	}
	channels, err := b.dir.Channels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	for _, c := range channels {
		if c.ID != b.settingsChannel {
			continue
		}
		for _, entry := range strings.Fields(c.Topic) {
			if id, ok := strings.CutPrefix(entry, settingsTopicKey); ok && id != "" {
				b.mu.Lock()
				b.settingsMsgID = id
				b.mu.Unlock()
				slog.Info("settings message restored", "message", id)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: settings channel %s", directory.ErrNotFound, b.settingsChannel)
}

// Publish posts a fresh settings message, arms the bell reaction and
// persists the message ID in the channel topic. The previous settings
// message, if any, is deleted.
func (b *Bot) Publish(ctx context.Context) error {
	if b.settingsChannel == "" {
		return fmt.Errorf("%w: no settings channel configured", directory.ErrNotFound)
	}

	b.mu.Lock()
	previous := b.settingsMsgID
	b.mu.Unlock()
	if previous != "" {
		if err := b.dir.DeleteMessage(ctx, b.settingsChannel, previous); err != nil && !errors.Is(err, directory.ErrNotFound) {
			slog.Warn("failed to delete previous settings message", "error", err, "message", previous)
		}
	}

	msg, err := b.dir.SendEmbed(ctx, b.settingsChannel, models.Embed{
		Title:       "Settings",
		Description: b.tx.Settings,
	})
	if err != nil {
		return fmt.Errorf("failed to publish settings message: %w", err)
	}
	if err := b.dir.React(ctx, b.settingsChannel, msg.ID, BellEmoji); err != nil {
		return fmt.Errorf("failed to arm settings reaction: %w", err)
	}
	if err := b.dir.SetChannelTopic(ctx, b.settingsChannel, settingsTopicKey+msg.ID); err != nil {
		return fmt.Errorf("failed to persist settings message id: %w", err)
	}

	b.mu.Lock()
	b.settingsMsgID = msg.ID
	b.mu.Unlock()
	slog.Info("settings message published", "message", msg.ID)
	return nil
}

// OnMessage handles one inbound message. The bot's own messages are
// ignored; a message that answers a pending wait is consumed there and
// never reaches the dispatcher.
func (b *Bot) OnMessage(ctx context.Context, msg models.Message) {
	selfID, err := b.self(ctx)
	if err != nil {
		slog.Error("failed to resolve self", "error", err)
		return
	}
	if msg.AuthorID == selfID {
		return
	}
	if b.waiter.Observe(msg) {
		return
	}
	if err := b.dispatcher.Handle(ctx, msg); err != nil {
		slog.Error("command failed", "error", err, "author", msg.AuthorID, "channel", msg.ChannelID)
	}
}

// OnReactionAdd grants the notification role when a member rings the bell
// on the settings message.
func (b *Bot) OnReactionAdd(ctx context.Context, r models.Reaction) {
	if !b.isSettingsToggle(ctx, r) {
		return
	}
	if err := b.dir.GrantRole(ctx, r.MemberID, b.notifyRole); err != nil {
		slog.Error("failed to grant notification role", "error", err, "member", r.MemberID)
		return
	}
	slog.Info("notifications enabled", "member", r.MemberID)
}

// OnReactionRemove revokes the notification role when the bell reaction is
// withdrawn.
func (b *Bot) OnReactionRemove(ctx context.Context, r models.Reaction) {
	if !b.isSettingsToggle(ctx, r) {
		return
	}
	if err := b.dir.RevokeRole(ctx, r.MemberID, b.notifyRole); err != nil {
		slog.Error("failed to revoke notification role", "error", err, "member", r.MemberID)
		return
	}
	slog.Info("notifications disabled", "member", r.MemberID)
}

func (b *Bot) isSettingsToggle(ctx context.Context, r models.Reaction) bool {
	if b.notifyRole == "" || r.Emoji != BellEmoji {
		return false
	}
	b.mu.Lock()
	settingsMsg := b.settingsMsgID
	b.mu.Unlock()
	if settingsMsg == "" || r.MessageID != settingsMsg {
		return false
	}
	selfID, err := b.self(ctx)
	if err != nil {
		slog.Error("failed to resolve self", "error", err)
		return false
	}
	return r.MemberID != selfID
}

// OnMemberJoin greets a new member and places them into every category.
func (b *Bot) OnMemberJoin(ctx context.Context, member models.Member) {
	if member.Bot {
		return
	}
	if _, err := b.dir.DirectMessage(ctx, member.ID, texts.Render(b.tx.WelcomeDM, map[string]string{
		"user":   models.MemberMention(member.ID),
		"prefix": b.prefix,
	})); err != nil {
		slog.Error("failed to send welcome message", "error", err, "member", member.ID)
	}
	if _, err := b.fixer.FixMember(ctx, member.ID); err != nil {
		slog.Error("failed to initialize joined member", "error", err, "member", member.ID)
		return
	}
	slog.Info("member joined", "member", member.ID)
}
