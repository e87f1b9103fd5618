// Package directory defines the capability surface of the external guild
// directory and the read-side queries the engine derives its state from.
// The directory is the system of record: categories, channels and roles are
// the only durable storage this engine has.
package directory

import (
	"context"
	"errors"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// Common errors
var (
	ErrNotFound  = errors.New("directory object not found")
	ErrAmbiguous = errors.New("ambiguous directory match")
)

// Service is the mutation and listing capability offered by the platform.
// Every call reflects live state; the platform gives no transactional
// guarantees across calls.
type Service interface {
	// Self returns the bot's own member record.
	Self(ctx context.Context) (models.Member, error)

	Roles(ctx context.Context) ([]models.Role, error)
	Channels(ctx context.Context) ([]models.Channel, error)
	Members(ctx context.Context) ([]models.Member, error)
	Member(ctx context.Context, id string) (models.Member, error)

	CreateRole(ctx context.Context, name string, color int) (models.Role, error)
	RenameRole(ctx context.Context, id, name string) error
	DeleteRole(ctx context.Context, id string) error

	CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error)
	RenameChannel(ctx context.Context, id, name string) error
	SetChannelTopic(ctx context.Context, id, topic string) error
	DeleteChannel(ctx context.Context, id string) error

	GrantRole(ctx context.Context, memberID, roleID string) error
	RevokeRole(ctx context.Context, memberID, roleID string) error

	// History returns up to limit messages from a channel, newest first.
	History(ctx context.Context, channelID string, limit int) ([]models.Message, error)

	Send(ctx context.Context, channelID, content string) (models.Message, error)
	SendEmbed(ctx context.Context, channelID string, embed models.Embed) (models.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// DirectMessage sends to a member's private channel, creating it if
	// needed, and returns the sent message.
	DirectMessage(ctx context.Context, memberID, content string) (models.Message, error)

	React(ctx context.Context, channelID, messageID, emoji string) error
}
