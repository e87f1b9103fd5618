package models

import (
	"time"
)

// ChannelKind distinguishes plain text channels from grouping containers
type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelGroup ChannelKind = "group"
)

// EveryoneTarget is the overwrite target that addresses the guild's
// default (everyone) role.
const EveryoneTarget = "@everyone"

// Role is a view over a platform role object. The role name is the only
// state this engine reads back; everything else is platform metadata.
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color,omitempty"`
}

// Channel is a view over a platform channel object. Group channels act as
// containers; text channels may reference a group via ParentID.
type Channel struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	ParentID string      `json:"parent_id,omitempty"`
	Topic    string      `json:"topic,omitempty"`
}

// Member is a view over a guild member. Roles holds role IDs.
type Member struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	Admin bool     `json:"admin"`
	Bot   bool     `json:"bot"`
}

// HasRole reports whether the member holds the given role ID.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// Message is a view over a channel message.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Direct    bool      `json:"direct,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Embed is a rich message payload.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      string       `json:"footer,omitempty"`
	Color       int          `json:"color,omitempty"`
}

// Reaction is an emoji added to or removed from a message by a member.
type Reaction struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	MemberID  string `json:"member_id"`
	Emoji     string `json:"emoji"`
}

// EmbedField is a single titled section of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Overwrite is a per-target channel permission override. TargetID is a role
// ID or EveryoneTarget.
type Overwrite struct {
	TargetID string `json:"target_id"`
	Read     bool   `json:"read"`
	Send     bool   `json:"send"`
	React    bool   `json:"react"`
}

// CreateChannelRequest holds parameters for channel creation.
type CreateChannelRequest struct {
	Name       string      `json:"name"`
	Kind       ChannelKind `json:"kind"`
	ParentID   string      `json:"parent_id,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Overwrites []Overwrite `json:"overwrites,omitempty"`
}

// ChannelMention renders the platform inline mention for a channel.
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// RoleMention renders the platform inline mention for a role.
func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

// MemberMention renders the platform inline mention for a member.
func MemberMention(memberID string) string {
	return "<@" + memberID + ">"
}
