package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"instapro/pkg/errors"
)

type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

const (
	groupIDPrefix   = "group-"
	directSeparator = ":"
)

// ConversationRef is a conversation id classified once, at parse time.
type ConversationRef struct {
	Kind ConversationKind
	ID   string
}

func (r ConversationRef) IsGroup() bool {
	return r.Kind == KindGroup
}

// Participants returns both usernames of a direct chat id.
func (r ConversationRef) Participants() (string, string) {
	if r.Kind != KindDirect {
		return "", ""
	}
	a, b, _ := strings.Cut(r.ID, directSeparator)
	return a, b
}

// ParseConversationRef classifies an id without touching the store. Usernames
// never contain ':' and group ids never do, so the separator decides.
func ParseConversationRef(id string) (ConversationRef, error) {
	if strings.HasPrefix(id, groupIDPrefix) {
		if _, err := uuid.Parse(strings.TrimPrefix(id, groupIDPrefix)); err != nil {
			return ConversationRef{}, errors.BadRequest("Invalid group id", err)
		}
		return ConversationRef{Kind: KindGroup, ID: id}, nil
	}

	a, b, ok := strings.Cut(id, directSeparator)
	if !ok || a == b || !ValidUsername(a) || !ValidUsername(b) {
		return ConversationRef{}, errors.BadRequest("Invalid conversation id", nil)
	}
	if a > b {
		return ConversationRef{}, errors.BadRequest("Direct chat id must list usernames in order", nil)
	}
	return ConversationRef{Kind: KindDirect, ID: id}, nil
}

// DirectChatID is order independent: both sides derive the same id.
func DirectChatID(a, b string) (string, error) {
	if a == b {
		return "", errors.BadRequest("You cannot create a chat with yourself", nil)
	}
	if !ValidUsername(a) || !ValidUsername(b) {
		return "", errors.BadRequest("Invalid username", nil)
	}
	if a > b {
		a, b = b, a
	}
	return a + directSeparator + b, nil
}

func NewGroupID() string {
	return groupIDPrefix + uuid.New().String()
}

type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
)

func (r Role) Privileged() bool {
	return r == RoleCreator || r == RoleAdmin
}

type Member struct {
	Username string `json:"username" firestore:"username"`
	Role     Role   `json:"role" firestore:"role"`
}

// Conversation is either a *DirectChat or a *Group.
type Conversation interface {
	ConversationRef() ConversationRef
	LastActivityAt() time.Time
	HasMember(username string) bool
	// Recipients lists everyone except the sender.
	Recipients(sender string) []string
}

type DirectChat struct {
	ID           string    `json:"id"`
	ParticipantA string    `json:"participant_a"`
	ParticipantB string    `json:"participant_b"`
	LastActivity time.Time `json:"last_activity"`
}

// NewDirectChat builds the chat implied by a direct id, before any message
// has been sent in it.
func NewDirectChat(ref ConversationRef) *DirectChat {
	a, b := ref.Participants()
	return &DirectChat{ID: ref.ID, ParticipantA: a, ParticipantB: b}
}

func (d *DirectChat) ConversationRef() ConversationRef {
	return ConversationRef{Kind: KindDirect, ID: d.ID}
}

func (d *DirectChat) LastActivityAt() time.Time { return d.LastActivity }

func (d *DirectChat) HasMember(username string) bool {
	return d.ParticipantA == username || d.ParticipantB == username
}

func (d *DirectChat) Recipients(sender string) []string {
	if other := d.Counterpart(sender); other != "" {
		return []string{other}
	}
	return nil
}

// Counterpart is the participant whose identity differs from the caller's.
func (d *DirectChat) Counterpart(username string) string {
	switch username {
	case d.ParticipantA:
		return d.ParticipantB
	case d.ParticipantB:
		return d.ParticipantA
	}
	return ""
}

type Group struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Members      []Member  `json:"members"`
	LastActivity time.Time `json:"last_activity"`
}

func (g *Group) ConversationRef() ConversationRef {
	return ConversationRef{Kind: KindGroup, ID: g.ID}
}

func (g *Group) LastActivityAt() time.Time { return g.LastActivity }

func (g *Group) HasMember(username string) bool {
	_, ok := g.RoleOf(username)
	return ok
}

func (g *Group) Recipients(sender string) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Username != sender {
			out = append(out, m.Username)
		}
	}
	return out
}

func (g *Group) RoleOf(username string) (Role, bool) {
	for _, m := range g.Members {
		if m.Username == username {
			return m.Role, true
		}
	}
	return "", false
}

func (g *Group) MemberNames() []string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Username
	}
	return names
}

// MetadataPatch is a partial update; nil fields are left untouched.
type MetadataPatch struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

func (p MetadataPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.AvatarURL == nil
}

func (p MetadataPatch) ApplyTo(g *Group) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.AvatarURL != nil {
		g.AvatarURL = *p.AvatarURL
	}
}
