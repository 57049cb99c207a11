package entity

import (
	"encoding/json"
	"strings"
	"time"

	"instapro/pkg/errors"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo || k == MediaAudio
}

// MessageContent is either TextContent or AttachmentContent.
type MessageContent interface {
	// Summary is the short preview used for push notifications.
	Summary() string
	isMessageContent()
}

type TextContent struct {
	Text string
}

func (TextContent) isMessageContent() {}

func (c TextContent) Summary() string { return c.Text }

type AttachmentContent struct {
	Kind     MediaKind
	URL      string
	MimeType string
}

func (AttachmentContent) isMessageContent() {}

func (c AttachmentContent) Summary() string { return string(c.Kind) + "/" }

// ValidateContent enforces that a message carries non-blank text or a
// resolved attachment.
func ValidateContent(content MessageContent) error {
	switch c := content.(type) {
	case TextContent:
		if strings.TrimSpace(c.Text) == "" {
			return errors.InvalidMessage("Message text is empty")
		}
	case AttachmentContent:
		if !c.Kind.Valid() {
			return errors.InvalidMessage("Unsupported attachment kind")
		}
		if c.URL == "" {
			return errors.InvalidMessage("Attachment has no url")
		}
	default:
		return errors.InvalidMessage("Message has no content")
	}
	return nil
}

// Message is immutable once stored; it can only be removed by its author.
type Message struct {
	ID             string
	ConversationID string
	Author         string
	Timestamp      time.Time
	Content        MessageContent
}

type messageJSON struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Author         string    `json:"author"`
	Timestamp      time.Time `json:"timestamp"`
	Text           string    `json:"text,omitempty"`
	Attachment     *struct {
		Kind     MediaKind `json:"kind"`
		URL      string    `json:"url"`
		MimeType string    `json:"mime_type,omitempty"`
	} `json:"attachment,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Author:         m.Author,
		Timestamp:      m.Timestamp,
	}
	switch c := m.Content.(type) {
	case TextContent:
		out.Text = c.Text
	case AttachmentContent:
		out.Attachment = &struct {
			Kind     MediaKind `json:"kind"`
			URL      string    `json:"url"`
			MimeType string    `json:"mime_type,omitempty"`
		}{c.Kind, c.URL, c.MimeType}
	}
	return json.Marshal(out)
}
