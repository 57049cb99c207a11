package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// messageDoc is the stored shape: text or exactly one of image/video/audio.
type messageDoc struct {
	Username  string    `firestore:"username"`
	TimeStamp time.Time `firestore:"timeStamp"`
	Text      string    `firestore:"text,omitempty"`
	Image     string    `firestore:"image,omitempty"`
	Video     string    `firestore:"video,omitempty"`
	Audio     string    `firestore:"audio,omitempty"`
	MimeType  string    `firestore:"mimeType,omitempty"`
}

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.client.Collection(chatsCollection).Doc(conversationID).Collection(messagesCollection)
}

func (r *firestoreMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	data := map[string]interface{}{
		"username":  message.Author,
		"timeStamp": firestore.ServerTimestamp,
	}
	switch c := message.Content.(type) {
	case entity.TextContent:
		data["text"] = c.Text
	case entity.AttachmentContent:
		data[string(c.Kind)] = c.URL
		if c.MimeType != "" {
			data["mimeType"] = c.MimeType
		}
	default:
		return errors.InvalidMessage("Message has no content")
	}

	id := uuid.Must(uuid.NewV7()).String()
	result, err := r.messages(message.ConversationID).Doc(id).Create(ctx, data)
	if err != nil {
		logger.Error("Failed to append message to %s: %v", message.ConversationID, err)
		return errors.Internal("Failed to create message", err)
	}

	message.ID = id
	message.Timestamp = result.UpdateTime
	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.messages(conversationID).Doc(messageID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return decodeMessage(conversationID, doc)
}

func (r *firestoreMessageRepository) Remove(ctx context.Context, conversationID, messageID string) error {
	_, err := r.messages(conversationID).Doc(messageID).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) Window(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	iter := r.windowQuery(conversationID, limit).Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}
		docs = append(docs, doc)
	}
	return decodeWindow(conversationID, docs)
}

func (r *firestoreMessageRepository) WatchWindow(ctx context.Context, conversationID string, limit int) *live.Subscription[[]*entity.Message] {
	return watchQuery(ctx, r.windowQuery(conversationID, limit), func(docs []*firestore.DocumentSnapshot) ([]*entity.Message, error) {
		return decodeWindow(conversationID, docs)
	})
}

// windowQuery selects the newest limit messages, newest first.
func (r *firestoreMessageRepository) windowQuery(conversationID string, limit int) firestore.Query {
	q := r.messages(conversationID).OrderBy("timeStamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// decodeWindow reverses the descending query result into display order.
func decodeWindow(conversationID string, docs []*firestore.DocumentSnapshot) ([]*entity.Message, error) {
	out := make([]*entity.Message, len(docs))
	for i, doc := range docs {
		m, err := decodeMessage(conversationID, doc)
		if err != nil {
			return nil, err
		}
		out[len(docs)-1-i] = m
	}
	return out, nil
}

func decodeMessage(conversationID string, doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var d messageDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	m := &entity.Message{
		ID:             doc.Ref.ID,
		ConversationID: conversationID,
		Author:         d.Username,
		Timestamp:      d.TimeStamp,
	}
	switch {
	case d.Image != "":
		m.Content = entity.AttachmentContent{Kind: entity.MediaImage, URL: d.Image, MimeType: d.MimeType}
	case d.Video != "":
		m.Content = entity.AttachmentContent{Kind: entity.MediaVideo, URL: d.Video, MimeType: d.MimeType}
	case d.Audio != "":
		m.Content = entity.AttachmentContent{Kind: entity.MediaAudio, URL: d.Audio, MimeType: d.MimeType}
	default:
		m.Content = entity.TextContent{Text: d.Text}
	}
	return m, nil
}
