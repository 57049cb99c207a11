package usecase

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/internal/infrastructure/metrics"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

type MessageUseCase struct {
	messageRepo repository.MessageRepository
	pageSize    int
}

func NewMessageUseCase(messageRepo repository.MessageRepository, pageSize int) *MessageUseCase {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &MessageUseCase{
		messageRepo: messageRepo,
		pageSize:    pageSize,
	}
}

// MessageWindow is the newest Limit messages of a conversation, oldest
// first. HasMore is false once the store returned fewer than asked for.
type MessageWindow struct {
	Items   []*entity.Message `json:"items"`
	Limit   int               `json:"limit"`
	HasMore bool              `json:"has_more"`
}

func NewMessageWindow(items []*entity.Message, limit int) MessageWindow {
	if items == nil {
		items = []*entity.Message{}
	}
	return MessageWindow{Items: items, Limit: limit, HasMore: len(items) >= limit}
}

func (uc *MessageUseCase) PageSize() int {
	return uc.pageSize
}

// Append stores content authored by the caller. The author is always the
// authenticated identity, never client supplied.
func (uc *MessageUseCase) Append(ctx context.Context, caller entity.Identity, ref entity.ConversationRef, content entity.MessageContent) (*entity.Message, error) {
	if err := entity.ValidateContent(content); err != nil {
		return nil, err
	}

	message := &entity.Message{
		ConversationID: ref.ID,
		Author:         caller.Username,
		Content:        content,
	}
	if err := uc.messageRepo.Append(ctx, message); err != nil {
		logger.Error("Append Error: conversation=%s, author=%s: %v", ref.ID, caller.Username, err)
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(contentKind(content)).Inc()
	return message, nil
}

// Remove hard-deletes a message. Only its author may remove it.
func (uc *MessageUseCase) Remove(ctx context.Context, caller entity.Identity, ref entity.ConversationRef, messageID string) error {
	message, err := uc.messageRepo.GetByID(ctx, ref.ID, messageID)
	if err != nil {
		return err
	}
	if message.Author != caller.Username {
		logger.Warn("Remove Error: %s is not the author of message %s", caller.Username, messageID)
		return errors.Forbidden("Only the author can unsend a message", nil)
	}
	if err := uc.messageRepo.Remove(ctx, ref.ID, messageID); err != nil {
		return err
	}
	metrics.MessagesRemovedTotal.Inc()
	return nil
}

// Window serves one page request. limit <= 0 means one page.
func (uc *MessageUseCase) Window(ctx context.Context, ref entity.ConversationRef, limit int) (MessageWindow, error) {
	if limit <= 0 {
		limit = uc.pageSize
	}
	items, err := uc.messageRepo.Window(ctx, ref.ID, limit)
	if err != nil {
		return MessageWindow{}, err
	}
	return NewMessageWindow(items, limit), nil
}

func (uc *MessageUseCase) Subscribe(ctx context.Context, ref entity.ConversationRef, limit int) *live.Subscription[[]*entity.Message] {
	return uc.messageRepo.WatchWindow(ctx, ref.ID, limit)
}

func contentKind(content entity.MessageContent) string {
	if c, ok := content.(entity.AttachmentContent); ok {
		return string(c.Kind)
	}
	return "text"
}
