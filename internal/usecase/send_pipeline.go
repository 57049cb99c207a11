package usecase

import (
	"context"
	"strings"
	"sync"

	"instapro/internal/domain/entity"
	"instapro/pkg/errors"
	"instapro/pkg/logger"
)

// SendInput is what the send box holds: text or one file, never both.
type SendInput struct {
	Text string
	File *entity.FileInput
}

// SendPipeline runs upload, append, notify and touch in that order. A step
// runs only if the one before it succeeded, and nothing already committed
// is rolled back. Each caller has one send box per conversation and only
// one send may be in flight in it, whichever transport started it.
type SendPipeline struct {
	uploads       *UploadUseCase
	messages      *MessageUseCase
	conversations *ConversationUseCase
	notifier      *NotificationUseCase

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSendPipeline(
	uploads *UploadUseCase,
	messages *MessageUseCase,
	conversations *ConversationUseCase,
	notifier *NotificationUseCase,
) *SendPipeline {
	return &SendPipeline{
		uploads:       uploads,
		messages:      messages,
		conversations: conversations,
		notifier:      notifier,
		inFlight:      make(map[string]struct{}),
	}
}

func sendBoxKey(caller entity.Identity, ref entity.ConversationRef) string {
	return caller.Username + "|" + ref.ID
}

func (p *SendPipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *SendPipeline) release(key string) {
	p.mu.Lock()
	delete(p.inFlight, key)
	p.mu.Unlock()
}

// Send delivers input into conv as caller. onProgress, if set, sees every
// upload event it can keep up with, including the terminal one.
func (p *SendPipeline) Send(ctx context.Context, caller entity.Identity, conv entity.Conversation, input SendInput, onProgress func(entity.UploadProgress)) (*entity.Message, error) {
	ref := conv.ConversationRef()

	key := sendBoxKey(caller, ref)
	if !p.acquire(key) {
		return nil, errors.Conflict("A message is already being sent")
	}
	defer p.release(key)

	content, err := p.content(ctx, caller, input, onProgress)
	if err != nil {
		return nil, err
	}

	message, err := p.messages.Append(ctx, caller, ref, content)
	if err != nil {
		// an uploaded attachment stays in storage; there is no cleanup path
		return nil, err
	}

	p.notifier.Notify(ctx, conv, caller.Username, content.Summary())

	if err := p.conversations.TouchActivity(ctx, ref); err != nil {
		logger.Warn("Send: message %s stored but last activity not updated: %v", message.ID, err)
	}
	return message, nil
}

func (p *SendPipeline) content(ctx context.Context, caller entity.Identity, input SendInput, onProgress func(entity.UploadProgress)) (entity.MessageContent, error) {
	hasText := strings.TrimSpace(input.Text) != ""
	if input.File == nil {
		return entity.TextContent{Text: input.Text}, nil
	}
	if hasText {
		return nil, errors.InvalidMessage("A message carries either text or one attachment")
	}

	job, err := p.uploads.Start(ctx, caller.Username, *input.File, entity.SurfaceChat)
	if err != nil {
		return nil, err
	}
	for event := range job.Progress() {
		if onProgress != nil {
			onProgress(event)
		}
	}

	result, err := job.Wait(ctx)
	if err != nil {
		job.Cancel()
		return nil, err
	}
	if result.Status != entity.UploadSucceeded {
		return nil, result.Err
	}
	return entity.AttachmentContent{Kind: result.Kind, URL: result.URL, MimeType: result.MimeType}, nil
}
