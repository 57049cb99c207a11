package usecase

import (
	"context"
	"strings"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/internal/domain/service"
	"instapro/internal/infrastructure/metrics"
	"instapro/pkg/logger"
)

// NotificationUseCase fans a push out to every recipient of a conversation.
// Delivery is best-effort: failures are logged and never returned.
type NotificationUseCase struct {
	userRepo repository.UserRepository
	push     service.PushSender
	baseURL  string
}

func NewNotificationUseCase(userRepo repository.UserRepository, push service.PushSender, baseURL string) *NotificationUseCase {
	return &NotificationUseCase{
		userRepo: userRepo,
		push:     push,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

// Notify pushes summary to everyone in conv except sender and reports how
// many pushes were handed to the push service.
func (uc *NotificationUseCase) Notify(ctx context.Context, conv entity.Conversation, sender, summary string) int {
	return uc.fanOut(ctx, conv, sender, conv.Recipients(sender), summary)
}

// NotifyMemberAdded tells username they were added to group by actor.
func (uc *NotificationUseCase) NotifyMemberAdded(ctx context.Context, group *entity.Group, actor, username string) int {
	return uc.fanOut(ctx, group, actor, []string{username}, "added you to "+group.Name)
}

func (uc *NotificationUseCase) fanOut(ctx context.Context, conv entity.Conversation, sender string, recipients []string, body string) int {
	if len(recipients) == 0 {
		return 0
	}

	conversationID := conv.ConversationRef().ID
	title, icon := sender, ""
	if user, err := uc.userRepo.GetByUsername(ctx, sender); err == nil {
		title, icon = user.DisplayName(), user.AvatarURL
	} else {
		logger.Warn("Notify: sender %s not found in directory: %v", sender, err)
	}

	sent := 0
	for _, recipient := range recipients {
		user, err := uc.userRepo.GetByUsername(ctx, recipient)
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			logger.LogNotificationError(conversationID, recipient, err)
			continue
		}

		err = uc.push.Send(ctx, service.PushPayload{
			TargetUID: user.UID,
			Title:     title,
			Body:      body,
			Icon:      icon,
			Link:      uc.baseURL + "/chat/" + conversationID,
		})
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			logger.LogNotificationError(conversationID, recipient, err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		sent++
	}
	return sent
}
