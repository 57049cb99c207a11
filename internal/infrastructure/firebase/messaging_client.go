package firebase

import (
	"context"

	"firebase.google.com/go/v4/messaging"

	"instapro/internal/domain/service"
	"instapro/pkg/logger"
)

// MessagingClient pushes through FCM. Every user's devices subscribe to a
// topic named after the user's uid.
type MessagingClient struct {
	client *messaging.Client
}

var _ service.PushSender = (*MessagingClient)(nil)

func NewMessagingClient(client *messaging.Client) *MessagingClient {
	return &MessagingClient{client: client}
}

func (m *MessagingClient) Send(ctx context.Context, payload service.PushPayload) error {
	msg := &messaging.Message{
		Topic: payload.TargetUID,
		Notification: &messaging.Notification{
			Title:    payload.Title,
			Body:     payload.Body,
			ImageURL: payload.Icon,
		},
		Data: map[string]string{
			"link": payload.Link,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: payload.Title,
				Body:  payload.Body,
				Icon:  payload.Icon,
			},
			FCMOptions: &messaging.WebpushFCMOptions{
				Link: payload.Link,
			},
		},
	}

	id, err := m.client.Send(ctx, msg)
	if err != nil {
		return err
	}
	logger.Debug("Push sent: topic=%s, id=%s", payload.TargetUID, id)
	return nil
}

// LogPushSender only logs. It is used when messaging is not configured.
type LogPushSender struct{}

func (LogPushSender) Send(ctx context.Context, payload service.PushPayload) error {
	logger.Info("Push (not delivered): target=%s, title=%s, body=%s, link=%s", payload.TargetUID, payload.Title, payload.Body, payload.Link)
	return nil
}
