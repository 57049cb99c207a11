package service

import "context"

type PushPayload struct {
	TargetUID string `json:"target_uid"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Icon      string `json:"icon,omitempty"`
	Link      string `json:"link,omitempty"`
}

// PushSender performs best-effort out-of-band delivery.
type PushSender interface {
	Send(ctx context.Context, payload PushPayload) error
}
