package repository

import (
	"context"

	"instapro/pkg/live"
)

// watchSet indexes open subscriptions by document key. The int carries a
// per-subscription parameter such as a window limit.
type watchSet[T any] map[string]map[*live.Subscription[T]]int

func (w watchSet[T]) add(key string, sub *live.Subscription[T], arg int) {
	if w[key] == nil {
		w[key] = make(map[*live.Subscription[T]]int)
	}
	w[key][sub] = arg
}

func (w watchSet[T]) remove(key string, sub *live.Subscription[T]) {
	delete(w[key], sub)
	if len(w[key]) == 0 {
		delete(w, key)
	}
}

// closeWithContext ties the subscription lifetime to ctx.
func closeWithContext[T any](ctx context.Context, sub *live.Subscription[T]) {
	context.AfterFunc(ctx, sub.Close)
}
