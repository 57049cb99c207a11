package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

// watchQuery runs a snapshot listener for q and converts every query
// snapshot into one published value.
func watchQuery[T any](ctx context.Context, q firestore.Query, convert func([]*firestore.DocumentSnapshot) (T, error)) *live.Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := live.New[T](cancel)
	it := q.Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				endWatch(ctx, sub, err)
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				endWatch(ctx, sub, err)
				return
			}
			v, err := convert(docs)
			if err != nil {
				sub.Fail(err)
				return
			}
			if !sub.Publish(v) {
				return
			}
		}
	}()
	return sub
}

// watchDocument is watchQuery for a single document. convert also sees
// snapshots of documents that do not exist.
func watchDocument[T any](ctx context.Context, ref *firestore.DocumentRef, convert func(*firestore.DocumentSnapshot) (T, error)) *live.Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := live.New[T](cancel)
	it := ref.Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				endWatch(ctx, sub, err)
				return
			}
			v, err := convert(snap)
			if err != nil {
				sub.Fail(err)
				return
			}
			if !sub.Publish(v) {
				return
			}
		}
	}()
	return sub
}

func endWatch[T any](ctx context.Context, sub *live.Subscription[T], err error) {
	if ctx.Err() != nil || status.Code(err) == codes.Canceled {
		sub.Close()
		return
	}
	logger.Error("Snapshot listener stopped: %v", err)
	sub.Fail(errors.Unavailable("Live updates are unavailable", err))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
