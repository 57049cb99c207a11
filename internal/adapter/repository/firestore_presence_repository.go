package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

// Presence is kept on the profile document as active + timeStamp.
type firestorePresenceRepository struct {
	client *firestore.Client
}

func NewFirestorePresenceRepository(client *firestore.Client) repository.PresenceRepository {
	return &firestorePresenceRepository{
		client: client,
	}
}

func (r *firestorePresenceRepository) SetActive(ctx context.Context, username string, active bool) error {
	_, err := r.client.Collection(profileCollection).Doc(username).Update(ctx, []firestore.Update{
		{Path: "active", Value: active},
		{Path: "timeStamp", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("User", err)
		}
		return errors.Internal("Failed to update presence", err)
	}
	return nil
}

func (r *firestorePresenceRepository) Get(ctx context.Context, username string) (*entity.Presence, error) {
	doc, err := r.client.Collection(profileCollection).Doc(username).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get presence", err)
	}
	p, err := decodePresence(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *firestorePresenceRepository) Watch(ctx context.Context, username string) *live.Subscription[entity.Presence] {
	return watchDocument(ctx, r.client.Collection(profileCollection).Doc(username), decodePresence)
}

func decodePresence(doc *firestore.DocumentSnapshot) (entity.Presence, error) {
	if !doc.Exists() {
		return entity.Presence{}, errors.NotFound("User", nil)
	}
	user, err := decodeUser(doc)
	if err != nil {
		return entity.Presence{}, err
	}
	return entity.Presence{Username: user.Username, Active: user.Active, LastSeen: user.LastSeen}, nil
}
