package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

const profileCollection = "profile"

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	doc, err := r.client.Collection(profileCollection).Doc(username).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return decodeUser(doc)
}

func (r *firestoreUserRepository) GetByUID(ctx context.Context, uid string) (*entity.User, error) {
	iter := r.client.Collection(profileCollection).Where("uid", "==", uid).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("User", nil)
		}
		return nil, errors.Internal("Failed to query user", err)
	}
	return decodeUser(doc)
}

func (r *firestoreUserRepository) WatchAll(ctx context.Context) *live.Subscription[[]*entity.User] {
	return watchQuery(ctx, r.client.Collection(profileCollection).Query, func(docs []*firestore.DocumentSnapshot) ([]*entity.User, error) {
		users := make([]*entity.User, 0, len(docs))
		for _, doc := range docs {
			user, err := decodeUser(doc)
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
		return users, nil
	})
}

func decodeUser(doc *firestore.DocumentSnapshot) (*entity.User, error) {
	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	if user.Username == "" {
		user.Username = doc.Ref.ID
	}
	return &user, nil
}
