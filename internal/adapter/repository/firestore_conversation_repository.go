package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

// chatDoc is chats/{id}. participants is the member list of either kind so
// one array-contains query lists a user's conversations.
type chatDoc struct {
	Kind         entity.ConversationKind `firestore:"kind"`
	Participants []string                `firestore:"participants"`
	Name         string                  `firestore:"name,omitempty"`
	Description  string                  `firestore:"description,omitempty"`
	AvatarURL    string                  `firestore:"avatarUrl,omitempty"`
	Members      []entity.Member         `firestore:"members,omitempty"`
	LastActivity time.Time               `firestore:"lastActivity"`
}

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(id)
}

func (r *firestoreConversationRepository) Get(ctx context.Context, ref entity.ConversationRef) (entity.Conversation, error) {
	snap, err := r.doc(ref.ID).Get(ctx)
	if err != nil && !isNotFound(err) {
		return nil, errors.Internal("Failed to get conversation", err)
	}
	return decodeConversation(ref, snap)
}

func (r *firestoreConversationRepository) Watch(ctx context.Context, ref entity.ConversationRef) *live.Subscription[entity.Conversation] {
	return watchDocument(ctx, r.doc(ref.ID), func(snap *firestore.DocumentSnapshot) (entity.Conversation, error) {
		return decodeConversation(ref, snap)
	})
}

func (r *firestoreConversationRepository) ListByMember(ctx context.Context, username string, limit int) ([]entity.Conversation, error) {
	query := r.client.Collection(chatsCollection).
		Where("participants", "array-contains", username).
		OrderBy("lastActivity", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []entity.Conversation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list conversations", err)
		}
		ref, err := entity.ParseConversationRef(snap.Ref.ID)
		if err != nil {
			continue
		}
		conv, err := decodeConversation(ref, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (r *firestoreConversationRepository) CreateGroup(ctx context.Context, group *entity.Group) error {
	if group.LastActivity.IsZero() {
		group.LastActivity = time.Now()
	}
	_, err := r.doc(group.ID).Create(ctx, groupDoc(group))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Group already exists")
		}
		return errors.Internal("Failed to create group", err)
	}
	return nil
}

func (r *firestoreConversationRepository) UpdateGroup(ctx context.Context, groupID string, mutate repository.GroupMutation) (*entity.Group, error) {
	ref := entity.ConversationRef{Kind: entity.KindGroup, ID: groupID}
	docRef := r.doc(groupID)

	var updated *entity.Group
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Group", err)
			}
			return err
		}
		conv, err := decodeConversation(ref, snap)
		if err != nil {
			return err
		}
		group := conv.(*entity.Group)
		if err := mutate(group); err != nil {
			return err
		}
		updated = group
		return tx.Set(docRef, groupDoc(group))
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Internal("Failed to update group", err)
	}
	return updated, nil
}

func (r *firestoreConversationRepository) UpdateMetadata(ctx context.Context, groupID string, patch entity.MetadataPatch) error {
	var updates []firestore.Update
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *patch.Description})
	}
	if patch.AvatarURL != nil {
		updates = append(updates, firestore.Update{Path: "avatarUrl", Value: *patch.AvatarURL})
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := r.doc(groupID).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return errors.NotFound("Group", err)
		}
		return errors.Internal("Failed to update group", err)
	}
	return nil
}

func (r *firestoreConversationRepository) Touch(ctx context.Context, ref entity.ConversationRef) error {
	var err error
	if ref.IsGroup() {
		_, err = r.doc(ref.ID).Update(ctx, []firestore.Update{
			{Path: "lastActivity", Value: firestore.ServerTimestamp},
		})
	} else {
		a, b := ref.Participants()
		_, err = r.doc(ref.ID).Set(ctx, map[string]interface{}{
			"kind":         entity.KindDirect,
			"participants": []string{a, b},
			"lastActivity": firestore.ServerTimestamp,
		}, firestore.MergeAll)
	}
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Group", err)
		}
		return errors.Internal("Failed to update last activity", err)
	}
	return nil
}

func decodeConversation(ref entity.ConversationRef, snap *firestore.DocumentSnapshot) (entity.Conversation, error) {
	if snap == nil || !snap.Exists() {
		if ref.IsGroup() {
			return nil, errors.NotFound("Group", nil)
		}
		return entity.NewDirectChat(ref), nil
	}

	var d chatDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	if ref.IsGroup() {
		return &entity.Group{
			ID:           ref.ID,
			Name:         d.Name,
			Description:  d.Description,
			AvatarURL:    d.AvatarURL,
			Members:      d.Members,
			LastActivity: d.LastActivity,
		}, nil
	}
	chat := entity.NewDirectChat(ref)
	chat.LastActivity = d.LastActivity
	return chat, nil
}

func groupDoc(g *entity.Group) chatDoc {
	return chatDoc{
		Kind:         entity.KindGroup,
		Participants: g.MemberNames(),
		Name:         g.Name,
		Description:  g.Description,
		AvatarURL:    g.AvatarURL,
		Members:      g.Members,
		LastActivity: g.LastActivity,
	}
}
