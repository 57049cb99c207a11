package usecase

import (
	"context"
	"strings"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

type ConversationUseCase struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	notifier *NotificationUseCase
}

func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	notifier *NotificationUseCase,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo: convRepo,
		userRepo: userRepo,
		notifier: notifier,
	}
}

type CreateGroupInput struct {
	Name        string
	Description string
	AvatarURL   string
	Members     []string
}

// Resolve returns the conversation if caller takes part in it. For a direct
// chat the counterpart must exist in the directory.
func (uc *ConversationUseCase) Resolve(ctx context.Context, caller entity.Identity, ref entity.ConversationRef) (entity.Conversation, error) {
	conv, err := uc.convRepo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(caller.Username) {
		logger.Warn("Resolve Error: %s is not a participant in %s", caller.Username, ref.ID)
		return nil, errors.Forbidden("You are not a participant in this chat", nil)
	}

	if direct, ok := conv.(*entity.DirectChat); ok {
		if _, err := uc.userRepo.GetByUsername(ctx, direct.Counterpart(caller.Username)); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// Watch checks access once, then streams the conversation record.
func (uc *ConversationUseCase) Watch(ctx context.Context, caller entity.Identity, ref entity.ConversationRef) (*live.Subscription[entity.Conversation], error) {
	if _, err := uc.Resolve(ctx, caller, ref); err != nil {
		return nil, err
	}
	return uc.convRepo.Watch(ctx, ref), nil
}

func (uc *ConversationUseCase) ListConversations(ctx context.Context, caller entity.Identity, limit int) ([]entity.Conversation, error) {
	convs, err := uc.convRepo.ListByMember(ctx, caller.Username, limit)
	if err != nil {
		logger.Error("ListConversations Error: user=%s: %v", caller.Username, err)
		return nil, err
	}
	return convs, nil
}

// CreateGroup makes caller the creator; every listed member joins as member
// and is notified.
func (uc *ConversationUseCase) CreateGroup(ctx context.Context, caller entity.Identity, input CreateGroupInput) (*entity.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.BadRequest("Group name is required", nil)
	}

	group := &entity.Group{
		ID:          entity.NewGroupID(),
		Name:        name,
		Description: input.Description,
		AvatarURL:   input.AvatarURL,
		Members:     []entity.Member{{Username: caller.Username, Role: entity.RoleCreator}},
	}
	for _, username := range input.Members {
		if group.HasMember(username) {
			continue
		}
		if _, err := uc.userRepo.GetByUsername(ctx, username); err != nil {
			logger.Warn("CreateGroup Error: member %s not found: %v", username, err)
			return nil, err
		}
		group.Members = append(group.Members, entity.Member{Username: username, Role: entity.RoleMember})
	}

	if err := uc.convRepo.CreateGroup(ctx, group); err != nil {
		logger.Error("CreateGroup Error: %v", err)
		return nil, err
	}

	for _, m := range group.Members[1:] {
		uc.notifier.NotifyMemberAdded(ctx, group, caller.Username, m.Username)
	}
	return group, nil
}

// AddMember appends username as a plain member. Authorization is checked
// before the directory lookup so a member-role caller always gets Forbidden.
func (uc *ConversationUseCase) AddMember(ctx context.Context, caller entity.Identity, ref entity.ConversationRef, username string) (*entity.Group, error) {
	group, err := uc.privilegedGroup(ctx, caller, ref)
	if err != nil {
		return nil, err
	}
	if group.HasMember(username) {
		return nil, errors.AlreadyMember(username)
	}
	if _, err := uc.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}

	updated, err := uc.convRepo.UpdateGroup(ctx, ref.ID, func(g *entity.Group) error {
		if err := requirePrivileged(g, caller.Username); err != nil {
			return err
		}
		if g.HasMember(username) {
			return errors.AlreadyMember(username)
		}
		g.Members = append(g.Members, entity.Member{Username: username, Role: entity.RoleMember})
		return nil
	})
	if err != nil {
		logger.Error("AddMember Error: group=%s, username=%s: %v", ref.ID, username, err)
		return nil, err
	}

	uc.notifier.NotifyMemberAdded(ctx, updated, caller.Username, username)
	return updated, nil
}

// SetRole switches a member between admin and member. The creator role is
// neither granted nor taken away. Demoting the last admin is not guarded.
func (uc *ConversationUseCase) SetRole(ctx context.Context, caller entity.Identity, ref entity.ConversationRef, username string, role entity.Role) (*entity.Group, error) {
	if role != entity.RoleAdmin && role != entity.RoleMember {
		return nil, errors.Forbidden("Role can only be admin or member", nil)
	}
	if _, err := uc.privilegedGroup(ctx, caller, ref); err != nil {
		return nil, err
	}

	updated, err := uc.convRepo.UpdateGroup(ctx, ref.ID, func(g *entity.Group) error {
		if err := requirePrivileged(g, caller.Username); err != nil {
			return err
		}
		for i, m := range g.Members {
			if m.Username != username {
				continue
			}
			if m.Role == entity.RoleCreator {
				return errors.Forbidden("The creator role cannot be changed", nil)
			}
			g.Members[i].Role = role
			return nil
		}
		return errors.NotFound("Member", nil)
	})
	if err != nil {
		logger.Error("SetRole Error: group=%s, username=%s: %v", ref.ID, username, err)
		return nil, err
	}
	return updated, nil
}

// UpdateMetadata merges only the provided fields. Concurrent edits are
// last-write-wins.
func (uc *ConversationUseCase) UpdateMetadata(ctx context.Context, caller entity.Identity, ref entity.ConversationRef, patch entity.MetadataPatch) error {
	if patch.Empty() {
		return errors.BadRequest("Nothing to update", nil)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return errors.BadRequest("Group name cannot be empty", nil)
	}
	if _, err := uc.privilegedGroup(ctx, caller, ref); err != nil {
		return err
	}

	if err := uc.convRepo.UpdateMetadata(ctx, ref.ID, patch); err != nil {
		logger.Error("UpdateMetadata Error: group=%s: %v", ref.ID, err)
		return err
	}
	return nil
}

// TouchActivity bumps lastActivity. Callers treat failure as non-fatal.
func (uc *ConversationUseCase) TouchActivity(ctx context.Context, ref entity.ConversationRef) error {
	if err := uc.convRepo.Touch(ctx, ref); err != nil {
		logger.Warn("TouchActivity Error: conversation=%s: %v", ref.ID, err)
		return err
	}
	return nil
}

func (uc *ConversationUseCase) privilegedGroup(ctx context.Context, caller entity.Identity, ref entity.ConversationRef) (*entity.Group, error) {
	if !ref.IsGroup() {
		return nil, errors.BadRequest("Only group chats have members and metadata", nil)
	}
	conv, err := uc.convRepo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	group := conv.(*entity.Group)
	if err := requirePrivileged(group, caller.Username); err != nil {
		logger.Warn("Group Error: %s lacks admin rights in %s", caller.Username, ref.ID)
		return nil, err
	}
	return group, nil
}

func requirePrivileged(g *entity.Group, username string) error {
	role, ok := g.RoleOf(username)
	if !ok || !role.Privileged() {
		return errors.Forbidden("Only a group admin can do this", nil)
	}
	return nil
}
