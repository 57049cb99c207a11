package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instapro/internal/domain/entity"
	"instapro/pkg/errors"
)

func TestConversationUseCase_AddMemberScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.newGroup(t, "carol", "dave")
	ref := group.ConversationRef()

	_, err := f.conversations.AddMember(ctx, identity("dave"), ref, "erin")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	assert.Empty(t, f.push.sent())

	updated, err := f.conversations.AddMember(ctx, identity("carol"), ref, "erin")
	require.NoError(t, err)
	assert.Equal(t, []entity.Member{
		{Username: "carol", Role: entity.RoleCreator},
		{Username: "dave", Role: entity.RoleMember},
		{Username: "erin", Role: entity.RoleMember},
	}, updated.Members)

	sent := f.push.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "uid-erin", sent[0].TargetUID)
	assert.Equal(t, "added you to friends", sent[0].Body)
	assert.Equal(t, "carol fullname", sent[0].Title)
	assert.Equal(t, "https://insta.test/chat/"+group.ID, sent[0].Link)
}

func TestConversationUseCase_AddMemberFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.newGroup(t, "carol", "dave")
	ref := group.ConversationRef()

	_, err := f.conversations.AddMember(ctx, identity("carol"), ref, "dave")
	assert.True(t, errors.Is(err, errors.CodeAlreadyMember))

	_, err = f.conversations.AddMember(ctx, identity("carol"), ref, "ghost")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	// a member-role caller is refused even for an unknown user
	_, err = f.conversations.AddMember(ctx, identity("dave"), ref, "ghost")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.conversations.AddMember(ctx, identity("alice"), directRef(t, "alice", "bob"), "carol")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	conv, err := f.conversations.Resolve(ctx, identity("carol"), ref)
	require.NoError(t, err)
	assert.Len(t, conv.(*entity.Group).Members, 2)
	assert.Empty(t, f.push.sent())
}

func TestConversationUseCase_AdminCanAddAfterPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.newGroup(t, "carol", "dave")
	ref := group.ConversationRef()

	_, err := f.conversations.SetRole(ctx, identity("carol"), ref, "dave", entity.RoleAdmin)
	require.NoError(t, err)

	updated, err := f.conversations.AddMember(ctx, identity("dave"), ref, "erin")
	require.NoError(t, err)
	role, ok := updated.RoleOf("erin")
	assert.True(t, ok)
	assert.Equal(t, entity.RoleMember, role)
}

func TestConversationUseCase_SetRoleGuardsCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.newGroup(t, "carol", "dave", "erin")
	ref := group.ConversationRef()

	_, err := f.conversations.SetRole(ctx, identity("carol"), ref, "dave", entity.RoleCreator)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.conversations.SetRole(ctx, identity("carol"), ref, "dave", entity.RoleAdmin)
	require.NoError(t, err)

	_, err = f.conversations.SetRole(ctx, identity("dave"), ref, "carol", entity.RoleMember)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.conversations.SetRole(ctx, identity("erin"), ref, "dave", entity.RoleMember)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.conversations.SetRole(ctx, identity("carol"), ref, "alice", entity.RoleAdmin)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestConversationUseCase_UpdateMetadataMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, err := f.conversations.CreateGroup(ctx, identity("carol"), CreateGroupInput{
		Name:        "friends",
		Description: "weekend plans",
		Members:     []string{"dave"},
	})
	require.NoError(t, err)
	ref := group.ConversationRef()

	name := "besties"
	err = f.conversations.UpdateMetadata(ctx, identity("dave"), ref, entity.MetadataPatch{Name: &name})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, f.conversations.UpdateMetadata(ctx, identity("carol"), ref, entity.MetadataPatch{Name: &name}))

	conv, err := f.conversations.Resolve(ctx, identity("dave"), ref)
	require.NoError(t, err)
	g := conv.(*entity.Group)
	assert.Equal(t, "besties", g.Name)
	assert.Equal(t, "weekend plans", g.Description)

	err = f.conversations.UpdateMetadata(ctx, identity("carol"), ref, entity.MetadataPatch{})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestConversationUseCase_ResolveChecksParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.Resolve(ctx, identity("alice"), directRef(t, "alice", "bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", conv.(*entity.DirectChat).Counterpart("alice"))

	_, err = f.conversations.Resolve(ctx, identity("carol"), directRef(t, "alice", "bob"))
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.conversations.Resolve(ctx, identity("alice"), directRef(t, "alice", "zed"))
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	missing, err := entity.ParseConversationRef(entity.NewGroupID())
	require.NoError(t, err)
	_, err = f.conversations.Resolve(ctx, identity("alice"), missing)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestConversationUseCase_TouchActivityIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := directRef(t, "alice", "bob")

	require.NoError(t, f.conversations.TouchActivity(ctx, ref))
	first, err := f.conversations.Resolve(ctx, identity("alice"), ref)
	require.NoError(t, err)

	require.NoError(t, f.conversations.TouchActivity(ctx, ref))
	second, err := f.conversations.Resolve(ctx, identity("alice"), ref)
	require.NoError(t, err)

	assert.False(t, second.LastActivityAt().Before(first.LastActivityAt()))
	assert.WithinDuration(t, time.Now(), second.LastActivityAt(), time.Minute)

	window, err := f.messageUC.Window(ctx, ref, 10)
	require.NoError(t, err)
	assert.Empty(t, window.Items)
	assert.Empty(t, f.push.sent())
}

func TestConversationUseCase_ListConversationsByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	group := f.newGroup(t, "alice", "carol")
	withBob := directRef(t, "alice", "bob")
	withErin := directRef(t, "alice", "erin")

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, f.conversations.TouchActivity(ctx, withErin))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, f.conversations.TouchActivity(ctx, withBob))

	convs, err := f.conversations.ListConversations(ctx, identity("alice"), 10)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, withBob.ID, convs[0].ConversationRef().ID)
	assert.Equal(t, withErin.ID, convs[1].ConversationRef().ID)
	assert.Equal(t, group.ID, convs[2].ConversationRef().ID)

	convs, err = f.conversations.ListConversations(ctx, identity("bob"), 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
}

func TestConversationUseCase_CreateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.CreateGroup(ctx, identity("carol"), CreateGroupInput{Name: "  "})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.conversations.CreateGroup(ctx, identity("carol"), CreateGroupInput{Name: "x", Members: []string{"ghost"}})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	group, err := f.conversations.CreateGroup(ctx, identity("carol"), CreateGroupInput{Name: "x", Members: []string{"dave", "carol", "dave"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "dave"}, group.MemberNames())
	assert.Len(t, f.push.sent(), 1)
}
