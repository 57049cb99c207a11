package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instapro/internal/domain/entity"
)

func TestNotificationUseCase_DirectChatHasOneRecipient(t *testing.T) {
	f := newFixture(t)
	conv := entity.NewDirectChat(directRef(t, "alice", "bob"))

	n := f.notifier.Notify(context.Background(), conv, "bob", "video/")
	assert.Equal(t, 1, n)

	sent := f.push.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "uid-alice", sent[0].TargetUID)
	assert.Equal(t, "bob fullname", sent[0].Title)
	assert.Equal(t, "video/", sent[0].Body)
	assert.Equal(t, "https://insta.test/chat/alice:bob", sent[0].Link)
}

func TestNotificationUseCase_FailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.push.err = fmt.Errorf("fcm down")
	group := &entity.Group{ID: entity.NewGroupID(), Members: []entity.Member{
		{Username: "carol", Role: entity.RoleCreator},
		{Username: "dave", Role: entity.RoleMember},
		{Username: "ghost", Role: entity.RoleMember},
	}}

	n := f.notifier.Notify(context.Background(), group, "carol", "hi")
	assert.Equal(t, 0, n)
	// ghost has no profile, so only dave was attempted
	assert.Len(t, f.push.sent(), 1)
}

func TestNotificationUseCase_UnknownSenderFallsBackToUsername(t *testing.T) {
	f := newFixture(t)
	group := &entity.Group{ID: entity.NewGroupID(), Members: []entity.Member{
		{Username: "zed", Role: entity.RoleCreator},
		{Username: "dave", Role: entity.RoleMember},
	}}

	f.notifier.Notify(context.Background(), group, "zed", "hi")
	sent := f.push.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "zed", sent[0].Title)
	assert.Empty(t, sent[0].Icon)
}
