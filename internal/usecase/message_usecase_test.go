package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instapro/internal/domain/entity"
	"instapro/pkg/errors"
)

func TestMessageUseCase_AppendRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	ref := directRef(t, "alice", "bob")

	for _, text := range []string{"", " ", "\n\t "} {
		_, err := f.messageUC.Append(context.Background(), identity("alice"), ref, entity.TextContent{Text: text})
		assert.True(t, errors.Is(err, errors.CodeInvalidMessage), "text %q", text)
	}

	window, err := f.messageUC.Window(context.Background(), ref, 10)
	require.NoError(t, err)
	assert.Empty(t, window.Items)
}

func TestMessageUseCase_AppendTakesAuthorFromCaller(t *testing.T) {
	f := newFixture(t)
	ref := directRef(t, "alice", "bob")

	msg, err := f.messageUC.Append(context.Background(), identity("alice"), ref, entity.TextContent{Text: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.Author)
	assert.False(t, msg.Timestamp.IsZero())

	msg, err = f.messageUC.Append(context.Background(), identity("bob"), ref, entity.AttachmentContent{Kind: entity.MediaAudio, URL: "mem://a"})
	require.NoError(t, err)
	assert.Equal(t, "bob", msg.Author)
}

func TestMessageUseCase_RemoveIsAuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := directRef(t, "alice", "bob")

	msg, err := f.messageUC.Append(ctx, identity("alice"), ref, entity.TextContent{Text: "hi"})
	require.NoError(t, err)

	err = f.messageUC.Remove(ctx, identity("bob"), ref, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, f.messageUC.Remove(ctx, identity("alice"), ref, msg.ID))

	window, err := f.messageUC.Window(ctx, ref, 10)
	require.NoError(t, err)
	assert.Empty(t, window.Items)

	err = f.messageUC.Remove(ctx, identity("alice"), ref, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestMessageUseCase_WindowGrowsAsSuperset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := directRef(t, "alice", "bob")

	for i := 0; i < 7; i++ {
		_, err := f.messageUC.Append(ctx, identity("alice"), ref, entity.TextContent{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	var previous []*entity.Message
	for limit := testPageSize; limit <= 4*testPageSize; limit += testPageSize {
		window, err := f.messageUC.Window(ctx, ref, limit)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(window.Items), len(previous))
		assert.Equal(t, limit <= 7, window.HasMore, "limit %d", limit)

		// oldest first, and the previous window is its tail
		for i := 1; i < len(window.Items); i++ {
			assert.False(t, window.Items[i].Timestamp.Before(window.Items[i-1].Timestamp))
		}
		offset := len(window.Items) - len(previous)
		for i, m := range previous {
			assert.Equal(t, m.ID, window.Items[offset+i].ID)
		}
		previous = window.Items
	}
	assert.Equal(t, "m6", previous[len(previous)-1].Content.Summary())
}

func TestMessageUseCase_SubscribeRedeliversWindow(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ref := directRef(t, "alice", "bob")

	sub := f.messageUC.Subscribe(ctx, ref, testPageSize)
	defer sub.Close()
	first := <-sub.Updates()
	assert.Empty(t, first)

	_, err := f.messageUC.Append(ctx, identity("alice"), ref, entity.TextContent{Text: "hi"})
	require.NoError(t, err)

	next := <-sub.Updates()
	require.Len(t, next, 1)
	assert.Equal(t, "hi", next[0].Content.Summary())
}

func TestMessageUseCase_DefaultLimitIsOnePage(t *testing.T) {
	f := newFixture(t)
	window, err := f.messageUC.Window(context.Background(), directRef(t, "alice", "bob"), 0)
	require.NoError(t, err)
	assert.Equal(t, testPageSize, window.Limit)
	assert.False(t, window.HasMore)
}
