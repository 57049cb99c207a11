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

func pngInput() SendInput {
	return SendInput{File: &entity.FileInput{
		Name:        "a.png",
		ContentType: "image/png",
		Size:        int64(len(pngHeader)),
		Reader:      bytesReader(pngHeader),
	}}
}

func TestSendPipeline_OneSendPerSendBox(t *testing.T) {
	f := newFixture(t)
	f.storage.gate = make(chan struct{})
	ctx := context.Background()
	alice := identity("alice")

	conv, err := f.conversations.Resolve(ctx, alice, directRef(t, "alice", "bob"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Send(ctx, alice, conv, pngInput(), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.storage.uploads() == 1 }, time.Second, 5*time.Millisecond)

	_, err = f.pipeline.Send(ctx, alice, conv, pngInput(), nil)
	assert.True(t, errors.Is(err, errors.CodeConflict))
	_, err = f.pipeline.Send(ctx, alice, conv, SendInput{Text: "meanwhile"}, nil)
	assert.True(t, errors.Is(err, errors.CodeConflict))
	assert.Equal(t, 1, f.storage.uploads())

	// other send boxes are independent
	bobView, err := f.conversations.Resolve(ctx, identity("bob"), directRef(t, "alice", "bob"))
	require.NoError(t, err)
	_, err = f.pipeline.Send(ctx, identity("bob"), bobView, SendInput{Text: "from bob"}, nil)
	require.NoError(t, err)

	close(f.storage.gate)
	require.NoError(t, <-done)

	_, err = f.pipeline.Send(ctx, alice, conv, SendInput{Text: "after"}, nil)
	require.NoError(t, err)

	window, err := f.messageUC.Window(ctx, conv.ConversationRef(), testPageSize)
	require.NoError(t, err)
	assert.Len(t, window.Items, 3)
}

func TestSendPipeline_ReleasesSendBoxOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := identity("alice")

	conv, err := f.conversations.Resolve(ctx, alice, directRef(t, "alice", "bob"))
	require.NoError(t, err)

	_, err = f.pipeline.Send(ctx, alice, conv, SendInput{Text: " "}, nil)
	assert.True(t, errors.Is(err, errors.CodeInvalidMessage))

	_, err = f.pipeline.Send(ctx, alice, conv, SendInput{Text: "ok"}, nil)
	require.NoError(t, err)
}
