package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memory "instapro/internal/adapter/repository"
	"instapro/internal/domain/entity"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

func (f *fixture) openSession(t *testing.T, user, conversationID string) *ChatSession {
	t.Helper()
	s := NewChatSession(identity(user), f.conversations, f.messageUC, f.pipeline)
	require.NoError(t, s.Open(context.Background(), conversationID))
	t.Cleanup(s.Close)
	return s
}

func waitForMessages(t *testing.T, s *ChatSession, n int) SessionSnapshot {
	t.Helper()
	var snap SessionSnapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return len(snap.Messages) == n
	}, time.Second, 5*time.Millisecond)
	return snap
}

func TestChatSession_DirectChatScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := directRef(t, "alice", "bob")

	alice := f.openSession(t, "alice", ref.ID)
	bob := f.openSession(t, "bob", ref.ID)
	assert.Equal(t, StateReady, alice.Snapshot().State)

	msg, err := alice.Send(ctx, SendInput{Text: "hi"}, nil)
	require.NoError(t, err)

	snap := waitForMessages(t, bob, 1)
	assert.Equal(t, "alice", snap.Messages[0].Author)
	assert.Equal(t, entity.TextContent{Text: "hi"}, snap.Messages[0].Content)

	sent := f.push.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "uid-bob", sent[0].TargetUID)
	assert.Equal(t, "hi", sent[0].Body)
	assert.Equal(t, "alice fullname", sent[0].Title)
	assert.Equal(t, "https://img/alice.png", sent[0].Icon)

	err = bob.Unsend(ctx, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, alice.Unsend(ctx, msg.ID))
	waitForMessages(t, bob, 0)
	waitForMessages(t, alice, 0)
	assert.Len(t, f.push.sent(), 1)

	conv, err := f.conversations.Resolve(ctx, identity("bob"), ref)
	require.NoError(t, err)
	assert.False(t, conv.LastActivityAt().IsZero())
}

func TestChatSession_OpenFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := NewChatSession(identity("carol"), f.conversations, f.messageUC, f.pipeline)
	err := s.Open(ctx, "alice:bob")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	assert.Equal(t, StateIdle, s.Snapshot().State)

	err = s.Open(ctx, "not a chat")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	// a failed open leaves the session reusable
	require.NoError(t, s.Open(ctx, "bob:carol"))
	assert.Equal(t, StateReady, s.Snapshot().State)
	s.Close()
	s.Close()
	assert.Equal(t, StateClosed, s.Snapshot().State)
}

func TestChatSession_GroupAttachmentSend(t *testing.T) {
	f := newFixture(t)
	group := f.newGroup(t, "carol", "dave", "erin")
	dave := f.openSession(t, "dave", group.ID)

	var (
		mu     sync.Mutex
		events []entity.UploadProgress
	)
	msg, err := dave.Send(context.Background(), SendInput{
		File: &entity.FileInput{Name: "a.png", ContentType: "image/png", Size: int64(len(pngHeader)), Reader: bytesReader(pngHeader)},
	}, func(e entity.UploadProgress) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	require.NoError(t, err)

	att, ok := msg.Content.(entity.AttachmentContent)
	require.True(t, ok)
	assert.Equal(t, entity.MediaImage, att.Kind)
	assert.Equal(t, "image/png", att.MimeType)

	mu.Lock()
	require.NotEmpty(t, events)
	assert.Equal(t, entity.UploadSucceeded, events[len(events)-1].Status)
	mu.Unlock()

	sent := f.push.sent()
	require.Len(t, sent, 2)
	targets := []string{sent[0].TargetUID, sent[1].TargetUID}
	assert.ElementsMatch(t, []string{"uid-carol", "uid-erin"}, targets)
	assert.Equal(t, "image/", sent[0].Body)
}

func TestChatSession_SendRejectsTextAndFileTogether(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, "alice", "alice:bob")

	_, err := s.Send(context.Background(), SendInput{
		Text: "look",
		File: &entity.FileInput{Name: "a.png", ContentType: "image/png", Size: int64(len(pngHeader)), Reader: bytesReader(pngHeader)},
	}, nil)
	assert.True(t, errors.Is(err, errors.CodeInvalidMessage))
	assert.Equal(t, 0, f.storage.uploads())

	_, err = s.Send(context.Background(), SendInput{Text: "   "}, nil)
	assert.True(t, errors.Is(err, errors.CodeInvalidMessage))
	assert.Equal(t, StateReady, s.Snapshot().State)
	assert.Empty(t, f.push.sent())
}

func TestChatSession_SingleFlightSend(t *testing.T) {
	f := newFixture(t)
	f.storage.gate = make(chan struct{})
	s := f.openSession(t, "alice", "alice:bob")

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), SendInput{
			File: &entity.FileInput{Name: "a.png", ContentType: "image/png", Size: int64(len(pngHeader)), Reader: bytesReader(pngHeader)},
		}, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Snapshot().State == StateSending }, time.Second, 5*time.Millisecond)

	_, err := s.Send(context.Background(), SendInput{Text: "second"}, nil)
	assert.True(t, errors.Is(err, errors.CodeConflict))

	close(f.storage.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, s.Snapshot().State)
	waitForMessages(t, s, 1)
}

func TestChatSession_TransferFailureReturnsToReady(t *testing.T) {
	f := newFixture(t)
	f.storage.failErr = fmt.Errorf("bucket unavailable")
	s := f.openSession(t, "alice", "alice:bob")

	_, err := s.Send(context.Background(), SendInput{
		File: &entity.FileInput{Name: "a.png", ContentType: "image/png", Size: int64(len(pngHeader)), Reader: bytesReader(pngHeader)},
	}, nil)
	assert.True(t, errors.Is(err, errors.CodeTransferFailed))
	assert.Equal(t, StateReady, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Messages)
	assert.Empty(t, f.push.sent())
}

func TestChatSession_LoadMore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := directRef(t, "alice", "bob")
	for i := 0; i < 5; i++ {
		_, err := f.messageUC.Append(ctx, identity("bob"), ref, entity.TextContent{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	s := f.openSession(t, "alice", ref.ID)
	snap := s.Snapshot()
	assert.Len(t, snap.Messages, testPageSize)
	assert.True(t, snap.HasMore)
	assert.Equal(t, "m2", snap.Messages[0].Content.Summary())

	loaded, err := s.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)

	snap = s.Snapshot()
	assert.Len(t, snap.Messages, 5)
	assert.Equal(t, 2*testPageSize, snap.Limit)
	assert.False(t, snap.HasMore)
	assert.Equal(t, "m0", snap.Messages[0].Content.Summary())

	loaded, err = s.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 2*testPageSize, s.Snapshot().Limit)

	// live inserts still arrive on the grown window
	_, err = f.messageUC.Append(ctx, identity("bob"), ref, entity.TextContent{Text: "m5"})
	require.NoError(t, err)
	snap = waitForMessages(t, s, 6)
	assert.True(t, snap.HasMore)
}

func TestChatSession_ClosingOneSessionLeavesOthers(t *testing.T) {
	f := newFixture(t)
	ref := directRef(t, "alice", "bob")
	first := f.openSession(t, "alice", ref.ID)
	second := f.openSession(t, "alice", ref.ID)

	first.Close()
	_, ok := <-first.Updates()
	for ok {
		_, ok = <-first.Updates()
	}

	_, err := f.messageUC.Append(context.Background(), identity("bob"), ref, entity.TextContent{Text: "still here"})
	require.NoError(t, err)
	waitForMessages(t, second, 1)
}

// failableMessages hands out real window subscriptions and can break them.
type failableMessages struct {
	*memory.MemoryMessageRepository
	mu   sync.Mutex
	subs []*live.Subscription[[]*entity.Message]
}

func (r *failableMessages) WatchWindow(ctx context.Context, conversationID string, limit int) *live.Subscription[[]*entity.Message] {
	sub := r.MemoryMessageRepository.WatchWindow(ctx, conversationID, limit)
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return sub
}

func (r *failableMessages) failAll(err error) {
	r.mu.Lock()
	subs := append([]*live.Subscription[[]*entity.Message](nil), r.subs...)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.Fail(err)
	}
}

func TestChatSession_UnavailableKeepsLastGoodState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &failableMessages{MemoryMessageRepository: f.messages}
	f.messageUC = NewMessageUseCase(repo, testPageSize)

	ref := directRef(t, "alice", "bob")
	for _, text := range []string{"one", "two"} {
		_, err := f.messageUC.Append(ctx, identity("bob"), ref, entity.TextContent{Text: text})
		require.NoError(t, err)
	}

	s := f.openSession(t, "alice", ref.ID)
	waitForMessages(t, s, 2)

	repo.failAll(errors.Unavailable("Listener dropped", nil))

	var snap SessionSnapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return snap.Err != nil
	}, time.Second, 5*time.Millisecond)

	assert.True(t, errors.Is(snap.Err, errors.CodeUnavailable))
	assert.Equal(t, StateReady, snap.State)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "one", snap.Messages[0].Content.Summary())
	assert.Equal(t, "two", snap.Messages[1].Content.Summary())
}

func TestChatSession_UnexpectedFailureReportedAsUnavailable(t *testing.T) {
	f := newFixture(t)
	repo := &failableMessages{MemoryMessageRepository: f.messages}
	f.messageUC = NewMessageUseCase(repo, testPageSize)

	s := f.openSession(t, "alice", "alice:bob")
	repo.failAll(fmt.Errorf("stream reset"))

	require.Eventually(t, func() bool {
		return errors.Is(s.Snapshot().Err, errors.CodeUnavailable)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateReady, s.Snapshot().State)
}
