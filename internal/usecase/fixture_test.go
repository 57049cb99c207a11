package usecase

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	memory "instapro/internal/adapter/repository"
	"instapro/internal/domain/entity"
	"instapro/internal/domain/service"
	"instapro/internal/infrastructure/storage"
)

type recordingPush struct {
	mu       sync.Mutex
	payloads []service.PushPayload
	err      error
}

func (p *recordingPush) Send(ctx context.Context, payload service.PushPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *recordingPush) sent() []service.PushPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]service.PushPayload(nil), p.payloads...)
}

// countingStorage wraps MemoryStorage and can hold or fail transfers.
type countingStorage struct {
	*storage.MemoryStorage
	mu      sync.Mutex
	calls   int
	failErr error
	gate    chan struct{}
}

func (s *countingStorage) Upload(ctx context.Context, key, contentType string, r io.Reader, onProgress func(int64)) (string, error) {
	s.mu.Lock()
	s.calls++
	gate, failErr := s.gate, s.failErr
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failErr != nil {
		return "", failErr
	}
	return s.MemoryStorage.Upload(ctx, key, contentType, r, onProgress)
}

func (s *countingStorage) uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	users    *memory.MemoryUserRepository
	messages *memory.MemoryMessageRepository
	convs    *memory.MemoryConversationRepository
	files    *memory.MemoryFileMetadataRepository
	storage  *countingStorage
	push     *recordingPush

	directory     *DirectoryUseCase
	presence      *PresenceUseCase
	notifier      *NotificationUseCase
	messageUC     *MessageUseCase
	conversations *ConversationUseCase
	uploads       *UploadUseCase
	pipeline      *SendPipeline
}

const testPageSize = 3

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:    memory.NewMemoryUserRepository(),
		messages: memory.NewMemoryMessageRepository(),
		convs:    memory.NewMemoryConversationRepository(),
		files:    memory.NewMemoryFileMetadataRepository(),
		storage:  &countingStorage{MemoryStorage: storage.NewMemoryStorage("mem://bucket", 1024)},
		push:     &recordingPush{},
	}
	for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		require.NoError(t, f.users.Put(&entity.User{
			UID:       "uid-" + name,
			Username:  name,
			Fullname:  name + " fullname",
			AvatarURL: "https://img/" + name + ".png",
		}))
	}

	f.directory = NewDirectoryUseCase(f.users)
	f.presence = NewPresenceUseCase(f.users)
	f.notifier = NewNotificationUseCase(f.users, f.push, "https://insta.test/")
	f.messageUC = NewMessageUseCase(f.messages, testPageSize)
	f.conversations = NewConversationUseCase(f.convs, f.users, f.notifier)
	f.uploads = NewUploadUseCase(f.storage, f.files)
	f.pipeline = NewSendPipeline(f.uploads, f.messageUC, f.conversations, f.notifier)
	return f
}

func identity(name string) entity.Identity {
	return entity.Identity{UID: "uid-" + name, Username: name}
}

func directRef(t *testing.T, a, b string) entity.ConversationRef {
	t.Helper()
	id, err := entity.DirectChatID(a, b)
	require.NoError(t, err)
	ref, err := entity.ParseConversationRef(id)
	require.NoError(t, err)
	return ref
}

// newGroup creates a group owned by creator with the given plain members.
func (f *fixture) newGroup(t *testing.T, creator string, members ...string) *entity.Group {
	t.Helper()
	group, err := f.conversations.CreateGroup(context.Background(), identity(creator), CreateGroupInput{
		Name:    "friends",
		Members: members,
	})
	require.NoError(t, err)
	f.push.mu.Lock()
	f.push.payloads = nil
	f.push.mu.Unlock()
	return group
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
