package runtime

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
)

func newBadgerHub(t *testing.T) (*Hub, *repositories.MessageRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return newHubWithStore(store), store
}

func newHubWithStore(store contract.MessageStore) *Hub {
	log := slog.Default()
	monitor := observability.NewMonitor(log)
	history := NewHistoryLoader(store, DefaultHistoryLimit, log)
	return NewHub(log, store, NewRegistry(), history, monitor, DefaultLeavePrefixLen)
}

func Test_Send_PersistsBeforeBroadcast(t *testing.T) {
	req := require.New(t)
	hub, store := newBadgerHub(t)
	sink := &recordingSink{id: "session-a"}
	hub.Join(sink)

	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "hi"}))

	// The message is recoverable from history right after the broadcast.
	stored, err := store.ReadRecent(50)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hi", stored[0].Text)

	// Echo-back: the sender's own session receives the message too.
	req.Equal([]string{"Welcome!", "hi"}, sink.texts())
}

func Test_Send_GlobalBroadcastOrder(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	first := &recordingSink{id: "session-a"}
	second := &recordingSink{id: "session-b"}
	hub.Join(first)
	hub.Join(second)

	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "one"}))
	req.NoError(hub.Send(domain.ChatMessage{Sender: "bob", Text: "two"}))

	req.Equal([]string{"Welcome!", "one", "two"}, first.texts())
	req.Equal([]string{"Welcome!", "one", "two"}, second.texts())
}

func Test_Join_ReplaysHistoryBeforeLive(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "hi"}))

	joiner := &recordingSink{id: "session-b"}
	hub.Join(joiner)
	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "yo"}))

	// Pre-join traffic arrives via history only: once, in order, before
	// the welcome notice and all live messages.
	req.Equal([]string{"hi", "Welcome!", "yo"}, joiner.texts())
}

func Test_Join_SilentToOthers(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	resident := &recordingSink{id: "session-a"}
	hub.Join(resident)

	hub.Join(&recordingSink{id: "session-b"})

	req.Equal([]string{"Welcome!"}, resident.texts())
}

func Test_Leave_NoticeExcludesLeaver(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	leaver := &recordingSink{id: "abcdef123456"}
	stayer := &recordingSink{id: "session-b"}
	hub.Join(leaver)
	hub.Join(stayer)

	hub.Leave(leaver)

	req.Equal([]string{"Welcome!"}, leaver.texts())
	messages := stayer.received()
	req.Len(messages, 2)
	notice := messages[1]
	req.Equal(domain.SystemSender, notice.Sender)
	req.Contains(notice.Text, "abcdef")
	req.NotContains(notice.Text, "abcdef1")
}

func Test_Leave_SecondLeaveIsSilent(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	leaver := &recordingSink{id: "session-a"}
	stayer := &recordingSink{id: "session-b"}
	hub.Join(leaver)
	hub.Join(stayer)

	hub.Leave(leaver)
	hub.Leave(leaver)

	req.Len(stayer.received(), 2)
}

func Test_Send_FaultIsolation(t *testing.T) {
	req := require.New(t)
	hub, _ := newBadgerHub(t)
	faulty := &recordingSink{id: "session-x"}
	healthyOne := &recordingSink{id: "session-y"}
	healthyTwo := &recordingSink{id: "session-z"}
	hub.Join(faulty)
	hub.Join(healthyOne)
	hub.Join(healthyTwo)
	faulty.mu.Lock()
	faulty.fail = true
	faulty.mu.Unlock()

	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "still delivered"}))

	req.Contains(healthyOne.texts(), "still delivered")
	req.Contains(healthyTwo.texts(), "still delivered")
	// The faulty session is scheduled for removal, asynchronously.
	req.Eventually(faulty.isClosed, time.Second, 10*time.Millisecond)
}

func Test_Send_StorageFailureNoBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().ReadRecent(gomock.Any()).Return(nil, nil).Times(1)
	store.EXPECT().Append(gomock.Any()).Return(domain.StoredMessage{},
		fmt.Errorf("%w: disk gone", errors.ErrStorage)).Times(1)

	hub := newHubWithStore(store)
	sink := &recordingSink{id: "session-a"}
	hub.Join(sink)

	err := hub.Send(domain.ChatMessage{Sender: "alice", Text: "hi"})
	req.ErrorIs(err, errors.ErrStorage)
	req.Equal([]string{"Welcome!"}, sink.texts())
}

func Test_Send_OversizedTextRejectedBeforePersistence(t *testing.T) {
	req := require.New(t)
	hub, store := newBadgerHub(t)
	sink := &recordingSink{id: "session-a"}
	hub.Join(sink)

	err := hub.Send(domain.ChatMessage{Sender: "alice", Text: strings.Repeat("x", 2001)})
	req.ErrorIs(err, errors.ErrValidation)

	stored, err := store.ReadRecent(50)
	req.NoError(err)
	req.Empty(stored)
	req.Equal([]string{"Welcome!"}, sink.texts())
}

// Both text and mediaUrl may be absent; such a message is still
// accepted, persisted, and broadcast (source behavior, kept as-is).
func Test_Send_EmptyContentAcceptedAndBroadcast(t *testing.T) {
	req := require.New(t)
	hub, store := newBadgerHub(t)
	sink := &recordingSink{id: "session-a"}
	hub.Join(sink)

	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice"}))

	stored, err := store.ReadRecent(50)
	req.NoError(err)
	req.Len(stored, 1)
	req.Len(sink.received(), 2)
}

func Test_Join_HistoryFailureStillJoinsLive(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().ReadRecent(gomock.Any()).
		Return(nil, fmt.Errorf("%w: read failed", errors.ErrStorage)).Times(1)
	stored := domain.StoredMessage{ID: 1, Sender: "alice", Text: "yo", Timestamp: time.Now().UTC()}
	store.EXPECT().Append(gomock.Any()).Return(stored, nil).Times(1)

	hub := newHubWithStore(store)
	sink := &recordingSink{id: "session-a"}
	hub.Join(sink)

	// History degraded to empty, live participation still works.
	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "yo"}))
	req.Equal([]string{"Welcome!", "yo"}, sink.texts())
}

func Test_Send_NormalizesBlanksToAbsent(t *testing.T) {
	req := require.New(t)
	hub, store := newBadgerHub(t)

	req.NoError(hub.Send(domain.ChatMessage{Sender: "alice", Text: "  ", MediaURL: " "}))

	stored, err := store.ReadRecent(50)
	req.NoError(err)
	req.Len(stored, 1)
	req.Empty(stored[0].Text)
	req.Empty(stored[0].MediaURL)
}
