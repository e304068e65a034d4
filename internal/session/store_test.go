package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hawy-chat/internal/domain"
	"hawy-chat/internal/repository"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *repository.MemoryStore) {
	t.Helper()
	kv := repository.NewMemoryStore()
	s, err := NewStore(kv, opts...)
	require.NoError(t, err)
	return s, kv
}

func msg(id, text string, sender domain.Sender, ms int64) domain.Message {
	return domain.Message{ID: id, Text: text, Sender: sender, Timestamp: domain.TimestampFromMillis(ms)}
}

func TestNewStore_NilKV(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}

func TestLoadConversation_FreshInstall(t *testing.T) {
	s, _ := newTestStore(t)
	st, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, st.Messages)
}

func TestLoadConversation_StoredLog(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.MultiSet(context.Background(), map[string]string{
		KeyMessages: `[
			{"id":"1","text":"seed","sender":"hawy","timestamp":"2024-05-01T10:00:00.000Z"},
			{"id":"1714557601000","text":"hi","sender":"user","timestamp":"2024-05-01T10:00:01.000Z"},
			{"id":"1714557602000","text":"hello back","sender":"hawy","timestamp":"2024-05-01T10:00:02.500Z"}
		]`,
		KeySessionID: "session_123",
	}))

	st, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "session_123", st.SessionID)
	require.Equal(t, []domain.Message{
		msg("1", "seed", domain.SenderAssistant, 1714557600000),
		msg("1714557601000", "hi", domain.SenderUser, 1714557601000),
		msg("1714557602000", "hello back", domain.SenderAssistant, 1714557602500),
	}, st.Messages)
}

func TestLoadConversation_CorruptLogIsAbsent(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.MultiSet(context.Background(), map[string]string{
		KeyMessages:  `[{"id":"1","text":`,
		KeySessionID: "session_123",
	}))
	_, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadConversation_BadTimestampIsAbsent(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.MultiSet(context.Background(), map[string]string{
		KeyMessages: `[{"id":"1","text":"seed","sender":"assistant","timestamp":"not a date"}]`,
	}))
	_, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadConversation_EmptyLogIsAbsent(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.MultiSet(context.Background(), map[string]string{KeyMessages: `[]`}))
	_, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadConversation_LogWithoutSessionID(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.MultiSet(context.Background(), map[string]string{
		KeyMessages: `[{"id":"1","text":"seed","sender":"assistant","timestamp":"2024-05-01T10:00:00.000Z"}]`,
	}))
	st, found, err := s.LoadConversation(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, st.SessionID)
	require.Len(t, st.Messages, 1)
}

func TestLoadConversation_StoreFault(t *testing.T) {
	s, kv := newTestStore(t)
	kv.FailGet = errors.New("io error")
	_, found, err := s.LoadConversation(context.Background())
	require.False(t, found)
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorContains(t, err, "io error")
}

func TestConversation_RoundTripUnicode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	want := domain.ConversationState{
		SessionID: "session_1714557600000_abc",
		Messages: []domain.Message{
			msg("1714557600000", "Salutare! Eu sunt Hawy Ariciul! 🦔 Haide să învățăm împreună! 🥋", domain.SenderAssistant, 1714557600000),
			msg("1714557600001", "Ce este un tul? 👊🏽 \"quotes\" <tags> &  ", domain.SenderUser, 1714557600001),
		},
	}
	require.NoError(t, s.SaveConversation(ctx, want))

	got, found, err := s.LoadConversation(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)
}

func TestSaveConversation_WritesPersistedShape(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, s.SaveConversation(context.Background(), domain.ConversationState{
		SessionID: "session_9",
		Messages:  []domain.Message{msg("1", "Hi", domain.SenderAssistant, 1704067200000)},
	}))
	snap := kv.Snapshot()
	require.JSONEq(t, `[{"id":"1","text":"Hi","sender":"assistant","timestamp":"2024-01-01T00:00:00.000Z"}]`, snap[KeyMessages])
	require.Equal(t, "session_9", snap[KeySessionID])
}

func TestSaveConversation_StoreFault(t *testing.T) {
	s, kv := newTestStore(t)
	kv.FailSet = errors.New("read-only filesystem")
	err := s.SaveConversation(context.Background(), domain.ConversationState{SessionID: "x"})
	require.ErrorIs(t, err, ErrStorage)
}

func TestSaveConversation_RejectsEmptySessionID(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConversation(ctx, domain.ConversationState{
		SessionID: "session_old",
		Messages:  []domain.Message{msg("1", "Hi", domain.SenderAssistant, 1)},
	}))
	before := kv.Snapshot()

	err := s.SaveConversation(ctx, domain.ConversationState{
		Messages: []domain.Message{msg("2", "new log", domain.SenderAssistant, 2)},
	})
	require.ErrorIs(t, err, ErrEmptySessionID)
	require.Equal(t, before, kv.Snapshot())
}

func TestSaveSessionID(t *testing.T) {
	s, kv := newTestStore(t)
	require.ErrorIs(t, s.SaveSessionID(context.Background(), ""), ErrEmptySessionID)
	require.NoError(t, s.SaveSessionID(context.Background(), "session_1"))
	require.Equal(t, map[string]string{KeySessionID: "session_1"}, kv.Snapshot())
}

func TestClearConversation(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConversation(ctx, domain.ConversationState{
		SessionID: "s",
		Messages:  []domain.Message{msg("1", "Hi", domain.SenderAssistant, 1)},
	}))
	require.NoError(t, kv.MultiSet(ctx, map[string]string{KeyToken: "keep"}))

	require.NoError(t, s.ClearConversation(ctx))
	require.Equal(t, map[string]string{KeyToken: "keep"}, kv.Snapshot())
}

func TestIdentity_SaveLoadClear(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := domain.Identity{Token: "tok", Profile: domain.Profile{Name: "Ana", Email: "ana@example.com"}}

	require.NoError(t, s.SaveIdentity(ctx, id))
	got, found, err := s.LoadIdentity(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, id, got)

	require.NoError(t, s.ClearIdentity(ctx))
	_, found, err = s.LoadIdentity(ctx)
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadIdentity_RequiresTokenAndEmail(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.MultiSet(ctx, map[string]string{KeyToken: "tok", KeyUserName: "Ana"}))
	_, found, err := s.LoadIdentity(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, kv.MultiSet(ctx, map[string]string{KeyUserEmail: "ana@example.com"}))
	require.NoError(t, kv.MultiRemove(ctx, KeyUserName))
	id, found, err := s.LoadIdentity(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "", id.Profile.Name)
}

func TestSaveIdentity_RejectsPartial(t *testing.T) {
	s, kv := newTestStore(t)
	err := s.SaveIdentity(context.Background(), domain.Identity{Token: "tok"})
	require.ErrorIs(t, err, ErrInvalidIdentity)
	require.Empty(t, kv.Snapshot())
}

func TestIdentity_StoreFaults(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	kv.FailGet = boom
	_, _, err := s.LoadIdentity(ctx)
	require.ErrorIs(t, err, ErrStorage)

	kv.FailSet = boom
	err = s.SaveIdentity(ctx, domain.Identity{Token: "t", Profile: domain.Profile{Email: "e"}})
	require.ErrorIs(t, err, ErrStorage)

	kv.FailRemove = boom
	require.ErrorIs(t, s.ClearIdentity(ctx), ErrStorage)
	require.ErrorIs(t, s.ClearConversation(ctx), ErrStorage)
}

func TestKeyPrefix(t *testing.T) {
	s, kv := newTestStore(t, WithKeyPrefix("kid1:"))
	require.NoError(t, s.SaveSessionID(context.Background(), "session_1"))
	require.Equal(t, map[string]string{"kid1:" + KeySessionID: "session_1"}, kv.Snapshot())
}
