// Package session persists the current conversation and the authenticated
// identity into a durable key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"hawy-chat/internal/domain"
	"hawy-chat/internal/repository"
)

// Storage keys.
const (
	KeyMessages  = "hawy_messages"
	KeySessionID = "hawy_session_id"
	KeyToken     = "hawy_token"
	KeyUserName  = "hawy_user_name"
	KeyUserEmail = "hawy_user_email"
)

// ErrStorage marks a local read or write failure. It is always recoverable.
var ErrStorage = errors.New("storage fault")

// ErrEmptySessionID is returned when asked to save a conversation or a
// session id without an id.
var ErrEmptySessionID = errors.New("session: session id must not be empty")

// ErrInvalidIdentity is returned when asked to save an identity that lacks a
// token or an email.
var ErrInvalidIdentity = errors.New("session: identity requires token and email")

// Store is the durable side of a conversation and an identity.
type Store struct {
	kv     repository.KeyValue
	prefix string
	logger *slog.Logger
}

type Option func(*Store)

// WithKeyPrefix namespaces every key, e.g. per profile directory.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(kv repository.KeyValue, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("session: key-value store must not be nil")
	}
	s := &Store{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// LoadConversation returns the persisted conversation. A missing, empty or
// unparsable log reports found=false with a nil error so the caller can start
// fresh; only store failures are returned as errors. The session id may be
// empty when the log exists without one.
func (s *Store) LoadConversation(ctx context.Context) (domain.ConversationState, bool, error) {
	msgKey, sidKey := s.key(KeyMessages), s.key(KeySessionID)
	values, err := s.kv.MultiGet(ctx, msgKey, sidKey)
	if err != nil {
		return domain.ConversationState{}, false, storageErr("load conversation", err)
	}
	raw, ok := values[msgKey]
	if !ok {
		return domain.ConversationState{}, false, nil
	}
	messages, err := DecodeMessages(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable message log", "key", msgKey, "err", err)
		return domain.ConversationState{}, false, nil
	}
	if len(messages) == 0 {
		return domain.ConversationState{}, false, nil
	}
	return domain.ConversationState{
		SessionID: values[sidKey],
		Messages:  messages,
	}, true, nil
}

// SaveConversation overwrites the message log and session id together. Each
// key always holds a complete encoding of its own value. A state without a
// session id is rejected so a stale id is never left paired with a new log.
func (s *Store) SaveConversation(ctx context.Context, state domain.ConversationState) error {
	if state.SessionID == "" {
		return ErrEmptySessionID
	}
	raw, err := EncodeMessages(state.Messages)
	if err != nil {
		return storageErr("save conversation", err)
	}
	values := map[string]string{
		s.key(KeyMessages):  raw,
		s.key(KeySessionID): state.SessionID,
	}
	if err := s.kv.MultiSet(ctx, values); err != nil {
		return storageErr("save conversation", err)
	}
	return nil
}

// SaveSessionID writes only the session id.
func (s *Store) SaveSessionID(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if err := s.kv.MultiSet(ctx, map[string]string{s.key(KeySessionID): sessionID}); err != nil {
		return storageErr("save session id", err)
	}
	return nil
}

func (s *Store) ClearConversation(ctx context.Context) error {
	if err := s.kv.MultiRemove(ctx, s.key(KeyMessages), s.key(KeySessionID)); err != nil {
		return storageErr("clear conversation", err)
	}
	return nil
}

// LoadIdentity reports found=false unless both a token and an email are stored.
func (s *Store) LoadIdentity(ctx context.Context) (domain.Identity, bool, error) {
	tokenKey, nameKey, emailKey := s.key(KeyToken), s.key(KeyUserName), s.key(KeyUserEmail)
	values, err := s.kv.MultiGet(ctx, tokenKey, nameKey, emailKey)
	if err != nil {
		return domain.Identity{}, false, storageErr("load identity", err)
	}
	id := domain.Identity{
		Token: values[tokenKey],
		Profile: domain.Profile{
			Name:  values[nameKey],
			Email: values[emailKey],
		},
	}
	if !id.Valid() {
		return domain.Identity{}, false, nil
	}
	return id, true, nil
}

// SaveIdentity writes token, name and email together. Invalid identities are
// rejected so a partial identity is never persisted.
func (s *Store) SaveIdentity(ctx context.Context, id domain.Identity) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	err := s.kv.MultiSet(ctx, map[string]string{
		s.key(KeyToken):     id.Token,
		s.key(KeyUserName):  id.Profile.Name,
		s.key(KeyUserEmail): id.Profile.Email,
	})
	if err != nil {
		return storageErr("save identity", err)
	}
	return nil
}

func (s *Store) ClearIdentity(ctx context.Context) error {
	if err := s.kv.MultiRemove(ctx, s.key(KeyToken), s.key(KeyUserName), s.key(KeyUserEmail)); err != nil {
		return storageErr("clear identity", err)
	}
	return nil
}

// EncodeMessages renders the log in its persisted JSON form.
func EncodeMessages(msgs []domain.Message) (string, error) {
	if msgs == nil {
		msgs = []domain.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("session: encode messages: %w", err)
	}
	return string(raw), nil
}

// DecodeMessages parses a persisted log, including its timestamps.
func DecodeMessages(raw string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("session: decode messages: %w", err)
	}
	return msgs, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("session: %s: %w: %w", op, ErrStorage, err)
}
