package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"hawy-chat/internal/domain"
	"hawy-chat/internal/integrations/backend"
	"hawy-chat/internal/locale"
)

// SessionStore is the durable side of the conversation and the identity.
type SessionStore interface {
	LoadConversation(ctx context.Context) (domain.ConversationState, bool, error)
	SaveConversation(ctx context.Context, state domain.ConversationState) error
	SaveSessionID(ctx context.Context, sessionID string) error
	ClearConversation(ctx context.Context) error
	LoadIdentity(ctx context.Context) (domain.Identity, bool, error)
	SaveIdentity(ctx context.Context, id domain.Identity) error
	ClearIdentity(ctx context.Context) error
}

// BackendClient is the remote chat and auth API.
type BackendClient interface {
	Chat(ctx context.Context, in backend.ChatRequest) (backend.ChatReply, error)
	Login(ctx context.Context, in backend.LoginRequest) (backend.AuthResponse, error)
	Signup(ctx context.Context, in backend.SignupRequest) (backend.AuthResponse, error)
}

// MaxMessageRunes bounds the text of a single user message.
const MaxMessageRunes = 500

type detailer interface {
	Detail() string
}

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateSending
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// SendResult describes one completed send.
type SendResult struct {
	User  domain.Message
	Reply domain.Message
	// Fallback is set when Reply is the canned failure message; ChatErr holds
	// the absorbed chat fault.
	Fallback bool
	ChatErr  error
	// Discarded is set when the conversation was reset or the user logged out
	// while the request was in flight; the reply was not appended.
	Discarded bool
	// StorageErr collects persistence faults hit during the send. The
	// in-memory log stays authoritative.
	StorageErr error
}

// Controller owns the in-memory conversation and identity for one run of the
// client and drives startup, send, reset, login and logout.
type Controller struct {
	store  SessionStore
	api    BackendClient
	logger *slog.Logger

	now          func() time.Time
	newSessionID func(now time.Time) string

	startOnce sync.Once
	startErr  error

	mu            sync.Mutex
	state         State
	conv          domain.ConversationState
	identity      domain.Identity
	authenticated bool
	language      string
	lastID        int64
	generation    uint64
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLanguage sets the initial language tag sent with chat requests.
func WithLanguage(tag string) Option {
	return func(c *Controller) {
		c.language = locale.Match(tag)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithSessionIDGenerator(gen func(now time.Time) string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newSessionID = gen
		}
	}
}

func NewController(store SessionStore, api BackendClient, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if api == nil {
		return nil, errors.New("usecase: backend client must not be nil")
	}
	c := &Controller{
		store:        store,
		api:          api,
		logger:       slog.Default(),
		now:          time.Now,
		newSessionID: defaultSessionID,
		language:     "en",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var newUUID = func() string {
	return uuid.NewString()
}

func defaultSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), newUUID())
}

// Start rehydrates the conversation and identity from the store. Both loads
// run concurrently and must finish before the controller becomes ready.
// Storage faults are logged and returned joined; the controller is ready
// either way, falling back to a fresh conversation and no identity.
func (c *Controller) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.startErr = c.start(ctx)
	})
	return c.startErr
}

func (c *Controller) start(ctx context.Context) error {
	var (
		conv      domain.ConversationState
		convFound bool
		convErr   error
		id        domain.Identity
		idFound   bool
		idErr     error
	)
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		conv, convFound, convErr = c.store.LoadConversation(ctx)
	})
	wg.Go(func() {
		id, idFound, idErr = c.store.LoadIdentity(ctx)
	})
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if idErr != nil {
		c.logger.Warn("could not load identity, starting signed out", "err", idErr)
		errs = append(errs, newError(ErrorStorage, "load_identity", idErr))
	} else if idFound {
		c.identity = id
		c.authenticated = true
	}

	if convErr != nil {
		c.logger.Warn("could not load conversation, starting fresh", "err", convErr)
		errs = append(errs, newError(ErrorStorage, "load_conversation", convErr))
	}

	if convFound && convErr == nil {
		c.conv = conv
		c.lastID = maxNumericID(conv.Messages)
		if c.conv.SessionID == "" {
			if err := c.ensureSessionIDLocked(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		c.conv = c.seedLocked()
		// After a read fault the stored log may still be intact; the seed stays
		// in memory until the next send persists it.
		if convErr == nil {
			if err := c.persistLocked(ctx, "seed_conversation"); err != nil {
				errs = append(errs, err)
			}
		}
	}

	c.state = StateReady
	c.logger.Info("conversation ready",
		"session_id", c.conv.SessionID,
		"messages", len(c.conv.Messages),
		"authenticated", c.authenticated,
	)
	return errors.Join(errs...)
}

// Send appends a user turn, asks the backend for a reply and appends it, or
// the canned fallback when the request fails. Empty or oversized input, a
// send already in flight, an unauthenticated or not yet started controller are
// rejected without touching any state.
func (c *Controller) Send(ctx context.Context, text string) (SendResult, error) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	switch {
	case c.state == StateUninitialized:
		c.mu.Unlock()
		return SendResult{}, newError(ErrorRejected, ReasonNotReady, nil)
	case c.state == StateSending:
		c.mu.Unlock()
		return SendResult{}, newError(ErrorRejected, ReasonSendInFlight, nil)
	case text == "":
		c.mu.Unlock()
		return SendResult{}, newError(ErrorRejected, ReasonEmptyMessage, nil)
	case utf8.RuneCountInString(text) > MaxMessageRunes:
		c.mu.Unlock()
		return SendResult{}, newError(ErrorRejected, ReasonMessageTooLong, nil)
	case !c.authenticated:
		c.mu.Unlock()
		return SendResult{}, newError(ErrorRejected, ReasonUnauthenticated, nil)
	}

	c.state = StateSending
	var res SendResult
	var storageErrs []error

	// A send is never issued without a session id.
	if err := c.ensureSessionIDLocked(ctx); err != nil {
		storageErrs = append(storageErrs, err)
	}
	res.User = c.newMessageLocked(domain.SenderUser, text)
	c.conv = c.conv.Append(res.User)
	if err := c.persistLocked(ctx, "persist_user_message"); err != nil {
		storageErrs = append(storageErrs, err)
	}

	req := backend.ChatRequest{
		Message:   text,
		SessionID: c.conv.SessionID,
		Language:  c.language,
		Token:     c.identity.Token,
	}
	gen := c.generation
	c.mu.Unlock()

	reply, chatErr := c.api.Chat(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateReady

	if gen != c.generation {
		c.logger.Info("dropping reply for a replaced conversation", "session_id", req.SessionID)
		res.Discarded = true
		res.StorageErr = errors.Join(storageErrs...)
		return res, nil
	}

	replyText := reply.Response
	if chatErr != nil {
		c.logger.Warn("chat request failed", "session_id", req.SessionID, "err", chatErr)
		res.Fallback = true
		res.ChatErr = newError(ErrorChatRequest, "chat_failed", chatErr)
		replyText = locale.Text(c.language, locale.ChatFallback)
	}
	res.Reply = c.newMessageLocked(domain.SenderAssistant, replyText)
	c.conv = c.conv.Append(res.Reply)
	// The reply is persisted even if the caller's context expired during the request.
	if err := c.persistLocked(context.WithoutCancel(ctx), "persist_reply"); err != nil {
		storageErrs = append(storageErrs, err)
	}
	res.StorageErr = errors.Join(storageErrs...)
	return res, nil
}

// Reset replaces the conversation with a fresh greeting and a new session id.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized {
		return newError(ErrorRejected, ReasonNotReady, nil)
	}
	c.generation++
	c.conv = c.seedLocked()
	c.logger.Info("conversation reset", "session_id", c.conv.SessionID)
	return c.persistLocked(ctx, "reset_conversation")
}

// Logout forgets the identity and the conversation tied to it, in memory and
// in the store.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized {
		return newError(ErrorRejected, ReasonNotReady, nil)
	}
	c.generation++
	c.identity = domain.Identity{}
	c.authenticated = false
	c.conv = c.seedLocked()

	var errs []error
	if err := c.store.ClearIdentity(ctx); err != nil {
		c.logger.Warn("could not clear stored identity", "err", err)
		errs = append(errs, newError(ErrorStorage, "clear_identity", err))
	}
	if err := c.store.ClearConversation(ctx); err != nil {
		c.logger.Warn("could not clear stored conversation", "err", err)
		errs = append(errs, newError(ErrorStorage, "clear_conversation", err))
	}
	c.logger.Info("logged out")
	return errors.Join(errs...)
}

// Login authenticates against the backend and keeps the identity on success.
// Auth failures leave every piece of state untouched.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return newError(ErrorRejected, ReasonMissingField, nil)
	}
	out, err := c.api.Login(ctx, backend.LoginRequest{Email: email, Password: password})
	if err != nil {
		return authError("login_failed", "Login failed", err)
	}
	return c.applyAuth(ctx, out)
}

// Signup registers a new user and keeps the identity on success.
func (c *Controller) Signup(ctx context.Context, name, email, password string) error {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return newError(ErrorRejected, ReasonMissingField, nil)
	}
	out, err := c.api.Signup(ctx, backend.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return authError("signup_failed", "Signup failed", err)
	}
	return c.applyAuth(ctx, out)
}

func (c *Controller) applyAuth(ctx context.Context, out backend.AuthResponse) error {
	id := domain.Identity{
		Token:   out.Token,
		Profile: domain.Profile{Name: out.User.Name, Email: out.User.Email},
	}
	if !id.Valid() {
		return authError("invalid_auth_response", "Login failed", errors.New("auth response lacks token or email"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
	c.authenticated = true
	c.logger.Info("authenticated", "email", id.Profile.Email)
	if err := c.store.SaveIdentity(ctx, id); err != nil {
		c.logger.Warn("could not persist identity", "err", err)
		return newError(ErrorStorage, "save_identity", err)
	}
	return nil
}

func authError(reason, fallback string, err error) *Error {
	e := newError(ErrorAuth, reason, err)
	e.Detail = fallback
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		e.Detail = d.Detail()
	}
	return e
}

// SetLanguage changes the language of later chat requests and canned
// messages. It returns the matched language.
func (c *Controller) SetLanguage(tag string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = locale.Match(tag)
	return c.language
}

func (c *Controller) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Conversation returns a copy of the current conversation.
func (c *Controller) Conversation() domain.ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

func (c *Controller) Identity() (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.authenticated
}

func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// seedLocked builds a fresh conversation: one greeting and a new session id.
// The greeting is stamped from the clock alone; the log it replaces does not
// bound its timestamp.
func (c *Controller) seedLocked() domain.ConversationState {
	now := c.now()
	return domain.ConversationState{
		SessionID: c.newSessionID(now),
		Messages: []domain.Message{{
			ID:        c.nextIDLocked(now),
			Text:      locale.Text(c.language, locale.Greeting),
			Sender:    domain.SenderAssistant,
			Timestamp: domain.NewTimestamp(now),
		}},
	}
}

// newMessageLocked stamps a message for the current log with a strictly
// increasing id and a timestamp that never goes backwards within the log.
func (c *Controller) newMessageLocked(sender domain.Sender, text string) domain.Message {
	now := c.now()
	id := c.nextIDLocked(now)
	ts := domain.NewTimestamp(now)
	if last, ok := c.conv.Last(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	return domain.Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Timestamp: ts,
	}
}

// nextIDLocked returns max(now, last+1) in milliseconds.
func (c *Controller) nextIDLocked(now time.Time) string {
	ms := now.UnixMilli()
	if ms <= c.lastID {
		ms = c.lastID + 1
	}
	c.lastID = ms
	return strconv.FormatInt(ms, 10)
}

func (c *Controller) ensureSessionIDLocked(ctx context.Context) error {
	if c.conv.SessionID != "" {
		return nil
	}
	c.conv.SessionID = c.newSessionID(c.now())
	if err := c.store.SaveSessionID(ctx, c.conv.SessionID); err != nil {
		c.logger.Warn("could not persist session id", "session_id", c.conv.SessionID, "err", err)
		return newError(ErrorStorage, "save_session_id", err)
	}
	return nil
}

func (c *Controller) persistLocked(ctx context.Context, reason string) error {
	if err := c.store.SaveConversation(ctx, c.conv.Clone()); err != nil {
		c.logger.Warn("could not persist conversation", "reason", reason, "err", err)
		return newError(ErrorStorage, reason, err)
	}
	return nil
}

func maxNumericID(msgs []domain.Message) int64 {
	var highest int64
	for _, m := range msgs {
		if n, err := strconv.ParseInt(m.ID, 10, 64); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
