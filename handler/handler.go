package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"hawy-chat/internal/domain"
	"hawy-chat/internal/locale"
	"hawy-chat/internal/usecase"
)

// Controller is the part of usecase.Controller the terminal front-end drives.
type Controller interface {
	Send(ctx context.Context, text string) (usecase.SendResult, error)
	Reset(ctx context.Context) error
	Logout(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, name, email, password string) error
	SetLanguage(tag string) string
	Language() string
	Conversation() domain.ConversationState
	Identity() (domain.Identity, bool)
}

// Response is what one input line produces: lines to print and whether the
// REPL should exit.
type Response struct {
	Lines         []string
	Quit          bool
	CorrelationID string
}

type Handler struct {
	ctrl   Controller
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(ctrl Controller, opts ...Option) (*Handler, error) {
	if ctrl == nil {
		return nil, errors.New("controller is nil")
	}
	h := &Handler{ctrl: ctrl, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle runs one input line. Every failure is rendered as text; Handle never
// returns an error.
func (h *Handler) Handle(ctx context.Context, line string) Response {
	resp := Response{CorrelationID: uuid.NewString()}
	logger := h.logger.With("correlation_id", resp.CorrelationID)

	line = strings.TrimSpace(line)
	if line == "" {
		return resp
	}
	if !strings.HasPrefix(line, "/") {
		resp.Lines = h.send(ctx, logger, line)
		return resp
	}

	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	lang := h.ctrl.Language()
	logger.Debug("command", "name", cmd)

	switch cmd {
	case "/quit", "/exit":
		resp.Quit = true
	case "/help":
		resp.Lines = []string{locale.Text(lang, locale.Help)}
	case "/reset":
		h.logStorage(logger, "reset", h.ctrl.Reset(ctx))
		resp.Lines = append([]string{locale.Text(lang, locale.ResetDone)}, h.greeting()...)
	case "/logout":
		h.logStorage(logger, "logout", h.ctrl.Logout(ctx))
		resp.Lines = []string{locale.Text(lang, locale.LoggedOut), locale.Text(lang, locale.LoginRequired)}
	case "/login":
		if len(args) != 2 {
			resp.Lines = []string{locale.Text(lang, locale.LoginRequired)}
			break
		}
		resp.Lines = h.auth(logger, h.ctrl.Login(ctx, args[0], args[1]))
	case "/signup":
		// The name may contain spaces; email and password are the last two fields.
		if len(args) < 3 {
			resp.Lines = []string{locale.Text(lang, locale.LoginRequired)}
			break
		}
		n := len(args)
		name := strings.Join(args[:n-2], " ")
		resp.Lines = h.auth(logger, h.ctrl.Signup(ctx, name, args[n-2], args[n-1]))
	case "/lang":
		if len(args) == 0 {
			resp.Lines = []string{lang}
			break
		}
		resp.Lines = []string{h.ctrl.SetLanguage(args[0])}
	case "/history":
		resp.Lines = FormatHistory(h.ctrl.Conversation())
	default:
		resp.Lines = []string{locale.Text(lang, locale.Help)}
	}
	return resp
}

func (h *Handler) send(ctx context.Context, logger *slog.Logger, text string) []string {
	lang := h.ctrl.Language()
	res, err := h.ctrl.Send(ctx, text)
	if err != nil {
		switch {
		case usecase.IsRejected(err, usecase.ReasonEmptyMessage):
			return nil
		case usecase.IsRejected(err, usecase.ReasonUnauthenticated):
			return []string{locale.Text(lang, locale.LoginRequired)}
		case usecase.IsRejected(err, usecase.ReasonSendInFlight):
			return []string{locale.Text(lang, locale.Busy)}
		case usecase.IsRejected(err, usecase.ReasonMessageTooLong):
			return []string{locale.Format(lang, locale.TooLong, usecase.MaxMessageRunes)}
		default:
			logger.Error("send failed", "err", err)
			return []string{locale.Text(lang, locale.ChatFallback)}
		}
	}
	if res.ChatErr != nil {
		logger.Warn("chat request failed, showing fallback", "err", res.ChatErr)
	}
	h.logStorage(logger, "send", res.StorageErr)
	if res.Discarded {
		return nil
	}
	return []string{formatMessage(res.Reply)}
}

func (h *Handler) auth(logger *slog.Logger, err error) []string {
	lang := h.ctrl.Language()
	var uerr *usecase.Error
	if err != nil && errors.As(err, &uerr) {
		switch uerr.Code {
		case usecase.ErrorAuth:
			logger.Info("authentication failed", "reason", uerr.Reason)
			return []string{locale.Format(lang, locale.AuthFailed, uerr.Detail)}
		case usecase.ErrorRejected:
			return []string{locale.Text(lang, locale.LoginRequired)}
		}
	}
	h.logStorage(logger, "auth", err)

	id, ok := h.ctrl.Identity()
	if !ok {
		return []string{locale.Text(lang, locale.LoginRequired)}
	}
	name := id.Profile.Name
	if name == "" {
		name = id.Profile.Email
	}
	return append([]string{locale.Format(lang, locale.LoggedIn, name)}, h.greeting()...)
}

func (h *Handler) greeting() []string {
	conv := h.ctrl.Conversation()
	if last, ok := conv.Last(); ok {
		return []string{formatMessage(last)}
	}
	return nil
}

func (h *Handler) logStorage(logger *slog.Logger, op string, err error) {
	if err == nil {
		return
	}
	if usecase.HasCode(err, usecase.ErrorStorage) {
		logger.Warn("local storage fault", "op", op, "err", err)
		return
	}
	logger.Error("operation failed", "op", op, "err", err)
}

// FormatHistory renders the whole conversation, oldest first.
func FormatHistory(conv domain.ConversationState) []string {
	lines := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		lines = append(lines, fmt.Sprintf("[%s] %s", m.Timestamp.Time().Local().Format("15:04"), formatMessage(m)))
	}
	return lines
}

func formatMessage(m domain.Message) string {
	if m.Sender == domain.SenderUser {
		return "you: " + m.Text
	}
	return "Hawy: " + m.Text
}
