package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"hawy-chat/handler"
	"hawy-chat/internal/locale"
)

type chatState interface {
	Language() string
	Authenticated() bool
}

// prompter reads one line of input.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// scanPrompter reads lines from a non-interactive input such as a pipe.
type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.sc.Text(), nil
}

// lineEditor wraps liner with a persistent history file.
type lineEditor struct {
	state    *liner.State
	histFile string
}

func newLineEditor(histFile string) *lineEditor {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	if f, err := os.Open(histFile); err == nil {
		_, _ = state.ReadHistory(f)
		_ = f.Close()
	}
	return &lineEditor{state: state, histFile: histFile}
}

func (e *lineEditor) Prompt(prompt string) (string, error) {
	input, err := e.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(input)
	// passwords stay out of the history file
	if trimmed != "" && !strings.HasPrefix(trimmed, "/login") && !strings.HasPrefix(trimmed, "/signup") {
		e.state.AppendHistory(trimmed)
	}
	return input, nil
}

func (e *lineEditor) Close() {
	defer e.state.Close()
	if err := os.MkdirAll(filepath.Dir(e.histFile), 0o700); err != nil {
		slog.Debug("could not create history dir", "err", err)
		return
	}
	f, err := os.OpenFile(e.histFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		slog.Debug("could not save history", "err", err)
		return
	}
	defer f.Close()
	if _, err := e.state.WriteHistory(f); err != nil {
		slog.Debug("could not save history", "err", err)
	}
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hawy", "history")
}

// newPrompter picks line editing for a terminal and plain scanning otherwise.
func newPrompter() (prompter, func()) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		ed := newLineEditor(historyPath())
		return ed, ed.Close
	}
	return &scanPrompter{sc: bufio.NewScanner(os.Stdin)}, func() {}
}

func runREPL(ctx context.Context, h *handler.Handler, st chatState, in prompter, out io.Writer) error {
	printLines(out, h.Handle(ctx, "/history").Lines)
	if !st.Authenticated() {
		fmt.Fprintln(out, locale.Text(st.Language(), locale.LoginRequired))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := in.Prompt(locale.Text(st.Language(), locale.Prompt))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/") && st.Authenticated() {
			fmt.Fprintln(out, locale.Text(st.Language(), locale.Thinking))
		}

		resp := h.Handle(ctx, input)
		printLines(out, resp.Lines)
		if resp.Quit {
			return nil
		}
	}
}

func printLines(out io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}
