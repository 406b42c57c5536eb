// Command demo plays a script in the terminal. Without -script it plays
// the built-in Clustal walkthrough.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/server"
	"github.com/stwalsh4118/demoreel/internal/session"
	"github.com/stwalsh4118/demoreel/internal/tui"
)

const eventBuffer = 256

func main() {
	var scriptPath, logPath, logLevel string
	var paused bool

	flag.StringVar(&scriptPath, "script", "", "script file to play (YAML, JSON or TOML; default: built-in demo)")
	flag.StringVar(&logPath, "log", "", "write logs to this file (default: discard)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&paused, "paused", false, "start idle instead of playing immediately")
	flag.Parse()

	if err := run(scriptPath, logPath, logLevel, !paused); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptPath, logPath, logLevel string, autoplay bool) error {
	// The terminal belongs to the view; logs go to a file or nowhere
	var out io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger.InitWithWriter(logLevel, false, out)

	player := config.PlayerConfig{ScriptPath: scriptPath}
	fallback, err := server.LoadDefaultScript(player)
	if err != nil {
		return err
	}

	sess, err := session.New(uuid.New(), "", fallback.Name, fallback.Timeline, session.Options{
		EventBuffer: eventBuffer,
		Autoplay:    false,
	})
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer sess.Stop()

	sub, err := sess.Subscribe(context.Background())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sess.Unsubscribe(sub)

	// Play after subscribing so the first segment's events are not missed
	if autoplay {
		if _, err := sess.Execute(context.Background(), session.CommandPlay, 0); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
	}

	model := tui.New(fallback.Name, fallback.Timeline, sess, sub.Events())
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("terminal player failed: %w", err)
	}
	return nil
}
