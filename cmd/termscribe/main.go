package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"termscribe/internal/config"
	"termscribe/internal/ptyhost"
	"termscribe/internal/relay"
	"termscribe/internal/session"
)

// termscribe wraps an interactive shell: everything looks and behaves like
// the plain shell, while completed commands are appended to a log file.
func main() {
	// Keep stdout clean for the shell; diagnostics go to stderr.
	log.SetOutput(os.Stderr)

	if err := config.Load(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	cmdLog, err := relay.OpenCommandLog(config.Cfg.CommandLogPath)
	if err != nil {
		log.Fatalf("Command log: %v", err)
	}
	defer cmdLog.Close()

	size := ptyhost.DefaultSize
	if cols, rows, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		size = ptyhost.Size{Cols: uint16(cols), Rows: uint16(rows)}
	}

	s, err := session.Start("local", session.Config{
		Shell:             config.Cfg.Shell,
		IntegrationScript: config.Cfg.IntegrationScript,
		Size:              size,
		ScrollbackBytes:   config.Cfg.ScrollbackBytes,
	})
	if err != nil {
		log.Fatalf("Start shell: %v", err)
	}
	defer s.Close()

	r := &relay.Local{
		Session: s,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Log:     cmdLog,
	}
	if err := r.Run(); err != nil {
		log.Fatalf("Relay: %v", err)
	}

	fmt.Printf("\nSession ended. Commands logged to %s\n", config.Cfg.CommandLogPath)
}
