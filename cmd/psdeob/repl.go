package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	psparser "github.com/radkum/ps-parser"
)

const (
	historyFile = ".psdeob_history"
	promptMain  = "ps> "
)

// replCommand runs an interactive session: each line parses against the
// same session, so variables persist between inputs.
func replCommand(newSession func() (*psparser.PowerShellSession, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive deobfuscation session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			return runREPL(session)
		},
	}
}

func runREPL(session *psparser.PowerShellSession) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println("psdeob REPL. Ctrl+C cancels input, Ctrl+D exits. Type :quit to exit.")
	for {
		input, err := line.Prompt(promptMain)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// Ctrl+D or closed input ends the session.
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if trimmed == ":quit" || trimmed == ":q" {
			return nil
		}
		line.AppendHistory(input)

		res, err := session.ParseInput(input)
		if err != nil {
			fmt.Printf("\x1b[31m%v\x1b[0m\n", err)
			continue
		}
		if deob := res.Deobfuscated(); deob != "" {
			fmt.Println(deob)
		}
		if out := res.Output(); out != "" {
			fmt.Printf("\x1b[32m%s\x1b[0m\n", out)
		}
		for _, e := range res.Errors() {
			fmt.Printf("\x1b[31m%v\x1b[0m\n", e)
		}
	}
}
