// Command psdeob analyzes PowerShell scripts for obfuscation: it prints the
// deobfuscated rendering, the captured output stream, and the recorded
// evaluation errors without ever executing unsafe commands.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	psparser "github.com/radkum/ps-parser"
)

func main() {
	var (
		useEnv     bool
		varsFile   string
		culture    string
		forceEval  bool
		showTokens bool
		showOutput bool
		noColor    bool
	)

	rootCmd := &cobra.Command{
		Use:   "psdeob [script.ps1]",
		Short: "Deobfuscate PowerShell scripts by safe evaluation",
		Long: "psdeob parses a PowerShell script, evaluates every safe sub-expression,\n" +
			"and prints a deobfuscated rendering. Unsafe commands are preserved\n" +
			"verbatim with their arguments substituted; nothing is ever executed\n" +
			"against the host.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args)
			if err != nil {
				return err
			}
			session, err := buildSession(useEnv, varsFile, culture, forceEval)
			if err != nil {
				return err
			}
			return analyze(cmd.OutOrStdout(), session, source, analyzeOptions{
				showTokens: showTokens,
				showOutput: showOutput,
				color:      !noColor && term.IsTerminal(int(os.Stdout.Fd())),
			})
		},
	}

	rootCmd.PersistentFlags().BoolVar(&useEnv, "env", false, "Snapshot the process environment into $env:")
	rootCmd.PersistentFlags().StringVar(&varsFile, "vars", "", "YAML file preseeding variables (global/script/local/env sections)")
	rootCmd.PersistentFlags().StringVar(&culture, "culture", "", "BCP 47 culture tag for -f formatting")
	rootCmd.PersistentFlags().BoolVar(&forceEval, "force-var-eval", false, "Treat undefined variables as $null instead of opaque")
	rootCmd.Flags().BoolVar(&showTokens, "tokens", false, "Dump the token inventory")
	rootCmd.Flags().BoolVar(&showOutput, "output", true, "Print the captured output stream")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(replCommand(func() (*psparser.PowerShellSession, error) {
		return buildSession(useEnv, varsFile, culture, forceEval)
	}))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildSession(useEnv bool, varsFile, culture string, forceEval bool) (*psparser.PowerShellSession, error) {
	var opts []psparser.Option
	if useEnv {
		opts = append(opts, psparser.WithProcessEnvironment())
	}
	if culture != "" {
		opts = append(opts, psparser.WithCulture(culture))
	}
	if forceEval {
		opts = append(opts, psparser.WithForceVarEval())
	}
	session := psparser.NewSession(opts...)
	if varsFile != "" {
		data, err := os.ReadFile(varsFile)
		if err != nil {
			return nil, fmt.Errorf("reading variables file: %w", err)
		}
		if err := session.LoadVariablesYAML(data); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// readSource pulls the script from the named file, or stdin when piped or
// named "-".
func readSource(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

type analyzeOptions struct {
	showTokens bool
	showOutput bool
	color      bool
}

func analyze(w io.Writer, session *psparser.PowerShellSession, source string, opts analyzeOptions) error {
	res, err := session.ParseInput(source)
	if err != nil {
		return err
	}
	heading := func(s string) string {
		if opts.color {
			return "\x1b[1m" + s + "\x1b[0m"
		}
		return s
	}
	fmt.Fprintln(w, heading("# Deobfuscated"))
	fmt.Fprintln(w, res.Deobfuscated())
	if opts.showOutput && res.Output() != "" {
		fmt.Fprintln(w, heading("# Output"))
		fmt.Fprintln(w, res.Output())
	}
	if errs := res.Errors(); len(errs) > 0 {
		fmt.Fprintln(w, heading("# Errors"))
		for _, e := range errs {
			if opts.color {
				fmt.Fprintf(w, "\x1b[31m%v\x1b[0m\n", e)
			} else {
				fmt.Fprintln(w, e)
			}
		}
	}
	if opts.showTokens {
		fmt.Fprintln(w, heading("# Tokens"))
		dumpTokens(w, res.Tokens())
	}
	return nil
}

func dumpTokens(w io.Writer, tokens psparser.Tokens) {
	classNames := map[psparser.TokenClass]string{
		psparser.TokenString:           "string",
		psparser.TokenStringExpandable: "expandable",
		psparser.TokenExpression:       "expression",
		psparser.TokenCommand:          "command",
	}
	for _, tok := range tokens.All() {
		switch tok.Class {
		case psparser.TokenStringExpandable:
			fmt.Fprintf(w, "%-10s %q => %q\n", classNames[tok.Class], tok.Original, tok.Expanded)
		case psparser.TokenString:
			fmt.Fprintf(w, "%-10s %q\n", classNames[tok.Class], tok.Original)
		default:
			display := ""
			if tok.Val != nil {
				display = tok.Val.Display()
			}
			fmt.Fprintf(w, "%-10s %q => %q\n", classNames[tok.Class], tok.Original, display)
		}
	}
}
