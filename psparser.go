package psparser

import (
	"github.com/radkum/ps-parser/core/values"
	"github.com/radkum/ps-parser/runtime/interp"
	"github.com/radkum/ps-parser/runtime/parser"
	"github.com/radkum/ps-parser/runtime/session"
)

// NEWLINE separates entries in the deobfuscated text and output stream.
const NEWLINE = "\n"

// PsValue is the public value type scripts evaluate to.
type PsValue = values.Val

// PowerShellSession is the main entry point: it owns the evaluation state
// and parses inputs against it. State mutated by one call is visible to
// the next.
type PowerShellSession struct {
	sess *session.Session
}

// Option configures a session at construction.
type Option func(*session.Session)

// WithCulture sets the BCP 47 culture tag used by -f number formatting.
func WithCulture(tag string) Option {
	return func(s *session.Session) { s.Opts.Culture = tag }
}

// WithProcessEnvironment snapshots the process environment into the
// session's $env: view.
func WithProcessEnvironment() Option {
	return func(s *session.Session) { s.LoadProcessEnvironment() }
}

// WithEnvironment preseeds the $env: view from a map.
func WithEnvironment(env map[string]string) Option {
	return func(s *session.Session) {
		for k, v := range env {
			s.SetEnv(k, values.Str(v))
		}
	}
}

// WithWritableEnvironment allows scripts to assign $env: variables into
// the snapshot.
func WithWritableEnvironment() Option {
	return func(s *session.Session) { s.Opts.EnvWritable = true }
}

// WithForceVarEval makes undefined variable reads evaluate to $null
// silently instead of recording an error and re-emitting the statement
// verbatim.
func WithForceVarEval() Option {
	return func(s *session.Session) { s.Opts.ForceVarEval = true }
}

// WithVariables preseeds script-scope variables.
func WithVariables(vars map[string]PsValue) Option {
	return func(s *session.Session) {
		for k, v := range vars {
			_ = s.Set("script", k, v)
		}
	}
}

// WithMaxDepth bounds nested evaluation; the default is 512.
func WithMaxDepth(n int) Option {
	return func(s *session.Session) { s.Opts.MaxDepth = n }
}

// WithStepBudget bounds total evaluation steps; exhaustion turns the
// remaining expressions opaque and records one error.
func WithStepBudget(n int) Option {
	return func(s *session.Session) { s.Opts.StepBudget = n }
}

// WithRangeRenderLimit caps how long a range may be before the renderer
// keeps its original a..b spelling.
func WithRangeRenderLimit(n int) Option {
	return func(s *session.Session) { s.Opts.RangeRenderLimit = n }
}

// NewSession constructs a session.
func NewSession(opts ...Option) *PowerShellSession {
	s := session.New()
	for _, opt := range opts {
		opt(s)
	}
	return &PowerShellSession{sess: s}
}

// LoadVariablesYAML preseeds variables from a YAML document with
// global/script/local/env sections.
func (p *PowerShellSession) LoadVariablesYAML(data []byte) error {
	return p.sess.LoadVariablesYAML(data)
}

// SetVariable binds a variable in the given scope ("" for the current
// one) before or between parses.
func (p *PowerShellSession) SetVariable(scope, name string, v PsValue) error {
	return p.sess.Set(scope, name, v)
}

// GetVariable reads a variable back out of the session.
func (p *PowerShellSession) GetVariable(scope, name string) (PsValue, error) {
	return p.sess.Get(scope, name)
}

// SetEnv places one variable into the environment snapshot.
func (p *PowerShellSession) SetEnv(name, value string) {
	p.sess.SetEnv(name, values.Str(value))
}

// ParseInput parses and safely evaluates one script. A syntax error
// rejects the whole input and produces no result; evaluation errors
// accumulate inside the result instead.
func (p *PowerShellSession) ParseInput(input string) (*ScriptResult, error) {
	prog, err := parser.Parse(input)
	if err != nil {
		return nil, err
	}
	res := interp.New(p.sess).Run(prog)
	return &ScriptResult{res: res}, nil
}

// SafeEval is the one-call convenience: parse, evaluate, and return the
// final result rendered as a string.
func (p *PowerShellSession) SafeEval(input string) (string, error) {
	res, err := p.ParseInput(input)
	if err != nil {
		return "", err
	}
	return res.ResultString(), nil
}
