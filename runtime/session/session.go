// Package session holds the long-lived evaluation state: the variable scope
// stack, the function table, the environment snapshot and the session
// options. A session survives across parse calls, so assignments made by
// one script are visible to the next. Sessions are not safe for concurrent
// use; analysis from several goroutines needs one session each.
package session

import (
	"os"
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
)

type frame map[string]values.Val

// Options tune evaluation behavior.
type Options struct {
	// Culture is the BCP 47 tag used by -f number formatting.
	Culture string
	// ForceVarEval makes reads of undefined variables evaluate to $null
	// silently instead of recording an error and turning the statement
	// opaque.
	ForceVarEval bool
	// EnvWritable permits $env:NAME assignment into the snapshot.
	EnvWritable bool
	// MaxDepth bounds nested expression and call evaluation.
	MaxDepth int
	// StepBudget bounds total evaluation steps; zero means unbounded.
	StepBudget int
	// RangeRenderLimit is the largest range realized into an @(...) literal
	// by the renderer; longer ranges re-emit their original a..b form.
	RangeRenderLimit int
}

// DefaultMaxDepth is the recursion bound applied when none is configured.
const DefaultMaxDepth = 512

// DefaultRangeRenderLimit caps range realization in rendered output.
const DefaultRangeRenderLimit = 1000

// Function is a user-declared function registered by a `function`
// statement.
type Function struct {
	Name   string
	Params []ast.Param
	Body   *ast.Block
}

// Session owns all mutable evaluation state.
type Session struct {
	Opts Options

	global  frame
	script  frame
	stack   []frame
	special frame
	env     frame

	functions map[string]*Function

	scopeSeq int
	captured map[int][]frame
}

// New constructs a session with defaults: empty scopes, empty environment,
// predefined $true/$false/$null resolved at lookup.
func New() *Session {
	return &Session{
		Opts: Options{
			MaxDepth:         DefaultMaxDepth,
			RangeRenderLimit: DefaultRangeRenderLimit,
		},
		global:    frame{},
		script:    frame{},
		special:   frame{},
		env:       frame{},
		functions: map[string]*Function{},
		captured:  map[int][]frame{},
	}
}

// LoadProcessEnvironment snapshots the process environment into the
// session's env view. Keys match case-insensitively.
func (s *Session) LoadProcessEnvironment() {
	for _, kv := range os.Environ() {
		if eq := strings.IndexByte(kv, '='); eq > 0 {
			s.env[strings.ToLower(kv[:eq])] = values.Str(kv[eq+1:])
		}
	}
}

// SetEnv places one variable into the environment snapshot.
func (s *Session) SetEnv(name string, v values.Val) {
	s.env[strings.ToLower(name)] = v
}

// GetEnv reads the environment snapshot.
func (s *Session) GetEnv(name string) (values.Val, bool) {
	v, ok := s.env[strings.ToLower(name)]
	return v, ok
}

// PushFrame opens a child scope for a function call or script block.
func (s *Session) PushFrame() {
	s.stack = append(s.stack, frame{})
}

// PopFrame closes the innermost scope.
func (s *Session) PopFrame() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Depth reports the current scope stack height.
func (s *Session) Depth() int { return len(s.stack) }

// CaptureScope snapshots the current stack for a script block value and
// returns the registry id. The block holds the id, never the frames, so
// values and scopes cannot form ownership cycles.
func (s *Session) CaptureScope() int {
	s.scopeSeq++
	snapshot := make([]frame, len(s.stack))
	copy(snapshot, s.stack)
	s.captured[s.scopeSeq] = snapshot
	return s.scopeSeq
}

// predefined automatic constants; resolved before scopes.
func predefined(name string) (values.Val, bool) {
	switch name {
	case "true":
		return values.Bool(true), true
	case "false":
		return values.Bool(false), true
	case "null":
		return values.Null{}, true
	}
	return values.Null{}, false
}

// Get resolves a variable reference. An empty scope walks the stack
// top-down, then the script scope, then globals. Explicit scopes
// short-circuit. Undefined names return a VariableError unless
// ForceVarEval is set, in which case the read yields $null silently.
func (s *Session) Get(scope, name string) (values.Val, error) {
	name = strings.ToLower(name)
	if v, ok := predefined(name); ok && scope == "" {
		return v, nil
	}
	if v, ok := s.special[name]; ok && scope == "" {
		return v, nil
	}
	switch scope {
	case "":
		for i := len(s.stack) - 1; i >= 0; i-- {
			if v, ok := s.stack[i][name]; ok {
				return v, nil
			}
		}
		if v, ok := s.script[name]; ok {
			return v, nil
		}
		if v, ok := s.global[name]; ok {
			return v, nil
		}
	case "local":
		if v, ok := s.topFrame()[name]; ok {
			return v, nil
		}
	case "script":
		if v, ok := s.script[name]; ok {
			return v, nil
		}
	case "global":
		if v, ok := s.global[name]; ok {
			return v, nil
		}
	case "private":
		if v, ok := s.topFrame()[name]; ok {
			return v, nil
		}
	case "env":
		if v, ok := s.env[name]; ok {
			return v, nil
		}
	default:
		return values.Null{}, values.NewUnknownVariable(scope + ":" + name)
	}
	if s.Opts.ForceVarEval {
		return values.Null{}, nil
	}
	return values.Null{}, values.NewUnknownVariable(name)
}

// Has reports whether the name resolves without recording anything.
func (s *Session) Has(scope, name string) bool {
	_, err := s.Get(scope, name)
	return err == nil
}

// Set binds a variable. Without an explicit scope the current scope takes
// the binding: child scopes shadow instead of mutating their parents,
// PowerShell's copy-on-write rule. Collections copy on assignment.
func (s *Session) Set(scope, name string, v values.Val) error {
	name = strings.ToLower(name)
	v = values.CloneVal(v)
	switch scope {
	case "":
		s.topFrame()[name] = v
	case "local", "private":
		s.topFrame()[name] = v
	case "script":
		s.script[name] = v
	case "global":
		s.global[name] = v
	case "env":
		if !s.Opts.EnvWritable {
			return values.NewUnsupportedOperation(
				"Environment is read-only in this session")
		}
		s.env[name] = v
	default:
		return values.NewUnknownVariable(scope + ":" + name)
	}
	return nil
}

// topFrame is the innermost scope; outside any call it is the script scope.
func (s *Session) topFrame() frame {
	if len(s.stack) == 0 {
		return s.script
	}
	return s.stack[len(s.stack)-1]
}

// SetSpecial binds an automatic variable ($_, $PSItem, $matches, ?).
func (s *Session) SetSpecial(name string, v values.Val) {
	s.special[strings.ToLower(name)] = v
}

// GetSpecial reads an automatic variable without touching normal scopes.
func (s *Session) GetSpecial(name string) (values.Val, bool) {
	v, ok := s.special[strings.ToLower(name)]
	return v, ok
}

// ClearSpecial removes an automatic variable.
func (s *Session) ClearSpecial(name string) {
	delete(s.special, strings.ToLower(name))
}

// SetStatus records $? after a statement completes.
func (s *Session) SetStatus(ok bool) {
	s.special["?"] = values.Bool(ok)
}

// Status reads $?; a fresh session reports success.
func (s *Session) Status() bool {
	v, ok := s.special["?"]
	if !ok {
		return true
	}
	return values.Truthy(v)
}

// SetFunction registers a function declaration; redefinition wins.
func (s *Session) SetFunction(fn *Function) {
	s.functions[strings.ToLower(fn.Name)] = fn
}

// GetFunction resolves a command name against the function table.
func (s *Session) GetFunction(name string) (*Function, bool) {
	fn, ok := s.functions[strings.ToLower(name)]
	return fn, ok
}
