// Package scripting evaluates user-authored boolean scripts for static
// display conditions. Three languages are available: expr (default), cel
// and jq. Every engine caches compiled programs and is safe for concurrent
// use.
//
// Scripts read a single document: {"models": {<extension>: {<key>: data}}}.
package scripting

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/lumen/internal/types"
)

// Engine evaluates expressions against a data document.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Compiler is implemented by engines that can check an expression without
// evaluating it.
type Compiler interface {
	Compile(expression string) error
}

// Language names.
const (
	LanguageExpr = "expr"
	LanguageCEL  = "cel"
	LanguageJQ   = "jq"
)

// Script is a boolean script in one of the supported languages.
type Script struct {
	Language string `json:"language,omitempty"`
	Source   string `json:"source"`
}

// IsEmpty reports whether the script has no source. Empty scripts are
// always met.
func (s Script) IsEmpty() bool { return strings.TrimSpace(s.Source) == "" }

// language returns the effective language, expr when unset.
func (s Script) language() string {
	if s.Language == "" {
		return LanguageExpr
	}
	return s.Language
}

// Set holds the available engines by language name.
type Set struct {
	engines map[string]Engine
}

// NewSet creates a set with the expr, cel and jq engines.
func NewSet() (*Set, error) {
	cel, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewSetOf(NewExprEngine(), cel, NewGoJQEngine()), nil
}

// NewSetOf creates a set from the given engines. Later engines replace
// earlier ones with the same name.
func NewSetOf(engines ...Engine) *Set {
	s := &Set{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		s.engines[e.Name()] = e
	}
	return s
}

// Engine returns the engine for a language.
func (s *Set) Engine(language string) (Engine, error) {
	if language == "" {
		language = LanguageExpr
	}
	e, ok := s.engines[language]
	if !ok {
		return nil, fmt.Errorf("%q: %w", language, types.ErrUnknownLanguage)
	}
	return e, nil
}

// Languages returns the registered language names, sorted.
func (s *Set) Languages() []string {
	out := make([]string, 0, len(s.engines))
	for name := range s.engines {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Check validates a script without evaluating it: length, language and,
// when the engine supports it, compilation.
func (s *Set) Check(script Script) error {
	if len(script.Source) > types.MaxScriptLength {
		return types.ErrScriptTooLong
	}
	if script.IsEmpty() {
		return nil
	}
	e, err := s.Engine(script.language())
	if err != nil {
		return err
	}
	if c, ok := e.(Compiler); ok {
		return c.Compile(script.Source)
	}
	return nil
}

// EvaluateBool runs script and requires a boolean result. Empty scripts
// evaluate true. A jq script producing several outputs is true only when
// every output is true.
func (s *Set) EvaluateBool(ctx context.Context, script Script, data map[string]any) (bool, error) {
	if len(script.Source) > types.MaxScriptLength {
		return false, types.ErrScriptTooLong
	}
	if script.IsEmpty() {
		return true, nil
	}
	e, err := s.Engine(script.language())
	if err != nil {
		return false, err
	}
	out, err := e.Evaluate(ctx, script.Source, data)
	if err != nil {
		return false, err
	}
	return asBool(out)
}

func asBool(out any) (bool, error) {
	switch v := out.(type) {
	case bool:
		return v, nil
	case []any:
		if len(v) == 0 {
			return false, fmt.Errorf("no output: %w", types.ErrNotBoolean)
		}
		for _, item := range v {
			b, ok := item.(bool)
			if !ok {
				return false, fmt.Errorf("output %T: %w", item, types.ErrNotBoolean)
			}
			if !b {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("result %T: %w", out, types.ErrNotBoolean)
	}
}
