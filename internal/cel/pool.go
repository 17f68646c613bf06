// pool.go
package cel

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ExpressionPool caches compiled CEL expressions
type ExpressionPool struct {
	mu          sync.RWMutex
	expressions map[string]cel.Program
	env         *cel.Env
}

var (
	defaultPool     *ExpressionPool
	defaultPoolErr  error
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool, creating it on first use.
func DefaultPool() (*ExpressionPool, error) {
	defaultPoolOnce.Do(func() {
		defaultPool, defaultPoolErr = NewExpressionPool()
	})
	return defaultPool, defaultPoolErr
}

// NewExpressionPool creates a new expression pool with a configured CEL environment
func NewExpressionPool() (*ExpressionPool, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	return NewExpressionPoolWithEnv(env)
}

// NewExpressionPoolWithEnv creates a new expression pool with a custom CEL environment
func NewExpressionPoolWithEnv(env *cel.Env) (*ExpressionPool, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}

	return &ExpressionPool{
		env:         env,
		expressions: make(map[string]cel.Program),
	}, nil
}

// GetExpression retrieves or compiles an expression. Every identifier found
// in the expression is declared as a dynamic variable.
func (e *ExpressionPool) GetExpression(exprStr string) (cel.Program, error) {
	e.mu.RLock()
	if program, ok := e.expressions[exprStr]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	envOpts := []cel.EnvOption{}
	for _, varName := range ExtractVariables(exprStr) {
		envOpts = append(envOpts, cel.Variable(varName, cel.DynType))
	}

	extEnv, err := e.env.Extend(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extend environment: %w", err)
	}

	ast, issues := extEnv.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", exprStr, issues.Err())
	}

	program, err := extEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.expressions[exprStr] = program
	e.mu.Unlock()

	return program, nil
}

// EvaluateExpression evaluates a compiled expression with parameters
func (e *ExpressionPool) EvaluateExpression(program cel.Program, params map[string]any) (any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	activation, err := cel.NewActivation(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation: %w", err)
	}

	val, _, err := program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}

	return adaptCELResult(val), nil
}

// Evaluate compiles (or reuses) exprStr and evaluates it against params.
func (e *ExpressionPool) Evaluate(exprStr string, params map[string]any) (any, error) {
	program, err := e.GetExpression(exprStr)
	if err != nil {
		return nil, err
	}
	return e.EvaluateExpression(program, params)
}

// EvaluateInt evaluates exprStr and requires an integral result.
func (e *ExpressionPool) EvaluateInt(exprStr string, params map[string]any) (int64, error) {
	v, err := e.Evaluate(exprStr, params)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > uint64(^uint64(0)>>1) {
			return 0, fmt.Errorf("expression %q result %d overflows int64", exprStr, n)
		}
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("expression %q result %v is not integral", exprStr, n)
		}
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expression %q returned %T, want an integer", exprStr, v)
}

// Len returns the number of cached programs.
func (e *ExpressionPool) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expressions)
}

// adaptCELResult converts CEL result values to Go native types
func adaptCELResult(val ref.Val) any {
	switch v := val.(type) {
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.Bool:
		return bool(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case types.Null:
		return nil
	default:
		return v.Value()
	}
}

// ExtractVariables returns the identifiers referenced by expr in order of
// first appearance, skipping literals, keywords, member names after a dot and
// names immediately followed by a call.
func ExtractVariables(expr string) []string {
	keywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,
		"in":    true,
	}

	var vars []string
	seen := make(map[string]bool)

	isWord := func(c byte) bool {
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
	}

	i := 0
	inString := byte(0)
	for i < len(expr) {
		c := expr[i]
		if inString != 0 {
			if c == '\\' {
				i += 2
				continue
			}
			if c == inString {
				inString = 0
			}
			i++
			continue
		}
		if c == '"' || c == '\'' {
			inString = c
			i++
			continue
		}
		if !isWord(c) {
			i++
			continue
		}

		start := i
		for i < len(expr) && isWord(expr[i]) {
			i++
		}
		word := expr[start:i]

		if word[0] >= '0' && word[0] <= '9' || keywords[word] || seen[word] {
			continue
		}
		if start > 0 && expr[start-1] == '.' {
			continue
		}
		j := i
		for j < len(expr) && expr[j] == ' ' {
			j++
		}
		if j < len(expr) && expr[j] == '(' {
			continue
		}
		seen[word] = true
		vars = append(vars, word)
	}

	return vars
}

// SortedKeys is a small helper for deterministic error messages.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe renders params as "a=1, b=2" for error messages.
func Describe(params map[string]any) string {
	parts := make([]string, 0, len(params))
	for _, k := range SortedKeys(params) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
