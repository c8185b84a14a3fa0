package misc

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	exprlang "github.com/expr-lang/expr"
)

// ReservedPrefix marks config names that are bound while evaluating but left
// out of the result.
const ReservedPrefix = "_"

var assignment = regexp.MustCompile(`(?s)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=(.*)$`)

// ReadConfig parses the config file at path. See ParseConfig.
func ReadConfig(path string) (map[string]any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("misc: read %s: %w", path, err)
	}
	out, err := ParseConfig(src)
	if err != nil {
		return nil, fmt.Errorf("misc: read %s: %w", path, err)
	}
	return out, nil
}

// ParseConfig evaluates a sequence of "name = expression" statements and
// returns the resulting bindings.
//
// Expressions use the expr language (github.com/expr-lang/expr) and may refer
// to names bound by earlier statements:
//
//	# comment
//	a = {'b': 1}
//	_base = 10
//	sizes = [
//	    _base,
//	    _base * 2
//	]
//
// A statement continues onto following lines while brackets are open.
// Names starting with ReservedPrefix are omitted from the result.
// Nothing but expression evaluation happens; expressions cannot reach the
// file system, the environment or the caller.
func ParseConfig(src []byte) (map[string]any, error) {
	stmts, err := splitStatements(string(src))
	if err != nil {
		return nil, err
	}
	env := map[string]any{}
	for _, st := range stmts {
		m := assignment.FindStringSubmatch(st.text)
		if m == nil || strings.HasPrefix(m[2], "=") {
			return nil, fmt.Errorf("%w: line %d: expected name = expression", ErrInvalidConfig, st.line)
		}
		name, expression := m[1], strings.TrimSpace(m[2])
		if expression == "" {
			return nil, fmt.Errorf("%w: line %d: %s has no value", ErrInvalidConfig, st.line, name)
		}
		program, err := exprlang.Compile(expression, exprlang.Env(env))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidConfig, st.line, name, err)
		}
		v, err := exprlang.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidConfig, st.line, name, err)
		}
		env[name] = v
	}
	out := make(map[string]any, len(env))
	for k, v := range env {
		if strings.HasPrefix(k, ReservedPrefix) {
			continue
		}
		out[k] = v
	}
	return out, nil
}

type statement struct {
	line int
	text string
}

// splitStatements groups source lines into statements, stripping comments
// and joining lines while (, [ or { remain open outside string literals.
func splitStatements(src string) ([]statement, error) {
	var (
		out   []statement
		cur   strings.Builder
		start int
		depth int
		quote rune
	)
	lines := strings.Split(src, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		if cur.Len() == 0 {
			start = lineNo
		}
		escaped := false
		end := len(raw)
	scan:
		for j, r := range raw {
			switch {
			case quote != 0:
				switch {
				case escaped:
					escaped = false
				case r == '\\':
					escaped = true
				case r == quote:
					quote = 0
				}
			case r == '#':
				end = j
				break scan
			case r == '"' || r == '\'' || r == '`':
				quote = r
			case r == '(' || r == '[' || r == '{':
				depth++
			case r == ')' || r == ']' || r == '}':
				depth--
				if depth < 0 {
					return nil, fmt.Errorf("%w: line %d: unbalanced %q", ErrInvalidConfig, lineNo, r)
				}
			}
		}
		if quote != 0 && quote != '`' {
			return nil, fmt.Errorf("%w: line %d: unterminated string", ErrInvalidConfig, lineNo)
		}
		cur.WriteString(raw[:end])
		if depth > 0 || quote != 0 {
			cur.WriteByte('\n')
			continue
		}
		if text := strings.TrimSpace(cur.String()); text != "" {
			out = append(out, statement{line: start, text: text})
		}
		cur.Reset()
	}
	if depth > 0 || quote != 0 {
		return nil, fmt.Errorf("%w: line %d: unexpected end of input", ErrInvalidConfig, start)
	}
	return out, nil
}
