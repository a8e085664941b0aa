// Package depstr reduces USE-conditional dependency-style strings such as
// RESTRICT="mirror test? ( test ) !bindist? ( bindist )" to flat token lists.
package depstr

import (
	"fmt"
	"regexp"
	"strings"
)

var flagRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+_@-]*$`)

// SyntaxError describes a malformed dependency string.
type SyntaxError struct {
	Input  string
	Token  int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed dependency string %q at token %d: %s", e.Input, e.Token, e.Reason)
}

// UseReduce evaluates USE conditionals against the enabled flags and returns
// the surviving tokens in order. Grouping parentheses are flattened.
func UseReduce(value string, enabled map[string]bool) ([]string, error) {
	tokens := strings.Fields(value)
	out, next, err := reduceGroup(value, tokens, 0, enabled, true, 0)
	if err != nil {
		return nil, err
	}
	if next != len(tokens) {
		return nil, &SyntaxError{Input: value, Token: next, Reason: "unbalanced ')'"}
	}
	return out, nil
}

// reduceGroup consumes tokens until the matching ')' (depth > 0) or the end.
func reduceGroup(input string, tokens []string, pos int, enabled map[string]bool, keep bool, depth int) ([]string, int, error) {
	var out []string
	for pos < len(tokens) {
		tok := tokens[pos]
		switch {
		case tok == ")":
			if depth == 0 {
				return out, pos, nil
			}
			return out, pos + 1, nil
		case tok == "(":
			inner, next, err := reduceGroup(input, tokens, pos+1, enabled, keep, depth+1)
			if err != nil {
				return nil, 0, err
			}
			if next > len(tokens) || tokens[next-1] != ")" {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: "missing ')'"}
			}
			out = append(out, inner...)
			pos = next
		case tok == "||":
			if pos+1 >= len(tokens) || tokens[pos+1] != "(" {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: "'||' must be followed by '('"}
			}
			pos++
		case strings.HasSuffix(tok, "?"):
			flag := strings.TrimSuffix(tok, "?")
			negate := strings.HasPrefix(flag, "!")
			flag = strings.TrimPrefix(flag, "!")
			if !flagRe.MatchString(flag) {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: fmt.Sprintf("invalid USE flag %q", flag)}
			}
			if pos+1 >= len(tokens) || tokens[pos+1] != "(" {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: fmt.Sprintf("conditional %q must be followed by '('", tok)}
			}
			active := enabled[flag] != negate
			inner, next, err := reduceGroup(input, tokens, pos+2, enabled, keep && active, depth+1)
			if err != nil {
				return nil, 0, err
			}
			if next > len(tokens) || tokens[next-1] != ")" {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: "missing ')'"}
			}
			if active {
				out = append(out, inner...)
			}
			pos = next
		default:
			if strings.ContainsAny(tok, "()") {
				return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: fmt.Sprintf("stray parenthesis in %q", tok)}
			}
			if keep {
				out = append(out, tok)
			}
			pos++
		}
	}
	if depth > 0 {
		return nil, 0, &SyntaxError{Input: input, Token: pos, Reason: "missing ')'"}
	}
	return out, pos, nil
}

// FlagSet builds the enabled-flag lookup from a whitespace separated USE value.
func FlagSet(use string) map[string]bool {
	fields := strings.Fields(use)
	set := make(map[string]bool, len(fields))
	for _, flag := range fields {
		set[flag] = true
	}
	return set
}

// IUSEFlags strips the +/- default markers from an IUSE value.
func IUSEFlags(iuse string) map[string]bool {
	fields := strings.Fields(iuse)
	set := make(map[string]bool, len(fields))
	for _, flag := range fields {
		set[strings.TrimLeft(flag, "+-")] = true
	}
	return set
}
