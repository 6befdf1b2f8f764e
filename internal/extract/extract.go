// Package extract recovers tool invocations embedded in free-form model text.
//
// The model is a plain text-completion backend with no structured calling
// protocol, so tool calls are written inline as @name({"param": "value"})
// markers and parsed back out of the reply after the fact.
package extract

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// State tracks how far a candidate made it through parsing.
type State string

const (
	// StatePending means the marker span was located but the argument
	// object has not been parsed yet.
	StatePending State = "pending"
	// StateParsed means the argument text is a valid JSON object.
	StateParsed State = "parsed"
	// StateMalformed means the argument text failed to parse. The
	// candidate is still reported so callers can log and skip it.
	StateMalformed State = "malformed"
)

// Call is a single tool invocation candidate found in model text.
type Call struct {
	// Name is the tool name exactly as the model wrote it.
	Name string
	// RawArgs is the argument text between the parentheses, verbatim.
	RawArgs string
	// Args is the decoded argument object. Nil unless State is StateParsed.
	Args map[string]any
	// Start and End are byte offsets of the full marker in the source text.
	Start, End int
	State      State
	// Err holds the JSON parse error for malformed candidates.
	Err error
}

// Calls returns a lazy left-to-right sequence of invocation candidates in
// text. The sequence is finite and restartable; iterating it twice yields
// the same candidates. Malformed candidates are yielded with StateMalformed
// and never stop the scan.
func Calls(text string) iter.Seq[Call] {
	return func(yield func(Call) bool) {
		pos := 0
		for pos < len(text) {
			call, next, ok := nextMarker(text, pos)
			if !ok {
				return
			}
			pos = next
			if !yield(call) {
				return
			}
		}
	}
}

// Scan collects all candidates plus the residual text with the markers
// removed. The residual is for display and logging only.
func Scan(text string) ([]Call, string) {
	var calls []Call
	var residual strings.Builder
	last := 0
	for call := range Calls(text) {
		residual.WriteString(text[last:call.Start])
		last = call.End
		calls = append(calls, call)
	}
	residual.WriteString(text[last:])
	return calls, strings.TrimSpace(residual.String())
}

// nextMarker finds the next @name({...}) marker at or after pos. It returns
// the candidate, the scan position after the marker, and whether a marker
// was found.
func nextMarker(text string, pos int) (Call, int, bool) {
	for i := pos; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}

		j := i + 1
		nameStart := j
		for j < len(text) && isNameByte(text[j]) {
			j++
		}
		if j == nameStart {
			continue // bare @, not a marker
		}
		name := text[nameStart:j]

		k := skipSpace(text, j)
		if k >= len(text) || text[k] != '(' {
			continue
		}
		k = skipSpace(text, k+1)
		if k >= len(text) || text[k] != '{' {
			continue
		}

		objEnd, ok := scanObject(text, k)
		if !ok {
			// Unterminated object: cap the candidate at the next sigil
			// so markers later in the text are still scanned.
			end := len(text)
			if rel := strings.IndexByte(text[i+1:], '@'); rel >= 0 {
				end = i + 1 + rel
			}
			return Call{
				Name:    name,
				RawArgs: text[k:end],
				Start:   i,
				End:     end,
				State:   StateMalformed,
				Err:     fmt.Errorf("unterminated argument object"),
			}, end, true
		}

		raw := text[k:objEnd]
		end := skipSpace(text, objEnd)
		if end >= len(text) || text[end] != ')' {
			continue
		}
		end++

		call := Call{
			Name:    name,
			RawArgs: raw,
			Start:   i,
			End:     end,
			State:   StatePending,
		}
		parse(&call)
		return call, end, true
	}
	return Call{}, len(text), false
}

// parse attempts to decode the raw argument text as a JSON object and
// advances the candidate to StateParsed or StateMalformed.
func parse(c *Call) {
	var args map[string]any
	if err := json.Unmarshal([]byte(c.RawArgs), &args); err != nil {
		c.State = StateMalformed
		c.Err = fmt.Errorf("parse arguments: %w", err)
		return
	}
	c.Args = args
	c.State = StateParsed
}

// scanObject scans a balanced JSON object starting at the opening brace,
// respecting string literals and escapes so nested braces and quoted
// parentheses do not fool it. Returns the offset past the closing brace.
func scanObject(text string, start int) (int, bool) {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++ // skip escaped byte
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func skipSpace(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t' || text[pos] == '\n' || text[pos] == '\r') {
		pos++
	}
	return pos
}
