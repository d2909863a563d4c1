package jsonrepair

import "strings"

// frameKind distinguishes the two container types that can be nested.
type frameKind int

const (
	frameObject frameKind = iota
	frameArray
)

// objState tracks where we are inside an open object.
type objState int

const (
	objStart       objState = iota // just saw '{', expect key or '}'
	objAfterKey                    // key string closed, expect ':'
	objBeforeValue                 // ':' seen, expect a value
	objAfterValue                  // value closed, expect ',' or '}'
	objAfterComma                  // ',' seen, expect next key
)

// arrState tracks where we are inside an open array.
type arrState int

const (
	arrStart       arrState = iota // just saw '[', expect value or ']'
	arrAfterValue                  // value closed, expect ',' or ']'
	arrAfterComma                  // ',' seen, expect next value
)

type frame struct {
	kind frameKind
	obj  objState
	arr  arrState
}

// rootState tracks progress at depth 0, where there is no enclosing frame.
type rootState int

const (
	rootExpectValue rootState = iota
	rootFinished
)

// repairStateMachine performs the single left-to-right scan described in
// spec.md §4.1: maintain a stack of open containers, track the current
// token kind (string/number/literal) as scanning mode, and at end-of-input
// close every open structure by walking the stack.
func repairStateMachine(s string) (string, bool) {
	var out strings.Builder
	out.Grow(len(s) + 16)

	var stack []frame
	root := rootExpectValue

	i := 0
	n := len(s)

	// completeValue is called whenever a value (of any kind) has just been
	// completed, to move the enclosing state forward.
	completeValue := func() bool {
		if len(stack) == 0 {
			if root == rootFinished {
				return false // extra content past the root value
			}
			root = rootFinished
			return true
		}
		top := &stack[len(stack)-1]
		switch top.kind {
		case frameObject:
			top.obj = objAfterValue
		case frameArray:
			top.arr = arrAfterValue
		}
		return true
	}

	for i < n {
		c := s[i]

		if isJSONSpace(c) {
			i++
			continue
		}

		// Root already has its value: ignore/drop trailing content.
		if len(stack) == 0 && root == rootFinished {
			break
		}

		// Determine what's expected here.
		expectingKey := false
		expectingValue := len(stack) == 0 && root == rootExpectValue
		expectingColon := false
		expectingCommaOrClose := false

		if len(stack) > 0 {
			top := stack[len(stack)-1]
			switch top.kind {
			case frameObject:
				switch top.obj {
				case objStart, objAfterComma:
					expectingKey = true
				case objAfterKey:
					expectingColon = true
				case objBeforeValue:
					expectingValue = true
				case objAfterValue:
					expectingCommaOrClose = true
				}
			case frameArray:
				switch top.arr {
				case arrStart, arrAfterComma:
					expectingValue = true
				case arrAfterValue:
					expectingCommaOrClose = true
				}
			}
		}

		switch {
		case expectingCommaOrClose:
			top := &stack[len(stack)-1]
			if c == ',' {
				if top.kind == frameObject {
					top.obj = objAfterComma
				} else {
					top.arr = arrAfterComma
				}
				out.WriteByte(c)
				i++
				continue
			}
			if c == '}' && top.kind == frameObject {
				out.WriteByte(c)
				stack = stack[:len(stack)-1]
				i++
				if !completeValue() {
					return out.String(), true
				}
				continue
			}
			if c == ']' && top.kind == frameArray {
				out.WriteByte(c)
				stack = stack[:len(stack)-1]
				i++
				if !completeValue() {
					return out.String(), true
				}
				continue
			}
			// Unexpected character where comma/close was expected: stop
			// scanning and close what's open rather than failing outright —
			// the remainder is almost always noise past a truncated value.
			return closeOpen(&out, stack, root)

		case expectingColon:
			if c == ':' {
				stack[len(stack)-1].obj = objBeforeValue
				out.WriteByte(c)
				i++
				continue
			}
			return closeOpen(&out, stack, root)

		case expectingKey:
			if c == '}' && len(stack) > 0 && stack[len(stack)-1].kind == frameObject {
				// Empty object, or trailing comma before '}': drop the comma.
				if stack[len(stack)-1].obj == objAfterComma {
					trimmed := strings.TrimSuffix(out.String(), ",")
					out.Reset()
					out.WriteString(trimmed)
				}
				out.WriteByte(c)
				stack = stack[:len(stack)-1]
				i++
				if !completeValue() {
					return out.String(), true
				}
				continue
			}
			if c != '"' {
				return closeOpen(&out, stack, root)
			}
			end, ok := scanString(s, i, &out)
			if !ok {
				return closeOpen(&out, stack, root)
			}
			i = end
			stack[len(stack)-1].obj = objAfterKey
			continue

		case expectingValue:
			if c == '{' {
				out.WriteByte(c)
				stack = append(stack, frame{kind: frameObject, obj: objStart})
				i++
				continue
			}
			if c == '[' {
				out.WriteByte(c)
				stack = append(stack, frame{kind: frameArray, arr: arrStart})
				i++
				continue
			}
			end, ok := scanScalar(s, i, &out)
			if !ok {
				return "", false
			}
			i = end
			if !completeValue() {
				return out.String(), true
			}
			continue

		default:
			return closeOpen(&out, stack, root)
		}
	}

	return closeOpen(&out, stack, root)
}

// scanScalar scans one terminal JSON value (string, number, or literal)
// starting at s[i]. Objects and arrays are handled by the caller, since
// opening one doesn't complete a value until its closer is seen.
func scanScalar(s string, i int, out *strings.Builder) (int, bool) {
	c := s[i]
	switch {
	case c == '"':
		return scanString(s, i, out)
	case c == '-' || (c >= '0' && c <= '9'):
		return scanNumber(s, i, out)
	case strings.HasPrefix(s[i:], "true"), strings.HasPrefix(s[i:], "false"), strings.HasPrefix(s[i:], "null"):
		return scanLiteral(s, i, out)
	default:
		// Partial literal at end of input (e.g. "tru", "fals", "nul").
		if end, ok := scanPartialLiteral(s, i, out); ok {
			return end, true
		}
		return i, false
	}
}

// scanString copies a JSON string literal starting at s[i] == '"'. If the
// string is unterminated at end-of-input it is closed with a '"'.
func scanString(s string, i int, out *strings.Builder) (int, bool) {
	n := len(s)
	out.WriteByte('"')
	j := i + 1
	for j < n {
		c := s[j]
		if c == '\\' {
			if j+1 < n {
				out.WriteByte(c)
				out.WriteByte(s[j+1])
				j += 2
				continue
			}
			// Dangling escape at EOF: drop it and close the string.
			out.WriteByte('"')
			return j + 1, true
		}
		if c == '"' {
			out.WriteByte(c)
			return j + 1, true
		}
		out.WriteByte(c)
		j++
	}
	// Unterminated string: close it.
	out.WriteByte('"')
	return j, true
}

// scanNumber copies a JSON number, truncating a dangling trailing '.', '-',
// or exponent marker left incomplete by truncation.
func scanNumber(s string, i int, out *strings.Builder) (int, bool) {
	n := len(s)
	j := i
	for j < n && isNumberByte(s[j]) {
		j++
	}
	tok := s[i:j]
	for len(tok) > 0 {
		last := tok[len(tok)-1]
		if last == '.' || last == '-' || last == '+' || last == 'e' || last == 'E' {
			tok = tok[:len(tok)-1]
			continue
		}
		break
	}
	if tok == "" {
		return i, false
	}
	out.WriteString(tok)
	return j, true
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E'
}

func scanLiteral(s string, i int, out *strings.Builder) (int, bool) {
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(s[i:], lit) {
			out.WriteString(lit)
			return i + len(lit), true
		}
	}
	return i, false
}

// scanPartialLiteral completes a truncated literal token ("tru", "fals",
// "nul", ...) that runs to end-of-input.
func scanPartialLiteral(s string, i int, out *strings.Builder) (int, bool) {
	rest := s[i:]
	for _, lit := range []string{"true", "false", "null"} {
		if len(rest) < len(lit) && strings.HasPrefix(lit, rest) && rest != "" {
			out.WriteString(lit)
			return len(s), true
		}
	}
	return i, false
}

// closeOpen walks the container stack from innermost to outermost, closing
// every open string/object/array per spec.md §4.1's closing rules, and
// returns the final text. The bool is always true: closing never fails —
// failure is signaled earlier by returning before this point with ok=false.
func closeOpen(out *strings.Builder, stack []frame, root rootState) (string, bool) {
	if k := len(stack) - 1; k >= 0 && stack[k].kind == frameObject && stack[k].obj == objAfterComma {
		// The comma is the last byte written; drop it before closing.
		trimmed := strings.TrimSuffix(out.String(), ",")
		out.Reset()
		out.WriteString(trimmed)
	}
	for k := len(stack) - 1; k >= 0; k-- {
		f := stack[k]
		// A frame with a nested container still open above it already has
		// its pending value slot filled (by that container) — its obj/arr
		// state was only accurate at push time, before the nested value
		// started. Closing the child below completes this frame's value.
		hasOpenChild := k < len(stack)-1

		switch f.kind {
		case frameObject:
			switch {
			case hasOpenChild:
				out.WriteString("}")
			case f.obj == objAfterKey:
				out.WriteString(": null}")
			case f.obj == objBeforeValue:
				out.WriteString("null}")
			default:
				// objStart, objAfterValue, objAfterComma: drop any
				// trailing comma and close.
				out.WriteString("}")
			}
		case frameArray:
			switch {
			case hasOpenChild:
				out.WriteString("]")
			case f.arr == arrAfterComma:
				out.WriteString("null]")
			default:
				out.WriteString("]")
			}
		}
	}
	_ = root
	return out.String(), true
}
