// Package querysql provides lexical helpers over SQLite SQL text.
//
// The engine compiles one statement per prepare call, so scripts holding
// several statements are split here first. Splitting is lexical only: it
// understands quoting, comments and trigger bodies, nothing else.
package querysql

import "strings"

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateBracket
	stateLineComment
	stateBlockComment
)

// Split breaks a script into statements on top-level semicolons.
//
// Semicolons inside string literals, quoted identifiers, comments and
// CREATE TRIGGER ... BEGIN ... END bodies do not split. Statements are
// returned trimmed and without their terminating semicolon; statements made
// only of whitespace and comments are dropped.
func Split(script string) []string {
	var (
		stmts      []string
		state      = stateNormal
		start      = 0
		hasContent = false
		words      []string // leading keywords of the current statement
		inTrigger  = false
		blockDepth = 0 // BEGIN ... END nesting inside a trigger
		caseDepth  = 0 // CASE ... END nesting inside a trigger
	)

	flush := func(end int) {
		if hasContent {
			stmts = append(stmts, strings.TrimSpace(script[start:end]))
		}
		start = end + 1
		hasContent = false
		words = words[:0]
		inTrigger = false
		blockDepth = 0
		caseDepth = 0
	}

	onWord := func(w string) {
		w = strings.ToUpper(w)
		if len(words) < 3 {
			words = append(words, w)
			if isTriggerPrefix(words) {
				inTrigger = true
			}
		}
		if !inTrigger {
			return
		}
		switch w {
		case "BEGIN":
			blockDepth++
		case "CASE":
			caseDepth++
		case "END":
			if caseDepth > 0 {
				caseDepth--
			} else if blockDepth > 0 {
				blockDepth--
			}
		}
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch state {
		case stateSingleQuote:
			if c == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if c == '`' {
				state = stateNormal
			}
		case stateBracket:
			if c == ']' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(script) && script[i+1] == '/' {
				state = stateNormal
				i++
			}
		default:
			switch {
			case c == ';':
				if inTrigger && blockDepth > 0 {
					continue
				}
				flush(i)
			case c == '-' && i+1 < len(script) && script[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(script) && script[i+1] == '*':
				state = stateBlockComment
				i++
			case c == '\'':
				state, hasContent = stateSingleQuote, true
			case c == '"':
				state, hasContent = stateDoubleQuote, true
			case c == '`':
				state, hasContent = stateBacktick, true
			case c == '[':
				state, hasContent = stateBracket, true
			case isWordByte(c):
				j := i
				for j < len(script) && isWordByte(script[j]) {
					j++
				}
				onWord(script[i:j])
				hasContent = true
				i = j - 1
			case !isSpace(c):
				hasContent = true
			}
		}
	}

	// A trailing statement without a semicolon still counts, unless the
	// scanner ended inside a comment, which contributes nothing.
	flush(len(script))
	return stmts
}

// isTriggerPrefix matches CREATE TRIGGER and CREATE TEMP|TEMPORARY TRIGGER.
func isTriggerPrefix(words []string) bool {
	switch len(words) {
	case 2:
		return words[0] == "CREATE" && words[1] == "TRIGGER"
	case 3:
		return words[0] == "CREATE" &&
			(words[1] == "TEMP" || words[1] == "TEMPORARY") &&
			words[2] == "TRIGGER"
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
