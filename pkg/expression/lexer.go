package expression

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOperator
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind  tokenKind
	text  string
	value string // unquoted string literal
	pos   int
}

// keyword operators accepted as aliases.
var keywordOperators = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
	"eq":  "==",
	"ne":  "!=",
	"lt":  "<",
	"le":  "<=",
	"gt":  ">",
	"ge":  ">=",
}

func tokenize(src string) ([]token, error) {
	var tokens []token

	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
		case r == '\'' || r == '"':
			value, next, err := readString(runes, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokenString, text: string(runes[i:next]), value: value, pos: i})
			i = next
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i]), pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (isIdentRune(runes[i]) || isQualifier(runes, i)) {
				i++
			}

			word := string(runes[start:i])
			if op, ok := keywordOperators[word]; ok {
				tokens = append(tokens, token{kind: tokenOperator, text: op, pos: start})
			} else {
				tokens = append(tokens, token{kind: tokenIdent, text: word, pos: start})
			}
		default:
			op := readOperator(runes, i)
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, r, i)
			}

			tokens = append(tokens, token{kind: tokenOperator, text: op, pos: i})
			i += len(op)
		}
	}

	return append(tokens, token{kind: tokenEOF, pos: len(runes)}), nil
}

func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]

	var sb strings.Builder

	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
		case quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteRune(runes[i])
		}
	}

	return "", 0, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
}

func readOperator(runes []rune, i int) string {
	for _, op := range []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "!"} {
		if strings.HasPrefix(string(runes[i:min(i+2, len(runes))]), op) {
			return op
		}
	}

	return ""
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isQualifier reports whether runes[i] is a dot joining two name parts, as in
// "assignee.default".
func isQualifier(runes []rune, i int) bool {
	return runes[i] == '.' && i+1 < len(runes) && (runes[i+1] == '_' || unicode.IsLetter(runes[i+1]))
}
