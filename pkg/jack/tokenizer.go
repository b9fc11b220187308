package jack

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------------------------------------------------------
// Jack Tokenizer
//
// Turns raw Jack source into a flat, already comment-and-whitespace-stripped
// token stream. There's no lazy/streaming story here (unlike the VM and Asm
// parsers, which drive goparsec off an io.Reader): the whole source file is
// read upfront by the caller anyway (see Parser.Parse), so tokenizing once
// into a slice that the recursive descent parser can freely look ahead into
// is simpler than a pull-based scanner.

type TokenKind int

const (
	KeywordTok TokenKind = iota
	SymbolTok
	IntTok
	StringTok
	IdentTok
)

type Token struct {
	Kind TokenKind
	Text string // The literal lexeme, string constants have their surrounding quotes stripped
}

var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

const symbolChars = "{}()[].,;+-*/&|<>=~"

func isIdentStart(r byte) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isIdentPart(r byte) bool  { return isIdentStart(r) || (r >= '0' && r <= '9') }
func isDigit(r byte) bool      { return r >= '0' && r <= '9' }

// Tokenize scans the entirety of 'src' and returns its token sequence. A malformed
// character, an unterminated string or an unterminated block comment is fatal, as
// is an integer constant outside the 0-32767 range, matching Jack's own tokenizer.
func Tokenize(src []byte) ([]Token, error) {
	tokens := []Token{}
	i, n := 0, len(src)

	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			end := strings.Index(string(src[i+2:]), "*/")
			if end == -1 {
				return nil, fmt.Errorf("unterminated block comment starting at byte %d", i)
			}
			i += 2 + end + 2

		case c == '"':
			j := i + 1
			for j < n && src[j] != '"' && src[j] != '\n' {
				j++
			}
			if j >= n || src[j] != '"' {
				return nil, fmt.Errorf("unterminated string constant starting at byte %d", i)
			}
			tokens = append(tokens, Token{Kind: StringTok, Text: string(src[i+1 : j])})
			i = j + 1

		case isDigit(c):
			j := i
			for j < n && isDigit(src[j]) {
				j++
			}
			lexeme := string(src[i:j])
			value, err := strconv.Atoi(lexeme)
			if err != nil || value < 0 || value > 32767 {
				return nil, fmt.Errorf("integer constant '%s' out of range 0-32767", lexeme)
			}
			tokens = append(tokens, Token{Kind: IntTok, Text: lexeme})
			i = j

		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(src[j]) {
				j++
			}
			lexeme := string(src[i:j])
			if keywords[lexeme] {
				tokens = append(tokens, Token{Kind: KeywordTok, Text: lexeme})
			} else {
				tokens = append(tokens, Token{Kind: IdentTok, Text: lexeme})
			}
			i = j

		case strings.IndexByte(symbolChars, c) != -1:
			tokens = append(tokens, Token{Kind: SymbolTok, Text: string(c)})
			i++

		default:
			return nil, fmt.Errorf("unexpected character '%c' at byte %d", c, i)
		}
	}

	return tokens, nil
}
