package asm

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the assembly lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenIdentifier // foo, LOAD_FAST
	TokenInteger    // 42, -7
	TokenString     // "hello"
	TokenLabel      // @loop
	TokenOperator   // <, <=, ==, !=, >, >=

	// Delimiters
	TokenDot    // .
	TokenColon  // :
	TokenComma  // ,
	TokenLParen // (
	TokenRParen // )
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenLabel:      "LABEL",
	TokenOperator:   "OPERATOR",
	TokenDot:        ".",
	TokenColon:      ":",
	TokenComma:      ",",
	TokenLParen:     "(",
	TokenRParen:     ")",
}

// String implements the Stringer interface.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is a location in the source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line
	Column int // 1-based column
}

// String implements the Stringer interface.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// String implements the Stringer interface.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenNewline:
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
