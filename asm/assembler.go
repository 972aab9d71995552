// Package asm assembles wordcode functions from a line-oriented text form.
//
// A source file holds one or more function blocks:
//
//	func build_list(start, stop)
//	    BUILD_LIST 0
//	    STORE_FAST out
//	    label .begin
//	    ...
//	@done:
//	    LOAD_FAST out
//	    RETURN_VALUE
//	end
//
// Body lines are instructions (OPNAME [operand]), jump target definitions
// (@name:) and attribute statements (name .attr). An attribute statement
// evaluates a global's attribute and discards the result; it assembles to
// LOAD_GLOBAL, LOAD_ATTR, POP_TOP.
package asm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/leap/vm"
)

// Error is an assembly error at a source position.
type Error struct {
	Pos Position
	Msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// ErrorList collects every error found in a source file.
type ErrorList []*Error

// Error implements the error interface.
func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors:\n  %s", len(l), strings.Join(msgs, "\n  "))
}

// Err returns nil for an empty list and the list itself otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Assemble assembles every function in src.
func Assemble(src string) ([]*vm.Code, error) {
	return assemble("", src)
}

// AssembleFile reads and assembles a source file. Code objects record the
// file name.
func AssembleFile(path string) ([]*vm.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asm: %w", err)
	}
	return assemble(path, string(data))
}

// AssembleFunction assembles src and returns the function whose simple or
// qualified name is name.
func AssembleFunction(src, name string) (*vm.Code, error) {
	codes, err := Assemble(src)
	if err != nil {
		return nil, err
	}
	if c := Find(codes, name); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("asm: function %q not found", name)
}

// Find returns the code object whose qualified or simple name is name,
// preferring a qualified match.
func Find(codes []*vm.Code, name string) *vm.Code {
	for _, c := range codes {
		if c.QualName == name {
			return c
		}
	}
	for _, c := range codes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assemble(filename, src string) ([]*vm.Code, error) {
	a := &Assembler{lexer: NewLexer(src), filename: filename}
	a.nextToken()
	a.nextToken()
	codes := a.parseFile()
	if err := a.errors.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// ---------------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------------

// Assembler parses assembly source into code objects.
type Assembler struct {
	lexer    *Lexer
	filename string

	curToken  Token
	peekToken Token

	errors ErrorList
}

func (a *Assembler) nextToken() {
	a.curToken = a.peekToken
	a.peekToken = a.lexer.NextToken()
}

func (a *Assembler) errorf(pos Position, format string, args ...any) {
	a.errors = append(a.errors, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (a *Assembler) curIs(t TokenType) bool {
	return a.curToken.Type == t
}

func (a *Assembler) atLineEnd() bool {
	return a.curIs(TokenNewline) || a.curIs(TokenEOF)
}

// skipLine discards tokens up to the end of the current line.
func (a *Assembler) skipLine() {
	for !a.atLineEnd() {
		a.nextToken()
	}
}

// expect consumes a token of type t or reports an error.
func (a *Assembler) expect(t TokenType, what string) (Token, bool) {
	tok := a.curToken
	if tok.Type != t {
		a.unexpected(what)
		return tok, false
	}
	a.nextToken()
	return tok, true
}

func (a *Assembler) unexpected(what string) {
	tok := a.curToken
	if tok.Type == TokenError {
		a.errorf(tok.Pos, "%s", tok.Literal)
		return
	}
	a.errorf(tok.Pos, "expected %s, got %s", what, tok)
}

// endLine requires the end of a line and moves past it.
func (a *Assembler) endLine() {
	if !a.atLineEnd() {
		a.unexpected("end of line")
		a.skipLine()
	}
	if a.curIs(TokenNewline) {
		a.nextToken()
	}
}

func (a *Assembler) skipNewlines() {
	for a.curIs(TokenNewline) {
		a.nextToken()
	}
}

func (a *Assembler) parseFile() []*vm.Code {
	var codes []*vm.Code
	seen := make(map[string]bool)
	for {
		a.skipNewlines()
		if a.curIs(TokenEOF) {
			return codes
		}
		if !a.curIs(TokenIdentifier) || a.curToken.Literal != "func" {
			a.unexpected("'func'")
			a.skipLine()
			continue
		}
		pos := a.curToken.Pos
		c := a.parseFunc()
		if c == nil {
			continue
		}
		if seen[c.QualName] {
			a.errorf(pos, "function %s defined twice", c.QualName)
			continue
		}
		seen[c.QualName] = true
		codes = append(codes, c)
	}
}

// parseFunc parses a func ... end block. It returns nil when the header is
// malformed.
func (a *Assembler) parseFunc() *vm.Code {
	funcPos := a.curToken.Pos
	a.nextToken() // 'func'

	first, ok := a.expect(TokenIdentifier, "function name")
	if !ok {
		a.skipBody()
		return nil
	}
	parts := []string{first.Literal}
	for a.curIs(TokenDot) {
		a.nextToken()
		part, ok := a.expect(TokenIdentifier, "name after '.'")
		if !ok {
			a.skipBody()
			return nil
		}
		parts = append(parts, part.Literal)
	}

	fb := newFuncBuilder(strings.Join(parts, "."), parts[len(parts)-1], a.filename, funcPos.Line)

	if _, ok := a.expect(TokenLParen, "'('"); !ok {
		a.skipBody()
		return nil
	}
	for !a.curIs(TokenRParen) {
		param, ok := a.expect(TokenIdentifier, "parameter name")
		if !ok {
			a.skipBody()
			return nil
		}
		if _, dup := fb.locals[param.Literal]; dup {
			a.errorf(param.Pos, "duplicate parameter %s", param.Literal)
		}
		fb.local(param.Literal)
		fb.code.ArgCount++
		if a.curIs(TokenComma) {
			a.nextToken()
		} else if !a.curIs(TokenRParen) {
			a.unexpected("',' or ')'")
			a.skipBody()
			return nil
		}
	}
	a.nextToken() // ')'
	a.endLine()

	for {
		a.skipNewlines()
		if a.curIs(TokenEOF) {
			a.errorf(funcPos, "func %s is missing 'end'", fb.code.QualName)
			break
		}
		if a.curIs(TokenIdentifier) && a.curToken.Literal == "end" {
			a.nextToken()
			a.endLine()
			break
		}
		a.parseStatement(fb)
	}

	a.errors = append(a.errors, fb.finish()...)
	return fb.code
}

// skipBody discards input up to and including the next 'end' line.
func (a *Assembler) skipBody() {
	for !a.curIs(TokenEOF) {
		if a.curIs(TokenIdentifier) && a.curToken.Literal == "end" {
			a.nextToken()
			return
		}
		a.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (a *Assembler) parseStatement(fb *funcBuilder) {
	tok := a.curToken
	switch tok.Type {
	case TokenLabel:
		a.nextToken()
		if _, ok := a.expect(TokenColon, "':' after jump target"); !ok {
			a.skipLine()
			break
		}
		if err := fb.mark(tok.Literal, tok.Pos); err != nil {
			a.errors = append(a.errors, err)
		}

	case TokenIdentifier:
		if a.peekToken.Type == TokenDot {
			a.parseAttribute(fb)
			break
		}
		op, ok := vm.LookupOpcode(tok.Literal)
		if !ok {
			a.errorf(tok.Pos, "unknown opcode %s", tok.Literal)
			a.skipLine()
			break
		}
		a.nextToken()
		a.parseInstruction(fb, op, tok.Pos)

	default:
		a.unexpected("instruction")
		a.skipLine()
	}
	a.endLine()
}

// parseAttribute handles `name .attr`.
func (a *Assembler) parseAttribute(fb *funcBuilder) {
	obj := a.curToken
	a.nextToken() // name
	a.nextToken() // '.'
	attr, ok := a.expect(TokenIdentifier, "attribute name")
	if !ok {
		a.skipLine()
		return
	}
	fb.line(obj.Pos.Line)
	for _, step := range []struct {
		op   vm.Opcode
		name string
	}{
		{vm.OpLoadGlobal, obj.Literal},
		{vm.OpLoadAttr, attr.Literal},
	} {
		idx, err := fb.name(step.name, obj.Pos)
		if err != nil {
			a.errors = append(a.errors, err)
			return
		}
		fb.emit(step.op, idx)
	}
	fb.emit(vm.OpPopTop, 0)
}

func (a *Assembler) parseInstruction(fb *funcBuilder, op vm.Opcode, pos Position) {
	fb.line(pos.Line)
	kind := op.Info().Arg
	if kind == vm.ArgNone {
		fb.emit(op, 0)
		return
	}
	if a.atLineEnd() {
		a.errorf(pos, "%s requires an operand", op)
		return
	}

	tok := a.curToken
	var (
		arg int
		err *Error
	)
	switch kind {
	case vm.ArgConst:
		var c vm.Const
		c, err = a.parseConst(tok)
		if err == nil {
			arg, err = fb.constant(c, tok.Pos)
		}

	case vm.ArgLocal:
		if tok.Type != TokenIdentifier {
			a.unexpected("local name")
			a.skipLine()
			return
		}
		arg, err = fb.local(tok.Literal), nil
		if arg > vm.MaxArg {
			err = &Error{Pos: tok.Pos, Msg: "too many locals"}
		}

	case vm.ArgName:
		if tok.Type != TokenIdentifier {
			a.unexpected("name")
			a.skipLine()
			return
		}
		arg, err = fb.name(tok.Literal, tok.Pos)

	case vm.ArgCount:
		if tok.Type != TokenInteger {
			a.unexpected("count")
			a.skipLine()
			return
		}
		n, perr := strconv.Atoi(tok.Literal)
		if perr != nil || n < 0 || n > vm.MaxArg {
			err = &Error{Pos: tok.Pos, Msg: fmt.Sprintf("count %s out of range 0..%d", tok.Literal, vm.MaxArg)}
		}
		arg = n

	case vm.ArgCompare:
		if tok.Type != TokenOperator {
			a.unexpected("comparison operator")
			a.skipLine()
			return
		}
		k, ok := vm.LookupCompare(tok.Literal)
		if !ok {
			err = &Error{Pos: tok.Pos, Msg: "unknown comparison " + tok.Literal}
		}
		arg = int(k)

	case vm.ArgRelative, vm.ArgAbsolute:
		if tok.Type != TokenLabel {
			a.unexpected("jump target")
			a.skipLine()
			return
		}
		a.nextToken()
		if err := fb.jump(op, tok.Literal, tok.Pos); err != nil {
			a.errors = append(a.errors, err)
		}
		return
	}

	a.nextToken()
	if err != nil {
		a.errors = append(a.errors, err)
		return
	}
	fb.emit(op, arg)
}

func (a *Assembler) parseConst(tok Token) (vm.Const, *Error) {
	switch tok.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return vm.Const{}, &Error{Pos: tok.Pos, Msg: "bad integer " + tok.Literal}
		}
		return vm.IntConst(n), nil
	case TokenString:
		return vm.StrConst(tok.Literal), nil
	case TokenIdentifier:
		switch tok.Literal {
		case "None":
			return vm.NoneConst(), nil
		case "True":
			return vm.BoolConst(true), nil
		case "False":
			return vm.BoolConst(false), nil
		}
	case TokenError:
		return vm.Const{}, &Error{Pos: tok.Pos, Msg: tok.Literal}
	}
	return vm.Const{}, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("expected constant, got %s", tok)}
}
