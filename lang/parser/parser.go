// Package parser implements a recursive-descent parser for Seq source
// files, producing an ast.Program for the checker to consume.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/scanner"
	"github.com/seqlang/seq/lang/token"
)

// Parse tokenizes and parses a single source buffer. The returned error, if
// non-nil, wraps every scan and parse error encountered.
func Parse(filename string, src []byte) (*ast.Program, error) {
	p := &parser{filename: filename}

	var s scanner.Scanner
	s.Init(filename, src, func(pos token.Position, msg string) {
		p.errs = append(p.errs, fmt.Errorf("%s: %s", pos, msg))
	})
	for {
		var v token.Value
		tok := s.Scan(&v)
		p.toks = append(p.toks, scannedToken{tok, v})
		if tok == token.EOF {
			break
		}
	}

	prog := p.parseProgram()
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return prog, nil
}

type scannedToken struct {
	tok token.Token
	val token.Value
}

type parser struct {
	filename string
	toks     []scannedToken
	i        int
	errs     []error
	quotID   int
}

func (p *parser) cur() token.Token { return p.toks[p.i].tok }
func (p *parser) val() token.Value { return p.toks[p.i].val }

func (p *parser) peek(n int) token.Token {
	if p.i+n >= len(p.toks) {
		return token.EOF
	}
	return p.toks[p.i+n].tok
}

func (p *parser) next() { // never advances past EOF
	if p.cur() != token.EOF {
		p.i++
	}
}

func (p *parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s",
		pos.ToPosition(p.filename), fmt.Sprintf(format, args...)))
}

func (p *parser) expect(tok token.Token) token.Value {
	v := p.val()
	if p.cur() != tok {
		p.errorf(v.Pos, "expected %s, found %s", tok, describe(p.cur(), v))
	}
	p.next()
	return v
}

func describe(tok token.Token, v token.Value) string {
	switch tok {
	case token.IDENT:
		return fmt.Sprintf("%q", v.String)
	case token.EOF:
		return "end of file"
	default:
		if v.Raw != "" {
			return fmt.Sprintf("%q", v.Raw)
		}
		return tok.String()
	}
}

func (p *parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur() != token.EOF {
		switch p.cur() {
		case token.INCLUDE:
			p.next()
			v := p.val()
			switch p.cur() {
			case token.STRING:
				prog.Includes = append(prog.Includes, ast.Include{Path: v.String, Pos: v.Pos})
				p.next()
			case token.IDENT:
				prog.Includes = append(prog.Includes, ast.Include{Path: v.String, Pos: v.Pos})
				p.next()
			default:
				p.errorf(v.Pos, "include: expected path, found %s", describe(p.cur(), v))
				p.next()
			}
		case token.UNION:
			if u := p.parseUnion(); u != nil {
				prog.Unions = append(prog.Unions, u)
			}
		case token.COLON:
			if w := p.parseWord(); w != nil {
				prog.Words = append(prog.Words, w)
			}
		default:
			p.errorf(p.val().Pos, "expected declaration, found %s", describe(p.cur(), p.val()))
			p.next()
		}
	}
	return prog
}

func (p *parser) parseUnion() *ast.UnionDef {
	pos := p.val().Pos
	p.expect(token.UNION)
	name := p.expect(token.IDENT)
	u := &ast.UnionDef{Name: name.String, Pos: pos}
	p.expect(token.LBRACE)
	tag := 0
	for p.cur() == token.IDENT {
		v := &ast.Variant{Name: p.val().String, Tag: tag, Pos: p.val().Pos}
		tag++
		p.next()
		if p.cur() == token.LBRACE {
			p.next()
			for p.cur() == token.IDENT {
				fname := p.val().String
				p.next()
				// fields scan as "name:" chunks followed by the type name
				if !strings.HasSuffix(fname, ":") {
					p.errorf(v.Pos, "variant %s: field %q must be written as %q", v.Name, fname, fname+": Type")
				} else {
					fname = strings.TrimSuffix(fname, ":")
				}
				tname := p.expect(token.IDENT)
				v.Fields = append(v.Fields, ast.VariantField{Name: fname, TypeName: tname.String})
			}
			p.expect(token.RBRACE)
		}
		u.Variants = append(u.Variants, v)
	}
	p.expect(token.RBRACE)
	return u
}

func (p *parser) parseWord() *ast.WordDef {
	pos := p.val().Pos
	p.expect(token.COLON)
	name := p.val()
	if p.cur() != token.IDENT {
		p.errorf(name.Pos, "expected word name, found %s", describe(p.cur(), name))
		p.skipPast(token.SEMI)
		return nil
	}
	p.next()

	w := &ast.WordDef{Name: name.String, Pos: pos}
	if p.cur() == token.LPAREN {
		p.next()
		w.Effect = p.collectEffect()
	}
	w.Body = p.parseStmts(token.SEMI)
	p.expect(token.SEMI)
	return w
}

// collectEffect gathers the raw text of a declared stack effect up to the
// closing parenthesis. The checker parses it with types.ParseEffect.
func (p *parser) collectEffect() string {
	var parts []string
	depth := 0
	for {
		switch p.cur() {
		case token.RPAREN:
			if depth == 0 {
				p.next()
				return strings.Join(parts, " ")
			}
			depth--
		case token.LPAREN:
			depth++
		case token.EOF, token.SEMI:
			p.errorf(p.val().Pos, "unterminated stack effect declaration")
			return strings.Join(parts, " ")
		}
		raw := p.val().Raw
		if raw == "" {
			raw = p.cur().String()
		}
		parts = append(parts, raw)
		p.next()
	}
}

// parseStmts parses statements until one of the stop tokens is reached.
// The stop token is not consumed. EOF always stops.
func (p *parser) parseStmts(stops ...token.Token) []ast.Statement {
	var stmts []ast.Statement
	for {
		cur := p.cur()
		if cur == token.EOF {
			return stmts
		}
		for _, stop := range stops {
			if cur == stop {
				return stmts
			}
		}
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
}

func (p *parser) parseStmt() ast.Statement {
	v := p.val()
	switch p.cur() {
	case token.INT:
		p.next()
		return &ast.IntLit{Value: v.Int, Pos: v.Pos}
	case token.FLOAT:
		p.next()
		return &ast.FloatLit{Value: v.Float, Pos: v.Pos}
	case token.TRUE:
		p.next()
		return &ast.BoolLit{Value: true, Pos: v.Pos}
	case token.FALSE:
		p.next()
		return &ast.BoolLit{Value: false, Pos: v.Pos}
	case token.STRING:
		p.next()
		return &ast.StringLit{Value: v.String, Pos: v.Pos}
	case token.SYMBOL:
		p.next()
		return &ast.SymbolLit{Name: v.String, Pos: v.Pos}
	case token.IDENT:
		p.next()
		return &ast.WordCall{Name: v.String, Pos: v.Pos}
	case token.IF:
		return p.parseIf()
	case token.LBRACK:
		return p.parseQuotation()
	case token.MATCH:
		return p.parseMatch()
	default:
		p.errorf(v.Pos, "unexpected %s in word body", describe(p.cur(), v))
		p.next()
		return nil
	}
}

func (p *parser) parseIf() ast.Statement {
	pos := p.val().Pos
	p.expect(token.IF)
	stmt := &ast.If{Pos: pos}
	stmt.Then = p.parseStmts(token.ELSE, token.THEN, token.SEMI)
	if p.cur() == token.ELSE {
		p.next()
		stmt.Else = p.parseStmts(token.THEN, token.SEMI)
	}
	p.expect(token.THEN)
	return stmt
}

func (p *parser) parseQuotation() ast.Statement {
	pos := p.val().Pos
	p.expect(token.LBRACK)
	q := &ast.Quotation{ID: p.quotID, Pos: pos}
	p.quotID++
	q.Body = p.parseStmts(token.RBRACK, token.SEMI)
	p.expect(token.RBRACK)
	return q
}

func (p *parser) parseMatch() ast.Statement {
	pos := p.val().Pos
	p.expect(token.MATCH)
	p.expect(token.LBRACE)
	m := &ast.Match{Pos: pos}
	for p.cur() == token.IDENT {
		arm := ast.MatchArm{Pos: p.val().Pos}
		arm.Pattern.Variant = p.val().String
		p.next()
		p.expect(token.LBRACE)

		// Disambiguate binding patterns from bare bodies: an arm whose
		// leading identifiers are followed by -> names its bindings.
		if n, ok := p.bindingsAhead(); ok {
			bindings := make([]string, 0, n)
			for j := 0; j < n; j++ {
				bindings = append(bindings, p.val().String)
				p.next()
			}
			p.expect(token.ARROW)
			arm.Pattern.Bindings = bindings
		}

		arm.Body = p.parseStmts(token.RBRACE, token.SEMI)
		p.expect(token.RBRACE)
		m.Arms = append(m.Arms, arm)
	}
	p.expect(token.RBRACE)
	if len(m.Arms) == 0 {
		p.errorf(pos, "match requires at least one arm")
	}
	return m
}

// bindingsAhead reports whether the tokens at the current position form a
// binding list (zero or more identifiers followed by ->), and how many
// identifiers it has.
func (p *parser) bindingsAhead() (int, bool) {
	n := 0
	for p.peek(n) == token.IDENT {
		n++
	}
	if p.peek(n) == token.ARROW {
		return n, true
	}
	return 0, false
}

func (p *parser) skipPast(tok token.Token) {
	for p.cur() != tok && p.cur() != token.EOF {
		p.next()
	}
	if p.cur() == tok {
		p.next()
	}
}
