package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseEffect parses a stack effect declaration such as
//
//	..a Int -- ..a Bool
//	Int [ ..q -- ..q Int ] -- Int
//
// Surrounding parentheses are optional. Identifier resolution: ..name is a
// row variable; Int, Float, Bool and String are base types (Symbol is
// String for checking purposes); a bare Quotation or Closure is the
// unspecified form instantiated at the use site; [ in -- out ] is a
// quotation type; a single-letter name is a type variable; any other
// capitalized name references a union.
func ParseEffect(s string) (*Effect, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	toks := effectTokens(s)
	p := &effectParser{toks: toks}
	eff, err := p.parseEffect()
	if err != nil {
		return nil, err
	}
	if p.i != len(p.toks) {
		return nil, fmt.Errorf("stack effect: unexpected %q after effect", p.toks[p.i])
	}
	return eff, nil
}

func effectTokens(s string) []string {
	s = strings.ReplaceAll(s, "[", " [ ")
	s = strings.ReplaceAll(s, "]", " ] ")
	return strings.Fields(s)
}

type effectParser struct {
	toks []string
	i    int
}

func (p *effectParser) parseEffect() (*Effect, error) {
	inputs, err := p.parseStack()
	if err != nil {
		return nil, err
	}
	if p.i >= len(p.toks) || p.toks[p.i] != "--" {
		return nil, fmt.Errorf("stack effect: missing -- separator")
	}
	p.i++
	outputs, err := p.parseStack()
	if err != nil {
		return nil, err
	}
	return NewEffect(inputs, outputs), nil
}

// parseStack reads types bottom-to-top until --, ] or the end of input.
func (p *effectParser) parseStack() (StackType, error) {
	var st StackType = Empty{}
	first := true
	for p.i < len(p.toks) {
		tok := p.toks[p.i]
		if tok == "--" || tok == "]" {
			break
		}
		if row, ok := strings.CutPrefix(tok, ".."); ok {
			if !first {
				return nil, fmt.Errorf("stack effect: row variable ..%s must be at the bottom of its side", row)
			}
			if row == "" {
				return nil, fmt.Errorf("stack effect: missing row variable name")
			}
			st = RowVar{Name: row}
			p.i++
			first = false
			continue
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		st = Push(st, ty)
		first = false
	}
	return st, nil
}

func (p *effectParser) parseType() (Type, error) {
	tok := p.toks[p.i]
	p.i++
	switch tok {
	case "Int":
		return Int, nil
	case "Float":
		return Float, nil
	case "Bool":
		return Bool, nil
	case "String", "Symbol":
		return String, nil
	case "Quotation":
		return &Quotation{}, nil
	case "Closure":
		return &Closure{}, nil
	case "[":
		eff, err := p.parseEffect()
		if err != nil {
			return nil, err
		}
		if p.i >= len(p.toks) || p.toks[p.i] != "]" {
			return nil, fmt.Errorf("stack effect: missing closing ] in quotation type")
		}
		p.i++
		return &Quotation{Effect: eff}, nil
	}
	if !validTypeName(tok) {
		return nil, fmt.Errorf("stack effect: invalid type name %q", tok)
	}
	r, _ := utf8.DecodeRuneInString(tok)
	if utf8.RuneCountInString(tok) > 1 && unicode.IsUpper(r) {
		return Union{Name: tok}, nil
	}
	return Var{Name: tok}, nil
}

func validTypeName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '$' {
			return false
		}
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}
