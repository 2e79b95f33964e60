package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Fprint writes a stable, indented textual rendering of the program to w.
// It is meant for golden-file tests and for the parse command, not for
// round-tripping source.
func Fprint(w io.Writer, p *Program) {
	pr := &printer{w: w}
	for _, inc := range p.Includes {
		pr.printf("include %s", inc.Path)
	}
	for _, u := range p.Unions {
		pr.printf("union %s", u.Name)
		pr.indent++
		for _, v := range u.Variants {
			fields := make([]string, len(v.Fields))
			for i, f := range v.Fields {
				fields[i] = f.Name + ":" + f.TypeName
			}
			pr.printf("variant %s #%d {%s}", v.Name, v.Tag, strings.Join(fields, " "))
		}
		pr.indent--
	}
	for _, word := range p.Words {
		if word.Effect != "" {
			pr.printf("word %s ( %s )", word.Name, word.Effect)
		} else {
			pr.printf("word %s", word.Name)
		}
		pr.indent++
		pr.stmts(word.Body)
		pr.indent--
	}
}

// FprintStmts writes the rendering of a statement list on its own. The
// code generator uses it as a stable fingerprint for quotation bodies.
func FprintStmts(w io.Writer, stmts []Statement) {
	pr := &printer{w: w}
	pr.stmts(stmts)
}

type printer struct {
	w      io.Writer
	indent int
}

func (pr *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(pr.w, "%s%s\n", strings.Repeat("  ", pr.indent), fmt.Sprintf(format, args...))
}

func (pr *printer) stmts(stmts []Statement) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *IntLit:
			pr.printf("int %d", s.Value)
		case *FloatLit:
			pr.printf("float %s", strconv.FormatFloat(s.Value, 'g', -1, 64))
		case *BoolLit:
			pr.printf("bool %t", s.Value)
		case *StringLit:
			pr.printf("string %q", s.Value)
		case *SymbolLit:
			pr.printf("symbol :%s", s.Name)
		case *WordCall:
			pr.printf("call %s", s.Name)
		case *If:
			pr.printf("if")
			pr.indent++
			pr.stmts(s.Then)
			pr.indent--
			if s.Else != nil {
				pr.printf("else")
				pr.indent++
				pr.stmts(s.Else)
				pr.indent--
			}
		case *Quotation:
			pr.printf("quotation #%d", s.ID)
			pr.indent++
			pr.stmts(s.Body)
			pr.indent--
		case *Match:
			pr.printf("match")
			pr.indent++
			for _, arm := range s.Arms {
				if arm.Pattern.HasBindings() {
					pr.printf("arm %s {%s}", arm.Pattern.Variant, strings.Join(arm.Pattern.Bindings, " "))
				} else {
					pr.printf("arm %s", arm.Pattern.Variant)
				}
				pr.indent++
				pr.stmts(arm.Body)
				pr.indent--
			}
			pr.indent--
		}
	}
}
