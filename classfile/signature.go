package classfile

import (
	"strings"

	"github.com/pkg/errors"
)

type SigKind int

const (
	SigBase SigKind = iota
	SigClass
	SigArray
	SigTypeVar
	SigWildcard
)

// TypeSig is a type from a generic Signature attribute.
type TypeSig struct {
	Kind SigKind
	// Name is the primitive keyword, the dotted class name or the type
	// variable name, depending on Kind.
	Name string
	Args []TypeSig
	Elem *TypeSig
	// Bound is the upper bound of a "? extends" wildcard. It is nil for
	// "?" and "? super".
	Bound *TypeSig
}

// Source renders the signature in Java source syntax.
func (s TypeSig) Source() string {
	switch s.Kind {
	case SigArray:
		return s.Elem.Source() + "[]"
	case SigWildcard:
		if s.Bound != nil {
			return "? extends " + s.Bound.Source()
		}
		return "?"
	case SigClass:
		if len(s.Args) == 0 {
			return s.Name
		}
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = a.Source()
		}
		return s.Name + "<" + strings.Join(args, ", ") + ">"
	default:
		return s.Name
	}
}

type TypeParamSig struct {
	Name            string
	ClassBound      *TypeSig
	InterfaceBounds []TypeSig
}

type ClassSig struct {
	TypeParams []TypeParamSig
	Super      TypeSig
	Interfaces []TypeSig
}

type MethodSig struct {
	TypeParams []TypeParamSig
	Params     []TypeSig
	// Return is nil for void.
	Return *TypeSig
}

type sigParser struct {
	s   string
	pos int
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *sigParser) fail(what string) error {
	return errors.Errorf("signature %q: %s at %d", p.s, what, p.pos)
}

func ParseClassSignature(s string) (*ClassSig, error) {
	p := &sigParser{s: s}
	cs := &ClassSig{}
	var err error
	if cs.TypeParams, err = p.typeParams(); err != nil {
		return nil, err
	}
	super, err := p.refType()
	if err != nil {
		return nil, err
	}
	cs.Super = *super
	for p.pos < len(p.s) {
		iface, err := p.refType()
		if err != nil {
			return nil, err
		}
		cs.Interfaces = append(cs.Interfaces, *iface)
	}
	return cs, nil
}

func ParseMethodSignature(s string) (*MethodSig, error) {
	p := &sigParser{s: s}
	ms := &MethodSig{}
	var err error
	if ms.TypeParams, err = p.typeParams(); err != nil {
		return nil, err
	}
	if p.peek() != '(' {
		return nil, p.fail("expected '('")
	}
	p.pos++
	for p.peek() != ')' {
		if p.peek() == 0 {
			return nil, p.fail("unterminated parameters")
		}
		t, err := p.javaType()
		if err != nil {
			return nil, err
		}
		ms.Params = append(ms.Params, *t)
	}
	p.pos++
	if p.peek() == 'V' {
		p.pos++
	} else {
		if ms.Return, err = p.javaType(); err != nil {
			return nil, err
		}
	}
	// throws clauses ('^') are not needed
	return ms, nil
}

func ParseFieldSignature(s string) (*TypeSig, error) {
	p := &sigParser{s: s}
	return p.refType()
}

func (p *sigParser) typeParams() ([]TypeParamSig, error) {
	if p.peek() != '<' {
		return nil, nil
	}
	p.pos++
	var params []TypeParamSig
	for p.peek() != '>' {
		colon := strings.IndexByte(p.s[p.pos:], ':')
		if colon <= 0 {
			return nil, p.fail("bad type parameter")
		}
		tp := TypeParamSig{Name: p.s[p.pos : p.pos+colon]}
		p.pos += colon + 1
		if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
			b, err := p.refType()
			if err != nil {
				return nil, err
			}
			tp.ClassBound = b
		}
		for p.peek() == ':' {
			p.pos++
			b, err := p.refType()
			if err != nil {
				return nil, err
			}
			tp.InterfaceBounds = append(tp.InterfaceBounds, *b)
		}
		params = append(params, tp)
	}
	p.pos++
	return params, nil
}

func (p *sigParser) javaType() (*TypeSig, error) {
	if base, ok := baseTypes[p.peek()]; ok {
		p.pos++
		return &TypeSig{Kind: SigBase, Name: base}, nil
	}
	return p.refType()
}

func (p *sigParser) refType() (*TypeSig, error) {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		end := strings.IndexByte(p.s[p.pos:], ';')
		if end < 0 {
			return nil, p.fail("unterminated type variable")
		}
		t := &TypeSig{Kind: SigTypeVar, Name: p.s[p.pos+1 : p.pos+end]}
		p.pos += end + 1
		return t, nil
	case '[':
		p.pos++
		elem, err := p.javaType()
		if err != nil {
			return nil, err
		}
		return &TypeSig{Kind: SigArray, Elem: elem}, nil
	}
	return nil, p.fail("expected reference type")
}

func (p *sigParser) classType() (*TypeSig, error) {
	p.pos++
	t := &TypeSig{Kind: SigClass}
	var name strings.Builder
	for {
		c := p.peek()
		switch c {
		case 0:
			return nil, p.fail("unterminated class type")
		case ';':
			p.pos++
			t.Name = InternalToSourceName(name.String())
			return t, nil
		case '<':
			args, err := p.typeArgs()
			if err != nil {
				return nil, err
			}
			t.Args = args
		case '.':
			// inner class of a parameterized outer: Outer<T>.Inner
			name.WriteByte('$')
			t.Args = nil
			p.pos++
		default:
			name.WriteByte(c)
			p.pos++
		}
	}
}

func (p *sigParser) typeArgs() ([]TypeSig, error) {
	p.pos++
	var args []TypeSig
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return nil, p.fail("unterminated type arguments")
		case '*':
			p.pos++
			args = append(args, TypeSig{Kind: SigWildcard})
		case '+':
			p.pos++
			b, err := p.refType()
			if err != nil {
				return nil, err
			}
			args = append(args, TypeSig{Kind: SigWildcard, Bound: b})
		case '-':
			p.pos++
			if _, err := p.refType(); err != nil {
				return nil, err
			}
			args = append(args, TypeSig{Kind: SigWildcard})
		default:
			a, err := p.refType()
			if err != nil {
				return nil, err
			}
			args = append(args, *a)
		}
	}
	p.pos++
	return args, nil
}
