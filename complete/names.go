package complete

import (
	"fmt"
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
)

// simpleType renders t in source syntax with simple class names:
// "Map<String, List<Integer>>", "byte[]", "? extends Number".
func simpleType(t catalog.TypeRef) string {
	var sb strings.Builder
	writeSimpleType(&sb, t)
	return sb.String()
}

func writeSimpleType(sb *strings.Builder, t catalog.TypeRef) {
	if t.Wildcard {
		sb.WriteByte('?')
		if len(t.Bounds) > 0 {
			sb.WriteString(" extends ")
			writeSimpleType(sb, t.Bounds[0])
		}
		return
	}
	sb.WriteString(catalog.SimpleName(t.Name))
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSimpleType(sb, a)
		}
		sb.WriteByte('>')
	}
	sb.WriteString(strings.Repeat("[]", t.ArrayDepth))
}

// paramNamer picks the name a parameter is shown with. Names found in scope
// are cached per parameter type for the lifetime of one request.
type paramNamer struct {
	unit   *groovy.Unit
	target *Target
	cache  map[string]string
}

func newParamNamer(u *groovy.Unit, t *Target) *paramNamer {
	return &paramNamer{unit: u, target: t, cache: make(map[string]string)}
}

// name tries, in order: the argument already written in slot i, a typed
// variable in scope that fits the parameter, the declared name, and a
// synthetic param, param2, param3...
func (p *paramNamer) name(i int, param catalog.Param, args []*parser.Node) string {
	if name := argumentName(i, args); name != "" {
		return name
	}
	if name := p.scoped(param.Type); name != "" {
		return name
	}
	if param.Name != "" {
		return param.Name
	}
	if i == 0 {
		return "param"
	}
	return fmt.Sprintf("param%d", i+1)
}

func argumentName(i int, args []*parser.Node) string {
	if i >= len(args) {
		return ""
	}
	switch arg := args[i]; arg.Kind {
	case parser.KindLiteral, parser.KindIdentifier:
		return arg.TokenLiteral()
	}
	return ""
}

func (p *paramNamer) scoped(t catalog.TypeRef) string {
	key := t.String()
	if name, ok := p.cache[key]; ok {
		return name
	}
	name := p.search(t)
	p.cache[key] = name
	return name
}

func (p *paramNamer) search(t catalog.TypeRef) string {
	if p.target == nil {
		return ""
	}
	for _, scope := range p.target.Scopes {
		for _, v := range scope {
			if !v.Typed() || p.target.Ignore[v.Name] {
				continue
			}
			if catalog.Assignable(p.unit.Catalog, v.Type, t) {
				return v.Name
			}
		}
	}
	return ""
}
