package groovy

import (
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy/parser"
)

var visibilityModifiers = []string{"public", "protected", "private"}

// buildSymbols fills the script-local types registered by collectClasses
// with their members. Type names that fail to resolve here are reported
// once, when the declaration is bound.
func (b *binder) buildSymbols() {
	u := b.unit
	if b.script != nil {
		for _, m := range u.Root.ChildrenOfKind(parser.KindMethodDecl) {
			if c, ok := b.callable(m, b.script.Name); ok {
				b.script.Methods = append(b.script.Methods, c)
			}
		}
	}
	for n, ti := range b.classes {
		b.classMembers(n, ti)
	}
}

func (b *binder) classMembers(n *parser.Node, ti *catalog.TypeInfo) {
	switch ti.Kind {
	case catalog.KindEnum:
		super := catalog.TypeRef{Name: "java.lang.Enum", Args: []catalog.TypeRef{ti.Ref()}}
		ti.Super = &super
	case catalog.KindClass:
		super := catalog.ClassRef(catalog.ObjectName)
		ti.Super = &super
	}
	if ext := n.FirstChildOfKind(parser.KindExtends); ext != nil {
		for _, tn := range ext.Children {
			t, ok := b.typeOf(tn, false)
			if !ok {
				continue
			}
			if ti.Kind == catalog.KindInterface {
				ti.Interfaces = append(ti.Interfaces, t)
			} else {
				ti.Super = &t
			}
		}
	}
	if impl := n.FirstChildOfKind(parser.KindImplements); impl != nil {
		for _, tn := range impl.Children {
			if t, ok := b.typeOf(tn, false); ok {
				ti.Interfaces = append(ti.Interfaces, t)
			}
		}
	}

	for _, c := range n.ChildrenOfKind(parser.KindEnumConstant) {
		ti.Fields = append(ti.Fields, catalog.Field{
			Name:   c.Child(0).TokenLiteral(),
			Owner:  ti.Name,
			Type:   ti.Ref(),
			Static: true,
		})
	}

	for _, m := range n.Children {
		switch m.Kind {
		case parser.KindFieldDecl:
			b.fieldMembers(m, ti)
		case parser.KindMethodDecl:
			if c, ok := b.callable(m, ti.Name); ok {
				if ti.Kind == catalog.KindInterface && !c.Static {
					ti.Abstract = true
				}
				ti.Methods = append(ti.Methods, c)
			}
		case parser.KindConstructorDecl:
			if c, ok := b.callable(m, ti.Name); ok {
				c.Name = catalog.SimpleName(ti.Name)
				c.Returns = catalog.TypeRef{}
				ti.Constructors = append(ti.Constructors, c)
			}
		}
	}
	if len(ti.Constructors) == 0 && ti.Kind == catalog.KindClass {
		ti.Constructors = append(ti.Constructors, catalog.Callable{Name: catalog.SimpleName(ti.Name), Owner: ti.Name})
	}
}

// fieldMembers adds the fields of one declaration. A field declared without
// a visibility modifier is a Groovy property and also gets accessors.
func (b *binder) fieldMembers(n *parser.Node, ti *catalog.TypeInfo) {
	mods := n.FirstChildOfKind(parser.KindModifiers)
	t, ok := b.typeOf(declaredType(n), false)
	if !ok {
		t = catalog.ClassRef(catalog.ObjectName)
	}
	static := hasModifier(mods, "static")
	property := true
	for _, v := range visibilityModifiers {
		if hasModifier(mods, v) {
			property = false
		}
	}
	for _, d := range n.ChildrenOfKind(parser.KindDeclarator) {
		name := d.Child(0).TokenLiteral()
		if name == "" {
			continue
		}
		ti.Fields = append(ti.Fields, catalog.Field{Name: name, Owner: ti.Name, Type: t, Static: static})
		if !property {
			continue
		}
		suffix := strings.ToUpper(name[:1]) + name[1:]
		ti.Methods = append(ti.Methods, catalog.Callable{
			Name:    "get" + suffix,
			Owner:   ti.Name,
			Returns: t,
			Static:  static,
		})
		if !hasModifier(mods, "final") {
			ti.Methods = append(ti.Methods, catalog.Callable{
				Name:    "set" + suffix,
				Owner:   ti.Name,
				Params:  []catalog.Param{{Type: t, Name: name}},
				Returns: catalog.TypeRef{Name: "void"},
				Static:  static,
			})
		}
	}
}

// callable turns a method or constructor declaration into a catalog entry.
// An untyped return is Object; untyped parameters are Object.
func (b *binder) callable(n *parser.Node, owner string) (catalog.Callable, bool) {
	name := n.FirstChildOfKind(parser.KindIdentifier).TokenLiteral()
	if name == "" {
		return catalog.Callable{}, false
	}
	mods := n.FirstChildOfKind(parser.KindModifiers)
	c := catalog.Callable{
		Name:   name,
		Owner:  owner,
		Static: hasModifier(mods, "static"),
	}
	if ret, ok := b.typeOf(declaredType(n), false); ok {
		c.Returns = ret
	} else {
		c.Returns = catalog.ClassRef(catalog.ObjectName)
	}
	for _, p := range n.FirstChildOfKind(parser.KindParameters).ChildrenOrNil() {
		pname := p.FirstChildOfKind(parser.KindIdentifier).TokenLiteral()
		tn := declaredType(p)
		pt, ok := b.typeOf(tn, false)
		if !ok {
			pt = catalog.ClassRef(catalog.ObjectName)
		}
		if tn != nil && tn.Flags.Has(parser.FlagVarargs) {
			c.Varargs = true
		}
		c.Params = append(c.Params, catalog.Param{Type: pt, Name: pname})
	}
	return c, true
}
