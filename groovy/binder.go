package groovy

import (
	"fmt"
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy/parser"
)

const scriptSuper = "groovy.lang.Script"

type binder struct {
	unit  *Unit
	scope *Scope
	// this is the type of this in the code being bound.
	this catalog.TypeRef
	// classes maps class declarations to their script-local type.
	classes map[*parser.Node]*catalog.TypeInfo
	script  *catalog.TypeInfo
}

func (b *binder) errorf(span parser.Span, format string, args ...any) {
	b.unit.Errors = append(b.unit.Errors, Error{Span: span, Message: fmt.Sprintf(format, args...)})
}

// open starts a scope for n. The returned function restores the previous
// scope; callers defer it.
func (b *binder) open(n *parser.Node, parent *Scope) func() {
	saved := b.scope
	s := &Scope{Node: n, Parent: parent}
	b.unit.scopes[n] = s
	b.scope = s
	return func() {
		b.scope = saved
	}
}

func (b *binder) declare(name *parser.Node, t catalog.TypeRef, dynamic bool) *Variable {
	v := &Variable{Name: name.TokenLiteral(), Type: t, Dynamic: dynamic, Decl: name}
	b.scope.declare(v)
	b.unit.uses[name] = &Use{Kind: UseVariable, Var: v}
	if v.Typed() {
		b.unit.types[name] = t
	}
	return v
}

// collectClasses registers every class the script declares, and the script
// class itself when the script declares methods, so that type names resolve
// before any member signature is read.
func (b *binder) collectClasses() {
	u := b.unit
	b.classes = make(map[*parser.Node]*catalog.TypeInfo)
	builder := catalog.NewBuilder()

	var collect func(n *parser.Node, outer string)
	collect = func(n *parser.Node, outer string) {
		name := n.FirstChildOfKind(parser.KindIdentifier).TokenLiteral()
		if name == "" {
			return
		}
		qualified := name
		if outer != "" {
			qualified = outer + "$" + name
		} else {
			u.names.script[name] = true
		}
		ti := &catalog.TypeInfo{
			Name:     qualified,
			Kind:     classKind(n),
			Abstract: hasModifier(n.FirstChildOfKind(parser.KindModifiers), "abstract"),
		}
		if builder.Add(ti) {
			b.classes[n] = ti
		}
		for _, member := range n.ChildrenOfKind(parser.KindClassDecl) {
			collect(member, qualified)
		}
	}

	hasMethods := false
	for _, child := range u.Root.Children {
		switch child.Kind {
		case parser.KindClassDecl:
			collect(child, "")
		case parser.KindMethodDecl:
			hasMethods = true
		}
	}
	if hasMethods && !u.names.script[u.ScriptClass] {
		super := catalog.ClassRef(scriptSuper)
		b.script = &catalog.TypeInfo{Name: u.ScriptClass, Kind: catalog.KindClass, Super: &super}
		builder.Add(b.script)
	}
	if builder.Len() == 0 {
		return
	}
	u.symbols = builder.Build()
	u.Catalog = catalog.Union(u.symbols, u.Catalog)
	u.names.src = u.Catalog
}

func classKind(n *parser.Node) catalog.Kind {
	if n.Token == nil {
		return catalog.KindClass
	}
	switch n.Token.Kind {
	case parser.TokenInterface:
		return catalog.KindInterface
	case parser.TokenEnum:
		return catalog.KindEnum
	}
	return catalog.KindClass
}

func hasModifier(mods *parser.Node, name string) bool {
	if mods == nil {
		return false
	}
	for _, m := range mods.Children {
		if m.TokenLiteral() == name {
			return true
		}
	}
	return false
}

func (b *binder) resolveImports() {
	u := b.unit
	for _, n := range u.Root.ChildrenOfKind(parser.KindImport) {
		name := n.Child(0)
		imp := &Import{
			Node:   n,
			Path:   name.QualifiedName(),
			Static: n.Flags.Has(parser.FlagStatic),
			Star:   n.Flags.Has(parser.FlagStar),
		}
		if alias := n.Child(1); alias != nil {
			imp.Alias = alias.TokenLiteral()
		}
		u.Imports = append(u.Imports, imp)

		switch {
		case imp.Static && imp.Star:
			imp.Class = u.names.resolve(imp.Path)
			if imp.Class == nil {
				b.errorf(name.Span, "unable to resolve class %s", imp.Path)
			}
		case imp.Static:
			owner := catalog.PackageOf(imp.Path)
			imp.Member = catalog.SimpleName(imp.Path)
			imp.Class = u.names.resolve(owner)
			if imp.Class == nil {
				b.errorf(name.Span, "unable to resolve class %s", owner)
			}
		case imp.Star:
			// Groovy accepts star imports of packages it cannot see
			u.names.addStar(imp.Path)
		default:
			imp.Class = u.names.resolve(imp.Path)
			if imp.Class == nil {
				b.errorf(name.Span, "unable to resolve class %s", imp.Path)
				continue
			}
			u.names.single[imp.Name()] = imp.Class.Name
		}
	}
}

// typeOf resolves a Type or ArrayType node. Unresolvable class names are
// reported when report is set.
func (b *binder) typeOf(n *parser.Node, report bool) (catalog.TypeRef, bool) {
	if n == nil {
		return catalog.TypeRef{}, false
	}
	switch n.Kind {
	case parser.KindArrayType:
		elem, ok := b.typeOf(n.Child(0), report)
		if !ok {
			return elem, false
		}
		return catalog.ArrayOf(elem, 1), true
	case parser.KindWildcard:
		wc := catalog.TypeRef{Wildcard: true}
		if n.TokenLiteral() == "extends" {
			if bound, ok := b.typeOf(n.Child(0), report); ok {
				wc.Bounds = []catalog.TypeRef{bound}
			}
		}
		return wc, true
	case parser.KindType:
	default:
		return catalog.TypeRef{}, false
	}

	qn := n.FirstChildOfKind(parser.KindQualifiedName)
	if qn == nil {
		// primitive or void
		return catalog.TypeRef{Name: n.TokenLiteral()}, true
	}
	name := qn.QualifiedName()
	t := b.unit.names.resolve(name)
	if t == nil {
		if report {
			b.errorf(qn.Span, "unable to resolve class %s", name)
		}
		return catalog.TypeRef{}, false
	}
	ref := t.Ref()
	if args := n.FirstChildOfKind(parser.KindTypeArguments); args != nil {
		for _, a := range args.Children {
			at, ok := b.typeOf(a, report)
			if !ok {
				at = catalog.ClassRef(catalog.ObjectName)
			}
			ref.Args = append(ref.Args, at)
		}
	}
	return ref, true
}

func declaredType(n *parser.Node) *parser.Node {
	for _, c := range n.Children {
		if c.Kind == parser.KindType || c.Kind == parser.KindArrayType {
			return c
		}
	}
	return nil
}

// bindScript binds the script body, then the top-level methods and
// classes. Methods see only their own parameters and locals.
func (b *binder) bindScript() {
	u := b.unit
	b.this = catalog.ClassRef(scriptSuper)
	if b.script != nil {
		b.this = b.script.Ref()
	}

	restore := b.open(u.Root, nil)
	root := b.scope
	for _, child := range u.Root.Children {
		switch child.Kind {
		case parser.KindImport, parser.KindPackage, parser.KindMethodDecl, parser.KindClassDecl:
			continue
		}
		b.stmt(child)
	}
	restore()

	for _, child := range u.Root.Children {
		switch child.Kind {
		case parser.KindMethodDecl:
			b.method(child, nil)
		case parser.KindClassDecl:
			b.class(child)
		}
	}
	log.Debugf("script scope declares %d variables", len(root.Vars))
}

func (b *binder) method(n *parser.Node, parent *Scope) {
	defer b.open(n, parent)()
	for _, p := range n.FirstChildOfKind(parser.KindParameters).ChildrenOrNil() {
		b.parameter(p)
	}
	if body := n.FirstChildOfKind(parser.KindBlock); body != nil {
		b.stmt(body)
	}
}

func (b *binder) parameter(p *parser.Node) {
	name := p.FirstChildOfKind(parser.KindIdentifier)
	if name == nil {
		return
	}
	for _, c := range p.Children {
		if c != name && c.Kind != parser.KindType && c.Kind != parser.KindArrayType {
			b.expr(c)
		}
	}
	if tn := declaredType(p); tn != nil {
		t, ok := b.typeOf(tn, true)
		b.declare(name, t, !ok)
		return
	}
	b.declare(name, catalog.TypeRef{}, true)
}

func (b *binder) class(n *parser.Node) {
	ti := b.classes[n]
	if ti == nil {
		return
	}
	savedThis := b.this
	b.this = ti.Ref()
	defer func() { b.this = savedThis }()

	for _, clause := range append(n.ChildrenOfKind(parser.KindExtends), n.ChildrenOfKind(parser.KindImplements)...) {
		for _, t := range clause.Children {
			b.typeOf(t, true)
		}
	}

	defer b.open(n, nil)()
	members := b.scope
	for _, f := range n.ChildrenOfKind(parser.KindFieldDecl) {
		t, ok := b.typeOf(declaredType(f), true)
		for _, d := range f.ChildrenOfKind(parser.KindDeclarator) {
			if init := d.Child(1); init != nil {
				b.expr(init)
			}
			b.declare(d.Child(0), t, !ok)
		}
	}
	for _, c := range n.ChildrenOfKind(parser.KindEnumConstant) {
		for _, a := range c.FirstChildOfKind(parser.KindArguments).ChildrenOrNil() {
			b.expr(a)
		}
	}
	for _, m := range n.Children {
		switch m.Kind {
		case parser.KindMethodDecl, parser.KindConstructorDecl:
			b.method(m, members)
		case parser.KindClassDecl:
			b.class(m)
		}
	}
}

func (b *binder) stmt(n *parser.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case parser.KindBlock:
		defer b.open(n, b.scope)()
		for _, c := range n.Children {
			b.stmt(c)
		}
	case parser.KindVarDecl:
		b.varDecl(n)
	case parser.KindFor:
		defer b.open(n, b.scope)()
		for _, c := range n.Children {
			b.stmt(c)
		}
	case parser.KindForIn:
		defer b.open(n, b.scope)()
		b.expr(n.Child(1))
		b.parameter(n.Child(0))
		b.stmt(n.Child(2))
	case parser.KindTry:
		for _, c := range n.Children {
			b.stmt(c)
		}
	case parser.KindCatch:
		defer b.open(n, b.scope)()
		b.catchParam(n.Child(0))
		b.stmt(n.Child(1))
	case parser.KindFinally:
		b.stmt(n.Child(0))
	case parser.KindIf, parser.KindWhile, parser.KindExprStmt, parser.KindReturn,
		parser.KindThrow, parser.KindAssert:
		for _, c := range n.Children {
			b.stmt(c)
		}
	case parser.KindEmpty, parser.KindBreak, parser.KindContinue:
	case parser.KindClassDecl:
		b.class(n)
	case parser.KindMethodDecl:
		b.method(n, nil)
	default:
		b.expr(n)
	}
}

func (b *binder) varDecl(n *parser.Node) {
	t, ok := b.typeOf(declaredType(n), true)
	for _, d := range n.ChildrenOfKind(parser.KindDeclarator) {
		if init := d.Child(1); init != nil {
			b.expr(init)
		}
		if name := d.Child(0); name != nil {
			b.declare(name, t, !ok)
		}
	}
}

// catchParam declares the exception variable. A multi-catch variable has
// the common type Throwable.
func (b *binder) catchParam(p *parser.Node) {
	name := p.FirstChildOfKind(parser.KindIdentifier)
	if name == nil {
		return
	}
	var types []catalog.TypeRef
	for _, c := range p.Children {
		if c.Kind == parser.KindType || c.Kind == parser.KindArrayType {
			if t, ok := b.typeOf(c, true); ok {
				types = append(types, t)
			}
		}
	}
	switch len(types) {
	case 0:
		b.declare(name, catalog.ClassRef("java.lang.Exception"), false)
	case 1:
		b.declare(name, types[0], false)
	default:
		b.declare(name, catalog.ClassRef("java.lang.Throwable"), false)
	}
}

func (b *binder) setType(n *parser.Node, t catalog.TypeRef) {
	if !t.IsZero() {
		b.unit.types[n] = t
	}
}

func (b *binder) expr(n *parser.Node) {
	if n == nil {
		return
	}
	u := b.unit
	switch n.Kind {
	case parser.KindLiteral:
		b.setType(n, literalType(n.Token))
	case parser.KindGString:
		b.setType(n, catalog.ClassRef("groovy.lang.GString"))
	case parser.KindIdentifier:
		b.identifier(n)
	case parser.KindThis:
		b.setType(n, b.this)
	case parser.KindSuper:
		if t := u.Catalog.ResolveType(b.this.Name); t != nil && t.Super != nil {
			b.setType(n, t.Super.Erasure())
		}
	case parser.KindParen:
		b.expr(n.Child(0))
		if t, ok := u.types[n.Child(0)]; ok {
			b.setType(n, t)
		}
	case parser.KindProperty:
		b.property(n)
	case parser.KindCall:
		b.call(n)
	case parser.KindNew:
		if t, ok := b.typeOf(n.Child(0), true); ok {
			b.setType(n, t)
		}
		for _, a := range n.Args() {
			b.expr(a)
		}
		if body := n.FirstChildOfKind(parser.KindClassDecl); body != nil {
			b.anonymousBody(body, u.types[n])
		}
	case parser.KindNewArray:
		t, ok := b.typeOf(n.Child(0), true)
		dims := len(n.Children) - 1
		if dims < 1 {
			dims = 1
		}
		for _, c := range n.Children[1:] {
			b.expr(c)
		}
		if ok {
			b.setType(n, catalog.ArrayOf(t, dims))
		}
	case parser.KindCast:
		for _, c := range n.Children {
			if c.Kind == parser.KindType || c.Kind == parser.KindArrayType {
				if t, ok := b.typeOf(c, true); ok {
					b.setType(n, t)
				}
				continue
			}
			b.expr(c)
		}
	case parser.KindBinary:
		b.binary(n)
	case parser.KindUnary:
		b.expr(n.Child(1))
		if n.Child(0).TokenLiteral() == "!" {
			b.setType(n, catalog.TypeRef{Name: "boolean"})
		} else if t, ok := u.types[n.Child(1)]; ok {
			b.setType(n, t)
		}
	case parser.KindPostfix:
		b.expr(n.Child(0))
		if t, ok := u.types[n.Child(0)]; ok {
			b.setType(n, t)
		}
	case parser.KindAssign:
		b.expr(n.Child(0))
		b.expr(n.Child(2))
	case parser.KindClosure:
		b.closure(n)
	case parser.KindList:
		for _, c := range n.Children {
			b.expr(c)
		}
		b.setType(n, catalog.ClassRef("java.util.ArrayList"))
	case parser.KindMap:
		for _, c := range n.Children {
			b.expr(c)
		}
		b.setType(n, catalog.ClassRef("java.util.LinkedHashMap"))
	case parser.KindMapEntry:
		b.expr(n.Child(0))
		b.expr(n.Child(1))
	default:
		for _, c := range n.Children {
			b.expr(c)
		}
	}
}

func literalType(tok *parser.Token) catalog.TypeRef {
	if tok == nil {
		return catalog.TypeRef{}
	}
	lit := strings.ToLower(tok.Literal)
	switch tok.Kind {
	case parser.TokenIntLiteral:
		switch {
		case strings.HasSuffix(lit, "l"):
			return catalog.TypeRef{Name: "long"}
		case strings.HasSuffix(lit, "g"):
			return catalog.ClassRef("java.math.BigInteger")
		}
		return catalog.TypeRef{Name: "int"}
	case parser.TokenFloatLiteral:
		switch {
		case strings.HasSuffix(lit, "f"):
			return catalog.TypeRef{Name: "float"}
		case strings.HasSuffix(lit, "d"):
			return catalog.TypeRef{Name: "double"}
		}
		return catalog.ClassRef("java.math.BigDecimal")
	case parser.TokenStringLiteral, parser.TokenIdent:
		return catalog.ClassRef("java.lang.String")
	case parser.TokenTrue, parser.TokenFalse:
		return catalog.TypeRef{Name: "boolean"}
	}
	return catalog.TypeRef{}
}

func (b *binder) identifier(n *parser.Node) {
	u := b.unit
	name := n.TokenLiteral()
	if v := b.scope.Lookup(name); v != nil {
		u.uses[n] = &Use{Kind: UseVariable, Var: v}
		if v.Typed() {
			u.types[n] = v.Type
		}
		return
	}
	if t := u.names.resolve(name); t != nil {
		u.uses[n] = &Use{Kind: UseClass, Class: t}
		return
	}
	u.uses[n] = &Use{Kind: UseDynamic}
}

// dottedName returns a.b.c for a chain of identifiers joined by plain
// property access.
func dottedName(n *parser.Node) (string, bool) {
	switch n.Kind {
	case parser.KindIdentifier:
		return n.TokenLiteral(), true
	case parser.KindProperty:
		if n.Flags != 0 {
			return "", false
		}
		recv, ok := dottedName(n.Receiver())
		if !ok {
			return "", false
		}
		return recv + "." + n.Name(), true
	}
	return "", false
}

// receiverType returns the type a member access on n is looked up in, and
// whether n names a class rather than a value.
func (b *binder) receiverType(n *parser.Node) (catalog.TypeRef, bool, bool) {
	if use := b.unit.uses[n]; use != nil && use.Kind == UseClass {
		return use.Class.Ref(), true, true
	}
	t, ok := b.unit.types[n]
	return t, false, ok
}

func (b *binder) property(n *parser.Node) {
	u := b.unit
	recv := n.Receiver()
	b.expr(recv)

	if use := u.uses[recv]; use == nil || use.Kind == UseDynamic || use.Kind == UseClass {
		if name, ok := dottedName(n); ok {
			if t := u.names.resolve(name); t != nil {
				u.uses[n] = &Use{Kind: UseClass, Class: t}
				return
			}
		}
	}

	rt, static, ok := b.receiverType(recv)
	if !ok {
		return
	}
	if t, ok := PropertyType(u.Catalog, rt, n.Name(), static); ok {
		b.setType(n, t)
	}
}

func (b *binder) call(n *parser.Node) {
	u := b.unit
	recv := n.Receiver()
	b.expr(recv)
	args := n.Args()
	for _, a := range args {
		b.expr(a)
	}
	rt, _, ok := b.receiverType(recv)
	if !ok {
		return
	}
	if t, ok := ReturnType(u.Catalog, rt, n.Name(), len(args)); ok {
		b.setType(n, t)
	}
}

var booleanOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true, "instanceof": true, "in": true, "==~": true,
}

func (b *binder) binary(n *parser.Node) {
	u := b.unit
	b.expr(n.Child(0))
	op := n.Child(1).TokenLiteral()
	if op == "instanceof" {
		b.typeOf(n.Child(2), true)
	} else {
		b.expr(n.Child(2))
	}
	switch {
	case booleanOps[op]:
		b.setType(n, catalog.TypeRef{Name: "boolean"})
	case op == "+":
		for _, side := range []*parser.Node{n.Child(0), n.Child(2)} {
			if t, ok := u.types[side]; ok && t.Name == "java.lang.String" && !t.IsArray() {
				b.setType(n, t)
			}
		}
	}
}

func (b *binder) closure(n *parser.Node) {
	defer b.open(n, b.scope)()
	if params := n.FirstChildOfKind(parser.KindParameters); params != nil {
		for _, p := range params.Children {
			b.parameter(p)
		}
	} else {
		b.scope.declare(&Variable{Name: "it", Dynamic: true, Decl: n})
	}
	if body := n.FirstChildOfKind(parser.KindBlock); body != nil {
		for _, c := range body.Children {
			b.stmt(c)
		}
	}
	b.setType(n, catalog.ClassRef("groovy.lang.Closure"))
}

func (b *binder) anonymousBody(body *parser.Node, t catalog.TypeRef) {
	savedThis := b.this
	if !t.IsZero() {
		b.this = t
	}
	defer func() { b.this = savedThis }()
	defer b.open(body, b.scope)()
	for _, m := range body.Children {
		switch m.Kind {
		case parser.KindMethodDecl, parser.KindConstructorDecl:
			b.method(m, b.scope)
		case parser.KindFieldDecl:
			b.varDecl(m)
		}
	}
}

// ReturnType is the return type of name called on t with argc arguments,
// known only when exactly one method of that name and arity exists and it
// returns a concrete type.
func ReturnType(src catalog.Source, t catalog.TypeRef, name string, argc int) (catalog.TypeRef, bool) {
	ti := lookupType(src, t)
	if ti == nil {
		return catalog.TypeRef{}, false
	}
	var found []catalog.Callable
	for _, m := range catalog.Methods(src, ti) {
		if m.Name == name && len(m.Params) == argc && !m.Synthetic {
			found = append(found, m)
		}
	}
	if len(found) != 1 {
		return catalog.TypeRef{}, false
	}
	ret := found[0].Returns
	if ret.IsZero() || ret.IsVoid() || ret.TypeVar {
		return catalog.TypeRef{}, false
	}
	return ret, true
}

// PropertyType is the type of the property name on t: a field of that
// name, else the return type of its getter.
func PropertyType(src catalog.Source, t catalog.TypeRef, name string, static bool) (catalog.TypeRef, bool) {
	ti := lookupType(src, t)
	if ti == nil || name == "" {
		return catalog.TypeRef{}, false
	}
	for _, f := range catalog.Fields(src, ti) {
		if f.Name == name && (f.Static || !static) && !f.Type.TypeVar {
			return f.Type, true
		}
	}
	if static {
		return catalog.TypeRef{}, false
	}
	getter := strings.ToUpper(name[:1]) + name[1:]
	for _, prefix := range []string{"get", "is"} {
		if rt, ok := ReturnType(src, t, prefix+getter, 0); ok {
			return rt, true
		}
	}
	return catalog.TypeRef{}, false
}

// lookupType finds the catalog type for a reference type, boxing
// primitives. Arrays have no members of their own.
func lookupType(src catalog.Source, t catalog.TypeRef) *catalog.TypeInfo {
	if t.IsZero() || t.IsArray() {
		return nil
	}
	if t.TypeVar {
		t = t.Erasure()
	}
	return src.ResolveType(catalog.Box(t.Name))
}
