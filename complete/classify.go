package complete

import (
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/pkg/errors"
)

type ContextKind int

const (
	NewInstance ContextKind = iota + 1
	MethodInvocation
	PropertyOrFieldAccess
	BareIdentifier
	ImportPath
)

var contextKindNames = map[ContextKind]string{
	NewInstance:           "new-instance",
	MethodInvocation:      "method-invocation",
	PropertyOrFieldAccess: "property-access",
	BareIdentifier:        "bare-identifier",
	ImportPath:            "import-path",
}

func (k ContextKind) String() string {
	if name, ok := contextKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Append is the argument index of a cursor that is in no argument.
const Append = -1

// Context is what kind of completion the cursor asks for. Which fields are
// set depends on Kind.
type Context struct {
	Kind ContextKind
	// Hint is the typed prefix candidates must start with.
	Hint string

	// NewInstance: the constructor call, and the variable or the enclosing
	// call it is assigned to.
	New      *parser.Node
	Variable *groovy.Variable
	Call     *parser.Node
	// Slot is the argument index of New inside Call.
	Slot int

	// MethodInvocation: the call being typed and the argument the cursor is
	// in, or Append.
	Method   *parser.Node
	ArgIndex int

	// PropertyOrFieldAccess: the receiver type, and the type results must be
	// assignable to when the access initializes a typed variable.
	Receiver catalog.TypeRef
	Returns  catalog.TypeRef

	// ImportPath
	Import *groovy.Import
}

// Classify turns a resolved target into a completion context.
func Classify(unit *groovy.Unit, t *Target, hints Hints) (*Context, error) {
	c := &classifier{unit: unit, target: t, hints: hints}
	ctx, err := c.classify()
	if err != nil {
		return nil, err
	}
	log.Debugf("context %s hint %q", ctx.Kind, ctx.Hint)
	return ctx, nil
}

type classifier struct {
	unit   *groovy.Unit
	target *Target
	hints  Hints
}

func (c *classifier) classify() (*Context, error) {
	primary, prev := c.target.Primary, c.target.Previous
	switch primary.Kind {
	case parser.KindImport:
		return c.importPath(primary)

	case parser.KindNew:
		if prev == nil {
			break
		}
		ctx := &Context{Kind: NewInstance, New: primary, Hint: c.hints.Constructor.Text}
		switch prev.Kind {
		case parser.KindIdentifier:
			if use := c.unit.UseOf(prev); use != nil {
				ctx.Variable = use.Var
			}
			return ctx, nil
		case parser.KindCall:
			ctx.Call = prev
			ctx.Slot = Append
			for i, arg := range prev.Args() {
				if arg == primary {
					ctx.Slot = i
				}
			}
			if ctx.Slot == Append {
				break
			}
			return ctx, nil
		}

	case parser.KindCall:
		if c.hints.Property.Valid || (prev != nil && prev.Kind == parser.KindCall && feeds(primary, prev)) {
			return c.afterCall(primary)
		}
		return c.invocation(primary), nil

	case parser.KindProperty:
		return c.property(primary, prev)

	case parser.KindIdentifier:
		use := c.unit.UseOf(primary)
		if use == nil {
			break
		}
		switch {
		case use.Kind == groovy.UseDynamic:
			return &Context{Kind: BareIdentifier, Hint: primary.TokenLiteral()}, nil
		case use.Var != nil && use.Var.Typed():
			return &Context{Kind: PropertyOrFieldAccess, Receiver: use.Var.Type, Hint: c.hints.Property.Text}, nil
		}
	}
	return nil, errors.Wrapf(ErrNoContext, "%s", primary.Kind)
}

func (c *classifier) importPath(n *parser.Node) (*Context, error) {
	for _, imp := range c.unit.Imports {
		if imp.Node != n {
			continue
		}
		ctx := &Context{Kind: ImportPath, Import: imp}
		switch {
		case c.hints.Import.Valid:
			ctx.Hint = c.hints.Import.Text
		case imp.Static && !imp.Star:
			ctx.Hint = imp.Member
		case imp.Alias != "":
			ctx.Hint = imp.Alias
		}
		return ctx, nil
	}
	return nil, errors.Wrap(ErrNoContext, "import not bound")
}

// feeds reports whether the value of call flows into next through next's
// receiver chain, as in call().next(). A call that only holds call among its
// arguments or in a closure body does not.
func feeds(call, next *parser.Node) bool {
	for n := next.Receiver(); n != nil; n = n.Receiver() {
		if n == call {
			return true
		}
		if n.Kind != parser.KindCall && n.Kind != parser.KindProperty {
			return false
		}
	}
	return false
}

// afterCall completes what follows a call: its return type's members. The
// recovery placeholder stands for the member being typed, so its receiver
// is the value being accessed.
func (c *classifier) afterCall(call *parser.Node) (*Context, error) {
	var (
		t  catalog.TypeRef
		ok bool
	)
	if c.hints.Property.Valid && call.Name() == placeholder {
		t, _, ok = receiverType(c.unit, call.Receiver())
	} else {
		t, ok = methodReturnType(c.unit, call)
	}
	if !ok {
		return nil, errors.Wrap(ErrNoContext, "receiver type unknown")
	}
	return &Context{Kind: PropertyOrFieldAccess, Receiver: t, Hint: c.hints.Property.Text}, nil
}

// invocation completes a method name. In a chain a.b(x).c(y) the call
// whose receiver holds the cursor is the one being typed.
func (c *classifier) invocation(call *parser.Node) *Context {
	for n := call; n != nil && n.Kind == parser.KindCall; n = n.Receiver() {
		if recv := n.Receiver(); recv != nil && c.target.cursor.within(recv.Span) {
			call = n
			break
		}
	}
	ctx := &Context{Kind: MethodInvocation, Method: call, Hint: call.Name(), ArgIndex: Append}
	for i, arg := range call.Args() {
		if c.target.cursor.strictlyWithin(arg.Span) {
			ctx.ArgIndex = i
		}
	}
	return ctx
}

func (c *classifier) property(prop, prev *parser.Node) (*Context, error) {
	t, _, ok := receiverType(c.unit, prop.Receiver())
	if !ok {
		return nil, errors.Wrap(ErrNoContext, "receiver type unknown")
	}
	ctx := &Context{Kind: PropertyOrFieldAccess, Receiver: t, Hint: prop.Name()}
	if c.hints.Property.Valid {
		ctx.Hint = c.hints.Property.Text
	}
	if prev != nil && prev.Kind == parser.KindIdentifier {
		if use := c.unit.UseOf(prev); use != nil && use.Var != nil && use.Var.Typed() {
			ctx.Returns = use.Var.Type
		}
	}
	return ctx, nil
}

// receiverType is the type members are looked up in for a receiver
// expression, and whether the receiver is this.
func receiverType(u *groovy.Unit, n *parser.Node) (catalog.TypeRef, bool, bool) {
	if n == nil {
		return catalog.TypeRef{}, false, false
	}
	switch n.Kind {
	case parser.KindThis:
		t, ok := u.TypeOf(n)
		return t, true, ok
	case parser.KindIdentifier, parser.KindProperty:
		if use := u.UseOf(n); use != nil {
			switch use.Kind {
			case groovy.UseClass:
				return use.Class.Ref(), false, true
			case groovy.UseVariable:
				if use.Var.Typed() {
					return use.Var.Type, false, true
				}
				return catalog.TypeRef{}, false, false
			}
			if n.Kind == parser.KindIdentifier {
				return catalog.TypeRef{}, false, false
			}
		}
	case parser.KindCall:
		t, ok := methodReturnType(u, n)
		return t, false, ok
	}
	t, ok := u.TypeOf(n)
	return t, false, ok
}

// methodReturnType is the return type of a call when exactly one method
// matches it and that method returns a class type.
func methodReturnType(u *groovy.Unit, call *parser.Node) (catalog.TypeRef, bool) {
	methods := findMethods(u, call, true)
	if len(methods) != 1 {
		return catalog.TypeRef{}, false
	}
	ret := methods[0].Returns
	if ret.IsZero() || ret.IsVoid() || ret.IsPrimitive() || ret.IsArray() || ret.TypeVar {
		return catalog.TypeRef{}, false
	}
	return ret, true
}

// findMethods lists the methods call may invoke: the receiver type's
// methods whose name starts with the call's name, that take the supplied
// arguments. exact requires the parameter count to equal the argument
// count; otherwise longer overloads are kept. A this receiver also offers
// the script's statically imported methods.
func findMethods(u *groovy.Unit, call *parser.Node, exact bool) []catalog.Callable {
	recv, this, ok := receiverType(u, call.Receiver())
	var local []catalog.Callable
	if this {
		local = staticImports(u, call.Name())
	}
	if !ok || recv.IsObject() {
		return filterMethods(u, local, call, exact)
	}
	ti := lookupType(u.Catalog, recv)
	if ti == nil {
		return filterMethods(u, local, call, exact)
	}
	return filterMethods(u, append(catalog.Methods(u.Catalog, ti), local...), call, exact)
}

func filterMethods(u *groovy.Unit, methods []catalog.Callable, call *parser.Node, exact bool) []catalog.Callable {
	args := call.Args()
	var out []catalog.Callable
	for _, m := range methods {
		if !strings.HasPrefix(m.Name, call.Name()) || m.Synthetic {
			continue
		}
		if exact && len(m.Params) != len(args) || !exact && len(m.Params) < len(args) {
			continue
		}
		if argumentsFit(u, m, args) {
			out = append(out, m)
		}
	}
	return out
}

// argumentsFit checks each supplied argument against its parameter. An
// argument of unknown or Object type fits anything.
func argumentsFit(u *groovy.Unit, m catalog.Callable, args []*parser.Node) bool {
	for i, arg := range args {
		if i >= len(m.Params) {
			return false
		}
		t, ok := argumentType(u, arg)
		if !ok || t.IsObject() {
			continue
		}
		if !catalog.Assignable(u.Catalog, t, m.Params[i].Type) {
			return false
		}
	}
	return true
}

func argumentType(u *groovy.Unit, arg *parser.Node) (catalog.TypeRef, bool) {
	if use := u.UseOf(arg); use != nil && use.Kind == groovy.UseVariable {
		if use.Var.Typed() {
			return use.Var.Type, true
		}
		return catalog.TypeRef{}, false
	}
	return u.TypeOf(arg)
}

// staticImports lists the methods the script's static imports bring in.
// A star import contributes the owner's static methods whose names start
// with prefix; a single import contributes its member when the name it
// introduces starts with prefix.
func staticImports(u *groovy.Unit, prefix string) []catalog.Callable {
	var out []catalog.Callable
	for _, imp := range u.Imports {
		if !imp.Static || imp.Class == nil {
			continue
		}
		for _, m := range catalog.Methods(u.Catalog, imp.Class) {
			if !m.Static {
				continue
			}
			if imp.Star && !strings.HasPrefix(m.Name, prefix) {
				continue
			}
			if !imp.Star && (m.Name != imp.Member || !strings.HasPrefix(imp.Name(), prefix)) {
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

func lookupType(src catalog.Source, t catalog.TypeRef) *catalog.TypeInfo {
	if t.IsZero() || t.IsArray() {
		return nil
	}
	if t.TypeVar {
		t = t.Erasure()
	}
	return src.ResolveType(catalog.Box(t.Name))
}
