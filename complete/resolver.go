package complete

import (
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/pkg/errors"
)

// cursor is a request position in tree coordinates: a 1-based line and the
// column the request counted, compared directly with node columns.
type cursor struct {
	line   int
	ch     int
	sticky Sticky
}

func (c cursor) onLine(span parser.Span) bool {
	return span.Start.Line <= c.line && c.line <= span.End.Line
}

// within reports whether the cursor lies inside span. A span that covers
// more than one line contains every cursor on its lines.
func (c cursor) within(span parser.Span) bool {
	if !c.onLine(span) {
		return false
	}
	if span.MultiLine() {
		return true
	}
	if c.sticky == StickyAfter && span.End.Column == c.ch && span.Start.Column < c.ch {
		return false
	}
	return span.Start.Column <= c.ch && c.ch <= span.End.Column
}

// strictlyWithin is within without the multi-line allowance.
func (c cursor) strictlyWithin(span parser.Span) bool {
	if !c.onLine(span) {
		return false
	}
	if c.line == span.Start.Line && c.ch < span.Start.Column {
		return false
	}
	if c.line == span.End.Line && c.ch > span.End.Column {
		return false
	}
	return true
}

// Snapshot is the scope chain visible where the first target was found,
// nearest scope first. Each entry lists the variables declared before the
// cursor, in declaration order.
type Snapshot [][]*groovy.Variable

// Target is what the cursor points at.
type Target struct {
	Primary *parser.Node
	// Previous is the variable reference or method call the primary sits in,
	// or nil.
	Previous *parser.Node
	// Ignore holds the variable names already used in the enclosing chain.
	Ignore map[string]bool
	Scopes Snapshot

	cursor cursor
}

type resolver struct {
	unit    *groovy.Unit
	cursor  cursor
	targets []*parser.Node
	scopes  []*groovy.Scope
	snap    Snapshot
}

// Resolve walks unit in completion order (imports, the script body, script
// methods, class members) and returns the target at the cursor.
func Resolve(unit *groovy.Unit, line, ch int, sticky Sticky) (*Target, error) {
	r := &resolver{
		unit:   unit,
		cursor: cursor{line: line + 1, ch: ch, sticky: sticky},
	}
	root := unit.Root
	for _, imp := range root.ChildrenOfKind(parser.KindImport) {
		r.visit(imp)
	}
	r.enter(root, func() {
		for _, child := range root.Children {
			switch child.Kind {
			case parser.KindImport, parser.KindPackage, parser.KindMethodDecl, parser.KindClassDecl:
				continue
			}
			r.visit(child)
		}
	})
	for _, m := range root.ChildrenOfKind(parser.KindMethodDecl) {
		r.method(m)
	}
	for _, c := range root.ChildrenOfKind(parser.KindClassDecl) {
		r.class(c)
	}
	log.Debugf("%d targets on line %d", len(r.targets), r.cursor.line)
	return r.match()
}

// enter runs fn with the scope n opens, if any, pushed.
func (r *resolver) enter(n *parser.Node, fn func()) {
	if s := r.unit.ScopeOf(n); s != nil {
		r.scopes = append(r.scopes, s)
		defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()
	}
	fn()
}

func (r *resolver) method(m *parser.Node) {
	r.enter(m, func() {
		if body := m.FirstChildOfKind(parser.KindBlock); body != nil {
			r.visit(body)
		}
	})
}

func (r *resolver) class(c *parser.Node) {
	r.enter(c, func() {
		for _, m := range c.Children {
			switch m.Kind {
			case parser.KindMethodDecl, parser.KindConstructorDecl:
				r.method(m)
			case parser.KindClassDecl:
				r.class(m)
			}
		}
	})
}

// push records n when it contains the cursor.
func (r *resolver) push(n *parser.Node) {
	if r.contains(n) {
		r.add(n)
	}
}

func (r *resolver) add(n *parser.Node) {
	if len(r.targets) == 0 {
		r.snapshot()
	}
	r.targets = append(r.targets, n)
}

func (r *resolver) snapshot() {
	r.snap = nil
	for i := len(r.scopes) - 1; i >= 0; i-- {
		var vars []*groovy.Variable
		for _, v := range r.scopes[i].Vars {
			if v.Decl != nil && v.Decl.Span.Start.Line > r.cursor.line {
				continue
			}
			vars = append(vars, v)
		}
		r.snap = append(r.snap, vars)
	}
}

// isTarget reports whether n is a node kind completion can start from.
func (r *resolver) isTarget(n *parser.Node) bool {
	switch n.Kind {
	case parser.KindImport, parser.KindNew, parser.KindCall:
		return true
	case parser.KindProperty:
		return r.unit.UseOf(n) == nil
	case parser.KindIdentifier:
		use := r.unit.UseOf(n)
		return use != nil && use.Kind != groovy.UseClass
	}
	return false
}

func (r *resolver) visit(n *parser.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case parser.KindParameters, parser.KindParameter, parser.KindType, parser.KindArrayType,
		parser.KindQualifiedName, parser.KindModifiers:
		return
	case parser.KindMethodDecl, parser.KindClassDecl:
		// bodies are walked after the script statements
		return
	case parser.KindProperty:
		if !r.isTarget(n) {
			// a class named with dots
			return
		}
	}
	if r.isTarget(n) {
		r.push(n)
	}
	if n.Kind == parser.KindImport {
		return
	}
	r.enter(n, func() {
		switch n.Kind {
		case parser.KindCall, parser.KindProperty:
			// the member name is not a variable reference
			r.visit(n.Receiver())
			for _, c := range n.Args() {
				r.visit(c)
			}
		case parser.KindDeclarator, parser.KindAssign:
			r.assignment(n)
		default:
			for _, c := range n.Children {
				r.visit(c)
			}
		}
	})
}

// assignment visits a declarator or an assignment. While the cursor is in
// the statement, the assigned variable belongs to the chain of the value so
// that its name is never suggested for that value.
func (r *resolver) assignment(n *parser.Node) {
	left := n.Child(0)
	if left != nil && left.Kind == parser.KindIdentifier && r.isTarget(left) &&
		r.cursor.within(n.Span) && !r.contains(left) {
		r.add(left)
	}
	for _, c := range n.Children {
		r.visit(c)
	}
}

// match pops targets from the innermost outwards. The top of the stack is
// the primary; the rest supplies the previous node and the names to ignore.
func (r *resolver) match() (*Target, error) {
	stack := r.targets
	if len(stack) == 0 {
		return nil, errors.Wrapf(ErrNoTarget, "line %d column %d", r.cursor.line, r.cursor.ch)
	}
	n := stack[len(stack)-1]
	t := &Target{Primary: n, Ignore: make(map[string]bool), Scopes: r.snap, cursor: r.cursor}
	for i := len(stack) - 2; i >= 0; i-- {
		cur := stack[i]
		switch cur.Kind {
		case parser.KindIdentifier:
			if t.Previous == nil {
				t.Previous = cur
			}
			t.Ignore[cur.TokenLiteral()] = true
		case parser.KindCall:
			if t.Previous == nil {
				t.Previous = cur
			}
		}
	}
	log.Debugf("target %s at %s", n.Kind, n.Span.Start)
	return t, nil
}

// contains is the containment test for a target. An import owns its
// whole line.
func (r *resolver) contains(n *parser.Node) bool {
	if n.Kind == parser.KindImport {
		return r.cursor.onLine(n.Span)
	}
	return r.cursor.within(n.Span)
}
