package complete

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
)

// PackageTypes lists the top-level types of a package.
type PackageTypes func(pkg string) []*catalog.TypeInfo

// TopLevelTypes drops nested types from a package listing.
func TopLevelTypes(p *catalog.PackageInfo) []*catalog.TypeInfo {
	if p == nil {
		return nil
	}
	var out []*catalog.TypeInfo
	for _, t := range p.Types {
		if strings.Contains(strings.TrimPrefix(t.Name, p.Name+"."), "$") {
			continue
		}
		out = append(out, t)
	}
	return out
}

type collector struct {
	unit  *groovy.Unit
	ctx   *Context
	types PackageTypes
	names *paramNamer
	out   []Candidate
	seen  map[[2]string]bool
}

// Candidates lists the completions for ctx in catalog order. types lists
// the classes of star-imported packages; nil reads them from the unit's
// catalog.
func Candidates(unit *groovy.Unit, t *Target, ctx *Context, types PackageTypes) []Candidate {
	if types == nil {
		types = func(pkg string) []*catalog.TypeInfo {
			return TopLevelTypes(unit.Catalog.ResolvePackage(pkg))
		}
	}
	c := &collector{
		unit:  unit,
		ctx:   ctx,
		types: types,
		names: newParamNamer(unit, t),
		seen:  make(map[[2]string]bool),
	}
	switch ctx.Kind {
	case NewInstance:
		c.newInstance()
	case MethodInvocation:
		c.invocation()
	case PropertyOrFieldAccess:
		c.members()
	case BareIdentifier:
		c.bare()
	case ImportPath:
		c.importPath()
	}
	log.Debugf("%s: %d candidates", ctx.Kind, len(c.out))
	return c.out
}

func (c *collector) add(cand Candidate) {
	key := [2]string{cand.Displayed, cand.Value}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.out = append(c.out, cand)
}

func (c *collector) newInstance() {
	u, ctx := c.unit, c.ctx
	switch {
	case ctx.Call != nil:
		classes := c.constructorClasses(true)
		for _, m := range findMethods(u, ctx.Call, true) {
			if ctx.Slot >= len(m.Params) {
				continue
			}
			param := m.Params[ctx.Slot].Type
			for _, ti := range classes {
				if catalog.Assignable(u.Catalog, ti.Ref(), param) {
					c.constructors(ti)
				}
			}
		}
	case ctx.Variable != nil && ctx.Variable.Typed():
		for _, ti := range c.constructorClasses(false) {
			if catalog.Assignable(u.Catalog, ti.Ref(), ctx.Variable.Type) {
				c.constructors(ti)
			}
		}
	default:
		for _, ti := range c.constructorClasses(true) {
			c.constructors(ti)
		}
	}
}

// constructorClasses is the class named by the new expression, or, when
// recovery put a placeholder there, the visible classes whose simple name
// starts with the typed hint. A restricted search with no hint finds
// nothing.
func (c *collector) constructorClasses(restricted bool) []*catalog.TypeInfo {
	u, ctx := c.unit, c.ctx
	if t, ok := u.TypeOf(ctx.New); ok && t.Name != placeholderType {
		if ti := lookupType(u.Catalog, t); ti != nil {
			return []*catalog.TypeInfo{ti}
		}
		return nil
	}
	hint := strings.TrimSpace(ctx.Hint)
	if hint == "" && restricted {
		return nil
	}
	var out []*catalog.TypeInfo
	for _, ti := range c.universe() {
		if strings.HasPrefix(catalog.SimpleName(ti.Name), hint) {
			out = append(out, ti)
		}
	}
	return out
}

// universe lists the instantiable classes a script can name without
// qualification: star-imported packages, single-type imports and the
// script's own classes.
func (c *collector) universe() []*catalog.TypeInfo {
	u := c.unit
	seen := make(map[string]bool)
	var out []*catalog.TypeInfo
	add := func(ti *catalog.TypeInfo) {
		if ti == nil || seen[ti.Name] || !ti.Concrete() {
			return
		}
		seen[ti.Name] = true
		out = append(out, ti)
	}
	for _, pkg := range u.StarPackages() {
		for _, ti := range c.types(pkg) {
			add(ti)
		}
	}
	var singles []string
	for _, name := range u.SingleImports() {
		singles = append(singles, name)
	}
	sort.Strings(singles)
	for _, name := range singles {
		add(u.Catalog.ResolveType(name))
	}
	script := u.ScriptClasses()
	sort.Strings(script)
	for _, name := range script {
		add(u.Catalog.ResolveType(name))
	}
	return out
}

func (c *collector) constructors(ti *catalog.TypeInfo) {
	for _, ctor := range ti.Constructors {
		if ctor.Synthetic {
			continue
		}
		c.callable(KindConstructor, ti.Name, catalog.SimpleName(ti.Name), ctor, c.ctx.New.Args())
	}
}

func (c *collector) invocation() {
	call := c.ctx.Method
	args := call.Args()
	for _, m := range findMethods(c.unit, call, false) {
		if len(m.Params) > c.ctx.ArgIndex {
			c.callable(KindMethod, m.Name, m.Name, m, args)
		}
	}
}

func (c *collector) members() {
	u, ctx := c.unit, c.ctx
	if ctx.Receiver.IsObject() {
		return
	}
	ti := lookupType(u.Catalog, ctx.Receiver)
	if ti == nil {
		return
	}
	for _, m := range catalog.Methods(u.Catalog, ti) {
		if m.Synthetic || !strings.HasPrefix(m.Name, ctx.Hint) {
			continue
		}
		if !ctx.Returns.IsZero() && (m.Returns.IsVoid() || !catalog.Assignable(u.Catalog, m.Returns, ctx.Returns)) {
			continue
		}
		c.callable(KindMethod, m.Name, m.Name, m, nil)
	}
	for _, f := range catalog.Fields(u.Catalog, ti) {
		if !strings.HasPrefix(f.Name, ctx.Hint) {
			continue
		}
		typ := simpleType(f.Type)
		c.add(Candidate{
			Kind:      KindField,
			Entered:   [2]int{utf8.RuneCountInString(typ) + 1, utf8.RuneCountInString(ctx.Hint)},
			Displayed: typ + " " + f.Name,
			Value:     f.Name,
		})
	}
}

// bare offers the methods a script can call without a receiver: static
// imports and the script's own methods.
func (c *collector) bare() {
	u, hint := c.unit, c.ctx.Hint
	methods := staticImports(u, hint)
	if syms := u.ScriptSymbols(); syms != nil {
		if ti := syms.ResolveType(u.ScriptClass); ti != nil {
			for _, m := range ti.Methods {
				if strings.HasPrefix(m.Name, hint) {
					methods = append(methods, m)
				}
			}
		}
	}
	for _, m := range methods {
		c.callable(KindMethod, m.Name, m.Name, m, nil)
	}
}

// importPath lists what can follow an import. Import candidates replace
// nothing: a package import offers every child package and class, and a
// class import offers the method names matching its alias.
func (c *collector) importPath() {
	u, imp := c.unit, c.ctx.Import
	var entered [2]int
	if imp.Star && !imp.Static {
		pkg := u.Catalog.ResolvePackage(imp.Path)
		if pkg == nil {
			return
		}
		for _, child := range pkg.Packages {
			name := strings.TrimPrefix(child, pkg.Name+".")
			c.add(Candidate{Kind: KindImportPackage, Entered: entered, Displayed: name + " - package", Value: name})
		}
		for _, ti := range TopLevelTypes(pkg) {
			name := catalog.SimpleName(ti.Name)
			c.add(Candidate{Kind: KindImportClass, Entered: entered, Displayed: name, Value: name})
		}
		return
	}
	if imp.Class == nil {
		return
	}
	var names []string
	for _, m := range catalog.Methods(u.Catalog, imp.Class) {
		if strings.HasPrefix(m.Name, c.ctx.Hint) {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		c.add(Candidate{Kind: KindImportMethod, Entered: entered, Displayed: name, Value: name})
	}
}

// callable renders a constructor or method. display and value are the
// names the two texts start with; args are the arguments already written
// at the cursor, reused as parameter names.
func (c *collector) callable(kind, display, value string, m catalog.Callable, args []*parser.Node) {
	var d, v strings.Builder
	d.WriteString(display)
	d.WriteByte('(')
	v.WriteString(value)
	v.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			d.WriteString(", ")
			v.WriteString(", ")
		}
		name := c.names.name(i, p, args)
		d.WriteString(simpleType(p.Type))
		d.WriteByte(' ')
		d.WriteString(name)
		v.WriteString(name)
	}
	d.WriteByte(')')
	v.WriteByte(')')

	entered := [2]int{0, utf8.RuneCountInString(c.ctx.Hint)}
	if kind == KindConstructor {
		if i := strings.LastIndexByte(display, '.'); i > 0 {
			entered[0] = utf8.RuneCountInString(display[:i]) + 1
		}
	} else if !m.Returns.IsZero() {
		d.WriteString(" - ")
		d.WriteString(simpleType(m.Returns))
	}
	c.add(Candidate{Kind: kind, Entered: entered, Displayed: d.String(), Value: v.String()})
}
