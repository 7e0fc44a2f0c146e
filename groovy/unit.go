// Package groovy analyzes Groovy scripts for completion: it parses the
// source, resolves imports and type names against a catalog, builds lexical
// scopes, binds identifiers to variables or classes, and records the static
// types it can prove. It also turns script-declared methods and classes into
// a script-local catalog.
package groovy

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.groovy")

// Error is a syntax or semantic problem with its source span.
type Error struct {
	Span    parser.Span
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Span.Start, e.Message)
}

// Import is one resolved import declaration.
type Import struct {
	Node *parser.Node
	// Path is the dotted path as written, without a trailing ".*".
	Path   string
	Alias  string
	Static bool
	Star   bool
	// Class is the imported class: the class itself for a single-type import,
	// the owner for a static import, nil for a package star import.
	Class *catalog.TypeInfo
	// Member is the imported member name of a static single import.
	Member string
}

// Name is the name the import introduces into the script: the alias, or
// the last path segment.
func (i *Import) Name() string {
	if i.Alias != "" {
		return i.Alias
	}
	if i.Member != "" {
		return i.Member
	}
	return i.Path[strings.LastIndexByte(i.Path, '.')+1:]
}

// Variable is a declared name: a local, a parameter, a loop variable, a
// closure parameter or a field seen from a method body.
type Variable struct {
	Name string
	// Type is zero for dynamically typed variables and for declarations
	// whose type did not resolve.
	Type    catalog.TypeRef
	Dynamic bool
	Decl    *parser.Node
}

// Typed reports whether the variable has a known static type.
func (v *Variable) Typed() bool {
	return !v.Dynamic && !v.Type.IsZero()
}

// Scope is the set of variables declared directly in one block-like
// construct, in declaration order.
type Scope struct {
	Node   *parser.Node
	Parent *Scope
	Vars   []*Variable
}

func (s *Scope) declare(v *Variable) {
	s.Vars = append(s.Vars, v)
}

// Lookup finds name in s or its parents, nearest first.
func (s *Scope) Lookup(name string) *Variable {
	for cur := s; cur != nil; cur = cur.Parent {
		for i := len(cur.Vars) - 1; i >= 0; i-- {
			if cur.Vars[i].Name == name {
				return cur.Vars[i]
			}
		}
	}
	return nil
}

type UseKind int

const (
	// UseDynamic is a name that binds to nothing the script declares; at
	// runtime Groovy looks it up in the script binding.
	UseDynamic UseKind = iota
	UseVariable
	UseClass
)

// Use is what an identifier or a dotted class name refers to.
type Use struct {
	Kind  UseKind
	Var   *Variable
	Class *catalog.TypeInfo
}

// Unit is an analyzed script.
type Unit struct {
	Name    string
	Text    string
	Root    *parser.Node
	Errors  []Error
	Imports []*Import

	// Catalog resolves types for this script: script symbols first, then the
	// catalog the unit was analyzed against.
	Catalog catalog.Source
	// ScriptClass names the class top-level methods belong to.
	ScriptClass string

	scopes  map[*parser.Node]*Scope
	uses    map[*parser.Node]*Use
	types   map[*parser.Node]catalog.TypeRef
	symbols *catalog.Catalog
	names   *typeResolver
}

// ScopeOf returns the scope opened by n, or nil when n does not open one.
func (u *Unit) ScopeOf(n *parser.Node) *Scope {
	return u.scopes[n]
}

// UseOf returns the binding of an identifier, or of a property chain naming
// a class.
func (u *Unit) UseOf(n *parser.Node) *Use {
	return u.uses[n]
}

// TypeOf returns the static type of an expression when it is known.
func (u *Unit) TypeOf(n *parser.Node) (catalog.TypeRef, bool) {
	t, ok := u.types[n]
	return t, ok
}

// ScriptSymbols returns the catalog built from the script's own method and
// class declarations, or nil when the script declares neither.
func (u *Unit) ScriptSymbols() *catalog.Catalog {
	return u.symbols
}

// ResolveClass resolves a class name as written in the script, honouring
// imports. It returns nil when the name does not resolve.
func (u *Unit) ResolveClass(name string) *catalog.TypeInfo {
	return u.names.resolve(name)
}

// StarPackages lists the packages whose classes are visible by simple name:
// java.lang, the auto-imported packages and the script's star imports.
func (u *Unit) StarPackages() []string {
	return u.names.packages
}

// SingleImports lists the classes visible through single-type imports,
// keyed by the name they are visible under.
func (u *Unit) SingleImports() map[string]string {
	return u.names.single
}

// ScriptClasses lists the classes declared by the script.
func (u *Unit) ScriptClasses() []string {
	var out []string
	for name := range u.names.script {
		out = append(out, name)
	}
	return out
}

type config struct {
	autoImport bool
}

type Option func(*config)

// WithAutoImport controls the Groovy default imports: java.util, java.io,
// java.net, groovy.lang, groovy.util, java.math.BigInteger and
// java.math.BigDecimal. java.lang is always imported.
func WithAutoImport(enabled bool) Option {
	return func(c *config) {
		c.autoImport = enabled
	}
}

// Analyze parses and binds a script. Syntax errors stop analysis after
// parsing, the way the Groovy compiler stops before semantic analysis; the
// returned unit then holds the tree and the syntax errors only.
func Analyze(name, text string, src catalog.Source, opts ...Option) (*Unit, error) {
	if src == nil {
		return nil, errors.New("analyze: nil catalog")
	}
	cfg := config{autoImport: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, syntaxErrors := parser.ParseScript([]byte(text), parser.WithFile(name))
	u := &Unit{
		Name:        name,
		Text:        text,
		Root:        root,
		Catalog:     src,
		ScriptClass: scriptClassName(name),
		scopes:      make(map[*parser.Node]*Scope),
		uses:        make(map[*parser.Node]*Use),
		types:       make(map[*parser.Node]catalog.TypeRef),
	}
	u.names = newTypeResolver(src, cfg.autoImport)
	for _, e := range syntaxErrors {
		u.Errors = append(u.Errors, Error{Span: e.Span, Message: e.Message})
	}
	if len(syntaxErrors) > 0 {
		log.Debugf("%s: %d syntax errors, skipping binding", name, len(syntaxErrors))
		return u, nil
	}

	b := &binder{unit: u}
	b.collectClasses()
	b.resolveImports()
	b.buildSymbols()
	b.bindScript()
	log.Debugf("%s: analyzed with %d errors", name, len(u.Errors))
	return u, nil
}

// scriptClassName derives the class name Groovy gives a script from its
// file name.
func scriptClassName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	var sb strings.Builder
	for i, r := range base {
		switch {
		case unicode.IsLetter(r) || r == '_' || r == '$':
			sb.WriteRune(r)
		case unicode.IsDigit(r) && i > 0:
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 || base == "." || base == "/" {
		return "Script"
	}
	return sb.String()
}
