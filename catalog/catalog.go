// Package catalog holds the queryable universe of JVM types that completion
// draws from: classes with their constructors, methods and fields, and the
// package tree they live in. A Catalog is assembled once with a Builder and
// is read-only afterwards, so any number of requests may share it.
package catalog

import (
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.catalog")

var ErrNotFound = errors.New("not found")

const supertypeMemoSize = 4096

// Source is the query side of a catalog. A miss returns nil.
type Source interface {
	ResolveType(qualifiedName string) *TypeInfo
	ResolvePackage(name string) *PackageInfo
	// AllTypes returns every type whose qualified name starts with prefix,
	// ordered by name. An empty prefix returns everything.
	AllTypes(prefix string) []*TypeInfo
}

type Catalog struct {
	types    map[string]*TypeInfo
	names    []string
	packages map[string]*PackageInfo
	memo     *lru.Cache
}

func (c *Catalog) ResolveType(name string) *TypeInfo {
	if c == nil {
		return nil
	}
	return c.types[name]
}

func (c *Catalog) ResolvePackage(name string) *PackageInfo {
	if c == nil {
		return nil
	}
	return c.packages[name]
}

func (c *Catalog) AllTypes(prefix string) []*TypeInfo {
	if c == nil {
		return nil
	}
	start := sort.SearchStrings(c.names, prefix)
	var out []*TypeInfo
	for _, n := range c.names[start:] {
		if !strings.HasPrefix(n, prefix) {
			break
		}
		out = append(out, c.types[n])
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// closure returns the transitive supertypes of name, memoised per catalog.
func (c *Catalog) closure(name string) map[string]bool {
	if v, ok := c.memo.Get(name); ok {
		return v.(map[string]bool)
	}
	set := walkSupertypes(c, name)
	c.memo.Add(name, set)
	return set
}

type Option func(*Builder)

// AcceptPackages limits the catalog to the given package prefixes.
func AcceptPackages(prefixes ...string) Option {
	return func(b *Builder) {
		b.accept = append(b.accept, prefixes...)
	}
}

// RejectPackages drops the given package prefixes. Rejection wins over
// acceptance.
func RejectPackages(prefixes ...string) Option {
	return func(b *Builder) {
		b.reject = append(b.reject, prefixes...)
	}
}

type Builder struct {
	types    map[string]*TypeInfo
	packages map[string]bool
	accept   []string
	reject   []string
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		types:    make(map[string]*TypeInfo),
		packages: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func hasPackagePrefix(pkg, prefix string) bool {
	return pkg == prefix || strings.HasPrefix(pkg, prefix+".")
}

func (b *Builder) allowed(pkg string) bool {
	for _, r := range b.reject {
		if hasPackagePrefix(pkg, r) {
			return false
		}
	}
	if len(b.accept) == 0 {
		return true
	}
	for _, a := range b.accept {
		if hasPackagePrefix(pkg, a) {
			return true
		}
	}
	return false
}

// Add registers a type. It reports false when the package filter drops it
// or when a type of the same name was added earlier.
func (b *Builder) Add(t *TypeInfo) bool {
	if t.Package == "" {
		t.Package = PackageOf(t.Name)
	}
	if t.SimpleName == "" {
		t.SimpleName = SimpleName(t.Name)
	}
	if t.Kind == "" {
		t.Kind = KindClass
	}
	if !b.allowed(t.Package) {
		return false
	}
	if _, dup := b.types[t.Name]; dup {
		return false
	}
	b.types[t.Name] = t
	return true
}

// AddPackage registers a package that may have no types of its own.
func (b *Builder) AddPackage(name string) {
	if b.allowed(name) {
		b.packages[name] = true
	}
}

func (b *Builder) Len() int {
	return len(b.types)
}

func (b *Builder) Build() *Catalog {
	memo, err := lru.New(supertypeMemoSize)
	if err != nil {
		panic(err)
	}
	c := &Catalog{
		types:    make(map[string]*TypeInfo, len(b.types)),
		packages: make(map[string]*PackageInfo),
		memo:     memo,
	}

	pkg := func(name string) *PackageInfo {
		p, ok := c.packages[name]
		if !ok {
			p = &PackageInfo{Name: name}
			c.packages[name] = p
		}
		return p
	}
	var linkParents func(name string)
	linkParents = func(name string) {
		if name == "" {
			return
		}
		if _, seen := c.packages[name]; seen {
			return
		}
		pkg(name)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			parent := name[:i]
			linkParents(parent)
			p := pkg(parent)
			p.Packages = append(p.Packages, name)
		}
	}

	for name, t := range b.types {
		c.types[name] = t
		c.names = append(c.names, name)
		linkParents(t.Package)
		p := pkg(t.Package)
		p.Types = append(p.Types, t)
	}
	for name := range b.packages {
		linkParents(name)
	}

	sort.Strings(c.names)
	for _, p := range c.packages {
		sort.Strings(p.Packages)
		sort.Slice(p.Types, func(i, j int) bool { return p.Types[i].Name < p.Types[j].Name })
	}
	log.Debugf("built catalog: %d types, %d packages", len(c.names), len(c.packages))
	return c
}

type union []Source

// Union layers sources. Type lookups return the first hit; packages and
// type listings merge across all sources, earlier sources winning on
// duplicate names.
func Union(sources ...Source) Source {
	var u union
	for _, s := range sources {
		if s != nil {
			u = append(u, s)
		}
	}
	if len(u) == 1 {
		return u[0]
	}
	return u
}

func (u union) ResolveType(name string) *TypeInfo {
	for _, s := range u {
		if t := s.ResolveType(name); t != nil {
			return t
		}
	}
	return nil
}

func (u union) ResolvePackage(name string) *PackageInfo {
	var merged *PackageInfo
	seenPkg := make(map[string]bool)
	seenType := make(map[string]bool)
	for _, s := range u {
		p := s.ResolvePackage(name)
		if p == nil {
			continue
		}
		if merged == nil {
			merged = &PackageInfo{Name: name}
		}
		for _, child := range p.Packages {
			if !seenPkg[child] {
				seenPkg[child] = true
				merged.Packages = append(merged.Packages, child)
			}
		}
		for _, t := range p.Types {
			if !seenType[t.Name] {
				seenType[t.Name] = true
				merged.Types = append(merged.Types, t)
			}
		}
	}
	if merged != nil {
		sort.Strings(merged.Packages)
		sort.Slice(merged.Types, func(i, j int) bool { return merged.Types[i].Name < merged.Types[j].Name })
	}
	return merged
}

func (u union) AllTypes(prefix string) []*TypeInfo {
	seen := make(map[string]bool)
	var out []*TypeInfo
	for _, s := range u {
		for _, t := range s.AllTypes(prefix) {
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
