package groovy

import (
	"strings"

	"github.com/dhamidi/gce/catalog"
)

var defaultPackages = []string{"java.util", "java.io", "java.net", "groovy.lang", "groovy.util"}

var defaultClasses = []string{"java.math.BigInteger", "java.math.BigDecimal"}

// typeResolver maps class names as written in a script to qualified names.
type typeResolver struct {
	src catalog.Source
	// script holds the simple names of classes the script declares.
	script map[string]bool
	// single maps a visible name to the class a single-type import brings in.
	single map[string]string
	// packages are searched in order for simple names.
	packages []string
}

func newTypeResolver(src catalog.Source, autoImport bool) *typeResolver {
	r := &typeResolver{
		src:      src,
		script:   make(map[string]bool),
		single:   make(map[string]string),
		packages: []string{"java.lang"},
	}
	if autoImport {
		r.packages = append(r.packages, defaultPackages...)
		for _, c := range defaultClasses {
			r.single[catalog.SimpleName(c)] = c
		}
	}
	return r
}

func (r *typeResolver) addStar(pkg string) {
	for _, p := range r.packages {
		if p == pkg {
			return
		}
	}
	r.packages = append(r.packages, pkg)
}

// resolve resolves a possibly qualified class name. Resolution order:
// script classes, single-type imports, java.lang and star imports, the name
// as a qualified name, and finally nested classes written with dots.
func (r *typeResolver) resolve(name string) *catalog.TypeInfo {
	if name == "" {
		return nil
	}
	first, rest, dotted := strings.Cut(name, ".")
	if r.script[first] {
		return r.nested(first, rest, dotted)
	}
	if q, ok := r.single[first]; ok {
		if t := r.nested(q, rest, dotted); t != nil {
			return t
		}
	}
	if !dotted {
		for _, pkg := range r.packages {
			if t := r.src.ResolveType(pkg + "." + name); t != nil {
				return t
			}
		}
		return nil
	}
	if t := r.src.ResolveType(name); t != nil {
		return t
	}
	// java.util.Map.Entry or Map.Entry
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		outer := strings.Join(parts[:i], ".")
		inner := strings.Join(parts[i:], "$")
		if o := r.resolve(outer); o != nil {
			if t := r.src.ResolveType(o.Name + "$" + inner); t != nil {
				return t
			}
		}
	}
	return nil
}

func (r *typeResolver) nested(outer, rest string, dotted bool) *catalog.TypeInfo {
	if !dotted {
		return r.src.ResolveType(outer)
	}
	return r.src.ResolveType(outer + "$" + strings.ReplaceAll(rest, ".", "$"))
}
