package catalog

import "strings"

// Methods returns the methods of t followed by the ones it inherits. The
// superclass chain is walked before interfaces; a method overridden lower in
// the hierarchy hides the inherited one with the same parameter types.
// Interfaces inherit from Object.
func Methods(src Source, t *TypeInfo) []Callable {
	var out []Callable
	seen := make(map[string]bool)
	walkHierarchy(src, t, func(ti *TypeInfo) {
		for _, m := range ti.Methods {
			key := methodKey(&m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	})
	return out
}

// Fields returns the fields of t followed by the inherited ones, hiding
// inherited fields by name.
func Fields(src Source, t *TypeInfo) []Field {
	var out []Field
	seen := make(map[string]bool)
	walkHierarchy(src, t, func(ti *TypeInfo) {
		for _, f := range ti.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, f)
		}
	})
	return out
}

func methodKey(m *Callable) string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Type.Erasure().String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func walkHierarchy(src Source, t *TypeInfo, visit func(*TypeInfo)) {
	visited := make(map[string]bool)
	var interfaces []string
	for cur := t; cur != nil; {
		if visited[cur.Name] {
			break
		}
		visited[cur.Name] = true
		visit(cur)
		for _, i := range cur.Interfaces {
			interfaces = append(interfaces, i.Name)
		}
		if cur.Super == nil {
			break
		}
		cur = src.ResolveType(cur.Super.Name)
	}
	for len(interfaces) > 0 {
		name := interfaces[0]
		interfaces = interfaces[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		ti := src.ResolveType(name)
		if ti == nil {
			continue
		}
		visit(ti)
		for _, i := range ti.Interfaces {
			interfaces = append(interfaces, i.Name)
		}
	}
	if !visited[ObjectName] {
		if obj := src.ResolveType(ObjectName); obj != nil {
			visit(obj)
		}
	}
}
