package catalog

// Assignable reports whether a value of type candidate may be used where
// target is expected. It never fails: anything it cannot prove is false.
func Assignable(src Source, candidate, target TypeRef) bool {
	if candidate.IsZero() || candidate.IsVoid() || target.IsZero() || target.IsVoid() {
		return false
	}
	if candidate.Wildcard {
		if len(candidate.Bounds) == 0 {
			return target.IsObject()
		}
		return Assignable(src, candidate.Bounds[0], target)
	}

	switch {
	case target.TypeVar && !target.IsArray():
		return assignableToTypeVar(src, candidate, target)
	case target.IsArray():
		return assignableToArray(src, candidate, target)
	case target.IsPrimitive():
		if candidate.IsArray() || candidate.TypeVar {
			return false
		}
		return Box(candidate.Name) == Box(target.Name)
	}
	return assignableToClass(src, candidate, target.Name)
}

func assignableToTypeVar(src Source, candidate, target TypeRef) bool {
	log.Debugf("best-effort bound check of %s against type variable %s", candidate, target.Name)
	if len(target.Bounds) == 0 {
		return true
	}
	for _, b := range target.Bounds {
		if Assignable(src, candidate, b) {
			return true
		}
	}
	return false
}

func assignableToArray(src Source, candidate, target TypeRef) bool {
	if candidate.TypeVar && !candidate.IsArray() {
		return false
	}
	if candidate.ArrayDepth < target.ArrayDepth {
		return false
	}
	ce, te := candidate, target
	for te.IsArray() {
		ce, te = ce.Elem(), te.Elem()
	}
	if te.IsPrimitive() {
		return !ce.IsArray() && ce.Name == te.Name
	}
	if ce.IsPrimitive() {
		return false
	}
	return Assignable(src, ce, te)
}

func assignableToClass(src Source, candidate TypeRef, target string) bool {
	if target == ObjectName {
		return true
	}
	if candidate.IsArray() {
		return target == CloneableName || target == SerializableName
	}
	if candidate.TypeVar {
		for _, b := range candidate.Bounds {
			if assignableToClass(src, b, target) {
				return true
			}
		}
		return false
	}
	name := Box(candidate.Name)
	if name == target {
		return true
	}
	return supertypes(src, name)[target]
}

func supertypes(src Source, name string) map[string]bool {
	if c, ok := src.(*Catalog); ok && c != nil {
		return c.closure(name)
	}
	return walkSupertypes(src, name)
}

// walkSupertypes collects every declared supertype of name, transitively.
// Unknown names end the walk along their branch.
func walkSupertypes(src Source, name string) map[string]bool {
	set := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		t := src.ResolveType(n)
		if t == nil {
			continue
		}
		for _, s := range t.Supertypes() {
			if !set[s] {
				set[s] = true
				queue = append(queue, s)
			}
		}
	}
	return set
}
