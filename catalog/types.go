package catalog

import "strings"

type Kind string

const (
	KindClass      Kind = "class"
	KindInterface  Kind = "interface"
	KindEnum       Kind = "enum"
	KindAnnotation Kind = "annotation"
)

// TypeRef is a use of a type: a primitive, a class with optional type
// arguments, an array of either, or a type variable with its bounds.
// Class names are qualified and use '$' for nested classes.
type TypeRef struct {
	Name       string
	ArrayDepth int
	Args       []TypeRef
	// TypeVar marks Name as a type variable. Bounds holds the class bound
	// first, then any interface bounds. A type variable without bounds
	// accepts any reference type.
	TypeVar bool
	Bounds  []TypeRef
	// Wildcard marks a "?" type argument. Bounds holds an "extends" bound.
	Wildcard bool
}

var primitives = map[string]string{
	"boolean": "java.lang.Boolean",
	"byte":    "java.lang.Byte",
	"char":    "java.lang.Character",
	"short":   "java.lang.Short",
	"int":     "java.lang.Integer",
	"long":    "java.lang.Long",
	"float":   "java.lang.Float",
	"double":  "java.lang.Double",
}

const (
	ObjectName       = "java.lang.Object"
	CloneableName    = "java.lang.Cloneable"
	SerializableName = "java.io.Serializable"
)

func ClassRef(name string) TypeRef {
	return TypeRef{Name: name}
}

func ArrayOf(elem TypeRef, depth int) TypeRef {
	elem.ArrayDepth += depth
	return elem
}

func IsPrimitiveName(name string) bool {
	_, ok := primitives[name]
	return ok
}

// Box returns the wrapper class name for a primitive keyword and the name
// unchanged otherwise.
func Box(name string) string {
	if w, ok := primitives[name]; ok {
		return w
	}
	return name
}

func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) IsPrimitive() bool {
	return t.ArrayDepth == 0 && !t.TypeVar && IsPrimitiveName(t.Name)
}

func (t TypeRef) IsArray() bool {
	return t.ArrayDepth > 0
}

func (t TypeRef) IsVoid() bool {
	return t.Name == "void" && t.ArrayDepth == 0
}

func (t TypeRef) IsObject() bool {
	return t.Name == ObjectName && t.ArrayDepth == 0 && !t.TypeVar
}

// Elem drops one array dimension.
func (t TypeRef) Elem() TypeRef {
	if t.ArrayDepth == 0 {
		return t
	}
	t.ArrayDepth--
	return t
}

// Erasure drops type arguments. A type variable erases to its first bound,
// or to Object when it has none.
func (t TypeRef) Erasure() TypeRef {
	if t.TypeVar {
		base := ClassRef(ObjectName)
		if len(t.Bounds) > 0 {
			base = t.Bounds[0].Erasure()
		}
		return ArrayOf(base, t.ArrayDepth)
	}
	return TypeRef{Name: t.Name, ArrayDepth: t.ArrayDepth}
}

// SimpleName is the unqualified name with array brackets and without type
// arguments: "String", "Entry", "byte[]".
func (t TypeRef) SimpleName() string {
	name := SimpleName(t.Name)
	if t.Wildcard {
		name = "?"
	}
	return name + strings.Repeat("[]", t.ArrayDepth)
}

// String renders the type in Java source syntax.
func (t TypeRef) String() string {
	var sb strings.Builder
	if t.Wildcard {
		sb.WriteString("?")
		if len(t.Bounds) > 0 {
			sb.WriteString(" extends ")
			sb.WriteString(t.Bounds[0].String())
		}
		return sb.String()
	}
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	sb.WriteString(strings.Repeat("[]", t.ArrayDepth))
	return sb.String()
}

// SimpleName returns the part of a qualified class name after the last '.'
// or '$'.
func SimpleName(qualified string) string {
	if i := strings.LastIndexAny(qualified, ".$"); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// PackageOf returns the package of a qualified class name.
func PackageOf(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[:i]
	}
	return ""
}

type TypeParam struct {
	Name   string
	Bounds []TypeRef
}

type Param struct {
	Type TypeRef
	// Name is the declared name, empty when the catalog does not know it.
	Name string
}

// Callable is a constructor or a method.
type Callable struct {
	Name       string
	Owner      string
	Params     []Param
	Returns    TypeRef
	TypeParams []TypeParam
	Static     bool
	Synthetic  bool
	Varargs    bool
}

func (c *Callable) IsConstructor() bool {
	return c.Returns.IsZero()
}

type Field struct {
	Name   string
	Owner  string
	Type   TypeRef
	Static bool
}

type TypeInfo struct {
	Name       string
	SimpleName string
	Package    string
	Kind       Kind
	Abstract   bool
	Super      *TypeRef
	Interfaces []TypeRef
	TypeParams []TypeParam

	Constructors []Callable
	Methods      []Callable
	Fields       []Field
}

// Concrete reports whether the type can be instantiated with new: a class
// that is neither abstract nor an interface, enum or annotation.
func (t *TypeInfo) Concrete() bool {
	return t.Kind == KindClass && !t.Abstract
}

func (t *TypeInfo) Ref() TypeRef {
	return ClassRef(t.Name)
}

// Supertypes lists the direct superclass and interfaces by name.
func (t *TypeInfo) Supertypes() []string {
	var names []string
	if t.Super != nil {
		names = append(names, t.Super.Name)
	}
	for _, i := range t.Interfaces {
		names = append(names, i.Name)
	}
	return names
}

type PackageInfo struct {
	Name string
	// Packages holds the qualified names of direct child packages.
	Packages []string
	Types    []*TypeInfo
}
