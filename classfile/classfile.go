// Package classfile reads the parts of a JVM class file that describe its API:
// names, supertypes, members, generic signatures and parameter names.
// Bytecode, annotations and stack maps are skipped.
package classfile

import "strings"

const Magic = 0xCAFEBABE

type AccessFlags uint16

const (
	AccPublic     AccessFlags = 0x0001
	AccPrivate    AccessFlags = 0x0002
	AccProtected  AccessFlags = 0x0004
	AccStatic     AccessFlags = 0x0008
	AccFinal      AccessFlags = 0x0010
	AccBridge     AccessFlags = 0x0040
	AccVarargs    AccessFlags = 0x0080
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccSynthetic  AccessFlags = 0x1000
	AccAnnotation AccessFlags = 0x2000
	AccEnum       AccessFlags = 0x4000
	AccModule     AccessFlags = 0x8000
)

func (f AccessFlags) IsPublic() bool     { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool    { return f&AccPrivate != 0 }
func (f AccessFlags) IsProtected() bool  { return f&AccProtected != 0 }
func (f AccessFlags) IsStatic() bool     { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool      { return f&AccFinal != 0 }
func (f AccessFlags) IsBridge() bool     { return f&AccBridge != 0 }
func (f AccessFlags) IsVarargs() bool    { return f&AccVarargs != 0 }
func (f AccessFlags) IsInterface() bool  { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool   { return f&AccAbstract != 0 }
func (f AccessFlags) IsSynthetic() bool  { return f&AccSynthetic != 0 }
func (f AccessFlags) IsAnnotation() bool { return f&AccAnnotation != 0 }
func (f AccessFlags) IsEnum() bool       { return f&AccEnum != 0 }
func (f AccessFlags) IsModule() bool     { return f&AccModule != 0 }

// ClassFile is a decoded class file. All constant pool references are
// already resolved to strings; names use the internal form (java/lang/String).
type ClassFile struct {
	MajorVersion uint16
	Access       AccessFlags
	Name         string
	SuperName    string
	Interfaces   []string
	Signature    string
	Fields       []Member
	Methods      []Member
}

// Member is a field or a method.
type Member struct {
	Access     AccessFlags
	Name       string
	Descriptor string
	Signature  string
	// ParamNames holds parameter names recovered from MethodParameters or,
	// failing that, from the LocalVariableTable of the method's code.
	// Entries are empty when a name is unknown.
	ParamNames []string
}

func (m *Member) IsConstructor() bool {
	return m.Name == "<init>"
}

func (m *Member) IsStaticInitializer() bool {
	return m.Name == "<clinit>"
}

// SourceName returns the dotted class name, keeping '$' for nested classes.
func (cf *ClassFile) SourceName() string {
	return InternalToSourceName(cf.Name)
}

func (cf *ClassFile) IsInterface() bool {
	return cf.Access.IsInterface() && !cf.Access.IsAnnotation()
}

// IsAnonymous reports whether the class is an anonymous or local class,
// which javac names Outer$1 or Outer$1Local.
func (cf *ClassFile) IsAnonymous() bool {
	idx := strings.LastIndexByte(cf.Name, '$')
	if idx < 0 || idx == len(cf.Name)-1 {
		return false
	}
	c := cf.Name[idx+1]
	return c >= '0' && c <= '9'
}

func (cf *ClassFile) Method(name, descriptor string) *Member {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Name == name && (descriptor == "" || m.Descriptor == descriptor) {
			return m
		}
	}
	return nil
}

func (cf *ClassFile) Field(name string) *Member {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

func InternalToSourceName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

func SourceToInternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
