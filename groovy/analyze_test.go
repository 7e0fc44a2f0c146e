package groovy

import (
	"testing"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, text string, opts ...Option) *Unit {
	t.Helper()
	u, err := Analyze("Test.groovy", text, catalog.Builtin(), opts...)
	require.NoError(t, err)
	return u
}

// find returns the first node of kind whose token or qualified name is name.
func find(root *parser.Node, kind parser.NodeKind, name string) *parser.Node {
	var found *parser.Node
	root.Walk(func(n *parser.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == kind && (name == "" || n.TokenLiteral() == name || n.Name() == name) {
			found = n
			return false
		}
		return true
	})
	return found
}

func messages(u *Unit) []string {
	var out []string
	for _, e := range u.Errors {
		out = append(out, e.Message)
	}
	return out
}

func TestAnalyzeNilCatalog(t *testing.T) {
	_, err := Analyze("x.groovy", "x = 1", nil)
	assert.Error(t, err)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		errors []string
	}{
		{"clean", "String s = 'a'\nprintln s", nil},
		{"unresolved import", "import java.util.conc", []string{"unable to resolve class java.util.conc"}},
		{"star import of unknown package", "import com.nowhere.*", nil},
		{"unresolved static owner", "import static java.lang.Nope.x", []string{"unable to resolve class java.lang.Nope"}},
		{"unresolved declared type", "Frob f = null", []string{"unable to resolve class Frob"}},
		{"unresolved new", "def x = new Frob()", []string{"unable to resolve class Frob"}},
		{"two problems", "import a.B\nC c = null", []string{"unable to resolve class a.B", "unable to resolve class C"}},
		{"syntax error stops binding", "Frob f = new Frob", []string{"expected '(' or '[' after new Frob, found end of input"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := analyze(t, tt.text)
			assert.Equal(t, tt.errors, messages(u))
		})
	}
}

func TestAnalyzeImports(t *testing.T) {
	u := analyze(t, `import java.util.concurrent.*
import java.util.concurrent.atomic.AtomicInteger as Counter
import static java.lang.Math.max
import static java.util.Collections.*
`)
	require.Empty(t, u.Errors)
	require.Len(t, u.Imports, 4)

	star := u.Imports[0]
	assert.True(t, star.Star)
	assert.Equal(t, "java.util.concurrent", star.Path)
	assert.Nil(t, star.Class)
	assert.Contains(t, u.StarPackages(), "java.util.concurrent")

	alias := u.Imports[1]
	assert.Equal(t, "Counter", alias.Name())
	require.NotNil(t, alias.Class)
	assert.Equal(t, "java.util.concurrent.atomic.AtomicInteger", alias.Class.Name)
	assert.Equal(t, "java.util.concurrent.atomic.AtomicInteger", u.SingleImports()["Counter"])

	static := u.Imports[2]
	assert.True(t, static.Static)
	assert.Equal(t, "max", static.Member)
	assert.Equal(t, "max", static.Name())
	require.NotNil(t, static.Class)
	assert.Equal(t, "java.lang.Math", static.Class.Name)

	staticStar := u.Imports[3]
	require.NotNil(t, staticStar.Class)
	assert.Equal(t, "java.util.Collections", staticStar.Class.Name)

	require.NotNil(t, u.ResolveClass("Counter"))
	require.NotNil(t, u.ResolveClass("ExecutorService"))
	assert.Equal(t, "java.util.concurrent.ExecutorService", u.ResolveClass("ExecutorService").Name)
}

func TestResolveClass(t *testing.T) {
	u := analyze(t, "x = 1")
	tests := []struct {
		name string
		want string
	}{
		{"String", "java.lang.String"},
		{"List", "java.util.List"},
		{"File", "java.io.File"},
		{"BigDecimal", "java.math.BigDecimal"},
		{"java.util.Map.Entry", "java.util.Map$Entry"},
		{"Map.Entry", "java.util.Map$Entry"},
		{"java.util.concurrent.TimeUnit", "java.util.concurrent.TimeUnit"},
		{"Closure", "groovy.lang.Closure"},
		{"TimeUnit", ""},
		{"Nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := u.ResolveClass(tt.name)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}

	noAuto := analyze(t, "x = 1", WithAutoImport(false))
	assert.Nil(t, noAuto.ResolveClass("List"))
	assert.NotNil(t, noAuto.ResolveClass("String"))
}

func TestAnalyzeScopes(t *testing.T) {
	u := analyze(t, `String a = 'x'
def b = 1
if (b) {
    int c = 2
    [1, 2].each { n -> println n }
}
for (String s : ['p']) { println s }
def m(int p) { p }
`)
	require.Empty(t, u.Errors)

	root := u.ScopeOf(u.Root)
	require.NotNil(t, root)
	var names []string
	for _, v := range root.Vars {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	a := root.Lookup("a")
	require.NotNil(t, a)
	assert.True(t, a.Typed())
	assert.Equal(t, "java.lang.String", a.Type.Name)

	b := root.Lookup("b")
	require.NotNil(t, b)
	assert.True(t, b.Dynamic)
	assert.False(t, b.Typed())

	block := find(u.Root, parser.KindBlock, "")
	require.NotNil(t, block)
	inner := u.ScopeOf(block)
	require.NotNil(t, inner)
	assert.Same(t, root, inner.Parent)
	assert.NotNil(t, inner.Lookup("c"))
	assert.NotNil(t, inner.Lookup("a"))
	assert.Nil(t, root.Lookup("c"))

	closure := find(u.Root, parser.KindClosure, "")
	require.NotNil(t, closure)
	cs := u.ScopeOf(closure)
	require.NotNil(t, cs)
	require.Len(t, cs.Vars, 1)
	assert.Equal(t, "n", cs.Vars[0].Name)

	forIn := find(u.Root, parser.KindForIn, "")
	require.NotNil(t, forIn)
	fs := u.ScopeOf(forIn)
	require.NotNil(t, fs)
	s := fs.Lookup("s")
	require.NotNil(t, s)
	assert.Equal(t, "java.lang.String", s.Type.Name)

	method := find(u.Root, parser.KindMethodDecl, "")
	require.NotNil(t, method)
	ms := u.ScopeOf(method)
	require.NotNil(t, ms)
	assert.Nil(t, ms.Parent)
	assert.NotNil(t, ms.Lookup("p"))
	assert.Nil(t, ms.Lookup("a"), "methods do not see script locals")
}

func TestAnalyzeImplicitIt(t *testing.T) {
	u := analyze(t, "[1].each { println it }")
	closure := find(u.Root, parser.KindClosure, "")
	require.NotNil(t, closure)
	it := u.ScopeOf(closure).Lookup("it")
	require.NotNil(t, it)
	assert.True(t, it.Dynamic)
}

func TestAnalyzeUses(t *testing.T) {
	u := analyze(t, `String s = 'a'
s.length()
undeclared.foo()
String.valueOf(1)
java.util.Collections.emptyList()
`)
	require.Empty(t, u.Errors)

	var idents []*parser.Node
	u.Root.Walk(func(n *parser.Node) bool {
		if n.Kind == parser.KindIdentifier && u.UseOf(n) != nil {
			idents = append(idents, n)
		}
		return true
	})

	uses := map[string]UseKind{}
	for _, n := range idents {
		uses[n.TokenLiteral()] = u.UseOf(n).Kind
	}
	assert.Equal(t, UseVariable, uses["s"])
	assert.Equal(t, UseDynamic, uses["undeclared"])
	assert.Equal(t, UseClass, uses["String"])
	assert.NotContains(t, uses, "length", "member names are not bound")

	prop := find(u.Root, parser.KindProperty, "Collections")
	require.NotNil(t, prop)
	use := u.UseOf(prop)
	require.NotNil(t, use)
	assert.Equal(t, UseClass, use.Kind)
	assert.Equal(t, "java.util.Collections", use.Class.Name)
}

func TestAnalyzeTypes(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind parser.NodeKind
		want string
	}{
		{"int literal", "x = 42", parser.KindLiteral, "int"},
		{"long literal", "x = 42L", parser.KindLiteral, "long"},
		{"big integer", "x = 42G", parser.KindLiteral, "java.math.BigInteger"},
		{"decimal", "x = 4.2", parser.KindLiteral, "java.math.BigDecimal"},
		{"double", "x = 4.2d", parser.KindLiteral, "double"},
		{"string", "x = 'a'", parser.KindLiteral, "java.lang.String"},
		{"boolean", "x = true", parser.KindLiteral, "boolean"},
		{"gstring", `x = "a ${1}"`, parser.KindGString, "groovy.lang.GString"},
		{"new", "x = new StringBuilder()", parser.KindNew, "java.lang.StringBuilder"},
		{"new array", "x = new byte[4]", parser.KindNewArray, "byte[]"},
		{"list", "x = [1]", parser.KindList, "java.util.ArrayList"},
		{"map", "x = [a: 1]", parser.KindMap, "java.util.LinkedHashMap"},
		{"call return", "x = 'a'.concat('b')", parser.KindCall, "java.lang.String"},
		{"comparison", "x = 1 < 2", parser.KindBinary, "boolean"},
		{"cast", "x = (String) y", parser.KindCast, "java.lang.String"},
		{"as", "x = y as String", parser.KindCast, "java.lang.String"},
		{"closure", "x = { 1 }", parser.KindClosure, "groovy.lang.Closure"},
		{"getter property", "x = 'a'.bytes", parser.KindProperty, "byte[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := analyze(t, tt.text)
			require.Empty(t, u.Errors)
			n := find(u.Root, tt.kind, "")
			require.NotNil(t, n)
			got, ok := u.TypeOf(n)
			require.True(t, ok, "no type for %s", n.Kind)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAnalyzeAmbiguousReturnType(t *testing.T) {
	// indexOf has two single-argument overloads
	u := analyze(t, "x = 'a'.indexOf('b')")
	call := find(u.Root, parser.KindCall, "indexOf")
	require.NotNil(t, call)
	_, ok := u.TypeOf(call)
	assert.False(t, ok)
}

func TestScriptSymbols(t *testing.T) {
	u := analyze(t, `def greet(String name, int times) { name * times }
String shout(String s) { s.toUpperCase() }

class Point {
    int x
    private int y
    Point(int x, int y) {}
    double norm() { 0 }
}

abstract class Shape {}

enum Color { RED, GREEN }

greet('a', 2)
`)
	require.Empty(t, u.Errors)
	syms := u.ScriptSymbols()
	require.NotNil(t, syms)

	script := syms.ResolveType("Test")
	require.NotNil(t, script)
	require.NotNil(t, script.Super)
	assert.Equal(t, "groovy.lang.Script", script.Super.Name)
	require.Len(t, script.Methods, 2)
	greet := script.Methods[0]
	assert.Equal(t, "greet", greet.Name)
	assert.Equal(t, catalog.ObjectName, greet.Returns.Name)
	assert.Equal(t, []catalog.Param{
		{Type: catalog.ClassRef("java.lang.String"), Name: "name"},
		{Type: catalog.TypeRef{Name: "int"}, Name: "times"},
	}, greet.Params)
	assert.Equal(t, "java.lang.String", script.Methods[1].Returns.Name)

	point := syms.ResolveType("Point")
	require.NotNil(t, point)
	assert.True(t, point.Concrete())
	require.Len(t, point.Constructors, 1)
	assert.Len(t, point.Constructors[0].Params, 2)
	var methods []string
	for _, m := range point.Methods {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"getX", "setX", "norm"}, methods)
	assert.Len(t, point.Fields, 2)

	shape := syms.ResolveType("Shape")
	require.NotNil(t, shape)
	assert.False(t, shape.Concrete())

	color := syms.ResolveType("Color")
	require.NotNil(t, color)
	assert.Equal(t, catalog.KindEnum, color.Kind)
	assert.Len(t, color.Fields, 2)

	assert.ElementsMatch(t, []string{"Point", "Shape", "Color"}, u.ScriptClasses())

	// script classes resolve through the unit catalog alongside the JDK
	assert.NotNil(t, u.Catalog.ResolveType("Point"))
	assert.NotNil(t, u.Catalog.ResolveType("java.lang.String"))

	call := find(u.Root, parser.KindCall, "greet")
	require.NotNil(t, call)
	rt, ok := u.TypeOf(call)
	require.True(t, ok)
	assert.Equal(t, catalog.ObjectName, rt.Name)
}

func TestScriptClassName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Test.groovy", "Test"},
		{"dir/my-script.groovy", "my_script"},
		{`C:\scripts\job.groovy`, "job"},
		{"1up.groovy", "_up"},
		{"", "Script"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, scriptClassName(tt.in))
		})
	}
}
