package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, input string) (*Node, []SyntaxError) {
	t.Helper()
	root, errs := ParseScript([]byte(input), WithFile("test.groovy"))
	require.NotNil(t, root)
	require.Equal(t, KindScript, root.Kind)
	return root, errs
}

// firstStatement returns the expression of the first expression statement or
// the first statement itself.
func firstStatement(t *testing.T, input string) *Node {
	t.Helper()
	root, errs := parse(t, input)
	require.Empty(t, errs)
	require.NotEmpty(t, root.Children)
	stmt := root.Children[0]
	if stmt.Kind == KindExprStmt {
		return stmt.Child(0)
	}
	return stmt
}

func TestParseScriptClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank lines", "\n\n   \n"},
		{"def", "def x = 1"},
		{"typed", "String s = 'a'"},
		{"primitive array", "byte[] b = new byte[10]"},
		{"generics", "Map<String, List<Integer>> m = [:]"},
		{"multiple declarators", "int a = 1, b = 2"},
		{"command call", "println 'hello'"},
		{"command call with args", "foo 1, 2"},
		{"call", "println(x)"},
		{"chain", "'abc'.toUpperCase().trim()"},
		{"safe navigation", "x?.foo()"},
		{"newline chain", "list\n  .findAll { it > 1 }\n  .size()"},
		{"closure params", "def f = { a, b -> a + b }"},
		{"closure it", "[1, 2].each { println it }"},
		{"map literal", "def m = [a: 1, 'b': 2]"},
		{"named args", "foo(a: 1, b: 2)"},
		{"ternary", "def x = a ? b : c"},
		{"elvis", "def x = a ?: b"},
		{"as cast", "def x = y as String"},
		{"paren cast", "def x = (String) y"},
		{"instanceof", "if (x instanceof String) { println x }"},
		{"if else", "if (a) {\n  b()\n} else {\n  c()\n}"},
		{"while", "while (i < 10) i++"},
		{"for classic", "for (int i = 0; i < 10; i++) { println i }"},
		{"for in", "for (x in [1, 2]) println x"},
		{"for colon", "for (String s : list) println s"},
		{"try", "try {\n  a()\n} catch (IOException | RuntimeException e) {\n} finally {\n}"},
		{"assert", "assert x == 1 : 'boom'"},
		{"method", "def foo(String a, int b = 2) {\n  return a\n}"},
		{"typed method", "String greet(name) { \"hi $name\" }"},
		{"class", "class Foo extends Bar implements Baz {\n  String name\n  Foo(String n) { name = n }\n  def greet() { name }\n}"},
		{"enum", "enum Color { RED, GREEN }"},
		{"imports", "import java.util.*\nimport static java.lang.Math.max\nimport java.util.List as L\nimport static java.util.Collections.*"},
		{"semicolons", "a(); b();;"},
		{"new anonymous", "def r = new Runnable() {\n  void run() {}\n}"},
		{"index", "def x = a[0][1]"},
		{"keyword property", "def c = x.class"},
		{"range", "def r = 1..<10"},
		{"return bare", "def f() {\n  return\n}"},
		{"annotations", "@Field String name = 'x'"},
		{"multiline args", "foo(1,\n  2,\n  3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := parse(t, tt.input)
			assert.Empty(t, errs)
		})
	}
}

func TestParseScriptErrorCount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"new without parens", "String s = new String", 1},
		{"open paren", "String s = new String(", 1},
		{"trailing dot", "def x = 'a'\nx.", 1},
		{"import trailing dot", "import java.util.", 1},
		{"unclosed call spans lines", "foo(1,\nbar(", 1},
		{"two broken lines", "String a = new String\nString b = new String", 2},
		{"broken then clean", "new Foo\nprintln 'ok'\ny = ", 2},
		{"stray close", "}", 1},
		{"unterminated string", "def s = 'abc", 1},
		{"two on one line with semicolon", "a.; b.", 2},
		{"broken in block", "if (a) {\n  x = new Foo\n  y()\n}", 1},
		{"broken in closure", "list.each {\n  new Foo\n}", 1},
		{"extra token", "def x = 1 2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := parse(t, tt.input)
			assert.Len(t, errs, tt.want, "errors: %v", errs)
		})
	}
}

func TestParseExpressionKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  NodeKind
	}{
		{"x", KindIdentifier},
		{"42", KindLiteral},
		{"'a'", KindLiteral},
		{"\"a $b\"", KindGString},
		{"a + b", KindBinary},
		{"!a", KindUnary},
		{"i++", KindPostfix},
		{"a = b", KindAssign},
		{"a ? b : c", KindTernary},
		{"a ?: b", KindElvis},
		{"x as int", KindCast},
		{"foo()", KindCall},
		{"a.b()", KindCall},
		{"a.b", KindCall},
		{"a[1]", KindIndex},
		{"new Foo()", KindNew},
		{"new int[3]", KindNewArray},
		{"def f = { it }", KindVarDecl},
		{"[1, 2]", KindList},
		{"[a: 1]", KindMap},
		{"[:]", KindMap},
		{"(a)", KindParen},
		{"this", KindThis},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node := firstStatement(t, tt.input)
			assert.Equal(t, tt.kind, node.Kind, node.String())
		})
	}
}

func TestParseCallLayout(t *testing.T) {
	t.Run("implicit this", func(t *testing.T) {
		call := firstStatement(t, "println(x, 1)")
		require.Equal(t, KindCall, call.Kind)
		assert.Equal(t, KindThis, call.Receiver().Kind)
		assert.True(t, call.Receiver().Flags.Has(FlagImplicitThis))
		assert.Equal(t, "println", call.Name())
		require.Len(t, call.Args(), 2)
		assert.Equal(t, KindIdentifier, call.Args()[0].Kind)
	})

	t.Run("receiver", func(t *testing.T) {
		call := firstStatement(t, "'abc'.concat(s)")
		assert.Equal(t, KindLiteral, call.Receiver().Kind)
		assert.Equal(t, "concat", call.Name())
		assert.Len(t, call.Args(), 1)
	})

	t.Run("statement property is a command call", func(t *testing.T) {
		call := firstStatement(t, "\"abc\".con")
		require.Equal(t, KindCall, call.Kind)
		assert.True(t, call.Flags.Has(FlagCommand))
		assert.Equal(t, "con", call.Name())
		assert.Empty(t, call.Args())
		require.NotNil(t, call.Child(2))
		assert.Equal(t, KindArguments, call.Child(2).Kind)
	})

	t.Run("nested property stays a property", func(t *testing.T) {
		decl := firstStatement(t, "def n = s.size")
		init := decl.ChildrenOfKind(KindDeclarator)[0].Child(1)
		assert.Equal(t, KindProperty, init.Kind)
	})

	t.Run("command call", func(t *testing.T) {
		call := firstStatement(t, "println x")
		assert.True(t, call.Flags.Has(FlagCommand))
		assert.Equal(t, "println", call.Name())
		assert.Len(t, call.Args(), 1)
	})

	t.Run("trailing closure", func(t *testing.T) {
		call := firstStatement(t, "list.collect(1) { it }")
		require.Len(t, call.Args(), 2)
		assert.Equal(t, KindClosure, call.Args()[1].Kind)
	})

	t.Run("safe call", func(t *testing.T) {
		call := firstStatement(t, "a?.b()")
		assert.True(t, call.Flags.Has(FlagSafe))
	})
}

func TestParseDeclarations(t *testing.T) {
	t.Run("typed", func(t *testing.T) {
		decl := firstStatement(t, "String s = new String()")
		require.Equal(t, KindVarDecl, decl.Kind)
		typ := decl.FirstChildOfKind(KindType)
		require.NotNil(t, typ)
		assert.Equal(t, "String", typ.QualifiedName())
		d := decl.ChildrenOfKind(KindDeclarator)
		require.Len(t, d, 1)
		assert.Equal(t, "s", d[0].Child(0).TokenLiteral())
		assert.Equal(t, KindNew, d[0].Child(1).Kind)
	})

	t.Run("def", func(t *testing.T) {
		decl := firstStatement(t, "def x = 1")
		require.Equal(t, KindVarDecl, decl.Kind)
		assert.Nil(t, decl.FirstChildOfKind(KindType))
	})

	t.Run("array", func(t *testing.T) {
		decl := firstStatement(t, "byte[] b")
		typ := decl.FirstChildOfKind(KindArrayType)
		require.NotNil(t, typ)
		assert.Equal(t, "byte", typ.QualifiedName())
	})

	t.Run("qualified generic", func(t *testing.T) {
		decl := firstStatement(t, "java.util.List<String> xs = []")
		typ := decl.FirstChildOfKind(KindType)
		require.NotNil(t, typ)
		assert.Equal(t, "java.util.List", typ.QualifiedName())
		assert.NotNil(t, typ.FirstChildOfKind(KindTypeArguments))
	})

	t.Run("lowercase name is an expression", func(t *testing.T) {
		stmt := firstStatement(t, "foo = bar")
		assert.Equal(t, KindAssign, stmt.Kind)
	})

	t.Run("method", func(t *testing.T) {
		m := firstStatement(t, "int add(int a, b) { a + b }")
		require.Equal(t, KindMethodDecl, m.Kind)
		assert.Equal(t, "add", m.FirstChildOfKind(KindIdentifier).TokenLiteral())
		params := m.FirstChildOfKind(KindParameters)
		require.Len(t, params.Children, 2)
		assert.NotNil(t, params.Children[0].FirstChildOfKind(KindType))
		assert.Nil(t, params.Children[1].FirstChildOfKind(KindType))
		assert.NotNil(t, m.FirstChildOfKind(KindBlock))
	})

	t.Run("class", func(t *testing.T) {
		c := firstStatement(t, "class Point {\n  int x\n  Point(int x) { this.x = x }\n  int getX() { x }\n}")
		require.Equal(t, KindClassDecl, c.Kind)
		assert.Len(t, c.ChildrenOfKind(KindFieldDecl), 1)
		assert.Len(t, c.ChildrenOfKind(KindConstructorDecl), 1)
		assert.Len(t, c.ChildrenOfKind(KindMethodDecl), 1)
	})
}

func TestParseImports(t *testing.T) {
	root, errs := parse(t, "import java.util.*\nimport static java.lang.Math.max\nimport java.util.List as L")
	require.Empty(t, errs)
	imports := root.ChildrenOfKind(KindImport)
	require.Len(t, imports, 3)

	assert.True(t, imports[0].Flags.Has(FlagStar))
	assert.Equal(t, "java.util", imports[0].Child(0).QualifiedName())

	assert.True(t, imports[1].Flags.Has(FlagStatic))
	assert.Equal(t, "java.lang.Math.max", imports[1].Child(0).QualifiedName())

	assert.Equal(t, "java.util.List", imports[2].Child(0).QualifiedName())
	assert.Equal(t, "L", imports[2].Child(1).TokenLiteral())
}

func TestParseSpans(t *testing.T) {
	root, errs := parse(t, "String s = new String()\n\"abc\".concat(s)")
	require.Empty(t, errs)
	require.Len(t, root.Children, 2)

	decl := root.Children[0]
	assert.Equal(t, Position{File: "test.groovy", Offset: 0, Line: 1, Column: 1}, decl.Span.Start)
	assert.Equal(t, 24, decl.Span.End.Column)

	newExpr := decl.ChildrenOfKind(KindDeclarator)[0].Child(1)
	assert.Equal(t, 12, newExpr.Span.Start.Column)
	assert.Equal(t, 24, newExpr.Span.End.Column)

	call := root.Children[1].Child(0)
	assert.Equal(t, 2, call.Span.Start.Line)
	assert.Equal(t, 1, call.Span.Start.Column)
	assert.Equal(t, 16, call.Span.End.Column)
	assert.False(t, call.Span.MultiLine())
}

func TestParseGenericsCloseShift(t *testing.T) {
	decl := firstStatement(t, "Map<String, List<Integer>> m")
	typ := decl.FirstChildOfKind(KindType)
	require.NotNil(t, typ)
	args := typ.FirstChildOfKind(KindTypeArguments)
	require.NotNil(t, args)
	require.Len(t, args.Children, 2)
	inner := args.Children[1].FirstChildOfKind(KindTypeArguments)
	require.NotNil(t, inner)
	assert.Len(t, inner.Children, 1)
	assert.Equal(t, "m", decl.ChildrenOfKind(KindDeclarator)[0].Child(0).TokenLiteral())
}

func TestSyntaxErrorMessage(t *testing.T) {
	_, errs := parse(t, "String s = new String")
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Span.Start.Line)
	assert.Contains(t, errs[0].Error(), "1:22:")
	assert.Contains(t, errs[0].Message, "expected '(' or '['")
}
