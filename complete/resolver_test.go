package complete

import (
	"testing"

	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(sl, sc, el, ec int) parser.Span {
	return parser.Span{
		Start: parser.Position{Line: sl, Column: sc},
		End:   parser.Position{Line: el, Column: ec},
	}
}

func TestCursorWithin(t *testing.T) {
	single := span(1, 5, 1, 9)
	multi := span(1, 5, 3, 2)
	tests := []struct {
		name   string
		cursor cursor
		span   parser.Span
		want   bool
	}{
		{"at start", cursor{line: 1, ch: 5}, single, true},
		{"at end", cursor{line: 1, ch: 9}, single, true},
		{"inside", cursor{line: 1, ch: 7}, single, true},
		{"before", cursor{line: 1, ch: 4}, single, false},
		{"after", cursor{line: 1, ch: 10}, single, false},
		{"other line", cursor{line: 2, ch: 7}, single, false},
		{"sticky after skips end", cursor{line: 1, ch: 9, sticky: StickyAfter}, single, false},
		{"sticky after keeps start", cursor{line: 1, ch: 5, sticky: StickyAfter}, single, true},
		{"multi-line ignores columns", cursor{line: 2, ch: 80}, multi, true},
		{"multi-line first line before start", cursor{line: 1, ch: 1}, multi, true},
		{"below multi-line", cursor{line: 4, ch: 1}, multi, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cursor.within(tt.span))
		})
	}
}

func TestCursorStrictlyWithin(t *testing.T) {
	multi := span(1, 5, 3, 2)
	assert.False(t, cursor{line: 1, ch: 4}.strictlyWithin(multi))
	assert.True(t, cursor{line: 1, ch: 5}.strictlyWithin(multi))
	assert.True(t, cursor{line: 2, ch: 80}.strictlyWithin(multi))
	assert.True(t, cursor{line: 3, ch: 2}.strictlyWithin(multi))
	assert.False(t, cursor{line: 3, ch: 3}.strictlyWithin(multi))
}

func resolveAt(t *testing.T, text string, line, ch int, sticky Sticky) (*groovy.Unit, *Target, error) {
	t.Helper()
	u, err := analyzeBuiltin("Test.groovy", text)
	require.NoError(t, err)
	require.Empty(t, u.Errors)
	target, err := Resolve(u, line, ch, sticky)
	return u, target, err
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
		sticky   Sticky
		primary  parser.NodeKind
		name2    string
		previous string
		ignore   []string
	}{
		{
			name: "constructor assigned to variable",
			text: "String s = 'abc'\nString t = new String(s)", line: 1, ch: 22,
			primary: parser.KindNew, previous: "t", ignore: []string{"t"},
		},
		{
			name: "argument variable",
			text: "String s = 'abc'\nString t = new String(s)", line: 1, ch: 23,
			primary: parser.KindIdentifier, name2: "s", previous: "t", ignore: []string{"t"},
		},
		{
			name: "command call",
			text: "\"abc\".con", ch: 9,
			primary: parser.KindCall, name2: "con",
		},
		{
			name: "call end before",
			text: "String s = 'abc'\ns.trim().size()", line: 1, ch: 9,
			primary: parser.KindCall, name2: "trim", previous: "size",
		},
		{
			name: "call end after",
			text: "String s = 'abc'\ns.trim().size()", line: 1, ch: 9, sticky: StickyAfter,
			primary: parser.KindCall, name2: "size",
		},
		{
			name: "property in argument",
			text: "String s = 'abc'\nprintln(s.bytes)", line: 1, ch: 14,
			primary: parser.KindProperty, name2: "bytes", previous: "println",
		},
		{
			name: "unrelated statement before on the line",
			text: "String a = 'x'\nprintln(a); String t = new String(a)", line: 1, ch: 34,
			primary: parser.KindNew, previous: "t", ignore: []string{"t"},
		},
		{
			name: "closure argument",
			text: "String s = 'abc'\n[1].each { n ->\n  s.trim()\n}", line: 2, ch: 5,
			primary: parser.KindCall, name2: "trim", previous: "each",
		},
		{
			name: "import owns its line",
			text: "import java.util.concurrent.*\nx = 1", line: 0, ch: 0,
			primary: parser.KindImport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, target, err := resolveAt(t, tt.text, tt.line, tt.ch, tt.sticky)
			require.NoError(t, err)
			require.Equal(t, tt.primary, target.Primary.Kind)
			if tt.name2 != "" {
				name := target.Primary.TokenLiteral()
				if target.Primary.Kind == parser.KindCall || target.Primary.Kind == parser.KindProperty {
					name = target.Primary.Name()
				}
				assert.Equal(t, tt.name2, name)
			}
			if tt.previous == "" {
				assert.Nil(t, target.Previous)
			} else {
				require.NotNil(t, target.Previous)
				name := target.Previous.TokenLiteral()
				if target.Previous.Kind == parser.KindCall {
					name = target.Previous.Name()
				}
				assert.Equal(t, tt.previous, name)
			}
			var ignore []string
			for name := range target.Ignore {
				ignore = append(ignore, name)
			}
			assert.ElementsMatch(t, tt.ignore, ignore)
		})
	}
}

func TestResolveNoTarget(t *testing.T) {
	_, _, err := resolveAt(t, "String s = 'a'\n\nprintln s", 1, 0, StickyBefore)
	assert.True(t, errors.Is(err, ErrNoTarget), "got %v", err)
}

func TestResolveSnapshot(t *testing.T) {
	text := `String top = 'x'
def m(String p) {
  String q = p
  q.trim()
  String later = q
}`
	_, target, err := resolveAt(t, text, 3, 4, StickyBefore)
	require.NoError(t, err)

	var names [][]string
	for _, scope := range target.Scopes {
		var vars []string
		for _, v := range scope {
			vars = append(vars, v.Name)
		}
		names = append(names, vars)
	}
	// nearest first; the method does not see script locals and later
	// declarations are not visible yet
	assert.Equal(t, [][]string{{"q"}, {"p"}}, names)
}

func TestResolveScriptScope(t *testing.T) {
	text := "String a = 'x'\nfor (String b in [a]) {\n  b.trim()\n}"
	_, target, err := resolveAt(t, text, 2, 4, StickyBefore)
	require.NoError(t, err)
	require.NotEmpty(t, target.Scopes)
	last := target.Scopes[len(target.Scopes)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "a", last[0].Name)

	var all []string
	for _, scope := range target.Scopes {
		for _, v := range scope {
			all = append(all, v.Name)
		}
	}
	assert.Contains(t, all, "b")
}
