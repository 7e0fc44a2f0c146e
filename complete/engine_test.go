package complete

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dhamidi/gce/catalog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu          sync.Mutex
	completions []string
	failures    []string
}

func (r *fakeRecorder) RecordCompletion(_ context.Context, kind string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, kind)
}

func (r *fakeRecorder) RecordFailure(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(catalog.Builtin(), opts...)
	require.NoError(t, err)
	return e
}

func complete(t *testing.T, e *Engine, text string, line, ch int) []Candidate {
	t.Helper()
	out, err := e.Complete(context.Background(), Request{Name: "Test.groovy", Text: text, Line: line, Ch: ch})
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func find(cands []Candidate, displayed string) *Candidate {
	for i := range cands {
		if cands[i].Displayed == displayed {
			return &cands[i]
		}
	}
	return nil
}

// assertDisplayed checks which candidates are offered and which are not.
func assertDisplayed(t *testing.T, cands []Candidate, want, absent []string) {
	t.Helper()
	got := displayed(cands)
	for _, w := range want {
		assert.Contains(t, got, w)
	}
	for _, a := range absent {
		assert.NotContains(t, got, a)
	}
}

func displayed(cands []Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Displayed)
	}
	return out
}

func TestCompleteScenarios(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
		want     Candidate
	}{
		{
			name: "constructor for typed variable",
			text: "String s = new String", ch: 21,
			want: Candidate{Kind: KindConstructor, Entered: [2]int{10, 6}, Displayed: "java.lang.String()", Value: "String()"},
		},
		{
			name: "constructor parameter named from scope",
			text: "byte[] strBytes = 'abc'.bytes\nString s = new String(", line: 1, ch: 22,
			want: Candidate{Kind: KindConstructor, Entered: [2]int{10, 0}, Displayed: "java.lang.String(byte[] strBytes)", Value: "String(strBytes)"},
		},
		{
			name: "method on literal",
			text: "\"abc\".con", ch: 9,
			want: Candidate{Kind: KindMethod, Entered: [2]int{0, 3}, Displayed: "concat(String str1) - String", Value: "concat(str1)"},
		},
		{
			name: "import child package",
			text: "import java.util.conc", ch: 21,
			want: Candidate{Kind: KindImportPackage, Entered: [2]int{0, 0}, Displayed: "concurrent - package", Value: "concurrent"},
		},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := complete(t, e, tt.text, tt.line, tt.ch)
			got := find(out, tt.want.Displayed)
			require.NotNil(t, got, "candidates: %v", displayed(out))
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestCompleteEmpty(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
		reason   string
	}{
		{"blank line", "String s = 'a'\n\nprintln s", 1, 0, "no-target"},
		{"two syntax errors", "String a = new String\nString b = new String", 1, 21, "unrecoverable"},
		{"dynamic variable", "def x = 1\nx", 1, 1, "no-context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			e := newTestEngine(t, WithRecorder(rec))
			out := complete(t, e, tt.text, tt.line, tt.ch)
			assert.Empty(t, out)
			assert.Equal(t, []string{tt.reason}, rec.failures)
			assert.Empty(t, rec.completions)
		})
	}
}

func TestCompleteBadRequest(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
	}{
		{"negative line", "x = 1", -1, 0},
		{"negative column", "x = 1", 0, -1},
		{"line past end", "x = 1", 1, 0},
		{"column past end", "x = 1", 0, 6},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Complete(context.Background(), Request{Name: "Test.groovy", Text: tt.text, Line: tt.line, Ch: tt.ch})
			assert.True(t, errors.Is(err, ErrBadRequest), "got %v", err)
		})
	}
}

func TestCompleteRecordsContext(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(t, WithRecorder(rec))
	complete(t, e, "\"abc\".con", 0, 9)
	assert.Equal(t, []string{"method-invocation"}, rec.completions)
	assert.Empty(t, rec.failures)
}

func TestCompleteConstructorsFilteredByTarget(t *testing.T) {
	e := newTestEngine(t)
	out := complete(t, e, "String s = new String", 0, 21)
	for _, c := range out {
		assert.Equal(t, KindConstructor, c.Kind)
		assert.Regexp(t, `^java\.lang\.String\(`, c.Displayed)
	}
	// s is the variable being assigned and is never offered as an argument
	assert.NotNil(t, find(out, "java.lang.String(String original)"))
}

func TestCompleteMethods(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
		want     []string
		absent   []string
	}{
		{
			name: "scope variable names a parameter",
			text: "String s = 'abc'\ns.con", line: 1, ch: 5,
			want: []string{"concat(String s) - String"},
		},
		{
			name: "arguments are reused and filter overloads",
			text: "String s = 'abc'\ns.substring(1, 2)", line: 1, ch: 14,
			want:   []string{"substring(int 1, int 2) - String"},
			absent: []string{"substring(int 1) - String"},
		},
		{
			name: "property members",
			text: "String s = 'abc'\nprintln(s.to", line: 1, ch: 12,
			want: []string{"toLowerCase() - String", "toUpperCase() - String", "toCharArray() - char[]"},
		},
		{
			name: "static members of a class",
			text: "println(Math.ab", ch: 15,
			want: []string{"abs(int a) - int", "abs(double a) - double"},
		},
		{
			name: "after a call",
			text: "String s = 'abc'\ns.trim().", line: 1, ch: 9,
			want: []string{"trim() - String", "length() - int"},
		},
		{
			name: "typed access keeps assignable returns",
			text: "String s = 'abc'\nint n = s.le", line: 1, ch: 12,
			want: []string{"length() - int"},
		},
		{
			name: "inside a closure argument",
			text: "String s = 'a'\n[1,2].each { x ->\n  s.con\n}", line: 2, ch: 7,
			want: []string{"concat(String s) - String"},
		},
		{
			name: "open arguments inside a closure",
			text: "String s = 'a'\n[1,2].each { x ->\n  s.substring(\n}", line: 2, ch: 14,
			want: []string{"substring(int beginIndex) - String", "substring(int beginIndex, int endIndex) - String"},
		},
		{
			name: "inside a closure in a block",
			text: "String s = 'a'\nif (true) {\n  [1].collect { n ->\n    s.con\n  }\n}", line: 3, ch: 9,
			want: []string{"concat(String s) - String"},
		},
		{
			name: "call nested in an argument",
			text: "String s = 'abc'\nprintln(s.substring(1, 2))", line: 1, ch: 24,
			want:   []string{"substring(int 1, int 2) - String"},
			absent: []string{"length() - int"},
		},
		{
			name: "script method",
			text: "def greet(String name, int times) { name * times }\ngre", line: 1, ch: 3,
			want: []string{"greet(String name, int times) - Object"},
		},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := complete(t, e, tt.text, tt.line, tt.ch)
			assertDisplayed(t, out, tt.want, tt.absent)
		})
	}
}

func TestCompleteFields(t *testing.T) {
	e := newTestEngine(t)
	out := complete(t, e, "String s = 'abc'\nprintln(s.CASE", 1, 14)
	got := find(out, "Comparator<String> CASE_INSENSITIVE_ORDER")
	require.NotNil(t, got, "candidates: %v", displayed(out))
	assert.Equal(t, Candidate{
		Kind:      KindField,
		Entered:   [2]int{19, 4},
		Displayed: "Comparator<String> CASE_INSENSITIVE_ORDER",
		Value:     "CASE_INSENSITIVE_ORDER",
	}, *got)
}

func TestCompleteDeduplicates(t *testing.T) {
	e := newTestEngine(t)
	text := "import static java.lang.Math.max\nimport static java.lang.Math.*\nma"
	out := complete(t, e, text, 2, 2)
	assert.Equal(t, []string{"max(int a, int b) - int", "max(double a, double b) - double"}, displayed(out))
	assert.Equal(t, "max(a, b)", out[0].Value)
}

func TestCompleteImports(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		ch     int
		want   []string
		absent []string
	}{
		{
			name: "package members",
			text: "import java.util.concurrent.", ch: 28,
			want: []string{"atomic - package", "locks - package", "TimeUnit", "ConcurrentHashMap"},
		},
		{
			name: "partial segment lists the whole package",
			text: "import java.util.concurrent.Ti", ch: 30,
			want: []string{"TimeUnit", "atomic - package", "ConcurrentHashMap"},
		},
		{
			name: "static members",
			text: "import static java.lang.Math.ma", ch: 31,
			want:   []string{"max"},
			absent: []string{"abs"},
		},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := complete(t, e, tt.text, 0, tt.ch)
			assertDisplayed(t, out, tt.want, tt.absent)
		})
	}
}

func TestCompleteConstructorInArgument(t *testing.T) {
	text := "def greet(String name) { name }\ngreet(new Object())"
	u, err := analyzeBuiltin("Test.groovy", text)
	require.NoError(t, err)
	target, err := Resolve(u, 1, 10, StickyBefore)
	require.NoError(t, err)
	ctx, err := Classify(u, target, Hints{Constructor: hint("Str")})
	require.NoError(t, err)

	out := Candidates(u, target, ctx, nil)
	require.NotEmpty(t, out)
	for _, c := range out {
		assert.Regexp(t, `^java\.lang\.String\(`, c.Displayed)
		assert.Equal(t, [2]int{10, 3}, c.Entered)
	}
}

func TestCompleteConcurrent(t *testing.T) {
	e := newTestEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Complete(context.Background(), Request{Name: "Test.groovy", Text: "String s = new String", Ch: 21})
			assert.NoError(t, err)
			assert.NotEmpty(t, out)
		}()
	}
	wg.Wait()
}

func TestCompleteIgnoresUnrelatedStatements(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line, ch int
		want     string
		absent   string
	}{
		{
			name: "alone on the line",
			text: "byte[] b = 'a'.bytes\nString s = new String(", line: 1, ch: 22,
			want: "java.lang.String(byte[] b)",
		},
		{
			name: "after another statement",
			text: "byte[] b = 'a'.bytes\nprintln(b); String s = new String(", line: 1, ch: 34,
			want: "java.lang.String(byte[] b)", absent: "java.lang.String(byte[] bytes)",
		},
		{
			name: "assignment after another statement",
			text: "byte[] b = 'a'.bytes\nString s\nprintln(b); s = new String(", line: 2, ch: 27,
			want: "java.lang.String(byte[] b)", absent: "java.lang.String(byte[] bytes)",
		},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := complete(t, e, tt.text, tt.line, tt.ch)
			require.NotNil(t, find(out, tt.want), "candidates: %v", displayed(out))
			if tt.absent != "" {
				assert.Nil(t, find(out, tt.absent))
			}
		})
	}
}

func TestCompleteWithPatterns(t *testing.T) {
	text := "String s = new String"

	rec := &fakeRecorder{}
	e := newTestEngine(t, WithRecorder(rec), WithPatterns(openParen{}))
	assert.Empty(t, complete(t, e, text, 0, 21))
	assert.Equal(t, []string{"unrecoverable"}, rec.failures)

	e = newTestEngine(t, WithPatterns(constructorCall{}))
	assert.NotNil(t, find(complete(t, e, text, 0, 21), "java.lang.String()"))
}

func TestCompletePackageCacheSize(t *testing.T) {
	_, err := NewEngine(catalog.Builtin(), WithPackageCacheSize(0))
	assert.Error(t, err)

	// every constructor request lists the star-imported packages, more
	// than one entry holds
	e := newTestEngine(t, WithPackageCacheSize(1))
	for _, text := range []string{"Object o = new Array", "Object o = new HashM", "Object o = new Array"} {
		assert.NotEmpty(t, complete(t, e, text, 0, len(text)))
	}
}
