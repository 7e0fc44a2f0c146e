package complete

import (
	"regexp"
	"strings"

	"github.com/dhamidi/gce/groovy"
	"github.com/pkg/errors"
)

// AnalyzeFunc parses and binds a script.
type AnalyzeFunc func(name, text string) (*groovy.Unit, error)

// Hint is a fragment the user typed at the cursor that recovery had to
// replace before the script would parse. Valid distinguishes an empty
// fragment from none.
type Hint struct {
	Text  string
	Valid bool
}

func hint(text string) Hint {
	return Hint{Text: text, Valid: true}
}

// Hints are the fragments one recovery recorded.
type Hints struct {
	Constructor Hint
	Property    Hint
	Import      Hint
}

// Recovered is a script that analyzed without errors, possibly after a
// patch to the cursor line.
type Recovered struct {
	Unit *groovy.Unit
	Text string
	// Pattern names the patch that was applied, empty when the script
	// analyzed cleanly as written.
	Pattern string
	Hints   Hints
}

// Pattern is a line-local repair. Match sees the cursor line and the
// cursor column in runes; Apply returns the replacement line and records
// any fragment it removed.
type Pattern interface {
	Name() string
	Match(line []rune, col int) bool
	Apply(line []rune, col int, hints *Hints) string
}

// DefaultPatterns are tried in order; the first match is the only attempt.
var DefaultPatterns = []Pattern{openParen{}, importPath{}, trailingDot{}, constructorCall{}}

// Repair analyzes the request's script and, when it has exactly one error,
// patches the cursor line with the first matching pattern and analyzes it
// again.
func Repair(req Request, analyze AnalyzeFunc, patterns ...Pattern) (*Recovered, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	u, err := analyze(req.Name, req.Text)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}
	switch n := len(u.Errors); {
	case n == 0:
		return &Recovered{Unit: u, Text: req.Text}, nil
	case n > 1:
		return nil, errors.Wrapf(ErrUnrecoverable, "%d errors", n)
	}

	lines := splitLines(req.Text)
	if req.Line < 0 || req.Line >= len(lines) {
		return nil, errors.Wrapf(ErrUnrecoverable, "line %d outside script", req.Line)
	}
	line := []rune(lines[req.Line])
	col := req.Ch
	if col > len(line) {
		col = len(line)
	}
	if col < 0 {
		col = 0
	}

	for _, p := range patterns {
		if !p.Match(line, col) {
			continue
		}
		var hints Hints
		lines[req.Line] = p.Apply(line, col, &hints)
		text := strings.Join(lines, "\n")
		log.Debugf("recovery %s: %q -> %q", p.Name(), string(line), lines[req.Line])

		patched, err := analyze(req.Name, text)
		if err != nil {
			return nil, errors.Wrap(err, "analyze")
		}
		if n := len(patched.Errors); n > 0 {
			return nil, errors.Wrapf(ErrUnrecoverable, "%s: %d errors after patch: %s", p.Name(), n, patched.Errors[0])
		}
		return &Recovered{Unit: patched, Text: text, Pattern: p.Name(), Hints: hints}, nil
	}
	return nil, errors.Wrapf(ErrUnrecoverable, "no pattern matches: %s", u.Errors[0])
}

const ident = `[\p{L}_$][\p{L}\p{N}_$]*`

var (
	newIdentAtEnd  = regexp.MustCompile(`\bnew\s+` + ident + `(?:\.` + ident + `)*\s*$`)
	importPrefix   = regexp.MustCompile(`^(\s*import\s+(?:static\s+)?)((?:` + ident + `\.)+)(` + ident + `)?\s*$`)
	dotPartial     = regexp.MustCompile(`[.]\s*(` + ident + `)?$`)
	newWithPartial = regexp.MustCompile(`\bnew(\s+)((?:` + ident + `\.)*` + ident + `)?[\s(]*$`)
)

// parenDepth counts unclosed parentheses outside string literals. under
// reports a ')' that closed nothing.
func parenDepth(s []rune) (depth int, under bool) {
	var quote rune
	for i := 0; i < len(s); i++ {
		r := s[i]
		switch {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth == 0 {
				under = true
			} else {
				depth--
			}
		}
	}
	return depth, under
}

// openParen closes an argument list the user is typing in.
type openParen struct{}

func (openParen) Name() string { return "open-paren" }

func (openParen) Match(line []rune, col int) bool {
	prefix := line[:col]
	if newIdentAtEnd.MatchString(string(prefix)) {
		return false
	}
	depth, _ := parenDepth(prefix)
	return depth > 0
}

func (openParen) Apply(line []rune, col int, hints *Hints) string {
	return string(line) + ")"
}

// importPath turns an import with an unfinished last segment into a star
// import of its package.
type importPath struct{}

func (importPath) Name() string { return "import-path" }

func (importPath) Match(line []rune, col int) bool {
	return importPrefix.MatchString(string(line[:col])) && strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(line[col:])), ";")) == ""
}

func (importPath) Apply(line []rune, col int, hints *Hints) string {
	m := importPrefix.FindStringSubmatch(string(line[:col]))
	hints.Import = hint(m[3])
	return m[1] + m[2] + "*"
}

// trailingDot replaces the member name typed after a dot with a placeholder.
type trailingDot struct{}

func (trailingDot) Name() string { return "trailing-dot" }

func (trailingDot) Match(line []rune, col int) bool {
	prefix := string(line[:col])
	return dotPartial.MatchString(prefix) && !newWithPartial.MatchString(prefix)
}

func (trailingDot) Apply(line []rune, col int, hints *Hints) string {
	prefix := string(line[:col])
	loc := dotPartial.FindStringSubmatchIndex(prefix)
	partial := ""
	cut := len(prefix)
	if loc[2] >= 0 {
		partial = prefix[loc[2]:loc[3]]
		cut = loc[2]
	}
	hints.Property = hint(partial)
	return prefix[:cut] + placeholder + string(line[col:])
}

// placeholder stands in for a member name during recovery.
const placeholder = "_"

// placeholderType stands in for a constructor type during recovery.
const placeholderType = "java.lang.Object"

// constructorCall replaces a partial "new Type" with a complete constructor
// call and balances the line's parentheses.
type constructorCall struct{}

func (constructorCall) Name() string { return "constructor" }

func (constructorCall) Match(line []rune, col int) bool {
	return newWithPartial.MatchString(string(line[:col]))
}

func (constructorCall) Apply(line []rune, col int, hints *Hints) string {
	prefix := string(line[:col])
	loc := newWithPartial.FindStringSubmatchIndex(prefix)
	partial := ""
	if loc[4] >= 0 {
		partial = prefix[loc[4]:loc[5]]
	}
	hints.Constructor = hint(partial[strings.LastIndexByte(partial, '.')+1:])

	patched := []rune(prefix[:loc[3]] + "Object()" + string(line[col:]))
	depth, under := parenDepth(patched)
	switch {
	case under:
		indent := 0
		for indent < len(patched) && (patched[indent] == ' ' || patched[indent] == '\t') {
			indent++
		}
		return string(patched[:indent]) + "(" + string(patched[indent:])
	case depth > 0:
		return string(patched) + ")"
	}
	return string(patched)
}
