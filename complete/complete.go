// Package complete computes completion candidates for a cursor position in a
// Groovy script. A request flows through source recovery, position
// resolution, context classification and candidate resolution; every
// internal failure degrades to an empty candidate list.
package complete

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.complete")

var (
	// ErrUnrecoverable means the script has more than one error, or one
	// error that no recovery pattern repairs.
	ErrUnrecoverable = errors.New("source is not recoverable")
	// ErrNoTarget means no completion target contains the cursor.
	ErrNoTarget = errors.New("no target at cursor")
	// ErrNoContext means the target nodes do not form a completion context.
	ErrNoContext = errors.New("no completion context")
)

// Sticky picks a side when the cursor sits exactly where a node ends.
type Sticky int

const (
	// StickyBefore binds the cursor to the node that ends at it.
	StickyBefore Sticky = iota
	// StickyAfter binds the cursor to what follows, skipping nodes that end
	// at it.
	StickyAfter
)

// ParseSticky accepts "before", "after" and the empty string.
func ParseSticky(s string) (Sticky, error) {
	switch strings.ToLower(s) {
	case "", "before":
		return StickyBefore, nil
	case "after":
		return StickyAfter, nil
	}
	return StickyBefore, errors.Errorf("invalid sticky %q: want before or after", s)
}

func (s Sticky) String() string {
	if s == StickyAfter {
		return "after"
	}
	return "before"
}

// Request asks for completions at a cursor. Line is 0-based; Ch is the
// number of characters before the cursor on that line.
type Request struct {
	Name   string
	Text   string
	Line   int
	Ch     int
	Sticky Sticky
}

// Candidate kinds.
const (
	KindConstructor   = "constructor"
	KindMethod        = "method"
	KindField         = "field"
	KindImportPackage = "import-package"
	KindImportClass   = "import-class"
	KindImportMethod  = "import-method"
)

// Candidate is one completion. Entered is the {offset, length} of the
// already typed hint inside Displayed that Value replaces.
type Candidate struct {
	Kind      string `json:"kind"`
	Entered   [2]int `json:"entered"`
	Displayed string `json:"displayed"`
	Value     string `json:"value"`
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}
