package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/gce/groovy/parser"
)

var flagOrder = []struct {
	flag parser.Flags
	name string
}{
	{parser.FlagImplicitThis, "implicit-this"},
	{parser.FlagSafe, "safe"},
	{parser.FlagSpread, "spread"},
	{parser.FlagStatic, "static"},
	{parser.FlagStar, "star"},
	{parser.FlagCommand, "command"},
	{parser.FlagVarargs, "varargs"},
}

func flagNames(f parser.Flags) []string {
	var names []string
	for _, fl := range flagOrder {
		if f.Has(fl.flag) {
			names = append(names, fl.name)
		}
	}
	return names
}

// TreeEncoder writes one node per line, indented by depth, with the span
// and any flags.
type TreeEncoder struct {
	w io.Writer
}

func NewTreeEncoder(w io.Writer) *TreeEncoder {
	return &TreeEncoder{w: w}
}

func (e *TreeEncoder) Encode(node *parser.Node) error {
	text, err := e.MarshalText(node)
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *TreeEncoder) MarshalText(node *parser.Node) ([]byte, error) {
	var sb strings.Builder
	writeTree(&sb, node, 0)
	return []byte(sb.String()), nil
}

func writeTree(sb *strings.Builder, n *parser.Node, depth int) {
	if n == nil {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(sb, "%s [%s-%s]", n.Kind, n.Span.Start, n.Span.End)
	if n.Token != nil {
		fmt.Fprintf(sb, " %q", n.Token.Literal)
	}
	if names := flagNames(n.Flags); len(names) > 0 {
		fmt.Fprintf(sb, " {%s}", strings.Join(names, ","))
	}
	sb.WriteString("\n")
	for _, child := range n.Children {
		writeTree(sb, child, depth+1)
	}
}
