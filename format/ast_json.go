package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/gce/groovy/parser"
)

// SyntaxDocument is a parsed script as JSON: the tree plus the syntax errors
// the parser recovered from. Spans are [sline, scolumn, eline, ecolumn].
type SyntaxDocument struct {
	Status string       `json:"status"`
	Tree   *SyntaxNode  `json:"tree"`
	Errors []ErrorEntry `json:"errors"`
}

type SyntaxNode struct {
	Kind string `json:"kind"`
	Span [4]int `json:"span"`
	// Name is the member name of calls and property accesses.
	Name     string        `json:"name,omitempty"`
	Token    string        `json:"token,omitempty"`
	Flags    []string      `json:"flags,omitempty"`
	Children []*SyntaxNode `json:"children,omitempty"`
}

// Syntax converts a parse result into a SyntaxDocument.
func Syntax(node *parser.Node, errs []parser.SyntaxError) SyntaxDocument {
	doc := SyntaxDocument{Status: statusOK, Tree: syntaxNode(node), Errors: []ErrorEntry{}}
	for _, e := range errs {
		doc.Errors = append(doc.Errors, errorEntry(e.Span, e.Message))
	}
	return doc
}

func syntaxNode(n *parser.Node) *SyntaxNode {
	if n == nil {
		return nil
	}
	sn := &SyntaxNode{
		Kind:  n.Kind.String(),
		Span:  [4]int{n.Span.Start.Line, n.Span.Start.Column, n.Span.End.Line, n.Span.End.Column},
		Token: n.TokenLiteral(),
		Flags: flagNames(n.Flags),
	}
	if n.Kind == parser.KindCall || n.Kind == parser.KindProperty {
		sn.Name = n.Name()
	}
	for _, child := range n.Children {
		sn.Children = append(sn.Children, syntaxNode(child))
	}
	return sn
}

// ASTJSONEncoder writes a SyntaxDocument.
type ASTJSONEncoder struct {
	w io.Writer
}

func NewASTJSONEncoder(w io.Writer) *ASTJSONEncoder {
	return &ASTJSONEncoder{w: w}
}

func (e *ASTJSONEncoder) Encode(node *parser.Node, errs []parser.SyntaxError) error {
	text, err := e.MarshalText(node, errs)
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *ASTJSONEncoder) MarshalText(node *parser.Node, errs []parser.SyntaxError) ([]byte, error) {
	return json.MarshalIndent(Syntax(node, errs), "", "  ")
}
