package parser

import "strings"

type NodeKind int

const (
	KindError NodeKind = iota

	// Script level
	KindScript
	KindPackage
	KindImport
	KindClassDecl
	KindExtends
	KindImplements
	KindEnumConstant
	KindMethodDecl
	KindConstructorDecl
	KindFieldDecl

	// Types and modifiers
	KindModifiers
	KindType
	KindArrayType
	KindTypeArguments
	KindWildcard
	KindQualifiedName
	KindParameters
	KindParameter

	// Statements
	KindBlock
	KindEmpty
	KindExprStmt
	KindVarDecl
	KindDeclarator
	KindIf
	KindWhile
	KindFor
	KindForIn
	KindReturn
	KindThrow
	KindBreak
	KindContinue
	KindTry
	KindCatch
	KindFinally
	KindAssert

	// Expressions
	KindAssign
	KindTernary
	KindElvis
	KindBinary
	KindUnary
	KindPostfix
	KindCast
	KindCall
	KindProperty
	KindIndex
	KindNew
	KindNewArray
	KindClosure
	KindList
	KindMap
	KindMapEntry
	KindLiteral
	KindGString
	KindIdentifier
	KindThis
	KindSuper
	KindParen
	KindArguments
)

var nodeKindNames = map[NodeKind]string{
	KindError:           "Error",
	KindScript:          "Script",
	KindPackage:         "Package",
	KindImport:          "Import",
	KindClassDecl:       "ClassDecl",
	KindExtends:         "Extends",
	KindImplements:      "Implements",
	KindEnumConstant:    "EnumConstant",
	KindMethodDecl:      "MethodDecl",
	KindConstructorDecl: "ConstructorDecl",
	KindFieldDecl:       "FieldDecl",
	KindModifiers:       "Modifiers",
	KindType:            "Type",
	KindArrayType:       "ArrayType",
	KindTypeArguments:   "TypeArguments",
	KindWildcard:        "Wildcard",
	KindQualifiedName:   "QualifiedName",
	KindParameters:      "Parameters",
	KindParameter:       "Parameter",
	KindBlock:           "Block",
	KindEmpty:           "Empty",
	KindExprStmt:        "ExprStmt",
	KindVarDecl:         "VarDecl",
	KindDeclarator:      "Declarator",
	KindIf:              "If",
	KindWhile:           "While",
	KindFor:             "For",
	KindForIn:           "ForIn",
	KindReturn:          "Return",
	KindThrow:           "Throw",
	KindBreak:           "Break",
	KindContinue:        "Continue",
	KindTry:             "Try",
	KindCatch:           "Catch",
	KindFinally:         "Finally",
	KindAssert:          "Assert",
	KindAssign:          "Assign",
	KindTernary:         "Ternary",
	KindElvis:           "Elvis",
	KindBinary:          "Binary",
	KindUnary:           "Unary",
	KindPostfix:         "Postfix",
	KindCast:            "Cast",
	KindCall:            "Call",
	KindProperty:        "Property",
	KindIndex:           "Index",
	KindNew:             "New",
	KindNewArray:        "NewArray",
	KindClosure:         "Closure",
	KindList:            "List",
	KindMap:             "Map",
	KindMapEntry:        "MapEntry",
	KindLiteral:         "Literal",
	KindGString:         "GString",
	KindIdentifier:      "Identifier",
	KindThis:            "This",
	KindSuper:           "Super",
	KindParen:           "Paren",
	KindArguments:       "Arguments",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Flags refine a node kind without multiplying kinds.
type Flags uint16

const (
	// FlagImplicitThis marks a This node standing in for a missing call
	// receiver, as in println(x).
	FlagImplicitThis Flags = 1 << iota
	FlagSafe
	FlagSpread
	FlagStatic
	FlagStar
	// FlagCommand marks a call written without parentheses.
	FlagCommand
	FlagVarargs
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Node is a generic syntax tree node. Children layouts per kind:
//
//	Import      QualifiedName [Identifier alias]
//	Call        receiver Identifier Arguments
//	Property    receiver Identifier
//	New         Type Arguments
//	VarDecl     Modifiers Type Declarator...
//	Declarator  Identifier [initializer]
//	MethodDecl  Modifiers Type Identifier Parameters Block
//	Closure     Parameters Block
type Node struct {
	Kind     NodeKind
	Span     Span
	Children []*Node
	Token    *Token
	Flags    Flags
}

func (n *Node) AddChild(child *Node) {
	if child != nil {
		n.Children = append(n.Children, child)
	}
}

func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

func (n *Node) FirstChildOfKind(kind NodeKind) *Node {
	for _, child := range n.Children {
		if child.Kind == kind {
			return child
		}
	}
	return nil
}

func (n *Node) ChildrenOfKind(kind NodeKind) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Kind == kind {
			result = append(result, child)
		}
	}
	return result
}

func (n *Node) TokenLiteral() string {
	if n != nil && n.Token != nil {
		return n.Token.Literal
	}
	return ""
}

// Receiver, Name and Args read the fixed Call and Property layouts.
func (n *Node) Receiver() *Node {
	return n.Child(0)
}

func (n *Node) Name() string {
	return n.Child(1).TokenLiteral()
}

func (n *Node) Args() []*Node {
	if n.Kind == KindNew {
		return n.FirstChildOfKind(KindArguments).ChildrenOrNil()
	}
	return n.Child(2).ChildrenOrNil()
}

func (n *Node) ChildrenOrNil() []*Node {
	if n == nil {
		return nil
	}
	return n.Children
}

// QualifiedName joins the identifiers of a QualifiedName or Type node.
func (n *Node) QualifiedName() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindIdentifier:
		return n.TokenLiteral()
	case KindType:
		if q := n.FirstChildOfKind(KindQualifiedName); q != nil {
			return q.QualifiedName()
		}
		return n.TokenLiteral()
	case KindArrayType:
		return n.Child(0).QualifiedName()
	}
	parts := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		if child.Kind == KindIdentifier {
			parts = append(parts, child.TokenLiteral())
		}
	}
	return strings.Join(parts, ".")
}

// Walk calls fn for n and its descendants in source order. Returning false
// skips the children of the current node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

func (n *Node) String() string {
	return n.stringIndent(0, false)
}

func (n *Node) StringWithPositions() string {
	return n.stringIndent(0, true)
}

func (n *Node) stringIndent(indent int, showPositions bool) string {
	var b strings.Builder
	n.writeIndent(&b, indent, showPositions)
	return b.String()
}

func (n *Node) writeIndent(b *strings.Builder, indent int, showPositions bool) {
	b.WriteString(strings.Repeat("  ", indent))
	b.WriteString(n.Kind.String())
	if showPositions {
		b.WriteString(" [" + n.Span.Start.String() + "-" + n.Span.End.String() + "]")
	}
	if n.Token != nil {
		b.WriteString(" " + n.Token.Literal)
	}
	b.WriteString("\n")
	for _, child := range n.Children {
		child.writeIndent(b, indent+1, showPositions)
	}
}
