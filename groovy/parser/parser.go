package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError is one structural problem in the source. The parser reports at
// most one error per statement and resynchronizes at the next statement
// boundary, so the number of errors tracks the number of broken statements.
type SyntaxError struct {
	Span    Span
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span.Start, e.Message)
}

type Option func(*Parser)

func WithFile(path string) Option {
	return func(p *Parser) {
		p.file = path
	}
}

type Parser struct {
	file   string
	tokens []Token
	pos    int
	errors []SyntaxError

	// panicking suppresses cascading errors until the statement loop
	// resynchronizes.
	panicking bool
	// nest counts open parens and brackets; inside them newlines do not
	// end an expression.
	nest    int
	errNest int
}

// ParseScript parses a Groovy script. It always returns a tree, possibly
// with Error nodes, along with every syntax error found.
func ParseScript(input []byte, opts ...Option) (*Node, []SyntaxError) {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	p.tokenize(NewLexer(input, p.file))
	root := p.parseScript()
	return root, p.errors
}

func (p *Parser) tokenize(lexer *Lexer) {
	newline := false
	for {
		tok := lexer.NextToken()
		switch tok.Kind {
		case TokenWhitespace, TokenComment, TokenLineComment:
			if strings.ContainsRune(tok.Literal, '\n') {
				newline = true
			}
			continue
		}
		tok.NewlineBefore = newline
		newline = false
		p.tokens = append(p.tokens, tok)
		if tok.Kind == TokenEOF {
			break
		}
	}
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekN(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kinds ...TokenKind) bool {
	for _, kind := range kinds {
		if p.check(kind) {
			return true
		}
	}
	return false
}

// sameLine reports whether the next token may continue the current
// expression.
func (p *Parser) sameLine() bool {
	return p.nest > 0 || !p.peek().NewlineBefore
}

func (p *Parser) expect(kind TokenKind) *Token {
	tok := p.peek()
	if tok.Kind == kind {
		p.advance()
		return &tok
	}
	p.errorf(tok, "expected '%s', found %s", kind, describe(tok))
	return nil
}

func (p *Parser) expectIdentifier() *Token {
	if p.check(TokenIdent) {
		tok := p.advance()
		return &tok
	}
	p.errorf(p.peek(), "expected identifier, found %s", describe(p.peek()))
	return nil
}

// mustProgress returns a function that checks if the parser has advanced.
// Call it at the start of a loop iteration, then call the returned function
// at the end to break if no progress was made.
func (p *Parser) mustProgress() func() bool {
	saved := p.pos
	return func() bool {
		if p.pos == saved {
			if !p.check(TokenEOF) {
				p.advance()
			}
			return false
		}
		return true
	}
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.errNest = p.nest
	p.errors = append(p.errors, SyntaxError{Span: tok.Span, Message: fmt.Sprintf(format, args...)})
}

func describe(tok Token) string {
	switch tok.Kind {
	case TokenEOF:
		return "end of input"
	case TokenError:
		if strings.HasPrefix(tok.Literal, "'") || strings.HasPrefix(tok.Literal, "\"") {
			return "unterminated string literal"
		}
	}
	return fmt.Sprintf("'%s'", tok.Literal)
}

func (p *Parser) startNode(kind NodeKind) *Node {
	return &Node{
		Kind: kind,
		Span: Span{Start: p.peek().Span.Start},
	}
}

func (p *Parser) startNodeAt(kind NodeKind, start Position) *Node {
	return &Node{Kind: kind, Span: Span{Start: start}}
}

func (p *Parser) finishNode(n *Node) *Node {
	if p.pos > 0 && p.pos <= len(p.tokens) {
		n.Span.End = p.tokens[p.pos-1].Span.End
	}
	if n.Span.End.Offset < n.Span.Start.Offset {
		n.Span.End = n.Span.Start
	}
	return n
}

func (p *Parser) tokenNode(kind NodeKind) *Node {
	tok := p.advance()
	return &Node{Kind: kind, Token: &tok, Span: tok.Span}
}

func (p *Parser) errorNode(msg string) *Node {
	tok := p.peek()
	p.errorf(tok, "%s, found %s", msg, describe(tok))
	return &Node{Kind: KindError, Span: tok.Span}
}

// syncStatement skips to the start of the next statement: past a ';', or up
// to a line break outside the brackets that were open when the error was
// reported, or up to the '}' closing the enclosing block.
func (p *Parser) syncStatement() {
	depth := p.errNest
	braces := 0
	for !p.check(TokenEOF) {
		tok := p.peek()
		if braces == 0 {
			if tok.Kind == TokenRBrace {
				return
			}
			if depth <= 0 && tok.Kind == TokenSemicolon {
				p.advance()
				return
			}
			if depth <= 0 && tok.NewlineBefore {
				return
			}
		}
		switch tok.Kind {
		case TokenLBrace:
			braces++
		case TokenRBrace:
			braces--
		case TokenLParen, TokenLBracket:
			depth++
		case TokenRParen, TokenRBracket:
			depth--
		}
		p.advance()
	}
}

func (p *Parser) recover() {
	if p.panicking {
		p.syncStatement()
		p.panicking = false
		p.errNest = 0
	}
}

func (p *Parser) parseScript() *Node {
	node := p.startNode(KindScript)
	if p.check(TokenPackage) {
		node.AddChild(p.parsePackage())
		p.endStatement()
		p.recover()
	}
	for !p.check(TokenEOF) {
		progress := p.mustProgress()
		switch {
		case p.check(TokenSemicolon):
			p.advance()
			continue
		case p.check(TokenRBrace):
			p.errorf(p.peek(), "unexpected '}'")
			p.advance()
		case p.check(TokenImport):
			node.AddChild(p.parseImport())
		default:
			node.AddChild(p.parseStatement(true))
		}
		if !p.panicking {
			p.endStatement()
		}
		p.recover()
		progress()
	}
	node.Span.End = p.peek().Span.End
	return node
}

// endStatement consumes a statement terminator: ';', a line break, or the
// closing brace or end of input that follows.
func (p *Parser) endStatement() {
	tok := p.peek()
	switch {
	case tok.Kind == TokenSemicolon:
		p.advance()
	case tok.Kind == TokenEOF, tok.Kind == TokenRBrace, tok.NewlineBefore:
	default:
		p.errorf(tok, "unexpected %s", describe(tok))
	}
}

func (p *Parser) parsePackage() *Node {
	node := p.startNode(KindPackage)
	p.advance()
	node.AddChild(p.parseQualifiedName())
	return p.finishNode(node)
}

func (p *Parser) parseImport() *Node {
	node := p.startNode(KindImport)
	p.advance()
	if p.check(TokenStatic) {
		p.advance()
		node.Flags |= FlagStatic
	}

	name := p.startNode(KindQualifiedName)
	if tok := p.expectIdentifier(); tok != nil {
		name.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
	}
	for !p.panicking && p.check(TokenDot) && p.sameLine() {
		p.advance()
		if p.check(TokenStar) {
			p.advance()
			node.Flags |= FlagStar
			break
		}
		if tok := p.expectIdentifier(); tok != nil {
			name.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
		}
	}
	node.AddChild(p.finishNode(name))

	if !p.panicking && p.check(TokenAs) && p.sameLine() {
		p.advance()
		if tok := p.expectIdentifier(); tok != nil {
			node.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
		}
	}
	return p.finishNode(node)
}

func (p *Parser) parseQualifiedName() *Node {
	node := p.startNode(KindQualifiedName)
	if tok := p.expectIdentifier(); tok != nil {
		node.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
	}
	for !p.panicking && p.check(TokenDot) && p.peekN(1).Kind == TokenIdent {
		p.advance()
		tok := p.advance()
		node.AddChild(&Node{Kind: KindIdentifier, Token: &tok, Span: tok.Span})
	}
	return p.finishNode(node)
}

func (p *Parser) parseStatement(topLevel bool) *Node {
	switch p.peek().Kind {
	case TokenLBrace:
		return p.parseBlock()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenReturn:
		return p.parseReturn()
	case TokenThrow:
		node := p.startNode(KindThrow)
		p.advance()
		node.AddChild(p.parseExpression())
		return p.finishNode(node)
	case TokenBreak, TokenContinue:
		kind := KindBreak
		if p.check(TokenContinue) {
			kind = KindContinue
		}
		node := p.startNode(kind)
		p.advance()
		if p.check(TokenIdent) && p.sameLine() {
			node.AddChild(p.tokenNode(KindIdentifier))
		}
		return p.finishNode(node)
	case TokenTry:
		return p.parseTry()
	case TokenAssert:
		return p.parseAssert()
	case TokenImport:
		return p.errorNode("imports must come before statements")
	}

	if p.isClassDecl() {
		return p.parseClassDecl()
	}
	if topLevel && p.isMethodDecl() {
		return p.parseMethodDecl(p.parseModifiers(), "")
	}
	if p.isDeclaration() {
		return p.parseVarDecl(KindVarDecl)
	}
	return p.parseExprStmt()
}

func (p *Parser) parseBlock() *Node {
	node := p.startNode(KindBlock)
	if p.expect(TokenLBrace) == nil {
		return p.finishNode(node)
	}
	saved := p.nest
	p.nest = 0
	p.parseStatements(node)
	p.nest = saved
	p.expect(TokenRBrace)
	return p.finishNode(node)
}

// parseStatements parses statements up to the closing '}' of the current
// block, which it leaves for the caller.
func (p *Parser) parseStatements(parent *Node) {
	for !p.check(TokenEOF) && !p.check(TokenRBrace) {
		progress := p.mustProgress()
		if p.check(TokenSemicolon) {
			p.advance()
			continue
		}
		parent.AddChild(p.parseStatement(false))
		if !p.panicking {
			p.endStatement()
		}
		p.recover()
		progress()
	}
}

// parseBody parses a loop or branch body: a block or a single statement.
func (p *Parser) parseBody() *Node {
	if p.check(TokenLBrace) {
		return p.parseBlock()
	}
	if p.check(TokenSemicolon) {
		node := p.startNode(KindEmpty)
		p.advance()
		return p.finishNode(node)
	}
	return p.parseStatement(false)
}

func (p *Parser) parseCondition() *Node {
	p.expect(TokenLParen)
	p.nest++
	cond := p.parseExpression()
	p.nest--
	p.expect(TokenRParen)
	return cond
}

func (p *Parser) parseIf() *Node {
	node := p.startNode(KindIf)
	p.advance()
	node.AddChild(p.parseCondition())
	node.AddChild(p.parseBody())
	if p.check(TokenSemicolon) && p.peekN(1).Kind == TokenElse {
		p.advance()
	}
	if !p.panicking && p.check(TokenElse) {
		p.advance()
		node.AddChild(p.parseBody())
	}
	return p.finishNode(node)
}

func (p *Parser) parseWhile() *Node {
	node := p.startNode(KindWhile)
	p.advance()
	node.AddChild(p.parseCondition())
	node.AddChild(p.parseBody())
	return p.finishNode(node)
}

func (p *Parser) parseFor() *Node {
	start := p.peek().Span.Start
	p.advance()
	p.expect(TokenLParen)
	p.nest++

	if p.isForIn() {
		node := p.startNodeAt(KindForIn, start)
		param := p.startNode(KindParameter)
		if !(p.check(TokenIdent) && (p.peekN(1).Kind == TokenIn || p.peekN(1).Kind == TokenColon)) {
			if p.check(TokenDef) || p.check(TokenFinal) {
				p.advance()
			} else {
				param.AddChild(p.parseType())
			}
		}
		if tok := p.expectIdentifier(); tok != nil {
			param.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
		}
		node.AddChild(p.finishNode(param))
		if p.check(TokenColon) {
			p.advance()
		} else {
			p.expect(TokenIn)
		}
		node.AddChild(p.parseExpression())
		p.nest--
		p.expect(TokenRParen)
		node.AddChild(p.parseBody())
		return p.finishNode(node)
	}

	node := p.startNodeAt(KindFor, start)
	switch {
	case p.check(TokenSemicolon):
		node.AddChild(p.emptyNode())
	case p.isDeclaration():
		node.AddChild(p.parseVarDecl(KindVarDecl))
	default:
		node.AddChild(p.parseExpressionList(KindExprStmt))
	}
	p.expect(TokenSemicolon)
	if p.check(TokenSemicolon) {
		node.AddChild(p.emptyNode())
	} else {
		node.AddChild(p.parseExpression())
	}
	p.expect(TokenSemicolon)
	if p.check(TokenRParen) {
		node.AddChild(p.emptyNode())
	} else {
		node.AddChild(p.parseExpressionList(KindExprStmt))
	}
	p.nest--
	p.expect(TokenRParen)
	node.AddChild(p.parseBody())
	return p.finishNode(node)
}

func (p *Parser) emptyNode() *Node {
	pos := p.peek().Span.Start
	return &Node{Kind: KindEmpty, Span: Span{Start: pos, End: pos}}
}

func (p *Parser) parseExpressionList(kind NodeKind) *Node {
	node := p.startNode(kind)
	node.AddChild(p.parseExpression())
	for !p.panicking && p.check(TokenComma) {
		p.advance()
		node.AddChild(p.parseExpression())
	}
	return p.finishNode(node)
}

// isForIn looks for 'in' or ':' after an optional type and a name.
func (p *Parser) isForIn() bool {
	off := 0
	if k := p.peekN(0).Kind; k == TokenDef || k == TokenFinal {
		off++
	} else if end, ok, _ := p.scanType(0); ok && p.peekN(end).Kind == TokenIdent {
		off = end
	}
	if p.peekN(off).Kind != TokenIdent {
		return false
	}
	next := p.peekN(off + 1).Kind
	return next == TokenIn || next == TokenColon
}

func (p *Parser) parseReturn() *Node {
	node := p.startNode(KindReturn)
	p.advance()
	if p.sameLine() && !p.match(TokenSemicolon, TokenRBrace, TokenEOF) {
		node.AddChild(p.parseExpression())
	}
	return p.finishNode(node)
}

func (p *Parser) parseTry() *Node {
	node := p.startNode(KindTry)
	p.advance()
	node.AddChild(p.parseBlock())
	for !p.panicking && p.check(TokenCatch) {
		catch := p.startNode(KindCatch)
		p.advance()
		p.expect(TokenLParen)
		p.nest++
		param := p.startNode(KindParameter)
		if !(p.check(TokenIdent) && p.peekN(1).Kind == TokenRParen) {
			if p.check(TokenDef) || p.check(TokenFinal) {
				p.advance()
			} else {
				param.AddChild(p.parseType())
				for !p.panicking && p.check(TokenBitOr) {
					p.advance()
					param.AddChild(p.parseType())
				}
			}
		}
		if tok := p.expectIdentifier(); tok != nil {
			param.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
		}
		catch.AddChild(p.finishNode(param))
		p.nest--
		p.expect(TokenRParen)
		catch.AddChild(p.parseBlock())
		node.AddChild(p.finishNode(catch))
	}
	if !p.panicking && p.check(TokenFinally) {
		finally := p.startNode(KindFinally)
		p.advance()
		finally.AddChild(p.parseBlock())
		node.AddChild(p.finishNode(finally))
	}
	if len(node.Children) == 1 && !p.panicking {
		p.errorf(p.peek(), "try without catch or finally")
	}
	return p.finishNode(node)
}

func (p *Parser) parseAssert() *Node {
	node := p.startNode(KindAssert)
	p.advance()
	node.AddChild(p.parseExpression())
	if !p.panicking && (p.check(TokenColon) || p.check(TokenComma)) {
		p.advance()
		node.AddChild(p.parseExpression())
	}
	return p.finishNode(node)
}

// parseExprStmt parses an expression statement. An identifier or property
// followed on the same line by an argument is a command call (println x).
// A bare a.b in statement position is kept as a zero-argument command call
// so that completion treats the trailing name as a method being typed.
func (p *Parser) parseExprStmt() *Node {
	node := p.startNode(KindExprStmt)
	expr := p.parseExpression()
	if !p.panicking && (expr.Kind == KindIdentifier || expr.Kind == KindProperty) && p.startsCommandArg() {
		expr = p.parseCommandCall(expr)
	} else if expr.Kind == KindProperty && !p.panicking {
		expr.Kind = KindCall
		expr.Flags |= FlagCommand
		end := expr.Span.End
		expr.AddChild(&Node{Kind: KindArguments, Span: Span{Start: end, End: end}})
	}
	node.AddChild(expr)
	return p.finishNode(node)
}

func (p *Parser) startsCommandArg() bool {
	if !p.sameLine() {
		return false
	}
	switch p.peek().Kind {
	case TokenIdent, TokenIntLiteral, TokenFloatLiteral, TokenStringLiteral,
		TokenGStringLiteral, TokenTrue, TokenFalse, TokenNull,
		TokenNew, TokenThis, TokenSuper:
		return true
	}
	return false
}

func (p *Parser) parseCommandCall(target *Node) *Node {
	node := p.callOn(target)
	node.Flags |= FlagCommand
	args := p.startNode(KindArguments)
	args.AddChild(p.parseArgument())
	for !p.panicking && p.check(TokenComma) {
		p.advance()
		args.AddChild(p.parseArgument())
	}
	node.AddChild(p.finishNode(args))
	return p.finishNode(node)
}

// callOn starts a Call node for target, splitting a property into receiver
// and name and giving a bare name an implicit this receiver.
func (p *Parser) callOn(target *Node) *Node {
	node := p.startNodeAt(KindCall, target.Span.Start)
	switch target.Kind {
	case KindProperty:
		node.Flags |= target.Flags
		node.AddChild(target.Child(0))
		node.AddChild(target.Child(1))
	case KindIdentifier:
		node.AddChild(&Node{Kind: KindThis, Flags: FlagImplicitThis, Span: target.Span})
		node.AddChild(target)
	default:
		node.AddChild(target)
		pos := p.peek().Span.Start
		tok := Token{Kind: TokenIdent, Literal: "call", Span: Span{Start: pos, End: pos}}
		node.AddChild(&Node{Kind: KindIdentifier, Token: &tok, Span: tok.Span})
	}
	return node
}

// Declarations.

// isDeclaration reports whether a variable declaration starts here: a
// modifier or def, a primitive type, or a name that reads as a type
// (capitalized, generic or array) followed by the variable name.
func (p *Parser) isDeclaration() bool {
	off, sawModifier := p.scanModifiers(0)
	tok := p.peekN(off)
	if tok.Kind.IsPrimitive() {
		return true
	}
	if tok.Kind == TokenIdent {
		if end, ok, strong := p.scanType(off); ok && (strong || sawModifier) {
			next := p.peekN(end)
			if next.Kind == TokenIdent && !next.NewlineBefore {
				return true
			}
		}
	}
	return sawModifier && tok.Kind == TokenIdent
}

func (p *Parser) isMethodDecl() bool {
	off, sawModifier := p.scanModifiers(0)
	tok := p.peekN(off)
	switch {
	case tok.Kind == TokenIdent && sawModifier && p.peekN(off+1).Kind == TokenLParen:
		return true
	case tok.Kind.IsPrimitive() || tok.Kind == TokenVoid:
		off++
		for p.peekN(off).Kind == TokenLBracket && p.peekN(off+1).Kind == TokenRBracket {
			off += 2
		}
	case tok.Kind == TokenIdent:
		end, ok, strong := p.scanType(off)
		if !ok || !(strong || sawModifier) {
			return false
		}
		off = end
	default:
		return false
	}
	return p.peekN(off).Kind == TokenIdent && p.peekN(off+1).Kind == TokenLParen
}

func (p *Parser) isClassDecl() bool {
	off, _ := p.scanModifiers(0)
	switch p.peekN(off).Kind {
	case TokenClass, TokenInterface, TokenEnum:
		return true
	case TokenAt:
		return p.peekN(off+1).Kind == TokenInterface
	}
	return false
}

// scanModifiers skips modifiers, def, var and annotations starting at off.
func (p *Parser) scanModifiers(off int) (int, bool) {
	saw := false
	for {
		tok := p.peekN(off)
		switch {
		case tok.Kind.isModifier(), tok.Kind == TokenDef, tok.Kind == TokenVar:
			off++
			saw = true
		case tok.Kind == TokenAt && p.peekN(off+1).Kind == TokenIdent:
			off += 2
			for p.peekN(off).Kind == TokenDot && p.peekN(off+1).Kind == TokenIdent {
				off += 2
			}
			if p.peekN(off).Kind == TokenLParen {
				off = p.skipBalanced(off, TokenLParen, TokenRParen)
			}
			saw = true
		default:
			return off, saw
		}
	}
}

func (p *Parser) skipBalanced(off int, open, close TokenKind) int {
	depth := 0
	for {
		tok := p.peekN(off)
		switch tok.Kind {
		case TokenEOF:
			return off
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return off + 1
			}
		}
		off++
	}
}

// scanType matches a type at token offset off. It returns the offset past
// the type, whether a type was matched, and whether it unambiguously reads
// as a type rather than an expression.
func (p *Parser) scanType(off int) (int, bool, bool) {
	tok := p.peekN(off)
	strong := false
	switch {
	case tok.Kind.IsPrimitive():
		off++
		strong = true
	case tok.Kind == TokenIdent:
		last := tok.Literal
		off++
		for p.peekN(off).Kind == TokenDot && p.peekN(off+1).Kind == TokenIdent {
			last = p.peekN(off + 1).Literal
			off += 2
		}
		r, _ := utf8.DecodeRuneInString(last)
		strong = unicode.IsUpper(r)
		if p.peekN(off).Kind == TokenLT {
			end, ok := p.scanTypeArguments(off)
			if !ok {
				return off, false, false
			}
			off = end
			strong = true
		}
	default:
		return off, false, false
	}
	for p.peekN(off).Kind == TokenLBracket && p.peekN(off+1).Kind == TokenRBracket {
		off += 2
		strong = true
	}
	if p.peekN(off).Kind == TokenEllipsis {
		off++
	}
	return off, true, strong
}

func (p *Parser) scanTypeArguments(off int) (int, bool) {
	depth := 0
	for {
		switch p.peekN(off).Kind {
		case TokenLT:
			depth++
		case TokenGT:
			depth--
		case TokenShr:
			depth -= 2
		case TokenUShr:
			depth -= 3
		case TokenIdent, TokenComma, TokenDot, TokenQuestion, TokenExtends,
			TokenSuper, TokenLBracket, TokenRBracket, TokenBitAnd:
		default:
			if !p.peekN(off).Kind.IsPrimitive() {
				return off, false
			}
		}
		off++
		if depth <= 0 {
			return off, depth == 0
		}
	}
}

func (p *Parser) parseModifiers() *Node {
	node := p.startNode(KindModifiers)
	for {
		switch {
		case p.peek().Kind.isModifier(), p.check(TokenDef), p.check(TokenVar):
			node.AddChild(p.tokenNode(KindIdentifier))
		case p.check(TokenAt) && p.peekN(1).Kind != TokenInterface:
			p.advance()
			p.parseQualifiedName()
			if p.check(TokenLParen) {
				p.pos = p.pos + p.skipBalanced(0, TokenLParen, TokenRParen)
			}
		default:
			return p.finishNode(node)
		}
	}
}

// parseType parses a primitive or class type with optional type arguments
// and array dimensions.
func (p *Parser) parseType() *Node {
	var node *Node
	switch {
	case p.peek().Kind.IsPrimitive(), p.check(TokenVoid):
		node = p.tokenNode(KindType)
	case p.check(TokenIdent):
		node = p.startNode(KindType)
		node.AddChild(p.parseQualifiedName())
		if p.check(TokenLT) {
			node.AddChild(p.parseTypeArguments())
		}
		p.finishNode(node)
	default:
		return p.errorNode("expected type")
	}
	for p.check(TokenLBracket) && p.peekN(1).Kind == TokenRBracket {
		arr := p.startNodeAt(KindArrayType, node.Span.Start)
		p.advance()
		p.advance()
		arr.AddChild(node)
		node = p.finishNode(arr)
	}
	if p.check(TokenEllipsis) {
		arr := p.startNodeAt(KindArrayType, node.Span.Start)
		arr.Flags |= FlagVarargs
		p.advance()
		arr.AddChild(node)
		node = p.finishNode(arr)
	}
	return node
}

func (p *Parser) parseTypeArguments() *Node {
	node := p.startNode(KindTypeArguments)
	p.advance()
	if p.check(TokenGT) {
		p.advance()
		return p.finishNode(node)
	}
	for {
		if p.check(TokenQuestion) {
			wc := p.tokenNode(KindWildcard)
			if p.check(TokenExtends) || p.check(TokenSuper) {
				bound := p.advance()
				wc.Token = &bound
				wc.AddChild(p.parseType())
			}
			node.AddChild(p.finishNode(wc))
		} else {
			node.AddChild(p.parseType())
		}
		if p.panicking || !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	p.expectGT()
	return p.finishNode(node)
}

// expectGT consumes one '>', splitting '>>' and '>>>' closers of nested
// type arguments.
func (p *Parser) expectGT() {
	tok := p.peek()
	var rest TokenKind
	switch tok.Kind {
	case TokenGT:
		p.advance()
		return
	case TokenShr:
		rest = TokenGT
	case TokenUShr:
		rest = TokenShr
	default:
		p.errorf(tok, "expected '>', found %s", describe(tok))
		return
	}
	split := tok
	split.Kind = TokenGT
	split.Literal = ">"
	split.Span.End = split.Span.Start
	split.Span.End.Offset++
	split.Span.End.Column++
	remainder := tok
	remainder.Kind = rest
	remainder.Literal = tok.Literal[1:]
	remainder.Span.Start = split.Span.End
	remainder.NewlineBefore = false
	p.tokens[p.pos] = split
	p.pos++
	p.tokens = append(p.tokens[:p.pos], append([]Token{remainder}, p.tokens[p.pos:]...)...)
}

func (p *Parser) parseVarDecl(kind NodeKind) *Node {
	node := p.startNode(kind)
	mods := p.parseModifiers()
	node.AddChild(mods)
	if !(p.check(TokenIdent) && p.isDeclaratorStart(1)) || p.peek().Kind.IsPrimitive() {
		node.AddChild(p.parseType())
	}
	for {
		node.AddChild(p.parseDeclarator())
		if p.panicking || !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	return p.finishNode(node)
}

// isDeclaratorStart reports whether the token at off can follow a variable
// name, meaning the name before it is not a type.
func (p *Parser) isDeclaratorStart(off int) bool {
	tok := p.peekN(off)
	if tok.NewlineBefore {
		return true
	}
	switch tok.Kind {
	case TokenAssign, TokenSemicolon, TokenComma, TokenEOF, TokenRBrace, TokenRParen, TokenIn, TokenColon:
		return true
	}
	return false
}

func (p *Parser) parseDeclarator() *Node {
	node := p.startNode(KindDeclarator)
	if tok := p.expectIdentifier(); tok != nil {
		node.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
	}
	if !p.panicking && p.check(TokenAssign) {
		p.advance()
		node.AddChild(p.parseExpression())
	}
	return p.finishNode(node)
}

func (p *Parser) parseMethodDecl(mods *Node, className string) *Node {
	node := p.startNodeAt(KindMethodDecl, mods.Span.Start)
	node.AddChild(mods)
	if p.check(TokenIdent) && p.peek().Literal == className && p.peekN(1).Kind == TokenLParen {
		node.Kind = KindConstructorDecl
	} else if !(p.check(TokenIdent) && p.peekN(1).Kind == TokenLParen) {
		node.AddChild(p.parseType())
	}
	if tok := p.expectIdentifier(); tok != nil {
		node.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
	}
	node.AddChild(p.parseParameters())
	if !p.panicking && p.check(TokenThrows) {
		p.advance()
		p.parseType()
		for !p.panicking && p.check(TokenComma) {
			p.advance()
			p.parseType()
		}
	}
	if !p.panicking && p.check(TokenLBrace) {
		node.AddChild(p.parseBlock())
	}
	return p.finishNode(node)
}

func (p *Parser) parseParameters() *Node {
	node := p.startNode(KindParameters)
	if p.expect(TokenLParen) == nil {
		return p.finishNode(node)
	}
	p.nest++
	for !p.panicking && !p.check(TokenRParen) {
		node.AddChild(p.parseParameter())
		if p.panicking || !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	p.nest--
	p.expect(TokenRParen)
	return p.finishNode(node)
}

func (p *Parser) parseParameter() *Node {
	node := p.startNode(KindParameter)
	p.parseModifiers()
	if !(p.check(TokenIdent) && p.isParameterEnd(1)) {
		node.AddChild(p.parseType())
	}
	if tok := p.expectIdentifier(); tok != nil {
		node.AddChild(&Node{Kind: KindIdentifier, Token: tok, Span: tok.Span})
	}
	if !p.panicking && p.check(TokenAssign) {
		p.advance()
		node.AddChild(p.parseExpression())
	}
	return p.finishNode(node)
}

func (p *Parser) isParameterEnd(off int) bool {
	switch p.peekN(off).Kind {
	case TokenComma, TokenRParen, TokenAssign, TokenArrow:
		return true
	}
	return false
}

func (p *Parser) parseClassDecl() *Node {
	mods := p.parseModifiers()
	node := p.startNodeAt(KindClassDecl, mods.Span.Start)
	node.AddChild(mods)
	if p.check(TokenAt) {
		p.advance()
	}
	kw := p.advance()
	node.Token = &kw
	nameTok := p.expectIdentifier()
	if nameTok == nil {
		return p.finishNode(node)
	}
	node.AddChild(&Node{Kind: KindIdentifier, Token: nameTok, Span: nameTok.Span})
	if p.check(TokenLT) {
		end, _ := p.scanTypeArguments(0)
		p.pos += end
	}
	if p.check(TokenExtends) {
		ext := p.startNode(KindExtends)
		p.advance()
		ext.AddChild(p.parseType())
		for !p.panicking && p.check(TokenComma) {
			p.advance()
			ext.AddChild(p.parseType())
		}
		node.AddChild(p.finishNode(ext))
	}
	if !p.panicking && p.check(TokenImplements) {
		impl := p.startNode(KindImplements)
		p.advance()
		impl.AddChild(p.parseType())
		for !p.panicking && p.check(TokenComma) {
			p.advance()
			impl.AddChild(p.parseType())
		}
		node.AddChild(p.finishNode(impl))
	}
	if p.panicking {
		return p.finishNode(node)
	}
	p.parseClassBody(node, nameTok.Literal, kw.Kind == TokenEnum)
	return p.finishNode(node)
}

func (p *Parser) parseClassBody(node *Node, className string, enum bool) {
	if p.expect(TokenLBrace) == nil {
		return
	}
	saved := p.nest
	p.nest = 0
	if enum {
		p.parseEnumConstants(node)
	}
	for !p.check(TokenEOF) && !p.check(TokenRBrace) {
		progress := p.mustProgress()
		if p.check(TokenSemicolon) {
			p.advance()
			continue
		}
		node.AddChild(p.parseMember(className))
		if !p.panicking {
			p.endStatement()
		}
		p.recover()
		progress()
	}
	p.nest = saved
	p.expect(TokenRBrace)
}

func (p *Parser) parseEnumConstants(node *Node) {
	for p.check(TokenIdent) {
		c := p.startNode(KindEnumConstant)
		c.AddChild(p.tokenNode(KindIdentifier))
		if p.check(TokenLParen) {
			c.AddChild(p.parseArguments())
		}
		node.AddChild(p.finishNode(c))
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	if p.check(TokenSemicolon) {
		p.advance()
	}
	p.recover()
}

func (p *Parser) parseMember(className string) *Node {
	if p.isClassDecl() {
		return p.parseClassDecl()
	}
	off, _ := p.scanModifiers(0)
	if p.peekN(off).Kind == TokenIdent && p.peekN(off).Literal == className && p.peekN(off+1).Kind == TokenLParen {
		return p.parseMethodDecl(p.parseModifiers(), className)
	}
	if p.isMethodDecl() {
		return p.parseMethodDecl(p.parseModifiers(), className)
	}
	if p.isDeclaration() {
		return p.parseVarDecl(KindFieldDecl)
	}
	return p.errorNode("expected member declaration")
}

// Expressions.

func (p *Parser) parseExpression() *Node {
	return p.parseAssignmentExpr()
}

func (p *Parser) parseAssignmentExpr() *Node {
	left := p.parseTernaryExpr()

	if p.isAssignOp() && p.sameLine() && !p.panicking {
		node := p.startNodeAt(KindAssign, left.Span.Start)
		node.AddChild(left)
		node.AddChild(p.tokenNode(KindIdentifier))
		node.AddChild(p.parseAssignmentExpr())
		return p.finishNode(node)
	}

	return left
}

func (p *Parser) isAssignOp() bool {
	switch p.peek().Kind {
	case TokenAssign, TokenPlusAssign, TokenMinusAssign,
		TokenStarAssign, TokenSlashAssign, TokenPercentAssign,
		TokenAndAssign, TokenOrAssign, TokenXorAssign,
		TokenShlAssign, TokenShrAssign, TokenUShrAssign, TokenElvisAssign:
		return true
	}
	return false
}

func (p *Parser) parseTernaryExpr() *Node {
	cond := p.parseBinaryExpr(0)
	if p.panicking || !p.sameLine() {
		return cond
	}

	switch p.peek().Kind {
	case TokenQuestion:
		node := p.startNodeAt(KindTernary, cond.Span.Start)
		node.AddChild(cond)
		p.advance()
		p.nest++
		node.AddChild(p.parseExpression())
		p.nest--
		p.expect(TokenColon)
		node.AddChild(p.parseTernaryExpr())
		return p.finishNode(node)
	case TokenElvis:
		node := p.startNodeAt(KindElvis, cond.Span.Start)
		node.AddChild(cond)
		p.advance()
		node.AddChild(p.parseTernaryExpr())
		return p.finishNode(node)
	}

	return cond
}

// binaryLevels lists infix operators from loosest to tightest binding.
var binaryLevels = [][]TokenKind{
	{TokenOr},
	{TokenAnd},
	{TokenBitOr},
	{TokenBitXor},
	{TokenBitAnd},
	{TokenEQ, TokenNE, TokenCompare, TokenFind, TokenMatch},
	{TokenLT, TokenLE, TokenGT, TokenGE, TokenIn, TokenInstanceof, TokenAs},
	{TokenShl, TokenShr, TokenUShr, TokenRange, TokenRangeExclusive},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
	{TokenPower},
}

func (p *Parser) parseBinaryExpr(level int) *Node {
	if level == len(binaryLevels) {
		return p.parseUnaryExpr()
	}
	left := p.parseBinaryExpr(level + 1)

	for !p.panicking && p.sameLine() && p.match(binaryLevels[level]...) {
		if p.check(TokenAs) {
			node := p.startNodeAt(KindCast, left.Span.Start)
			node.AddChild(left)
			p.advance()
			node.AddChild(p.parseType())
			left = p.finishNode(node)
			continue
		}
		node := p.startNodeAt(KindBinary, left.Span.Start)
		node.AddChild(left)
		isInstanceof := p.check(TokenInstanceof)
		node.AddChild(p.tokenNode(KindIdentifier))
		if isInstanceof {
			node.AddChild(p.parseType())
		} else {
			node.AddChild(p.parseBinaryExpr(level + 1))
		}
		left = p.finishNode(node)
	}

	return left
}

func (p *Parser) parseUnaryExpr() *Node {
	switch p.peek().Kind {
	case TokenPlus, TokenMinus, TokenNot, TokenBitNot, TokenIncrement, TokenDecrement:
		node := p.startNode(KindUnary)
		node.AddChild(p.tokenNode(KindIdentifier))
		node.AddChild(p.parseUnaryExpr())
		return p.finishNode(node)
	case TokenLParen:
		if p.isCast() {
			return p.parseCastExpr()
		}
	}
	return p.parsePostfixExpr()
}

// isCast recognizes (Type) expr where Type is primitive or reads as a type.
func (p *Parser) isCast() bool {
	end, ok, strong := p.scanType(1)
	if !ok || p.peekN(end).Kind != TokenRParen {
		return false
	}
	if p.peekN(1).Kind.IsPrimitive() && p.peekN(end+1).Kind != TokenDot {
		return true
	}
	if !strong {
		return false
	}
	switch p.peekN(end + 1).Kind {
	case TokenIdent, TokenIntLiteral, TokenFloatLiteral, TokenStringLiteral,
		TokenGStringLiteral, TokenTrue, TokenFalse, TokenNull, TokenNew,
		TokenThis, TokenLParen, TokenLBracket, TokenNot, TokenBitNot:
		return !p.peekN(end + 1).NewlineBefore
	}
	return false
}

func (p *Parser) parseCastExpr() *Node {
	node := p.startNode(KindCast)
	p.advance()
	node.AddChild(p.parseType())
	p.expect(TokenRParen)
	node.AddChild(p.parseUnaryExpr())
	return p.finishNode(node)
}

func (p *Parser) parsePostfixExpr() *Node {
	expr := p.parsePrimaryExpr()
	return p.parsePostfixSuffix(expr)
}

func (p *Parser) parsePostfixSuffix(expr *Node) *Node {
	for !p.panicking {
		progress := p.mustProgress()
		switch p.peek().Kind {
		case TokenDot, TokenSafeDot, TokenSpreadDot:
			// a leading dot on the next line continues the chain
			expr = p.parseMemberAccess(expr)
		case TokenLParen:
			if !p.sameLine() {
				return expr
			}
			node := p.callOn(expr)
			node.AddChild(p.parseArguments())
			expr = p.finishNode(p.trailingClosure(node))
		case TokenLBrace:
			if !p.sameLine() || !(expr.Kind == KindIdentifier || expr.Kind == KindProperty || expr.Kind == KindCall) {
				return expr
			}
			if expr.Kind == KindCall {
				expr = p.finishNode(p.trailingClosure(expr))
			} else {
				node := p.callOn(expr)
				args := p.startNode(KindArguments)
				args.AddChild(p.parseClosure())
				node.AddChild(p.finishNode(args))
				expr = p.finishNode(node)
			}
		case TokenLBracket:
			if !p.sameLine() {
				return expr
			}
			node := p.startNodeAt(KindIndex, expr.Span.Start)
			node.AddChild(expr)
			p.advance()
			p.nest++
			node.AddChild(p.parseExpression())
			p.nest--
			p.expect(TokenRBracket)
			expr = p.finishNode(node)
		case TokenIncrement, TokenDecrement:
			if !p.sameLine() {
				return expr
			}
			node := p.startNodeAt(KindPostfix, expr.Span.Start)
			node.AddChild(expr)
			node.AddChild(p.tokenNode(KindIdentifier))
			expr = p.finishNode(node)
		default:
			return expr
		}
		if !progress() {
			return expr
		}
	}
	return expr
}

func (p *Parser) parseMemberAccess(expr *Node) *Node {
	node := p.startNodeAt(KindProperty, expr.Span.Start)
	switch p.advance().Kind {
	case TokenSafeDot:
		node.Flags |= FlagSafe
	case TokenSpreadDot:
		node.Flags |= FlagSpread
	}
	node.AddChild(expr)

	tok := p.peek()
	switch {
	case tok.Kind == TokenIdent, tok.Kind == TokenStringLiteral, isKeywordName(tok):
		p.advance()
		node.AddChild(&Node{Kind: KindIdentifier, Token: &tok, Span: tok.Span})
	default:
		p.errorf(tok, "expected identifier after '.', found %s", describe(tok))
		return p.finishNode(node)
	}
	p.finishNode(node)

	if p.check(TokenLParen) && p.sameLine() {
		call := p.callOn(node)
		call.AddChild(p.parseArguments())
		return p.finishNode(p.trailingClosure(call))
	}
	return node
}

func isKeywordName(tok Token) bool {
	if tok.Kind == TokenIdent || tok.Literal == "" {
		return false
	}
	_, ok := keywords[tok.Literal]
	return ok
}

func (p *Parser) trailingClosure(call *Node) *Node {
	if !p.panicking && p.check(TokenLBrace) && p.sameLine() {
		args := call.Child(2)
		args.AddChild(p.parseClosure())
		p.finishNode(args)
	}
	return call
}

func (p *Parser) parseArguments() *Node {
	node := p.startNode(KindArguments)
	p.expect(TokenLParen)
	p.nest++

	if !p.check(TokenRParen) {
		for {
			progress := p.mustProgress()
			node.AddChild(p.parseArgument())
			if p.panicking || !p.check(TokenComma) {
				break
			}
			p.advance()
			if !progress() {
				break
			}
		}
	}

	p.nest--
	p.expect(TokenRParen)
	return p.finishNode(node)
}

// parseArgument parses a positional argument or a name: value pair.
func (p *Parser) parseArgument() *Node {
	if (p.check(TokenIdent) || p.check(TokenStringLiteral)) && p.peekN(1).Kind == TokenColon {
		return p.parseMapEntry()
	}
	return p.parseExpression()
}

func (p *Parser) parsePrimaryExpr() *Node {
	switch p.peek().Kind {
	case TokenIntLiteral, TokenFloatLiteral, TokenStringLiteral, TokenTrue, TokenFalse, TokenNull:
		return p.tokenNode(KindLiteral)

	case TokenGStringLiteral:
		return p.tokenNode(KindGString)

	case TokenIdent:
		return p.tokenNode(KindIdentifier)

	case TokenThis:
		return p.tokenNode(KindThis)

	case TokenSuper:
		return p.tokenNode(KindSuper)

	case TokenNew:
		return p.parseNewExpr()

	case TokenLParen:
		node := p.startNode(KindParen)
		p.advance()
		p.nest++
		node.AddChild(p.parseExpression())
		p.nest--
		p.expect(TokenRParen)
		return p.finishNode(node)

	case TokenLBracket:
		return p.parseListOrMap()

	case TokenLBrace:
		return p.parseClosure()

	case TokenBoolean, TokenByte, TokenChar, TokenShort,
		TokenInt, TokenLong, TokenFloat, TokenDouble:
		// int.class and friends
		tok := p.advance()
		return &Node{Kind: KindIdentifier, Token: &tok, Span: tok.Span}
	}
	return p.errorNode("expected expression")
}

func (p *Parser) parseNewExpr() *Node {
	start := p.advance().Span.Start
	typ := p.parseType()
	if typ.Kind == KindError {
		return typ
	}

	switch {
	case p.check(TokenLParen):
		node := p.startNodeAt(KindNew, start)
		node.AddChild(typ)
		node.AddChild(p.parseArguments())
		if !p.panicking && p.check(TokenLBrace) && p.sameLine() {
			body := p.startNodeAt(KindClassDecl, p.peek().Span.Start)
			p.parseClassBody(body, "", false)
			node.AddChild(p.finishNode(body))
		}
		return p.finishNode(node)
	case p.check(TokenLBracket):
		node := p.startNodeAt(KindNewArray, start)
		node.AddChild(typ)
		for p.check(TokenLBracket) && !p.panicking {
			p.advance()
			p.nest++
			if !p.check(TokenRBracket) {
				node.AddChild(p.parseExpression())
			}
			p.nest--
			p.expect(TokenRBracket)
		}
		return p.finishNode(node)
	}
	p.errorf(p.peek(), "expected '(' or '[' after new %s, found %s", typ.QualifiedName(), describe(p.peek()))
	node := p.startNodeAt(KindError, start)
	node.AddChild(typ)
	return p.finishNode(node)
}

func (p *Parser) parseListOrMap() *Node {
	start := p.advance().Span.Start
	if p.check(TokenColon) && p.peekN(1).Kind == TokenRBracket {
		p.advance()
		p.advance()
		return p.finishNode(p.startNodeAt(KindMap, start))
	}

	node := p.startNodeAt(KindList, start)
	p.nest++
	for !p.check(TokenRBracket) && !p.panicking {
		item := p.parseArgument()
		if item.Kind == KindMapEntry {
			node.Kind = KindMap
		}
		node.AddChild(item)
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	p.nest--
	p.expect(TokenRBracket)
	return p.finishNode(node)
}

func (p *Parser) parseMapEntry() *Node {
	node := p.startNode(KindMapEntry)
	node.AddChild(p.tokenNode(KindLiteral))
	p.expect(TokenColon)
	node.AddChild(p.parseExpression())
	return p.finishNode(node)
}

// parseClosure parses { [params ->] statements }. Newlines inside the body
// separate statements even when the closure is an argument.
func (p *Parser) parseClosure() *Node {
	node := p.startNode(KindClosure)
	saved := p.nest
	p.advance()
	p.nest = 0

	if p.isClosureParams() {
		params := p.startNode(KindParameters)
		for !p.check(TokenArrow) && !p.panicking {
			params.AddChild(p.parseParameter())
			if !p.check(TokenComma) {
				break
			}
			p.advance()
		}
		p.finishNode(params)
		p.expect(TokenArrow)
		node.AddChild(params)
	}

	body := p.startNode(KindBlock)
	p.parseStatements(body)
	node.AddChild(p.finishNode(body))
	p.nest = saved
	p.expect(TokenRBrace)
	return p.finishNode(node)
}

func (p *Parser) isClosureParams() bool {
	for off := 0; ; off++ {
		tok := p.peekN(off)
		switch {
		case tok.Kind == TokenArrow:
			return true
		case tok.Kind == TokenIdent, tok.Kind == TokenComma, tok.Kind == TokenDot,
			tok.Kind == TokenLT, tok.Kind == TokenGT, tok.Kind == TokenQuestion,
			tok.Kind == TokenLBracket, tok.Kind == TokenRBracket, tok.Kind == TokenDef,
			tok.Kind == TokenFinal, tok.Kind == TokenEllipsis, tok.Kind.IsPrimitive():
		default:
			return false
		}
	}
}
