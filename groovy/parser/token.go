package parser

import "fmt"

// Position is a point in the source. Line and Column are 1-based and Column
// counts runes, not bytes.
type Position struct {
	File   string
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span covers a range of source. End is one past the last rune.
type Span struct {
	Start Position
	End   Position
}

func (s Span) MultiLine() bool {
	return s.Start.Line != s.End.Line
}

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenError
	TokenWhitespace
	TokenComment
	TokenLineComment

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenFloatLiteral
	TokenStringLiteral
	TokenGStringLiteral
	TokenTrue
	TokenFalse
	TokenNull

	// Keywords
	TokenAbstract
	TokenAs
	TokenAssert
	TokenBoolean
	TokenBreak
	TokenByte
	TokenCase
	TokenCatch
	TokenChar
	TokenClass
	TokenContinue
	TokenDef
	TokenDefault
	TokenDo
	TokenDouble
	TokenElse
	TokenEnum
	TokenExtends
	TokenFinal
	TokenFinally
	TokenFloat
	TokenFor
	TokenIf
	TokenImplements
	TokenImport
	TokenIn
	TokenInstanceof
	TokenInt
	TokenInterface
	TokenLong
	TokenNew
	TokenPackage
	TokenPrivate
	TokenProtected
	TokenPublic
	TokenReturn
	TokenShort
	TokenStatic
	TokenSuper
	TokenSwitch
	TokenSynchronized
	TokenThis
	TokenThrow
	TokenThrows
	TokenTry
	TokenVar
	TokenVoid
	TokenWhile

	// Separators
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenSemicolon
	TokenComma
	TokenDot
	TokenSafeDot
	TokenSpreadDot
	TokenEllipsis
	TokenAt
	TokenColon
	TokenQuestion
	TokenElvis
	TokenArrow

	// Operators
	TokenAssign
	TokenEQ
	TokenNE
	TokenLT
	TokenLE
	TokenGT
	TokenGE
	TokenCompare
	TokenAnd
	TokenOr
	TokenNot
	TokenPlus
	TokenMinus
	TokenStar
	TokenPower
	TokenSlash
	TokenPercent
	TokenIncrement
	TokenDecrement
	TokenBitAnd
	TokenBitOr
	TokenBitXor
	TokenBitNot
	TokenShl
	TokenShr
	TokenUShr
	TokenRange
	TokenRangeExclusive
	TokenFind
	TokenMatch
	TokenPlusAssign
	TokenMinusAssign
	TokenStarAssign
	TokenSlashAssign
	TokenPercentAssign
	TokenAndAssign
	TokenOrAssign
	TokenXorAssign
	TokenShlAssign
	TokenShrAssign
	TokenUShrAssign
	TokenElvisAssign
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:            "EOF",
	TokenError:          "Error",
	TokenWhitespace:     "Whitespace",
	TokenComment:        "Comment",
	TokenLineComment:    "LineComment",
	TokenIdent:          "Ident",
	TokenIntLiteral:     "IntLiteral",
	TokenFloatLiteral:   "FloatLiteral",
	TokenStringLiteral:  "StringLiteral",
	TokenGStringLiteral: "GStringLiteral",
	TokenTrue:           "true",
	TokenFalse:          "false",
	TokenNull:           "null",
	TokenAbstract:       "abstract",
	TokenAs:             "as",
	TokenAssert:         "assert",
	TokenBoolean:        "boolean",
	TokenBreak:          "break",
	TokenByte:           "byte",
	TokenCase:           "case",
	TokenCatch:          "catch",
	TokenChar:           "char",
	TokenClass:          "class",
	TokenContinue:       "continue",
	TokenDef:            "def",
	TokenDefault:        "default",
	TokenDo:             "do",
	TokenDouble:         "double",
	TokenElse:           "else",
	TokenEnum:           "enum",
	TokenExtends:        "extends",
	TokenFinal:          "final",
	TokenFinally:        "finally",
	TokenFloat:          "float",
	TokenFor:            "for",
	TokenIf:             "if",
	TokenImplements:     "implements",
	TokenImport:         "import",
	TokenIn:             "in",
	TokenInstanceof:     "instanceof",
	TokenInt:            "int",
	TokenInterface:      "interface",
	TokenLong:           "long",
	TokenNew:            "new",
	TokenPackage:        "package",
	TokenPrivate:        "private",
	TokenProtected:      "protected",
	TokenPublic:         "public",
	TokenReturn:         "return",
	TokenShort:          "short",
	TokenStatic:         "static",
	TokenSuper:          "super",
	TokenSwitch:         "switch",
	TokenSynchronized:   "synchronized",
	TokenThis:           "this",
	TokenThrow:          "throw",
	TokenThrows:         "throws",
	TokenTry:            "try",
	TokenVar:            "var",
	TokenVoid:           "void",
	TokenWhile:          "while",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenDot:            ".",
	TokenSafeDot:        "?.",
	TokenSpreadDot:      "*.",
	TokenEllipsis:       "...",
	TokenAt:             "@",
	TokenColon:          ":",
	TokenQuestion:       "?",
	TokenElvis:          "?:",
	TokenArrow:          "->",
	TokenAssign:         "=",
	TokenEQ:             "==",
	TokenNE:             "!=",
	TokenLT:             "<",
	TokenLE:             "<=",
	TokenGT:             ">",
	TokenGE:             ">=",
	TokenCompare:        "<=>",
	TokenAnd:            "&&",
	TokenOr:             "||",
	TokenNot:            "!",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenPower:          "**",
	TokenSlash:          "/",
	TokenPercent:        "%",
	TokenIncrement:      "++",
	TokenDecrement:      "--",
	TokenBitAnd:         "&",
	TokenBitOr:          "|",
	TokenBitXor:         "^",
	TokenBitNot:         "~",
	TokenShl:            "<<",
	TokenShr:            ">>",
	TokenUShr:           ">>>",
	TokenRange:          "..",
	TokenRangeExclusive: "..<",
	TokenFind:           "=~",
	TokenMatch:          "==~",
	TokenPlusAssign:     "+=",
	TokenMinusAssign:    "-=",
	TokenStarAssign:     "*=",
	TokenSlashAssign:    "/=",
	TokenPercentAssign:  "%=",
	TokenAndAssign:      "&=",
	TokenOrAssign:       "|=",
	TokenXorAssign:      "^=",
	TokenShlAssign:      "<<=",
	TokenShrAssign:      ">>=",
	TokenUShrAssign:     ">>>=",
	TokenElvisAssign:    "?=",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a lexeme. NewlineBefore is set by the parser when a line break
// separates the token from the previous one; Groovy ends statements there.
type Token struct {
	Kind          TokenKind
	Span          Span
	Literal       string
	NewlineBefore bool
}

var keywords = map[string]TokenKind{
	"abstract":     TokenAbstract,
	"as":           TokenAs,
	"assert":       TokenAssert,
	"boolean":      TokenBoolean,
	"break":        TokenBreak,
	"byte":         TokenByte,
	"case":         TokenCase,
	"catch":        TokenCatch,
	"char":         TokenChar,
	"class":        TokenClass,
	"continue":     TokenContinue,
	"def":          TokenDef,
	"default":      TokenDefault,
	"do":           TokenDo,
	"double":       TokenDouble,
	"else":         TokenElse,
	"enum":         TokenEnum,
	"extends":      TokenExtends,
	"final":        TokenFinal,
	"finally":      TokenFinally,
	"float":        TokenFloat,
	"for":          TokenFor,
	"if":           TokenIf,
	"implements":   TokenImplements,
	"import":       TokenImport,
	"in":           TokenIn,
	"instanceof":   TokenInstanceof,
	"int":          TokenInt,
	"interface":    TokenInterface,
	"long":         TokenLong,
	"new":          TokenNew,
	"package":      TokenPackage,
	"private":      TokenPrivate,
	"protected":    TokenProtected,
	"public":       TokenPublic,
	"return":       TokenReturn,
	"short":        TokenShort,
	"static":       TokenStatic,
	"super":        TokenSuper,
	"switch":       TokenSwitch,
	"synchronized": TokenSynchronized,
	"this":         TokenThis,
	"throw":        TokenThrow,
	"throws":       TokenThrows,
	"try":          TokenTry,
	"var":          TokenVar,
	"void":         TokenVoid,
	"while":        TokenWhile,
	"true":         TokenTrue,
	"false":        TokenFalse,
	"null":         TokenNull,
}

func LookupKeyword(ident string) TokenKind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return TokenIdent
}

// IsPrimitive reports whether k names a primitive type.
func (k TokenKind) IsPrimitive() bool {
	switch k {
	case TokenBoolean, TokenByte, TokenChar, TokenShort,
		TokenInt, TokenLong, TokenFloat, TokenDouble:
		return true
	}
	return false
}

func (k TokenKind) isModifier() bool {
	switch k {
	case TokenAbstract, TokenFinal, TokenPrivate, TokenProtected,
		TokenPublic, TokenStatic, TokenSynchronized:
		return true
	}
	return false
}
