// Package syntax implements the lexer, syntax tree and error-tolerant parser
// for the Kotlin script subset understood by the REPL.
package syntax

import "fmt"

// Kind identifies a token.
type Kind int

const (
	EOF Kind = iota
	Illegal

	IdentTok
	IntTok
	DoubleTok

	// String literals are lexed modally: StringOpen, then any mix of
	// StringText, TemplateName and TemplateOpen ... TemplateClose, then
	// StringClose.
	StringOpen
	StringText
	TemplateName
	TemplateOpen
	TemplateClose
	StringClose

	LParen
	RParen
	LBrace
	RBrace
	LBrack
	RBrack
	Comma
	Colon
	Semi
	Dot
	SafeDot  // ?.
	Elvis    // ?:
	NotNull  // !!
	Question // ?
	At
	Arrow  // ->
	Range  // ..
	Assign // =
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	Plus
	Minus
	Star
	Slash
	Percent
	Eq         // ==
	NotEq      // !=
	Identical  // ===
	NotIdent   // !==
	Less       // <
	LessEq     // <=
	Greater    // >
	GreaterEq  // >=
	AndAnd     // &&
	OrOr       // ||
	Bang       // !
	PlusPlus   // ++
	MinusMinus // --
)

var kindNames = map[Kind]string{
	EOF: "end of input", Illegal: "illegal character", IdentTok: "identifier",
	IntTok: "integer literal", DoubleTok: "double literal",
	StringOpen: "'\"'", StringText: "string text", TemplateName: "template entry",
	TemplateOpen: "'${'", TemplateClose: "'}'", StringClose: "'\"'",
	LParen: "'('", RParen: "')'", LBrace: "'{'", RBrace: "'}'", LBrack: "'['", RBrack: "']'",
	Comma: "','", Colon: "':'", Semi: "';'", Dot: "'.'", SafeDot: "'?.'", Elvis: "'?:'",
	NotNull: "'!!'", Question: "'?'", At: "'@'", Arrow: "'->'", Range: "'..'",
	Assign: "'='", PlusAssign: "'+='", MinusAssign: "'-='", StarAssign: "'*='",
	SlashAssign: "'/='", PercentAssign: "'%='",
	Plus: "'+'", Minus: "'-'", Star: "'*'", Slash: "'/'", Percent: "'%'",
	Eq: "'=='", NotEq: "'!='", Identical: "'==='", NotIdent: "'!=='",
	Less: "'<'", LessEq: "'<='", Greater: "'>'", GreaterEq: "'>='",
	AndAnd: "'&&'", OrOr: "'||'", Bang: "'!'", PlusPlus: "'++'", MinusMinus: "'--'",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a lexical token. Start and End are byte offsets into the source.
type Token struct {
	Kind Kind
	// Text is the token's spelling. For backtick identifiers it is the
	// unescaped name; for StringText it is the decoded text.
	Text  string
	Start int
	End   int
	// NewlineBefore is set when at least one newline separates this token
	// from the previous one.
	NewlineBefore bool
	// Quoted marks identifiers written between backticks.
	Quoted bool
}

// HardKeywords cannot be used as identifiers.
var HardKeywords = []string{
	"as", "break", "class", "continue", "do", "else", "false", "for", "fun", "if", "in",
	"interface", "is", "null", "object", "package", "return", "super", "this", "throw",
	"true", "try", "typealias", "val", "var", "when", "while",
}

// SoftKeywords are identifiers with a special meaning in some positions.
var SoftKeywords = []string{
	"by", "catch", "constructor", "data", "enum", "finally", "get", "import", "init",
	"inner", "internal", "open", "override", "private", "protected", "public", "set",
	"vararg",
}

var hardKeywordSet = func() map[string]bool {
	m := make(map[string]bool, len(HardKeywords))
	for _, k := range HardKeywords {
		m[k] = true
	}
	return m
}()

// IsHardKeyword reports whether s is reserved.
func IsHardKeyword(s string) bool { return hardKeywordSet[s] }

// isKeyword reports whether t is the unquoted keyword kw.
func (t Token) isKeyword(kw string) bool {
	return t.Kind == IdentTok && !t.Quoted && t.Text == kw
}
