package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Error is a lexical or syntax error. AtEOF is set when the error was caused
// by running out of input, i.e. more text could make the source valid.
type Error struct {
	Start   int
	End     int
	Message string
	AtEOF   bool
}

func (e *Error) Error() string { return e.Message }

type lexMode struct {
	str   bool // inside a string literal
	raw   bool // raw """ string
	depth int  // brace depth inside a ${ } template
	open  int  // offset of the opening quote, for error reporting
}

// lexer turns source text into tokens. It never stops early: bad input
// becomes Illegal tokens plus recorded errors.
type lexer struct {
	src   string
	pos   int
	toks  []Token
	errs  []*Error
	modes []lexMode
	sawNL bool
}

// Lex tokenizes src. The returned slice always ends with an EOF token.
func Lex(src string) ([]Token, []*Error) {
	l := &lexer{src: src}
	l.run()
	return l.toks, l.errs
}

func (l *lexer) mode() *lexMode {
	if len(l.modes) == 0 {
		return nil
	}
	return &l.modes[len(l.modes)-1]
}

func (l *lexer) emit(k Kind, text string, start int) {
	l.toks = append(l.toks, Token{Kind: k, Text: text, Start: start, End: l.pos, NewlineBefore: l.sawNL})
	l.sawNL = false
}

func (l *lexer) quoted(name string, start int) {
	l.toks = append(l.toks, Token{Kind: IdentTok, Text: name, Start: start, End: l.pos, NewlineBefore: l.sawNL, Quoted: true})
	l.sawNL = false
}

func (l *lexer) errorf(start, end int, atEOF bool, msg string) {
	l.errs = append(l.errs, &Error{Start: start, End: end, Message: msg, AtEOF: atEOF})
}

func (l *lexer) run() {
	for {
		if m := l.mode(); m != nil && m.str {
			if !l.lexString(m) {
				break
			}
			continue
		}
		if !l.lexCode() {
			break
		}
	}
	if m := l.mode(); m != nil {
		if m.str {
			l.errorf(m.open, len(l.src), true, "Expecting '\"'")
		} else {
			l.errorf(len(l.src), len(l.src), true, "Expecting '}'")
		}
	}
	l.pos = len(l.src)
	l.emit(EOF, "", len(l.src))
}

// lexCode scans one token in code mode. It returns false at end of input.
func (l *lexer) lexCode() bool {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return false
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '"':
		if strings.HasPrefix(l.src[l.pos:], `"""`) {
			l.pos += 3
			l.emit(StringOpen, `"""`, start)
			l.modes = append(l.modes, lexMode{str: true, raw: true, open: start})
		} else {
			l.pos++
			l.emit(StringOpen, `"`, start)
			l.modes = append(l.modes, lexMode{str: true, open: start})
		}
		return true
	case c == '`':
		end := strings.IndexAny(l.src[l.pos+1:], "`\n")
		if end < 0 || l.src[l.pos+1+end] == '\n' {
			l.pos = len(l.src)
			if end >= 0 {
				l.pos = start + 1 + end
			}
			l.errorf(start, l.pos, end < 0, "Expecting '`'")
			if l.pos == start+1 {
				l.emit(Illegal, l.src[start:l.pos], start)
				return true
			}
			// The open name still parses, so completion can see what was
			// typed after the backtick.
			l.quoted(l.src[start+1:l.pos], start)
			return true
		}
		name := l.src[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		l.quoted(name, start)
		return true
	case isIdentStart(l.peekRune()):
		for l.pos < len(l.src) {
			r, n := utf8.DecodeRuneInString(l.src[l.pos:])
			if !isIdentPart(r) {
				break
			}
			l.pos += n
		}
		l.emit(IdentTok, l.src[start:l.pos], start)
		return true
	case c >= '0' && c <= '9':
		l.lexNumber()
		return true
	}

	if m := l.mode(); m != nil && !m.str {
		switch c {
		case '{':
			m.depth++
		case '}':
			if m.depth == 0 {
				l.pos++
				l.emit(TemplateClose, "}", start)
				l.modes = l.modes[:len(l.modes)-1]
				return true
			}
			m.depth--
		}
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op.text) {
			l.pos += len(op.text)
			l.emit(op.kind, op.text, start)
			return true
		}
	}
	_, n := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += n
	l.errorf(start, l.pos, false, "Illegal character '"+l.src[start:l.pos]+"'")
	l.emit(Illegal, l.src[start:l.pos], start)
	return true
}

// operators is ordered longest first so that prefix matching is greedy.
var operators = []struct {
	text string
	kind Kind
}{
	{"===", Identical}, {"!==", NotIdent},
	{"?.", SafeDot}, {"?:", Elvis}, {"!!", NotNull}, {"->", Arrow}, {"..", Range},
	{"==", Eq}, {"!=", NotEq}, {"<=", LessEq}, {">=", GreaterEq}, {"&&", AndAnd}, {"||", OrOr},
	{"+=", PlusAssign}, {"-=", MinusAssign}, {"*=", StarAssign}, {"/=", SlashAssign}, {"%=", PercentAssign},
	{"++", PlusPlus}, {"--", MinusMinus},
	{"(", LParen}, {")", RParen}, {"{", LBrace}, {"}", RBrace}, {"[", LBrack}, {"]", RBrack},
	{",", Comma}, {":", Colon}, {";", Semi}, {".", Dot}, {"?", Question}, {"@", At},
	{"=", Assign}, {"+", Plus}, {"-", Minus}, {"*", Star}, {"/", Slash}, {"%", Percent},
	{"<", Less}, {">", Greater}, {"!", Bang},
}

func (l *lexer) peekRune() rune {
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.sawNL = true
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			nl := strings.IndexByte(l.src[l.pos:], '\n')
			if nl < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += nl
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.errorf(l.pos, len(l.src), true, "Unclosed comment")
				l.pos = len(l.src)
				return
			}
			if strings.Contains(l.src[l.pos:l.pos+2+end], "\n") {
				l.sawNL = true
			}
			l.pos += end + 4
		default:
			return
		}
	}
}

func (l *lexer) lexNumber() {
	start := l.pos
	digits := func() {
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
	}
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		l.pos += 2
		for l.pos < len(l.src) && (isHex(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
		l.emit(IntTok, l.src[start:l.pos], start)
		return
	}
	digits()
	kind := IntTok
	// "1..2" is a range, not a double.
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		digits()
		kind = DoubleTok
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			digits()
			kind = DoubleTok
		} else {
			l.pos = save
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'L' || l.src[l.pos] == 'l') && kind == IntTok {
		l.pos++
	}
	l.emit(kind, l.src[start:l.pos], start)
}

// lexString scans string content until the next template entry or the
// closing quote. It returns false at end of input.
func (l *lexer) lexString(m *lexMode) bool {
	if l.pos >= len(l.src) {
		return false
	}
	start := l.pos
	var b strings.Builder
	flush := func() {
		if l.pos > start {
			l.emit(StringText, b.String(), start)
		}
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case m.raw && strings.HasPrefix(l.src[l.pos:], `"""`):
			flush()
			s := l.pos
			l.pos += 3
			l.emit(StringClose, `"""`, s)
			l.modes = l.modes[:len(l.modes)-1]
			return true
		case !m.raw && c == '"':
			flush()
			s := l.pos
			l.pos++
			l.emit(StringClose, `"`, s)
			l.modes = l.modes[:len(l.modes)-1]
			return true
		case !m.raw && c == '\n':
			flush()
			l.errorf(m.open, l.pos, false, "Expecting '\"'")
			l.modes = l.modes[:len(l.modes)-1]
			l.emit(StringClose, "", l.pos)
			return true
		case c == '$' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '{':
			flush()
			s := l.pos
			l.pos += 2
			l.emit(TemplateOpen, "${", s)
			l.modes = append(l.modes, lexMode{})
			return true
		case c == '$' && l.pos+1 < len(l.src) && isIdentStart(rune(l.src[l.pos+1])):
			flush()
			s := l.pos
			l.pos++
			for l.pos < len(l.src) {
				r, n := utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentPart(r) {
					break
				}
				l.pos += n
			}
			l.emit(TemplateName, l.src[s+1:l.pos], s)
			return true
		case !m.raw && c == '\\':
			if l.pos+1 >= len(l.src) {
				l.pos++
				continue
			}
			esc := l.src[l.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case '"', '\\', '$', '\'':
				b.WriteByte(esc)
			case 'u':
				if l.pos+6 <= len(l.src) {
					if r, ok := parseHexRune(l.src[l.pos+2 : l.pos+6]); ok {
						b.WriteRune(r)
						l.pos += 6
						continue
					}
				}
				l.errorf(l.pos, l.pos+2, false, "Illegal escape: '\\u'")
			default:
				l.errorf(l.pos, l.pos+2, false, "Illegal escape: '\\"+string(esc)+"'")
			}
			l.pos += 2
		default:
			_, n := utf8.DecodeRuneInString(l.src[l.pos:])
			b.WriteString(l.src[l.pos : l.pos+n])
			l.pos += n
		}
	}
	flush()
	return false
}

func parseHexRune(s string) (rune, bool) {
	var r rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(v)
	}
	return r, true
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// IsIdentifier reports whether s can be written without backticks.
func IsIdentifier(s string) bool {
	if s == "" || IsHardKeyword(s) {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return true
}

// Quote returns name as it must be written in source: verbatim when it is a
// plain identifier, between backticks otherwise.
func Quote(name string) string {
	if IsIdentifier(name) {
		return name
	}
	return "`" + name + "`"
}
