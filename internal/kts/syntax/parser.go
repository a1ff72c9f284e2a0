package syntax

import (
	"strconv"
	"strings"
)

// Parse parses src as a script or library file. It never fails: the
// returned file holds whatever could be recovered and errs lists every
// lexical and syntax error in source order of discovery.
func Parse(src string) (*File, []*Error) {
	toks, lexErrs := Lex(src)
	p := &parser{src: src, toks: toks}
	for _, e := range lexErrs {
		p.errs = append(p.errs, e)
		if e.AtEOF {
			p.eofReported = true
		}
	}
	f := p.parseFile()
	return f, p.errs
}

// ParseExpr parses src as a single expression.
func ParseExpr(src string) (Expr, []*Error) {
	toks, lexErrs := Lex(src)
	p := &parser{src: src, toks: toks, errs: lexErrs}
	x := p.parseExpr()
	if !p.at(EOF) {
		p.errorf(p.tok(), "Unexpected tokens")
	}
	return x, p.errs
}

type parser struct {
	src  string
	toks []Token
	pos  int
	errs []*Error
	// parens > 0 while inside (), [] or a template entry, where newlines
	// do not terminate expressions.
	parens      int
	eofReported bool
}

func (p *parser) tok() Token { return p.toks[p.pos] }

func (p *parser) peek(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(k Kind) bool { return p.tok().Kind == k }

func (p *parser) atKeyword(kw string) bool { return p.tok().isKeyword(kw) }

// newline reports whether the current token starts a new line in a
// context where that ends the expression.
func (p *parser) newline() bool { return p.parens == 0 && p.tok().NewlineBefore }

// prevEnd is the end offset of the last consumed token.
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End
}

func (p *parser) errorf(t Token, msg string) {
	if t.Kind == EOF {
		if p.eofReported {
			return
		}
		p.eofReported = true
		p.errs = append(p.errs, &Error{Start: len(p.src), End: len(p.src), Message: msg, AtEOF: true})
		return
	}
	if n := len(p.errs); n > 0 && p.errs[n-1].Start == t.Start {
		return
	}
	p.errs = append(p.errs, &Error{Start: t.Start, End: t.End, Message: msg})
}

func (p *parser) expect(k Kind) (Token, bool) {
	if p.at(k) {
		return p.next(), true
	}
	p.errorf(p.tok(), "Expecting "+k.String())
	return Token{}, false
}

func (p *parser) expectKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.next()
		return true
	}
	p.errorf(p.tok(), "Expecting '"+kw+"'")
	return false
}

// name consumes an identifier that is not a hard keyword.
func (p *parser) name(msg string) *Name {
	t := p.tok()
	if t.Kind == IdentTok && (t.Quoted || !IsHardKeyword(t.Text)) {
		p.next()
		return &Name{Span: Span{t.Start, t.End}, Text: t.Text, Quoted: t.Quoted}
	}
	p.errorf(t, msg)
	return nil
}

func (p *parser) atName() bool {
	t := p.tok()
	return t.Kind == IdentTok && (t.Quoted || !IsHardKeyword(t.Text))
}

// skipStmt discards tokens up to the end of the current statement, keeping
// brackets balanced.
func (p *parser) skipStmt() {
	depth := 0
	first := true
	for !p.at(EOF) {
		t := p.tok()
		if depth == 0 && !first && (t.NewlineBefore || t.Kind == Semi || t.Kind == RBrace) {
			return
		}
		first = false
		switch t.Kind {
		case LParen, LBrace, LBrack, TemplateOpen:
			depth++
		case RParen, RBrace, RBrack, TemplateClose:
			if depth == 0 {
				return
			}
			depth--
		}
		p.next()
	}
	if depth > 0 {
		p.errorf(p.tok(), "Expecting '}'")
	}
}

// endStmt checks that the statement just parsed is properly terminated.
func (p *parser) endStmt() {
	switch {
	case p.at(Semi):
		for p.at(Semi) {
			p.next()
		}
	case p.at(EOF), p.at(RBrace), p.tok().NewlineBefore:
	default:
		p.errorf(p.tok(), "Unexpected tokens (use ';' to separate expressions on the same line)")
		p.skipStmt()
	}
}

func (p *parser) parseFile() *File {
	f := &File{Span: Span{0, len(p.src)}}
	for p.at(At) && p.peek(1).isKeyword("file") {
		f.Annotations = append(f.Annotations, p.parseFileAnnotation())
	}
	if p.atKeyword("package") {
		start := p.next().Start
		path := p.parseDottedName()
		f.Package = &PackageDirective{Span: Span{start, p.prevEnd()}, Path: path}
		p.endStmt()
	}
	for p.atKeyword("import") {
		f.Imports = append(f.Imports, p.parseImport())
	}
	for {
		for p.at(Semi) {
			p.next()
		}
		if p.at(EOF) {
			break
		}
		switch {
		case p.at(RBrace):
			p.errorf(p.tok(), "Unexpected '}'")
			p.next()
			continue
		case p.atKeyword("import") && p.peek(1).Kind == IdentTok && !p.peek(1).NewlineBefore:
			p.errorf(p.tok(), "Imports are only allowed in the beginning of file")
			f.Imports = append(f.Imports, p.parseImport())
			continue
		case p.at(At) && p.peek(1).isKeyword("file"):
			p.errorf(p.tok(), "File annotations are only allowed before package declaration")
			f.Annotations = append(f.Annotations, p.parseFileAnnotation())
			continue
		}
		start := p.pos
		if s := p.parseStatement(false); s != nil {
			f.Stmts = append(f.Stmts, s)
		}
		if p.pos == start {
			p.next()
			continue
		}
		p.endStmt()
	}
	return f
}

func (p *parser) parseFileAnnotation() *FileAnnotation {
	a := &FileAnnotation{Span: Span{Start: p.next().Start}}
	p.next() // file
	p.expect(Colon)
	a.Name = p.name("Expecting annotation name")
	if p.at(LParen) && !p.tok().NewlineBefore {
		p.next()
		p.parens++
		for !p.at(RParen) && !p.at(EOF) {
			a.Args = append(a.Args, p.parseExpr())
			if !p.at(Comma) {
				break
			}
			p.next()
		}
		p.parens--
		p.expect(RParen)
	}
	a.Stop = p.prevEnd()
	return a
}

func (p *parser) parseDottedName() []*Name {
	var path []*Name
	if n := p.name("Expecting qualified name"); n != nil {
		path = append(path, n)
	}
	for p.at(Dot) && !p.tok().NewlineBefore {
		p.next()
		n := p.name("Expecting qualified name")
		if n == nil {
			break
		}
		path = append(path, n)
	}
	return path
}

func (p *parser) parseImport() *ImportDirective {
	d := &ImportDirective{Span: Span{Start: p.next().Start}}
	if n := p.name("Expecting qualified name"); n != nil {
		d.Path = append(d.Path, n)
	}
	for p.at(Dot) && !p.tok().NewlineBefore && len(d.Path) > 0 {
		p.next()
		if p.at(Star) {
			p.next()
			d.Star = true
			break
		}
		n := p.name("Expecting qualified name")
		if n == nil {
			break
		}
		d.Path = append(d.Path, n)
	}
	if !d.Star && p.atKeyword("as") && !p.tok().NewlineBefore {
		p.next()
		d.Alias = p.name("Expecting an alias name")
	}
	d.Stop = p.prevEnd()
	p.endStmt()
	return d
}

var modifierWords = map[string]bool{
	"data": true, "inner": true, "open": true, "override": true, "infix": true,
	"operator": true, "inline": true, "external": true, "const": true, "abstract": true,
	"public": true, "private": true, "internal": true, "protected": true,
}

var declWords = map[string]bool{
	"class": true, "fun": true, "val": true, "var": true, "interface": true, "object": true,
}

// parseModifiers consumes modifiers, but only where the following token
// continues a declaration, so that `data` alone is still a name.
func (p *parser) parseModifiers() (Modifiers, bool) {
	var m Modifiers
	found := false
	for {
		t := p.tok()
		nt := p.peek(1)
		if t.Kind != IdentTok || t.Quoted || !modifierWords[t.Text] {
			return m, found
		}
		if nt.Kind != IdentTok || nt.Quoted || !(modifierWords[nt.Text] || declWords[nt.Text] || nt.Text == "vararg") {
			return m, found
		}
		p.next()
		found = true
		switch t.Text {
		case "data":
			m.Data = true
		case "inner":
			m.Inner = true
		case "open":
			m.Open = true
		case "override":
			m.Override = true
		case "infix":
			m.Infix = true
		case "operator", "inline", "external", "const", "abstract":
		default:
			m.Visibility = t.Text
		}
	}
}

var unsupported = map[string]bool{
	"interface": true, "object": true, "typealias": true, "when": true, "try": true,
	"super": true, "is": true, "as": true,
}

// parseStatement parses one statement. It returns nil when nothing usable
// was recognized.
func (p *parser) parseStatement(inClass bool) Stmt {
	start := p.tok().Start
	mods, hasMods := p.parseModifiers()
	t := p.tok()
	switch {
	case t.isKeyword("val"), t.isKeyword("var"):
		return p.parseProperty(mods, start)
	case t.isKeyword("fun"):
		return p.parseFun(mods, start)
	case t.isKeyword("class"):
		return p.parseClass(mods, start)
	case hasMods:
		p.errorf(t, "Expecting a top level declaration")
		return nil
	case inClass && t.isKeyword("init") && p.peek(1).Kind == LBrace:
		p.next()
		b := p.parseBlock()
		return &InitBlock{Span: Span{start, b.Stop}, Body: b}
	case t.Kind == IdentTok && !t.Quoted && unsupported[t.Text]:
		p.errorf(t, "Unsupported construct: '"+t.Text+"'")
		p.skipStmt()
		return nil
	case t.isKeyword("while"):
		return p.parseWhile()
	case t.isKeyword("do"):
		return p.parseDoWhile()
	case t.isKeyword("for"):
		return p.parseFor()
	case t.isKeyword("return"):
		p.next()
		r := &ReturnStmt{Span: Span{start, t.End}}
		if !p.at(EOF) && !p.at(RBrace) && !p.at(Semi) && !p.tok().NewlineBefore {
			r.Value = p.parseExpr()
			r.Stop = r.Value.End()
		}
		return r
	case t.isKeyword("break"), t.isKeyword("continue"):
		p.next()
		return &BranchStmt{Span: Span{t.Start, t.End}, Continue: t.Text == "continue"}
	}
	if inClass {
		p.errorf(t, "Expecting member declaration")
		p.skipStmt()
		return nil
	}
	x := p.parseExpr()
	if _, bad := x.(*BadExpr); bad {
		return nil
	}
	switch k := p.tok().Kind; k {
	case Assign, PlusAssign, MinusAssign, StarAssign, SlashAssign, PercentAssign:
		p.next()
		switch x.(type) {
		case *Ident, *MemberExpr, *IndexExpr:
		default:
			p.errorf(Token{Kind: IdentTok, Start: x.Pos(), End: x.End()}, "Variable expected")
		}
		v := p.parseExpr()
		return &AssignStmt{Span: Span{x.Pos(), v.End()}, Op: k, Target: x, Value: v}
	}
	return &ExprStmt{X: x}
}

func (p *parser) parseProperty(mods Modifiers, start int) *PropertyDecl {
	kw := p.next()
	d := &PropertyDecl{Mods: mods, Mutable: kw.Text == "var"}
	d.Start = start
	d.Name = p.name("Expecting property name or receiver type")
	if d.Name == nil {
		d.Name = &Name{Span: Span{kw.End, kw.End}}
	}
	if p.at(Colon) {
		p.next()
		d.Type = p.parseType()
	}
	if p.at(Assign) {
		p.next()
		d.Init = p.parseExpr()
	}
	d.Stop = p.prevEnd()
	return d
}

func (p *parser) parseTypeParams() []*TypeParam {
	if !p.at(Less) {
		return nil
	}
	p.next()
	var tps []*TypeParam
	for !p.at(Greater) && !p.at(EOF) {
		n := p.name("Expecting type parameter name")
		if n == nil {
			break
		}
		tps = append(tps, &TypeParam{Span: n.Span, Name: n})
		if p.at(Colon) {
			p.next()
			p.parseType()
		}
		if !p.at(Comma) {
			break
		}
		p.next()
	}
	p.expect(Greater)
	return tps
}

func (p *parser) parseType() *TypeRef {
	start := p.tok().Start
	t := &TypeRef{}
	t.Start = start
	t.Path = p.parseDottedName()
	if len(t.Path) == 0 {
		t.Stop = start
		return t
	}
	if p.at(Less) {
		t.Args = p.parseTypeArgs()
	}
	if p.at(Question) {
		p.next()
		t.Nullable = true
	}
	t.Stop = p.prevEnd()
	return t
}

func (p *parser) parseTypeArgs() []*TypeRef {
	p.next() // <
	var args []*TypeRef
	for !p.at(Greater) && !p.at(EOF) {
		args = append(args, p.parseType())
		if !p.at(Comma) {
			break
		}
		p.next()
	}
	p.expect(Greater)
	return args
}

func (p *parser) parseFun(mods Modifiers, start int) *FunDecl {
	kw := p.next()
	d := &FunDecl{Mods: mods}
	d.Start = start
	d.TypeParams = p.parseTypeParams()

	var path []*Name
	pathStart := p.tok().Start
	if p.atName() {
		path = p.parseDottedName()
	}
	var args []*TypeRef
	if len(path) > 0 && p.at(Less) {
		args = p.parseTypeArgs()
	}
	receiver := func(names []*Name, nullable bool) *TypeRef {
		r := &TypeRef{Path: names, Args: args, Nullable: nullable}
		r.Start = pathStart
		r.Stop = p.prevEnd()
		return r
	}
	switch {
	case len(path) > 0 && p.at(SafeDot):
		d.Receiver = receiver(path, true)
		p.next()
		d.Name = p.name("Function declaration must have a name")
	case len(path) > 0 && args != nil:
		p.expect(Dot)
		d.Receiver = receiver(path, false)
		d.Name = p.name("Function declaration must have a name")
	case len(path) > 1:
		d.Receiver = receiver(path[:len(path)-1], false)
		d.Receiver.Stop = path[len(path)-2].Stop
		d.Name = path[len(path)-1]
	case len(path) == 1:
		d.Name = path[0]
	default:
		p.errorf(p.tok(), "Function declaration must have a name")
	}
	if d.Name == nil {
		d.Name = &Name{Span: Span{kw.End, kw.End}}
	}
	if _, ok := p.expect(LParen); ok {
		d.Params = p.parseParams(false)
	}
	if p.at(Colon) {
		p.next()
		d.Result = p.parseType()
	}
	switch {
	case p.at(LBrace):
		d.Body = p.parseBlock()
	case p.at(Assign):
		p.next()
		d.ExprBody = p.parseExpr()
	}
	d.Stop = p.prevEnd()
	return d
}

// parseParams parses parameters after '(' up to and including ')'.
func (p *parser) parseParams(ctor bool) []*Param {
	p.parens++
	defer func() { p.parens-- }()
	var params []*Param
	for !p.at(RParen) && !p.at(EOF) {
		start := p.tok().Start
		prm := &Param{}
		prm.Start = start
		for p.at(IdentTok) && !p.tok().Quoted && (p.tok().Text == "vararg" || modifierWords[p.tok().Text]) &&
			p.peek(1).Kind == IdentTok {
			if p.next().Text == "vararg" {
				prm.Vararg = true
			}
		}
		if ctor && (p.atKeyword("val") || p.atKeyword("var")) {
			prm.Property = true
			prm.Mutable = p.next().Text == "var"
		}
		prm.Name = p.name("Expecting a parameter name")
		if prm.Name == nil {
			p.skipParam()
		} else {
			if _, ok := p.expect(Colon); ok {
				prm.Type = p.parseType()
			}
			if p.at(Assign) {
				p.next()
				prm.Default = p.parseExpr()
			}
			prm.Stop = p.prevEnd()
			params = append(params, prm)
		}
		if !p.at(Comma) {
			break
		}
		p.next()
	}
	if _, ok := p.expect(RParen); !ok && !p.at(EOF) {
		p.skipParam()
		if p.at(RParen) {
			p.next()
		}
	}
	return params
}

func (p *parser) skipParam() {
	depth := 0
	for !p.at(EOF) {
		switch p.tok().Kind {
		case LParen, LBrack, LBrace:
			depth++
		case RParen, RBrack, RBrace:
			if depth == 0 {
				return
			}
			depth--
		case Comma:
			if depth == 0 {
				return
			}
		}
		p.next()
	}
}

func (p *parser) parseClass(mods Modifiers, start int) *ClassDecl {
	kw := p.next()
	d := &ClassDecl{Mods: mods}
	d.Start = start
	d.Name = p.name("Name expected")
	if d.Name == nil {
		d.Name = &Name{Span: Span{kw.End, kw.End}}
	}
	d.TypeParams = p.parseTypeParams()
	if p.at(LParen) && !p.tok().NewlineBefore {
		p.next()
		d.HasCtor = true
		d.CtorParams = p.parseParams(true)
	}
	if p.at(Colon) {
		p.next()
		for {
			st := &SuperType{Type: p.parseType()}
			st.Start = st.Type.Start
			if p.at(LParen) && !p.tok().NewlineBefore {
				call := p.parseCall(&BadExpr{Span: st.Type.Span}, nil)
				st.Args = call.Args
			}
			st.Stop = p.prevEnd()
			d.Supers = append(d.Supers, st)
			if !p.at(Comma) || len(st.Type.Path) == 0 {
				break
			}
			p.next()
		}
	}
	if p.at(LBrace) {
		p.next()
		saved := p.parens
		p.parens = 0
		d.Members = p.parseStmtList(true)
		p.parens = saved
		p.expect(RBrace)
	}
	d.Stop = p.prevEnd()
	return d
}

// parseStmtList parses statements up to a closing brace or end of input.
func (p *parser) parseStmtList(inClass bool) []Stmt {
	var stmts []Stmt
	for {
		for p.at(Semi) {
			p.next()
		}
		if p.at(RBrace) || p.at(EOF) {
			return stmts
		}
		start := p.pos
		if s := p.parseStatement(inClass); s != nil {
			stmts = append(stmts, s)
		}
		if p.pos == start {
			p.next()
			continue
		}
		p.endStmt()
	}
}

func (p *parser) parseBlock() *Block {
	b := &Block{}
	open, _ := p.expect(LBrace)
	b.Start = open.Start
	saved := p.parens
	p.parens = 0
	b.Stmts = p.parseStmtList(false)
	p.parens = saved
	p.expect(RBrace)
	b.Stop = p.prevEnd()
	return b
}

// parseBody parses a loop or branch body: a block or a single statement.
func (p *parser) parseBody() *Block {
	if p.at(LBrace) {
		return p.parseBlock()
	}
	start := p.tok().Start
	b := &Block{Implicit: true}
	saved := p.parens
	p.parens = 0
	if s := p.parseStatement(false); s != nil {
		b.Stmts = []Stmt{s}
	} else if p.at(EOF) {
		p.errorf(p.tok(), "Expecting an expression")
	}
	p.parens = saved
	b.Start = start
	b.Stop = p.prevEnd()
	if b.Stop < start {
		b.Stop = start
	}
	return b
}

func (p *parser) parseCond() Expr {
	if _, ok := p.expect(LParen); !ok {
		return &BadExpr{Span: Span{p.tok().Start, p.tok().Start}}
	}
	p.parens++
	x := p.parseExpr()
	p.parens--
	p.expect(RParen)
	return x
}

func (p *parser) parseWhile() *WhileStmt {
	s := &WhileStmt{}
	s.Start = p.next().Start
	s.Cond = p.parseCond()
	s.Body = p.parseBody()
	s.Stop = p.prevEnd()
	return s
}

func (p *parser) parseDoWhile() *WhileStmt {
	s := &WhileStmt{DoWhile: true}
	s.Start = p.next().Start
	s.Body = p.parseBody()
	p.expectKeyword("while")
	s.Cond = p.parseCond()
	s.Stop = p.prevEnd()
	return s
}

func (p *parser) parseFor() *ForStmt {
	s := &ForStmt{}
	s.Start = p.next().Start
	if _, ok := p.expect(LParen); ok {
		p.parens++
		s.Var = p.name("Expecting a variable name")
		if p.at(Colon) {
			p.next()
			p.parseType()
		}
		p.expectKeyword("in")
		s.Iter = p.parseExpr()
		p.parens--
		p.expect(RParen)
	}
	if s.Iter == nil {
		s.Iter = &BadExpr{Span: Span{p.prevEnd(), p.prevEnd()}}
	}
	s.Body = p.parseBody()
	s.Stop = p.prevEnd()
	return s
}

func (p *parser) parseExpr() Expr { return p.parseDisjunction() }

func binary(op Kind, x, y Expr) *BinaryExpr {
	return &BinaryExpr{Span: Span{x.Pos(), y.End()}, Op: op, X: x, Y: y}
}

func (p *parser) parseDisjunction() Expr {
	x := p.parseConjunction()
	for p.at(OrOr) {
		p.next()
		x = binary(OrOr, x, p.parseConjunction())
	}
	return x
}

func (p *parser) parseConjunction() Expr {
	x := p.parseEquality()
	for p.at(AndAnd) {
		p.next()
		x = binary(AndAnd, x, p.parseEquality())
	}
	return x
}

func (p *parser) parseEquality() Expr {
	x := p.parseComparison()
	for !p.newline() {
		switch k := p.tok().Kind; k {
		case Eq, NotEq, Identical, NotIdent:
			p.next()
			x = binary(k, x, p.parseComparison())
			continue
		}
		return x
	}
	return x
}

func (p *parser) parseComparison() Expr {
	x := p.parseNamedCheck()
	for !p.newline() {
		switch k := p.tok().Kind; k {
		case Less, LessEq, Greater, GreaterEq:
			p.next()
			x = binary(k, x, p.parseNamedCheck())
			continue
		}
		return x
	}
	return x
}

func (p *parser) parseNamedCheck() Expr {
	x := p.parseElvis()
	for !p.newline() {
		t := p.tok()
		var neg bool
		switch {
		case t.isKeyword("in"):
		case t.Kind == Bang && p.peek(1).isKeyword("in") && p.peek(1).Start == t.End:
			neg = true
			p.next()
		default:
			return x
		}
		in := p.next()
		op := &Name{Span: Span{t.Start, in.End}, Text: "in"}
		if neg {
			op.Text = "!in"
		}
		y := p.parseElvis()
		x = &BinaryExpr{Span: Span{x.Pos(), y.End()}, Op: IdentTok, Infix: op, X: x, Y: y}
	}
	return x
}

func (p *parser) parseElvis() Expr {
	x := p.parseInfixCall()
	for p.at(Elvis) {
		p.next()
		x = binary(Elvis, x, p.parseInfixCall())
	}
	return x
}

func (p *parser) parseInfixCall() Expr {
	x := p.parseRange()
	for !p.newline() && p.atName() && !p.tok().Quoted && !p.tok().isKeyword("in") {
		if _, bad := x.(*BadExpr); bad {
			return x
		}
		t := p.next()
		op := &Name{Span: Span{t.Start, t.End}, Text: t.Text}
		y := p.parseRange()
		x = &BinaryExpr{Span: Span{x.Pos(), y.End()}, Op: IdentTok, Infix: op, X: x, Y: y}
	}
	return x
}

func (p *parser) parseRange() Expr {
	x := p.parseAdditive()
	for p.at(Range) && !p.newline() {
		p.next()
		x = binary(Range, x, p.parseAdditive())
	}
	return x
}

func (p *parser) parseAdditive() Expr {
	x := p.parseMultiplicative()
	for (p.at(Plus) || p.at(Minus)) && !p.newline() {
		k := p.next().Kind
		x = binary(k, x, p.parseMultiplicative())
	}
	return x
}

func (p *parser) parseMultiplicative() Expr {
	x := p.parsePrefix()
	for (p.at(Star) || p.at(Slash) || p.at(Percent)) && !p.newline() {
		k := p.next().Kind
		x = binary(k, x, p.parsePrefix())
	}
	return x
}

func (p *parser) parsePrefix() Expr {
	switch k := p.tok().Kind; k {
	case Minus, Plus, Bang, PlusPlus, MinusMinus:
		t := p.next()
		x := p.parsePrefix()
		return &UnaryExpr{Span: Span{t.Start, x.End()}, Op: k, X: x}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	x := p.parsePrimary()
	if _, bad := x.(*BadExpr); bad {
		return x
	}
	for {
		t := p.tok()
		switch {
		case t.Kind == Dot || t.Kind == SafeDot:
			p.next()
			sel := p.name("Name expected")
			if sel == nil {
				sel = &Name{Span: Span{t.End, t.End}}
			}
			x = &MemberExpr{Span: Span{x.Pos(), sel.Stop}, X: x, Safe: t.Kind == SafeDot, Sel: sel}
		case p.newline():
			return x
		case t.Kind == LParen:
			x = p.parseCall(x, nil)
		case t.Kind == Less && t.Start == x.End():
			if args, ok := p.tryTypeArgs(); ok {
				x = p.parseCall(x, args)
				continue
			}
			return x
		case t.Kind == LBrack:
			p.next()
			p.parens++
			idx := p.parseExpr()
			p.parens--
			p.expect(RBrack)
			x = &IndexExpr{Span: Span{x.Pos(), p.prevEnd()}, X: x, Index: idx}
		case t.Kind == NotNull || t.Kind == PlusPlus || t.Kind == MinusMinus:
			p.next()
			x = &PostfixExpr{Span: Span{x.Pos(), t.End}, Op: t.Kind, X: x}
		default:
			return x
		}
	}
}

// tryTypeArgs speculatively parses explicit call type arguments such as
// `emptyList<String>()`, restoring the parser when they are not followed by
// an argument list.
func (p *parser) tryTypeArgs() ([]*TypeRef, bool) {
	savePos, saveErrs, saveEOF := p.pos, len(p.errs), p.eofReported
	args := p.parseTypeArgs()
	if len(p.errs) == saveErrs && p.at(LParen) && !p.newline() {
		return args, true
	}
	p.pos, p.errs, p.eofReported = savePos, p.errs[:saveErrs], saveEOF
	return nil, false
}

func (p *parser) parseCall(fun Expr, typeArgs []*TypeRef) *CallExpr {
	c := &CallExpr{Fun: fun, TypeArgs: typeArgs}
	c.Start = fun.Pos()
	p.next() // (
	p.parens++
	for !p.at(RParen) && !p.at(EOF) {
		a := &Arg{}
		a.Start = p.tok().Start
		if p.atName() && p.peek(1).Kind == Assign {
			a.Name = p.name("")
			p.next()
		}
		a.Value = p.parseExpr()
		a.Stop = a.Value.End()
		c.Args = append(c.Args, a)
		if _, bad := a.Value.(*BadExpr); bad {
			p.skipParam()
		}
		if !p.at(Comma) {
			break
		}
		p.next()
	}
	p.parens--
	if _, ok := p.expect(RParen); ok {
		c.Closed = true
	} else if !p.at(EOF) {
		p.skipParam()
		if p.at(RParen) {
			p.next()
		}
	}
	c.Stop = p.prevEnd()
	return c
}

func (p *parser) parsePrimary() Expr {
	t := p.tok()
	switch t.Kind {
	case IntTok:
		p.next()
		v, ok := parseInt(t.Text)
		if !ok {
			p.errorf(t, "The value is out of range")
		}
		return &IntLit{Span: Span{t.Start, t.End}, Text: t.Text, Value: v}
	case DoubleTok:
		p.next()
		v, err := strconv.ParseFloat(strings.ReplaceAll(t.Text, "_", ""), 64)
		if err != nil {
			p.errorf(t, "Invalid floating point literal")
		}
		return &DoubleLit{Span: Span{t.Start, t.End}, Text: t.Text, Value: v}
	case StringOpen:
		return p.parseString()
	case LParen:
		p.next()
		p.parens++
		x := p.parseExpr()
		p.parens--
		p.expect(RParen)
		return &ParenExpr{Span: Span{t.Start, p.prevEnd()}, X: x}
	case IdentTok:
		if t.Quoted || !IsHardKeyword(t.Text) {
			p.next()
			return &Ident{Name: &Name{Span: Span{t.Start, t.End}, Text: t.Text, Quoted: t.Quoted}}
		}
		switch t.Text {
		case "true", "false":
			p.next()
			return &BoolLit{Span: Span{t.Start, t.End}, Value: t.Text == "true"}
		case "null":
			p.next()
			return &NullLit{Span: Span{t.Start, t.End}}
		case "this":
			p.next()
			return &ThisExpr{Span: Span{t.Start, t.End}}
		case "if":
			return p.parseIf()
		case "throw":
			p.next()
			x := p.parseExpr()
			return &ThrowExpr{Span: Span{t.Start, x.End()}, X: x}
		}
	}
	p.errorf(t, "Expecting an expression")
	return &BadExpr{Span: Span{t.Start, t.Start}}
}

func (p *parser) parseIf() *IfExpr {
	x := &IfExpr{}
	x.Start = p.next().Start
	x.Cond = p.parseCond()
	x.Then = p.parseBody()
	// else may follow on the next line, possibly after a semicolon.
	save := p.pos
	for p.at(Semi) {
		p.next()
	}
	if p.atKeyword("else") {
		p.next()
		x.Else = p.parseBody()
	} else {
		p.pos = save
	}
	x.Stop = p.prevEnd()
	return x
}

func (p *parser) parseString() *StringLit {
	open := p.next()
	s := &StringLit{Raw: open.Text == `"""`}
	s.Start = open.Start
	for {
		t := p.tok()
		switch t.Kind {
		case StringText:
			p.next()
			s.Parts = append(s.Parts, &StringPart{Span: Span{t.Start, t.End}, Text: t.Text})
		case TemplateName:
			p.next()
			s.Interpolated = true
			id := &Ident{Name: &Name{Span: Span{t.Start + 1, t.End}, Text: t.Text}}
			s.Parts = append(s.Parts, &StringPart{Span: Span{t.Start, t.End}, Expr: id})
		case TemplateOpen:
			p.next()
			s.Interpolated = true
			saved := p.parens
			p.parens = 1
			x := p.parseExpr()
			for !p.at(TemplateClose) && !p.at(StringClose) && !p.at(EOF) {
				p.errorf(p.tok(), "Expecting '}'")
				p.next()
			}
			p.parens = saved
			p.expect(TemplateClose)
			s.Parts = append(s.Parts, &StringPart{Span: Span{t.Start, p.prevEnd()}, Expr: x})
		case StringClose:
			p.next()
			s.Closed = t.Text != ""
			s.Stop = t.End
			return s
		default:
			// The lexer has already reported the unterminated literal.
			s.Stop = p.prevEnd()
			return s
		}
	}
}

func parseInt(text string) (int64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	s = strings.TrimRight(s, "Ll")
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
