package syntax

// Node is any syntax tree node. Pos and End are byte offsets; End is
// exclusive.
type Node interface {
	Pos() int
	End() int
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement or declaration node.
type Stmt interface {
	Node
	stmtNode()
}

// Span is embedded by every node to carry its byte range.
type Span struct {
	Start, Stop int
}

func (s Span) Pos() int { return s.Start }
func (s Span) End() int { return s.Stop }

// Name is an identifier occurrence.
type Name struct {
	Span
	Text   string
	Quoted bool
}

// File is a parsed snippet or library source file.
type File struct {
	Span
	Annotations []*FileAnnotation
	Package     *PackageDirective
	Imports     []*ImportDirective
	Stmts       []Stmt
}

// FileAnnotation is `@file:Name(args)`.
type FileAnnotation struct {
	Span
	Name *Name
	Args []Expr
}

// PackageDirective is `package a.b.c`.
type PackageDirective struct {
	Span
	Path []*Name
}

// ImportDirective is `import a.b.c`, `import a.b.*` or `import a.b.c as d`.
type ImportDirective struct {
	Span
	Path  []*Name
	Star  bool
	Alias *Name
}

// Modifiers collects declaration modifiers.
type Modifiers struct {
	Visibility string
	Data       bool
	Inner      bool
	Open       bool
	Override   bool
	Infix      bool
}

// TypeRef is a written type such as `List<Int>?`.
type TypeRef struct {
	Span
	Path     []*Name
	Args     []*TypeRef
	Nullable bool
}

// TypeParam is a declared type parameter.
type TypeParam struct {
	Span
	Name *Name
}

// Param is a function or constructor parameter. Property is set for
// constructor parameters declared with val or var.
type Param struct {
	Span
	Mods     Modifiers
	Name     *Name
	Type     *TypeRef
	Default  Expr
	Vararg   bool
	Property bool
	Mutable  bool
}

// PropertyDecl is `val` or `var`.
type PropertyDecl struct {
	Span
	Mods    Modifiers
	Mutable bool
	Name    *Name
	Type    *TypeRef
	Init    Expr
}

// FunDecl is a named function, optionally an extension.
type FunDecl struct {
	Span
	Mods       Modifiers
	TypeParams []*TypeParam
	Receiver   *TypeRef
	Name       *Name
	Params     []*Param
	Result     *TypeRef
	Body       *Block
	ExprBody   Expr
}

// ClassDecl is a class, data class, nested or inner class.
type ClassDecl struct {
	Span
	Mods       Modifiers
	Name       *Name
	TypeParams []*TypeParam
	HasCtor    bool
	CtorParams []*Param
	Supers     []*SuperType
	Members    []Stmt
}

// SuperType is one entry of a class's supertype list, with the
// superclass constructor arguments when given.
type SuperType struct {
	Span
	Type *TypeRef
	Args []*Arg
}

// InitBlock is an `init { }` block inside a class body.
type InitBlock struct {
	Span
	Body *Block
}

// Block is a brace-delimited statement list. Implicit blocks wrap a single
// statement used as a branch or loop body.
type Block struct {
	Span
	Stmts    []Stmt
	Implicit bool
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Pos() int { return s.X.Pos() }
func (s *ExprStmt) End() int { return s.X.End() }

// AssignStmt is `target op value` for = and the compound assignments.
type AssignStmt struct {
	Span
	Op     Kind
	Target Expr
	Value  Expr
}

// WhileStmt is `while (cond) body`; DoWhile marks the do-while form.
type WhileStmt struct {
	Span
	Cond    Expr
	Body    *Block
	DoWhile bool
}

// ForStmt is `for (v in iter) body`.
type ForStmt struct {
	Span
	Var  *Name
	Iter Expr
	Body *Block
}

// ReturnStmt is `return [value]`.
type ReturnStmt struct {
	Span
	Value Expr
}

// BranchStmt is `break` or `continue`.
type BranchStmt struct {
	Span
	Continue bool
}

// Ident is a simple name reference.
type Ident struct {
	Name *Name
}

func (x *Ident) Pos() int { return x.Name.Start }
func (x *Ident) End() int { return x.Name.Stop }

// IntLit is an integer literal.
type IntLit struct {
	Span
	Text  string
	Value int64
}

// DoubleLit is a floating point literal.
type DoubleLit struct {
	Span
	Text  string
	Value float64
}

// BoolLit is true or false.
type BoolLit struct {
	Span
	Value bool
}

// NullLit is null.
type NullLit struct {
	Span
}

// StringPart is a literal chunk (Expr nil) or a template entry.
type StringPart struct {
	Span
	Text string
	Expr Expr
}

// StringLit is a string literal, possibly with template entries.
type StringLit struct {
	Span
	Parts        []*StringPart
	Raw          bool
	Interpolated bool
	Closed       bool
}

// Value returns the literal's text when it has no template entries.
func (x *StringLit) Value() string {
	var s string
	for _, p := range x.Parts {
		s += p.Text
	}
	return s
}

// ThisExpr is `this`.
type ThisExpr struct {
	Span
}

// ParenExpr is `(x)`.
type ParenExpr struct {
	Span
	X Expr
}

// UnaryExpr is a prefix operator application.
type UnaryExpr struct {
	Span
	Op Kind
	X  Expr
}

// PostfixExpr is `x!!`, `x++` or `x--`.
type PostfixExpr struct {
	Span
	Op Kind
	X  Expr
}

// BinaryExpr is `x op y`. Infix calls such as `until` keep the function
// name in Infix with Op set to IdentTok.
type BinaryExpr struct {
	Span
	Op    Kind
	Infix *Name
	X, Y  Expr
}

// Arg is a call argument.
type Arg struct {
	Span
	Name  *Name
	Value Expr
}

// CallExpr is `fun(args)`.
type CallExpr struct {
	Span
	Fun      Expr
	TypeArgs []*TypeRef
	Args     []*Arg
	Closed   bool
}

// MemberExpr is `x.sel` or `x?.sel`.
type MemberExpr struct {
	Span
	X    Expr
	Safe bool
	Sel  *Name
}

// IndexExpr is `x[i]`.
type IndexExpr struct {
	Span
	X     Expr
	Index Expr
}

// IfExpr is `if (cond) then else other`.
type IfExpr struct {
	Span
	Cond Expr
	Then *Block
	Else *Block
}

// ThrowExpr is `throw x`.
type ThrowExpr struct {
	Span
	X Expr
}

// BadExpr stands in for an expression that failed to parse.
type BadExpr struct {
	Span
}

func (*Ident) exprNode()       {}
func (*IntLit) exprNode()      {}
func (*DoubleLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NullLit) exprNode()     {}
func (*StringLit) exprNode()   {}
func (*ThisExpr) exprNode()    {}
func (*ParenExpr) exprNode()   {}
func (*UnaryExpr) exprNode()   {}
func (*PostfixExpr) exprNode() {}
func (*BinaryExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}
func (*MemberExpr) exprNode()  {}
func (*IndexExpr) exprNode()   {}
func (*IfExpr) exprNode()      {}
func (*ThrowExpr) exprNode()   {}
func (*BadExpr) exprNode()     {}

func (*PropertyDecl) stmtNode() {}
func (*FunDecl) stmtNode()      {}
func (*ClassDecl) stmtNode()    {}
func (*InitBlock) stmtNode()    {}
func (*Block) stmtNode()        {}
func (*ExprStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()   {}
func (*WhileStmt) stmtNode()    {}
func (*ForStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*BranchStmt) stmtNode()   {}
