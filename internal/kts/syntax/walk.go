package syntax

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	addNames := func(names []*Name) {
		for _, nm := range names {
			add(nm)
		}
	}
	switch n := n.(type) {
	case *File:
		for _, a := range n.Annotations {
			add(a)
		}
		if n.Package != nil {
			add(n.Package)
		}
		for _, d := range n.Imports {
			add(d)
		}
		for _, s := range n.Stmts {
			add(s)
		}
	case *FileAnnotation:
		add(n.Name)
		for _, a := range n.Args {
			add(a)
		}
	case *PackageDirective:
		addNames(n.Path)
	case *ImportDirective:
		addNames(n.Path)
		add(n.Alias)
	case *TypeRef:
		addNames(n.Path)
		for _, a := range n.Args {
			add(a)
		}
	case *TypeParam:
		add(n.Name)
	case *Param:
		add(n.Name, n.Type, n.Default)
	case *PropertyDecl:
		add(n.Name, n.Type, n.Init)
	case *FunDecl:
		for _, tp := range n.TypeParams {
			add(tp)
		}
		add(n.Receiver, n.Name)
		for _, prm := range n.Params {
			add(prm)
		}
		add(n.Result, n.Body, n.ExprBody)
	case *ClassDecl:
		add(n.Name)
		for _, tp := range n.TypeParams {
			add(tp)
		}
		for _, prm := range n.CtorParams {
			add(prm)
		}
		for _, st := range n.Supers {
			add(st)
		}
		for _, m := range n.Members {
			add(m)
		}
	case *SuperType:
		add(n.Type)
		for _, a := range n.Args {
			add(a)
		}
	case *InitBlock:
		add(n.Body)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
	case *ExprStmt:
		add(n.X)
	case *AssignStmt:
		add(n.Target, n.Value)
	case *WhileStmt:
		if n.DoWhile {
			add(n.Body, n.Cond)
		} else {
			add(n.Cond, n.Body)
		}
	case *ForStmt:
		add(n.Var, n.Iter, n.Body)
	case *ReturnStmt:
		add(n.Value)
	case *Ident:
		add(n.Name)
	case *StringLit:
		for _, part := range n.Parts {
			add(part)
		}
	case *StringPart:
		add(n.Expr)
	case *ParenExpr:
		add(n.X)
	case *UnaryExpr:
		add(n.X)
	case *PostfixExpr:
		add(n.X)
	case *BinaryExpr:
		add(n.X, n.Infix, n.Y)
	case *Arg:
		add(n.Name, n.Value)
	case *CallExpr:
		add(n.Fun)
		for _, t := range n.TypeArgs {
			add(t)
		}
		for _, a := range n.Args {
			add(a)
		}
	case *MemberExpr:
		add(n.X, n.Sel)
	case *IndexExpr:
		add(n.X, n.Index)
	case *IfExpr:
		add(n.Cond, n.Then, n.Else)
	case *ThrowExpr:
		add(n.X)
	}
	return out
}

// isNilNode catches typed nil pointers stored in a Node interface.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Name:
		return n == nil
	case *TypeRef:
		return n == nil
	case *Block:
		return n == nil
	case *PackageDirective:
		return n == nil
	}
	return false
}

// Inspect traverses the tree rooted at n in depth-first order, calling f for
// each node. Children are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || isNilNode(n) || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// FindLeaf returns the path from the root to the innermost node whose span
// contains offset. The last element is the leaf; the path is empty when
// offset lies outside the file.
func FindLeaf(f *File, offset int) []Node {
	if offset < f.Pos() || offset > f.End() {
		return nil
	}
	path := []Node{f}
	var cur Node = f
	for {
		var nextNode Node
		for _, c := range Children(cur) {
			if c.Pos() <= offset && offset < c.End() {
				nextNode = c
				break
			}
		}
		if nextNode == nil {
			return path
		}
		path = append(path, nextNode)
		cur = nextNode
	}
}
