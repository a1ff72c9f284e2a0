package types

import (
	"errors"
	"fmt"
)

// ErrUndecidable is returned when a declaration carries no context from
// which its visibility could be computed.
var ErrUndecidable = errors.New("visibility cannot be decided")

// Context is the place a reference is made from.
type Context struct {
	// Line is the referencing snippet, 0 for library code.
	Line int
	// Package is the referencing package for library code.
	Package string
	// Class is the innermost enclosing class, if any.
	Class *ClassDescriptor
}

// IsVisible reports whether d may be referenced from ctx. A non-nil error
// means the answer is unknown; completion treats that as visible.
func IsVisible(d Descriptor, ctx Context) (bool, error) {
	switch d.Visibility() {
	case Private:
		switch c := d.Container().(type) {
		case *ClassDescriptor:
			return enclosedBy(ctx.Class, c), nil
		case *PackageDescriptor:
			return ctx.Line == 0 && ctx.Package == c.FQName, nil
		case nil:
			if d.Line() > 0 {
				return d.Line() == ctx.Line, nil
			}
		}
		return false, fmt.Errorf("%w: private %s has no declaring scope", ErrUndecidable, d.Name())
	case Protected:
		c, ok := d.Container().(*ClassDescriptor)
		if !ok {
			return false, fmt.Errorf("%w: protected %s is not a class member", ErrUndecidable, d.Name())
		}
		for cur := ctx.Class; cur != nil; cur = cur.Outer() {
			if cur.IsSubclassOf(c) {
				return true, nil
			}
		}
		return false, nil
	}
	return true, nil
}

func enclosedBy(cls, target *ClassDescriptor) bool {
	for cur := cls; cur != nil; cur = cur.Outer() {
		if cur == target {
			return true
		}
	}
	return false
}

// TypeParameterReachable reports whether tp can be named from ctx. A class
// type parameter is hidden inside nested classes unless every class between
// the reference and the declaring class is inner.
func TypeParameterReachable(tp *TypeParameterDescriptor, ctx Context) bool {
	owner, ok := tp.Container().(*ClassDescriptor)
	if !ok {
		return true
	}
	for cur := ctx.Class; cur != nil; cur = cur.Outer() {
		if cur == owner {
			return true
		}
		if !cur.Inner {
			return false
		}
	}
	return false
}
