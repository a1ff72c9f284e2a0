package types

import "strings"

// ParamList renders a function's parameters, e.g. "(a: Int, b: String = ...)".
func (d *FunctionDescriptor) ParamList() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Vararg {
			b.WriteString("vararg ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type.String())
		if p.HasDefault {
			b.WriteString(" = ...")
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Signature renders a declaration header for listings.
func Signature(d Descriptor) string {
	var s signature
	d.Accept(&s)
	return s.text
}

type signature struct{ text string }

func (s *signature) VisitFunction(d *FunctionDescriptor) {
	var b strings.Builder
	b.WriteString("fun ")
	if d.Receiver != nil {
		b.WriteString(d.Receiver.String())
		b.WriteByte('.')
	}
	b.WriteString(d.Name())
	b.WriteString(d.ParamList())
	if d.Result != nil {
		b.WriteString(": ")
		b.WriteString(d.Result.String())
	}
	s.text = b.String()
}

func (s *signature) VisitVariable(d *VariableDescriptor) {
	kw := "val "
	if d.Mutable {
		kw = "var "
	}
	s.text = kw + d.Name() + ": " + d.Type.String()
}

func (s *signature) VisitClass(d *ClassDescriptor) {
	kw := "class "
	if d.Data {
		kw = "data class "
	}
	s.text = kw + d.Name()
	if d.Constructor != nil && len(d.Constructor.Params) > 0 {
		s.text += d.Constructor.ParamList()
	}
}

func (s *signature) VisitPackage(d *PackageDescriptor) { s.text = "package " + d.FQName }

func (s *signature) VisitTypeParameter(d *TypeParameterDescriptor) { s.text = "<" + d.Name() + ">" }
