package concepts

import (
	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/frontend/ir"
)

// unifyType unifies a pattern (which may contain type variables) against a
// concrete type, accumulating bindings into sb. There is no backtracking: the
// first conflicting binding or shape mismatch ends the attempt.
func unifyType(pattern, concrete ir.Type, sb *SubstBuilder) diag.Diag {
	switch p := pattern.(type) {
	case *ir.Var:
		return sb.Bind(p.Name, concrete)
	case *ir.Name:
		if c, ok := concrete.(*ir.Name); ok && c.Name == p.Name {
			return nil
		}
	case *ir.Applied:
		c, ok := concrete.(*ir.Applied)
		if !ok || c.Base != p.Base || len(c.Args) != len(p.Args) {
			break
		}
		for i, arg := range p.Args {
			if d := unifyType(arg, c.Args[i], sb); d != nil {
				return d
			}
		}
		return nil
	case *ir.Ref:
		if c, ok := concrete.(*ir.Ref); ok {
			return unifyType(p.Elem, c.Elem, sb)
		}
	}
	return diag.New(diag.NewUnificationConflict{
		Positioner: ir.RangeOf(pattern),
		Param:      pattern.String(),
		First:      pattern,
		Second:     concrete,
	})
}

// unifyInst unifies a witness's implemented instantiation pattern against a
// constraint's concrete arguments, returning the frozen substitution on
// success.
func unifyInst(pattern Inst, args []ir.Type) (Subst, diag.Diag) {
	if len(pattern.Args) != len(args) {
		// cannot happen for classified witnesses; treated as a plain mismatch
		return Subst{}, diag.New(diag.NewNoWitnessFound{
			Capability: pattern.Capability,
			Args:       args,
		})
	}
	sb := NewSubstBuilder()
	for i, p := range pattern.Args {
		if d := unifyType(p, args[i], sb); d != nil {
			return Subst{}, d
		}
	}
	return sb.Freeze(), nil
}
