package concepts

import (
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/frontend/ir"
)

// SubstBuilder accumulates bindings from formal type parameters to concrete
// types during one unification attempt. Freeze before sharing.
type SubstBuilder struct {
	b *immutable.MapBuilder[string, ir.Type]
}

func NewSubstBuilder() *SubstBuilder {
	return &SubstBuilder{b: immutable.NewMapBuilder[string, ir.Type](nil)}
}

// Bind adds one binding. Binding a parameter already bound to a structurally
// different type fails with UnificationConflict; rebinding to the same type is
// a no-op.
func (sb *SubstBuilder) Bind(param string, t ir.Type) diag.Diag {
	if existing, ok := sb.b.Get(param); ok {
		if ir.Equal(existing, t) {
			return nil
		}
		return diag.New(diag.NewUnificationConflict{
			Positioner: ir.RangeOf(t),
			Param:      param,
			First:      existing,
			Second:     t,
		})
	}
	sb.b.Set(param, t)
	return nil
}

// Freeze converts the builder into an immutable, structurally shared
// snapshot. The builder must not be used afterwards.
func (sb *SubstBuilder) Freeze() Subst {
	return Subst{m: sb.b.Map()}
}

// Subst is a frozen finite partial function from formal type parameters to
// concrete types. Safe to pass into recursive calls without copying.
type Subst struct {
	m *immutable.Map[string, ir.Type]
}

func EmptySubst() Subst {
	return Subst{m: immutable.NewMap[string, ir.Type](nil)}
}

func (s Subst) Lookup(param string) (ir.Type, bool) {
	if s.m == nil {
		return nil, false
	}
	return s.m.Get(param)
}

func (s Subst) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Merge produces a new map containing the union of bindings. It fails when
// any shared key maps to structurally different types in the two inputs, and
// succeeds unchanged when shared keys agree.
func (s Subst) Merge(other Subst) (Subst, bool) {
	if other.Len() == 0 {
		return s, true
	}
	if s.Len() == 0 {
		return other, true
	}
	merged := s.m
	it := other.m.Iterator()
	for !it.Done() {
		param, t, _ := it.Next()
		if existing, ok := merged.Get(param); ok {
			if !ir.Equal(existing, t) {
				return Subst{}, false
			}
			continue
		}
		merged = merged.Set(param, t)
	}
	return Subst{m: merged}, true
}

// Apply rewrites t, replacing every type variable bound in the map with its
// binding. Unbound variables are left in place.
func (s Subst) Apply(t ir.Type) ir.Type {
	switch t := t.(type) {
	case *ir.Var:
		if bound, ok := s.Lookup(t.Name); ok {
			return bound
		}
		return t
	case *ir.Applied:
		args := make([]ir.Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = s.Apply(arg)
		}
		return &ir.Applied{Base: t.Base, Args: args, Range: t.Range}
	case *ir.Ref:
		return &ir.Ref{Elem: s.Apply(t.Elem), Range: t.Range}
	default:
		return t
	}
}

// ApplyAll rewrites a type argument list under the map.
func (s Subst) ApplyAll(ts []ir.Type) []ir.Type {
	out := make([]ir.Type, len(ts))
	for i, t := range ts {
		out[i] = s.Apply(t)
	}
	return out
}

// ApplyInst rewrites an instantiation's arguments under the map.
func (s Subst) ApplyInst(i Inst) Inst {
	return Inst{Capability: i.Capability, Args: s.ApplyAll(i.Args)}
}

func (s Subst) String() string {
	if s.m == nil {
		return "{}"
	}
	var parts []string
	it := s.m.Iterator()
	for !it.Done() {
		param, t, _ := it.Next()
		parts = append(parts, param+" := "+t.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
