package concepts

import (
	"github.com/fennec-lang/fennec/frontend/ir"
)

// WitnessParam is one formal type parameter of a witness, together with the
// nested capability requirements it imposes ("needs a witness for D<Tk>").
type WitnessParam struct {
	Name     string
	Requires []Inst
}

// Witness is a concrete implementation of a capability for specific type
// arguments, possibly parameterized over nested capabilities. Immutable once
// classified.
type Witness struct {
	Name string
	// Params are the witness's own formal type parameters.
	Params []WitnessParam
	// Implements is the capability instantiation this witness discharges; its
	// arguments form the pattern unified against a constraint's concrete
	// arguments, with Params occurring as type variables.
	Implements Inst
	// Assoc determines the capability's associated types for this witness,
	// expressed over Params.
	Assoc map[string]ir.Type
	// Bodies maps member names to implementations. Members absent here are
	// completed from capability defaults.
	Bodies map[string]Impl
	// Scope is the lexical nesting depth the witness was declared at; larger
	// means more deeply nested. Used as the locality tie-break.
	Scope int

	ir.Range
}

// ParamNamed returns the witness parameter with the given name.
func (w *Witness) ParamNamed(name string) (WitnessParam, bool) {
	for _, p := range w.Params {
		if p.Name == name {
			return p, true
		}
	}
	return WitnessParam{}, false
}

// Requirements returns all nested requirements of the witness, in parameter
// declaration order.
func (w *Witness) Requirements() []Inst {
	var all []Inst
	for _, p := range w.Params {
		all = append(all, p.Requires...)
	}
	return all
}

// Attach connects a callable to a witness-provided member body, keeping the
// lowered body ID. The surrounding compiler calls this after classification,
// before any bound member is invoked.
func (w *Witness) Attach(member string, fn func(self *BoundWitness, args []Value) (Value, error)) {
	existing, _ := w.Bodies[member].(NativeImpl)
	w.Bodies[member] = NativeImpl{ID: existing.ID, Fn: fn}
}

// Impl is a member implementation carried by a witness. Implementations
// arriving from the lowering stage are opaque body references; tests and
// embedders may attach a callable to make the member invocable through the
// default binder's evaluator.
type Impl interface{ isImpl() }

// NativeImpl is a member body supplied by the witness declaration itself.
type NativeImpl struct {
	// ID names the lowered body in the surrounding compiler.
	ID string
	// Fn, when non-nil, makes the member invocable: it receives the bound
	// witness (for access to nested and super witnesses) and the call
	// arguments.
	Fn func(self *BoundWitness, args []Value) (Value, error)
}

// DefaultedImpl is a member completed from a capability default body.
type DefaultedImpl struct {
	Body Expr
}

func (NativeImpl) isImpl()    {}
func (DefaultedImpl) isImpl() {}
