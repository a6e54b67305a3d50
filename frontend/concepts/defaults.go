package concepts

import (
	"github.com/pkg/errors"

	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/internal/log"
)

var defaultsLogger = log.DefaultLogger.With("section", "defaults")

// Value is a runtime value flowing through bound member bodies. The engine
// does not interpret it; native implementations and the surrounding compiler
// agree on its shape.
type Value = any

// BoundWitness is a resolved witness with a complete member set: members the
// witness omits are bound to capability default bodies, references to nested
// requirement witnesses and super-capability witnesses are discharged.
type BoundWitness struct {
	Resolved   *Resolved
	Capability *Capability

	members  map[string]Impl
	supers   map[string]*BoundWitness
	children map[string][]*BoundWitness
}

// Bind completes a resolved witness's member set with capability defaults,
// recursively binding its requirement witnesses and resolving super-capability
// constraints against the same concrete type arguments.
func (r *Resolver) Bind(res *Resolved, vis Visibility) (*BoundWitness, diag.Diag) {
	c, ok := r.registry.Capability(res.Witness.Implements.Capability)
	if !ok {
		// unreachable for classified witnesses
		return nil, diag.New(diag.NewMalformedDeclaration{
			Positioner: res.Witness.Range,
			Decl:       res.Witness.Name,
			Reason:     "implements unknown capability '" + res.Witness.Implements.Capability + "'",
		})
	}

	bw := &BoundWitness{
		Resolved:   res,
		Capability: c,
		members:    make(map[string]Impl, len(c.Members)),
		supers:     map[string]*BoundWitness{},
		children:   make(map[string][]*BoundWitness, len(res.Children)),
	}

	for param, resolutions := range res.Children {
		for _, child := range resolutions {
			boundChild, d := r.Bind(child, vis)
			if d != nil {
				return nil, d
			}
			bw.children[param] = append(bw.children[param], boundChild)
		}
	}

	// super-capability members resolve against the same concrete arguments
	sb := NewSubstBuilder()
	for i, param := range c.Params {
		if d := sb.Bind(param, res.Constraint.Args[i]); d != nil {
			return nil, d
		}
	}
	sub := sb.Freeze()
	for _, sup := range c.Extends {
		constraint := sub.ApplyInst(sup)
		supRes, d := r.Resolve(constraint, vis)
		if d != nil {
			return nil, d
		}
		boundSup, d := r.Bind(supRes, vis)
		if d != nil {
			return nil, d
		}
		bw.supers[sup.Capability] = boundSup
		// members of transitive supers stay reachable from default bodies
		for name, transitive := range boundSup.supers {
			if _, have := bw.supers[name]; !have {
				bw.supers[name] = transitive
			}
		}
	}

	defaulted := 0
	for _, m := range c.Members {
		if impl, implemented := res.Witness.Bodies[m.Name]; implemented {
			bw.members[m.Name] = impl
			continue
		}
		// the classifier rejected witnesses missing a member with no default
		bw.members[m.Name] = DefaultedImpl{Body: m.Default}
		defaulted++
	}
	if defaulted > 0 {
		defaultsLogger.Debug("bound defaults",
			"witness", res.Witness.Name, "capability", c.Name, "defaulted", defaulted)
	}
	return bw, nil
}

// Super returns the bound witness for a (transitively) reachable
// super-capability.
func (bw *BoundWitness) Super(capability string) (*BoundWitness, bool) {
	sup, ok := bw.supers[capability]
	return sup, ok
}

// Child returns the i-th bound requirement witness of the named witness
// parameter.
func (bw *BoundWitness) Child(param string, i int) (*BoundWitness, bool) {
	cs := bw.children[param]
	if i < 0 || i >= len(cs) {
		return nil, false
	}
	return cs[i], true
}

// Invoke calls the named member on the bound witness. Witness-provided
// members run their native body; defaulted members evaluate the capability's
// default body against this same witness.
func (bw *BoundWitness) Invoke(member string, args ...Value) (Value, error) {
	impl, ok := bw.members[member]
	if !ok {
		return nil, errors.Errorf("capability %s has no member %s", bw.Capability.Name, member)
	}
	switch impl := impl.(type) {
	case NativeImpl:
		if impl.Fn == nil {
			return nil, errors.Errorf("member %s.%s has no callable body attached (lowered body %s)",
				bw.Capability.Name, member, impl.ID)
		}
		return impl.Fn(bw, args)
	case DefaultedImpl:
		return evalExpr(bw, impl.Body, args)
	default:
		return nil, errors.Errorf("member %s.%s has unknown implementation kind", bw.Capability.Name, member)
	}
}

// evalExpr evaluates a default body: member references resolve to this
// witness's own (possibly also defaulted) implementations, super references
// to the bound super-capability witnesses.
func evalExpr(bw *BoundWitness, e Expr, args []Value) (Value, error) {
	switch e := e.(type) {
	case *ArgRef:
		if e.Index < 0 || e.Index >= len(args) {
			return nil, errors.Errorf("default body references argument %d of %d", e.Index, len(args))
		}
		return args[e.Index], nil
	case *MemberRef:
		return bw.Invoke(e.Name)
	case *SuperRef:
		sup, ok := bw.Super(e.Capability)
		if !ok {
			return nil, errors.Errorf("no bound super-capability %s", e.Capability)
		}
		return sup.Invoke(e.Member)
	case *Call:
		callArgs := make([]Value, len(e.Args))
		for i, argExpr := range e.Args {
			v, err := evalExpr(bw, argExpr, args)
			if err != nil {
				return nil, err
			}
			callArgs[i] = v
		}
		switch fn := e.Fn.(type) {
		case *MemberRef:
			return bw.Invoke(fn.Name, callArgs...)
		case *SuperRef:
			sup, ok := bw.Super(fn.Capability)
			if !ok {
				return nil, errors.Errorf("no bound super-capability %s", fn.Capability)
			}
			return sup.Invoke(fn.Member, callArgs...)
		default:
			return nil, errors.New("default body calls a non-member expression")
		}
	default:
		return nil, errors.New("unknown default body expression")
	}
}
