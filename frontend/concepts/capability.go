// Package concepts implements the witness resolution engine behind fennec's
// concept feature: classification of capability and witness declarations,
// unification of witness patterns against concrete type arguments, recursive
// discharge of nested requirements, and default method binding.
package concepts

import (
	"encoding/binary"
	"hash/fnv"
	"strings"

	"github.com/fennec-lang/fennec/frontend/ir"
)

// Capability is a named, parameterized set of operations a type may support.
// Built once at classification time, immutable afterwards.
type Capability struct {
	Name string
	// Params are the formal type parameters, in declaration order.
	Params []string
	// Assoc are associated type parameters: determined by resolution rather
	// than supplied at the constraint site.
	Assoc []string
	// Extends lists the super-capability instantiations this capability
	// requires, with arguments expressed over Params.
	Extends []Inst
	// Members in declaration order.
	Members []Member

	byName map[string]*Member
	ir.Range
}

// Member is one operation of a capability: a signature, plus an optional
// default body expressed in terms of other members.
type Member struct {
	Name    string
	Arity   int
	Default Expr // nil when the capability provides no default body
}

// MemberNamed returns the capability's member with the given name.
func (c *Capability) MemberNamed(name string) (*Member, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Inst is a capability instantiation: a capability name applied to type
// arguments. Arguments may contain type variables (in witness patterns and
// requirements) or be ground (in constraints).
type Inst struct {
	Capability string
	Args       []ir.Type
}

func (i Inst) String() string {
	if len(i.Args) == 0 {
		return i.Capability
	}
	args := make([]string, len(i.Args))
	for n, arg := range i.Args {
		args[n] = arg.String()
	}
	return i.Capability + "<" + strings.Join(args, ", ") + ">"
}

// Hash identifies the instantiation up to structural equality of its
// arguments. Two ground Insts with equal hashes denote the same constraint
// signature.
func (i Inst) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(i.Capability))
	arr := []byte{}
	for _, arg := range i.Args {
		arr = binary.LittleEndian.AppendUint64(arr, arg.Hash())
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

// Constraint is a ground capability instantiation that must be discharged:
// the capability name plus concrete type arguments.
type Constraint = Inst

// Expr is a default method body: a small expression over the members of the
// owning capability (and its reachable super-capabilities) and the call
// arguments. Bodies stay symbolic until a witness is bound.
type Expr interface{ isExpr() }

var (
	_ Expr = (*ArgRef)(nil)
	_ Expr = (*MemberRef)(nil)
	_ Expr = (*SuperRef)(nil)
	_ Expr = (*Call)(nil)
)

// ArgRef references the n-th argument of the member being defaulted.
type ArgRef struct{ Index int }

// MemberRef references another member of the same capability.
type MemberRef struct{ Name string }

// SuperRef references a member of a super-capability.
type SuperRef struct {
	Capability string
	Member     string
}

// Call applies a member reference to argument expressions.
type Call struct {
	Fn   Expr
	Args []Expr
}

func (*ArgRef) isExpr()    {}
func (*MemberRef) isExpr() {}
func (*SuperRef) isExpr()  {}
func (*Call) isExpr()      {}
