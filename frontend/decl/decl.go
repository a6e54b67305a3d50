// Package decl defines the normalized declaration records the concept engine
// consumes from the lowering stage. Surface concept/instance syntax never
// reaches this package: declarations arrive here already tagged as
// capability-shaped or witness-shaped, with types resolved to names.
package decl

import (
	"github.com/fennec-lang/fennec/frontend/ir"
)

// Unit is one compilation unit's worth of normalized declarations, plus the
// constraint requests its generic call sites emit.
type Unit struct {
	Name         string       `yaml:"name"`
	Capabilities []Capability `yaml:"capabilities"`
	Witnesses    []Witness    `yaml:"witnesses"`
	Requests     []Request    `yaml:"requests"`
}

// Capability is a capability-shaped declaration.
type Capability struct {
	Name    string   `yaml:"name"`
	Params  []string `yaml:"params"`
	Assoc   []string `yaml:"assoc,omitempty"`
	Extends []Inst   `yaml:"extends,omitempty"`
	Members []Member `yaml:"members"`
	Line    int      `yaml:"line,omitempty"`
}

// Member is one operation signature of a capability, with an optional default
// body.
type Member struct {
	Name    string `yaml:"name"`
	Arity   int    `yaml:"arity"`
	Default *Expr  `yaml:"default,omitempty"`
}

// Expr is a default body in normalized form: exactly one of Arg, Member,
// Super is set; Args carries call arguments when the node is a call.
type Expr struct {
	Arg    *int      `yaml:"arg,omitempty"`
	Member string    `yaml:"member,omitempty"`
	Super  *SuperRef `yaml:"super,omitempty"`
	Args   []Expr    `yaml:"args,omitempty"`
}

// SuperRef names a member of a super-capability.
type SuperRef struct {
	Capability string `yaml:"capability"`
	Member     string `yaml:"member"`
}

// Witness is a witness-shaped declaration.
type Witness struct {
	Name       string            `yaml:"name"`
	Params     []Param           `yaml:"params,omitempty"`
	Implements Inst              `yaml:"implements"`
	Assoc      map[string]Type   `yaml:"assoc,omitempty"`   // associated type name -> determined type
	Members    map[string]string `yaml:"members,omitempty"` // member name -> lowered body id
	Scope      int               `yaml:"scope,omitempty"`
	Line       int               `yaml:"line,omitempty"`
}

// Param is one formal type parameter of a witness with its nested capability
// requirements.
type Param struct {
	Name     string `yaml:"name"`
	Requires []Inst `yaml:"requires,omitempty"`
}

// Inst is a capability instantiation in normalized form.
type Inst struct {
	Capability string `yaml:"capability"`
	Args       []Type `yaml:"args"`
}

// Type is a normalized type expression. Exactly one of Name and Var is set;
// Args turns a Name into an application; Ref wraps the whole expression in
// the reference qualifier.
type Type struct {
	Name string `yaml:"name,omitempty"`
	Var  string `yaml:"var,omitempty"`
	Args []Type `yaml:"args,omitempty"`
	Ref  bool   `yaml:"ref,omitempty"`
}

// Request is one generic call site's constraint request: the required
// capability, its concrete type arguments, and the witnesses visible at the
// call site ordered innermost scope first.
type Request struct {
	Capability string   `yaml:"capability"`
	Args       []Type   `yaml:"args"`
	Visible    []string `yaml:"visible,omitempty"`
	Line       int      `yaml:"line,omitempty"`
}

// ToIR converts a normalized type expression into the engine's type IR.
func (t Type) ToIR() ir.Type {
	var out ir.Type
	switch {
	case t.Var != "":
		out = &ir.Var{Name: t.Var}
	case len(t.Args) > 0:
		args := make([]ir.Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = arg.ToIR()
		}
		out = &ir.Applied{Base: t.Name, Args: args}
	default:
		out = &ir.Name{Name: t.Name}
	}
	if t.Ref {
		out = &ir.Ref{Elem: out}
	}
	return out
}

// ToIRAll converts a normalized type argument list.
func ToIRAll(ts []Type) []ir.Type {
	out := make([]ir.Type, len(ts))
	for i, t := range ts {
		out[i] = t.ToIR()
	}
	return out
}
