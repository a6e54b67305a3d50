package diag

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/fennec-lang/fennec/frontend/ir"
)

// enableDebugErrorPrinting makes diagnostics include their stacktrace when printed
const enableDebugErrorPrinting bool = false
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	UnificationConflict
	NoWitnessFound
	AmbiguousWitness
	CyclicResolution
	IncompleteWitness
	MalformedDeclaration
)

// Diag is a structured compile diagnostic. The engine produces these rather
// than rendered user-facing text; the surrounding compiler decides how to show
// them.
type Diag interface {
	Error() string
	Code() ErrCode
	ir.Positioner

	withStack([]byte) Diag
	getStack() []byte
}

func FormatWithCode(d Diag) string {
	if enableDebugErrorPrinting && d.getStack() != nil {
		stack := string(d.getStack())
		if !enableDebugFullStacktrace {
			stack = strings.Split(stack, "\n")[6]
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, d.Code(), d.Error())
	}
	return fmt.Sprintf("(E%03d) %s", d.Code(), d.Error())
}

func New[D Diag](d D) Diag {
	if enableDebugErrorPrinting {
		return d.withStack(debug.Stack())
	}
	return d.withStack(nil)
}

type Unclassified struct {
	From error
	ir.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewUnificationConflict reports a type parameter bound to two different
// concrete types within one merge.
type NewUnificationConflict struct {
	ir.Positioner
	Param  string
	First  ir.Type
	Second ir.Type
	stack  []byte
}

func (e NewUnificationConflict) Error() string {
	return fmt.Sprintf("type parameter '%s' cannot be both '%v' and '%v'", e.Param, e.First, e.Second)
}
func (e NewUnificationConflict) Code() ErrCode    { return UnificationConflict }
func (e NewUnificationConflict) getStack() []byte { return e.stack }
func (e NewUnificationConflict) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewNoWitnessFound reports a constraint that matched zero candidate
// witnesses after filtering.
type NewNoWitnessFound struct {
	ir.Positioner
	Capability string
	Args       []ir.Type
	stack      []byte
}

func (e NewNoWitnessFound) Error() string {
	return fmt.Sprintf("no witness found for '%s'", instString(e.Capability, e.Args))
}
func (e NewNoWitnessFound) Code() ErrCode    { return NoWitnessFound }
func (e NewNoWitnessFound) getStack() []byte { return e.stack }
func (e NewNoWitnessFound) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewAmbiguousWitness reports more than one undominated candidate surviving
// the specificity tie-break. Candidates holds the surviving witness names,
// sorted and deduplicated.
type NewAmbiguousWitness struct {
	ir.Positioner
	Capability string
	Args       []ir.Type
	Candidates []string
	stack      []byte
}

func (e NewAmbiguousWitness) Error() string {
	return fmt.Sprintf("ambiguous witnesses for '%s': %s",
		instString(e.Capability, e.Args), strings.Join(e.Candidates, ", "))
}
func (e NewAmbiguousWitness) Code() ErrCode    { return AmbiguousWitness }
func (e NewAmbiguousWitness) getStack() []byte { return e.stack }
func (e NewAmbiguousWitness) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewCyclicResolution reports a constraint signature recurring on the active
// resolution stack without provable structural descent.
type NewCyclicResolution struct {
	ir.Positioner
	Capability string
	Args       []ir.Type
	stack      []byte
}

func (e NewCyclicResolution) Error() string {
	return fmt.Sprintf("resolving '%s' requires itself without structural descent", instString(e.Capability, e.Args))
}
func (e NewCyclicResolution) Code() ErrCode    { return CyclicResolution }
func (e NewCyclicResolution) getStack() []byte { return e.stack }
func (e NewCyclicResolution) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewIncompleteWitness is a classification-time diagnostic: a witness omits a
// member the capability declares without a default.
type NewIncompleteWitness struct {
	ir.Positioner
	Witness    string
	Capability string
	Member     string
	stack      []byte
}

func (e NewIncompleteWitness) Error() string {
	return fmt.Sprintf("witness '%s' does not implement '%s.%s' and no default exists", e.Witness, e.Capability, e.Member)
}
func (e NewIncompleteWitness) Code() ErrCode    { return IncompleteWitness }
func (e NewIncompleteWitness) getStack() []byte { return e.stack }
func (e NewIncompleteWitness) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

// NewMalformedDeclaration is a classification-time diagnostic: arity mismatch,
// cyclic super-capability list, a default body referencing an unknown member,
// and similar shape violations.
type NewMalformedDeclaration struct {
	ir.Positioner
	Decl   string
	Reason string
	stack  []byte
}

func (e NewMalformedDeclaration) Error() string {
	return fmt.Sprintf("malformed declaration '%s': %s", e.Decl, e.Reason)
}
func (e NewMalformedDeclaration) Code() ErrCode    { return MalformedDeclaration }
func (e NewMalformedDeclaration) getStack() []byte { return e.stack }
func (e NewMalformedDeclaration) withStack(stack []byte) Diag {
	e.stack = stack
	return e
}

func instString(capability string, args []ir.Type) string {
	if len(args) == 0 {
		return capability
	}
	shown := make([]string, len(args))
	for i, arg := range args {
		shown[i] = arg.String()
	}
	return capability + "<" + strings.Join(shown, ", ") + ">"
}
