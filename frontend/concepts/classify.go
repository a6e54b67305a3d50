package concepts

import (
	"fmt"
	"go/token"

	"github.com/fennec-lang/fennec/frontend/decl"
	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/frontend/ir"
	"github.com/fennec-lang/fennec/internal/log"
	"github.com/fennec-lang/fennec/util"
)

var classifyLogger = log.DefaultLogger.With("section", "classify")

// Classify turns a unit's normalized declarations into capability and witness
// records and indexes them into a Registry. Classification is best-effort: a
// malformed or incomplete declaration is reported and excluded, and the rest
// of the unit still classifies.
func Classify(unit *decl.Unit) (*Registry, *diag.Errors) {
	var errs *diag.Errors
	builder := newRegistryBuilder()

	capabilities := make(map[string]*Capability, len(unit.Capabilities))
	capDecls := make(map[string]decl.Capability, len(unit.Capabilities))
	for _, cd := range unit.Capabilities {
		if _, dup := capDecls[cd.Name]; dup {
			errs = errs.With(diag.New(diag.NewMalformedDeclaration{
				Positioner: rangeAt(cd.Line),
				Decl:       cd.Name,
				Reason:     "capability declared more than once",
			}))
			continue
		}
		capDecls[cd.Name] = cd
	}

	// capabilities first: witnesses validate against them
	for _, cd := range unit.Capabilities {
		if _, kept := capDecls[cd.Name]; !kept {
			continue
		}
		c, d := classifyCapability(cd, capDecls)
		if d != nil {
			errs = errs.With(d)
			delete(capDecls, cd.Name)
			continue
		}
		capabilities[c.Name] = c
	}

	// default bodies can only be validated once the whole (acyclic) capability
	// graph is known
	for name, c := range capabilities {
		if d := checkDefaultBodies(c, capabilities); d != nil {
			errs = errs.With(d)
			delete(capabilities, name)
		}
	}
	for _, c := range capabilities {
		builder.addCapability(c)
	}

	for _, wd := range unit.Witnesses {
		w, ds := classifyWitness(wd, capabilities)
		if len(ds) > 0 {
			errs = errs.With(ds...)
			continue
		}
		builder.addWitness(w)
	}

	reg := builder.build()
	classifyLogger.Debug("classified unit",
		"unit", unit.Name,
		"capabilities", len(capabilities),
		"witnesses", reg.Len(),
		"diagnostics", len(errs.Errors()),
	)
	return reg, errs
}

func classifyCapability(cd decl.Capability, all map[string]decl.Capability) (*Capability, diag.Diag) {
	pos := rangeAt(cd.Line)

	if extendsReaches(cd.Name, cd.Name, all, util.NewEmptySet[string]()) {
		return nil, diag.New(diag.NewMalformedDeclaration{
			Positioner: pos,
			Decl:       cd.Name,
			Reason:     "super-capability list transitively includes the capability itself",
		})
	}

	members := make([]Member, 0, len(cd.Members))
	seen := util.NewEmptySet[string]()
	for _, md := range cd.Members {
		if seen.Contains(md.Name) {
			return nil, diag.New(diag.NewMalformedDeclaration{
				Positioner: pos,
				Decl:       cd.Name,
				Reason:     fmt.Sprintf("member '%s' declared more than once", md.Name),
			})
		}
		seen.Add(md.Name)
		m := Member{Name: md.Name, Arity: md.Arity}
		if md.Default != nil {
			m.Default = classifyExpr(*md.Default)
		}
		members = append(members, m)
	}

	extends := make([]Inst, 0, len(cd.Extends))
	for _, sup := range cd.Extends {
		if supDecl, known := all[sup.Capability]; known && len(sup.Args) != len(supDecl.Params) {
			return nil, diag.New(diag.NewMalformedDeclaration{
				Positioner: pos,
				Decl:       cd.Name,
				Reason: fmt.Sprintf("super-capability '%s' expects %d type arguments, got %d",
					sup.Capability, len(supDecl.Params), len(sup.Args)),
			})
		}
		extends = append(extends, Inst{Capability: sup.Capability, Args: decl.ToIRAll(sup.Args)})
	}

	c := &Capability{
		Name:    cd.Name,
		Params:  cd.Params,
		Assoc:   cd.Assoc,
		Extends: extends,
		Members: members,
		byName:  make(map[string]*Member, len(members)),
		Range:   pos,
	}
	for i := range c.Members {
		c.byName[c.Members[i].Name] = &c.Members[i]
	}
	return c, nil
}

// extendsReaches reports whether following extends edges from `from` reaches
// `target`. Called with from == target it detects a capability whose
// super-capability list transitively includes itself. Unknown
// super-capabilities terminate the walk: they are someone else's
// classification error. Sharing a super twice (diamond) is fine.
func extendsReaches(from, target string, all map[string]decl.Capability, visited util.MSet[string]) bool {
	cd, known := all[from]
	if !known {
		return false
	}
	for _, sup := range cd.Extends {
		if sup.Capability == target {
			return true
		}
		if visited.Contains(sup.Capability) {
			continue
		}
		visited.Add(sup.Capability)
		if extendsReaches(sup.Capability, target, all, visited) {
			return true
		}
	}
	return false
}

// checkDefaultBodies validates that every default body references only
// members declared on the same capability or on a reachable super-capability.
func checkDefaultBodies(c *Capability, capabilities map[string]*Capability) diag.Diag {
	reachable := reachableSupers(c, capabilities, util.NewEmptySet[string]())
	for _, m := range c.Members {
		if m.Default == nil {
			continue
		}
		if d := checkExprRefs(c, m.Name, m.Default, reachable, capabilities); d != nil {
			return d
		}
	}
	return nil
}

func reachableSupers(c *Capability, capabilities map[string]*Capability, acc util.MSet[string]) util.MSet[string] {
	for _, sup := range c.Extends {
		if acc.Contains(sup.Capability) {
			continue
		}
		acc.Add(sup.Capability)
		if supCap, ok := capabilities[sup.Capability]; ok {
			reachableSupers(supCap, capabilities, acc)
		}
	}
	return acc
}

func checkExprRefs(c *Capability, member string, e Expr, supers util.MSet[string], capabilities map[string]*Capability) diag.Diag {
	switch e := e.(type) {
	case *MemberRef:
		if _, ok := c.MemberNamed(e.Name); !ok {
			return diag.New(diag.NewMalformedDeclaration{
				Positioner: c.Range,
				Decl:       c.Name,
				Reason:     fmt.Sprintf("default body of '%s' references unknown member '%s'", member, e.Name),
			})
		}
	case *SuperRef:
		if !supers.Contains(e.Capability) {
			return diag.New(diag.NewMalformedDeclaration{
				Positioner: c.Range,
				Decl:       c.Name,
				Reason:     fmt.Sprintf("default body of '%s' references '%s' which is not a reachable super-capability", member, e.Capability),
			})
		}
		if supCap, ok := capabilities[e.Capability]; ok {
			if _, ok := supCap.MemberNamed(e.Member); !ok {
				return diag.New(diag.NewMalformedDeclaration{
					Positioner: c.Range,
					Decl:       c.Name,
					Reason:     fmt.Sprintf("default body of '%s' references unknown member '%s.%s'", member, e.Capability, e.Member),
				})
			}
		}
	case *Call:
		if d := checkExprRefs(c, member, e.Fn, supers, capabilities); d != nil {
			return d
		}
		for _, arg := range e.Args {
			if d := checkExprRefs(c, member, arg, supers, capabilities); d != nil {
				return d
			}
		}
	}
	return nil
}

func classifyWitness(wd decl.Witness, capabilities map[string]*Capability) (*Witness, []diag.Diag) {
	pos := rangeAt(wd.Line)

	c, ok := capabilities[wd.Implements.Capability]
	if !ok {
		return nil, []diag.Diag{diag.New(diag.NewMalformedDeclaration{
			Positioner: pos,
			Decl:       wd.Name,
			Reason:     fmt.Sprintf("implements unknown capability '%s'", wd.Implements.Capability),
		})}
	}
	if len(wd.Implements.Args) != len(c.Params) {
		return nil, []diag.Diag{diag.New(diag.NewMalformedDeclaration{
			Positioner: pos,
			Decl:       wd.Name,
			Reason: fmt.Sprintf("capability '%s' expects %d type arguments, got %d",
				c.Name, len(c.Params), len(wd.Implements.Args)),
		})}
	}

	params := make([]WitnessParam, 0, len(wd.Params))
	declared := util.NewEmptySet[string]()
	for _, pd := range wd.Params {
		requires := make([]Inst, 0, len(pd.Requires))
		for _, req := range pd.Requires {
			requires = append(requires, Inst{Capability: req.Capability, Args: decl.ToIRAll(req.Args)})
		}
		params = append(params, WitnessParam{Name: pd.Name, Requires: requires})
		declared.Add(pd.Name)
	}

	pattern := Inst{Capability: wd.Implements.Capability, Args: decl.ToIRAll(wd.Implements.Args)}
	var undeclared []string
	for v := range ir.FreeVarsAll(pattern.Args).Items() {
		if !declared.Contains(v) {
			undeclared = append(undeclared, v)
		}
	}
	if len(undeclared) > 0 {
		return nil, []diag.Diag{diag.New(diag.NewMalformedDeclaration{
			Positioner: pos,
			Decl:       wd.Name,
			Reason:     fmt.Sprintf("pattern uses undeclared type parameters %v", undeclared),
		})}
	}

	// associated types are determined by the witness, not supplied at the
	// constraint site, so every one the capability declares must be present
	assoc := make(map[string]ir.Type, len(wd.Assoc))
	for name, typ := range wd.Assoc {
		assoc[name] = typ.ToIR()
	}
	for _, name := range c.Assoc {
		if _, determined := assoc[name]; !determined {
			return nil, []diag.Diag{diag.New(diag.NewMalformedDeclaration{
				Positioner: pos,
				Decl:       wd.Name,
				Reason:     fmt.Sprintf("associated type '%s.%s' is not determined", c.Name, name),
			})}
		}
	}

	bodies := make(map[string]Impl, len(wd.Members))
	var ds []diag.Diag
	for name, bodyID := range wd.Members {
		if _, ok := c.MemberNamed(name); !ok {
			ds = append(ds, diag.New(diag.NewMalformedDeclaration{
				Positioner: pos,
				Decl:       wd.Name,
				Reason:     fmt.Sprintf("implements unknown member '%s.%s'", c.Name, name),
			}))
			continue
		}
		bodies[name] = NativeImpl{ID: bodyID}
	}

	// a member with neither an explicit implementation nor a default is a
	// classification-time error, not a resolution-time one
	for _, m := range c.Members {
		if _, implemented := bodies[m.Name]; !implemented && m.Default == nil {
			ds = append(ds, diag.New(diag.NewIncompleteWitness{
				Positioner: pos,
				Witness:    wd.Name,
				Capability: c.Name,
				Member:     m.Name,
			}))
		}
	}
	if len(ds) > 0 {
		return nil, ds
	}

	return &Witness{
		Name:       wd.Name,
		Params:     params,
		Implements: pattern,
		Assoc:      assoc,
		Bodies:     bodies,
		Scope:      wd.Scope,
		Range:      pos,
	}, nil
}

func classifyExpr(e decl.Expr) Expr {
	var fn Expr
	switch {
	case e.Arg != nil:
		fn = &ArgRef{Index: *e.Arg}
	case e.Super != nil:
		fn = &SuperRef{Capability: e.Super.Capability, Member: e.Super.Member}
	default:
		fn = &MemberRef{Name: e.Member}
	}
	if len(e.Args) == 0 {
		return fn
	}
	args := make([]Expr, len(e.Args))
	for i, arg := range e.Args {
		args[i] = classifyExpr(arg)
	}
	return &Call{Fn: fn, Args: args}
}

func rangeAt(line int) ir.Range {
	return ir.Range{PosStart: token.Pos(line), PosEnd: token.Pos(line)}
}
