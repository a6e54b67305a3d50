package concepts

import (
	"hash/fnv"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/xtgo/set"

	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/frontend/ir"
	"github.com/fennec-lang/fennec/internal/log"
	"github.com/fennec-lang/fennec/util"
)

var resolveLogger = log.DefaultLogger.With("section", "resolve")

// Visibility is the ordered set of witnesses visible at a call site,
// innermost scope first. The zero Visibility makes every registered witness
// visible, ordered by its declared scope depth.
type Visibility struct {
	rank map[string]int
	hash uint64
}

// NewVisibility builds a visibility set from witness names ordered innermost
// scope first.
func NewVisibility(names ...string) Visibility {
	rank := make(map[string]int, len(names))
	h := fnv.New64a()
	for i, name := range names {
		if _, seen := rank[name]; !seen {
			rank[name] = i
		}
		_, _ = h.Write([]byte(name))
		_, _ = h.Write([]byte{0})
	}
	return Visibility{rank: rank, hash: h.Sum64()}
}

// Rank returns the witness's scope ordering key (smaller is more deeply
// nested) and whether the witness is visible at all.
func (v Visibility) Rank(w *Witness) (int, bool) {
	if v.rank == nil {
		// everything visible: deeper declared scope is more local
		return -w.Scope, true
	}
	r, ok := v.rank[w.Name]
	return r, ok
}

// Hash identifies the visibility set, for memoization keys.
func (v Visibility) Hash() uint64 { return v.hash }

// Resolved is the outcome of discharging one constraint: the chosen witness,
// the substitution unifying its pattern with the constraint's arguments, and
// the recursively resolved witnesses for its nested requirements.
type Resolved struct {
	Witness    *Witness
	Constraint Constraint
	Subst      Subst
	// Children holds, per witness parameter name, the resolutions of that
	// parameter's requirements in declaration order.
	Children map[string][]*Resolved
}

// Assoc returns the concrete type the chosen witness determines for the named
// associated type of the implemented capability.
func (r *Resolved) Assoc(name string) (ir.Type, bool) {
	t, ok := r.Witness.Assoc[name]
	if !ok {
		return nil, false
	}
	return r.Subst.Apply(t), true
}

// Resolver answers constraint requests against an immutable registry. A single
// Resolver may serve concurrent requests: per-request state lives on the
// resolveContext, never on the Resolver.
type Resolver struct {
	registry *Registry
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Registry exposes the registry the resolver searches.
func (r *Resolver) Registry() *Registry { return r.registry }

// resolveContext is the stack of constraint signatures being discharged along
// the active search path. It exists to make cycles and structural descent
// checkable explicitly instead of surfacing as runaway recursion.
type resolveContext struct {
	stack util.Stack[frame]
}

type frame struct {
	capability string
	args       []ir.Type
	sig        uint64
}

// Resolve discharges a ground constraint against the registry and the given
// visibility set. The search is pure and deterministic: the same constraint
// against the same registry and visibility always yields the same outcome.
func (r *Resolver) Resolve(c Constraint, vis Visibility) (*Resolved, diag.Diag) {
	lg := resolveLogger.With("request", uuid.NewString()[:8])
	lg.Debug("resolving constraint", "constraint", c.String())
	res, d := r.resolve(c, vis, &resolveContext{}, lg)
	if d != nil {
		lg.Debug("resolution failed", "constraint", c.String(), "diag", diag.FormatWithCode(d))
		return nil, d
	}
	lg.Debug("resolution succeeded", "constraint", c.String(), "witness", res.Witness.Name)
	return res, nil
}

func (r *Resolver) resolve(c Constraint, vis Visibility, ctx *resolveContext, lg *slog.Logger) (*Resolved, diag.Diag) {
	sig := c.Hash()

	// repetition check against the innermost enclosing occurrence of the same
	// capability: identical signature is a cycle; anything not structurally
	// smaller cannot prove progress and is treated the same. Outer occurrences
	// need no check, the innermost one already descended from them.
	for f := range ctx.stack.All() {
		if f.capability != c.Capability {
			continue
		}
		if f.sig == sig || !structurallySmaller(c.Args, f.args) {
			return nil, diag.New(diag.NewCyclicResolution{
				Positioner: ir.RangeOf(posOf(c.Args)),
				Capability: c.Capability,
				Args:       c.Args,
			})
		}
		lg.Debug("structural descent", "constraint", c.String(), "within", Inst{Capability: f.capability, Args: f.args}.String(), "depth", ctx.stack.Len())
		break
	}
	ctx.stack.Push(frame{capability: c.Capability, args: c.Args, sig: sig})
	defer ctx.stack.Pop()

	var candidates []candidate
	var firstCycle diag.Diag
	for _, w := range r.registry.WitnessesFor(c.Capability) {
		rank, visible := vis.Rank(w)
		if !visible {
			continue
		}
		sub, d := unifyInst(w.Implements, c.Args)
		if d != nil {
			lg.Debug("candidate does not unify", "witness", w.Name, "constraint", c.String())
			continue
		}
		children, d := r.resolveRequirements(w, sub, vis, ctx, lg)
		if d != nil {
			// the failed requirement eliminates only this candidate; siblings
			// are still tried. A cycle is remembered so pure self-reference is
			// reported as such rather than as a missing witness.
			if d.Code() == diag.CyclicResolution && firstCycle == nil {
				firstCycle = d
			}
			lg.Debug("candidate requirement failed", "witness", w.Name, "constraint", c.String())
			continue
		}
		candidates = append(candidates, candidate{
			resolved: &Resolved{Witness: w, Constraint: c, Subst: sub, Children: children},
			freeVars: ir.FreeVarsAll(w.Implements.Args).Size(),
			numReqs:  len(w.Requirements()),
			rank:     rank,
		})
	}

	if len(candidates) == 0 {
		if firstCycle != nil {
			return nil, firstCycle
		}
		return nil, diag.New(diag.NewNoWitnessFound{
			Positioner: ir.RangeOf(posOf(c.Args)),
			Capability: c.Capability,
			Args:       c.Args,
		})
	}

	winner, survivors := tieBreak(candidates)
	if winner != nil {
		return winner.resolved, nil
	}
	return nil, diag.New(diag.NewAmbiguousWitness{
		Positioner: ir.RangeOf(posOf(c.Args)),
		Capability: c.Capability,
		Args:       c.Args,
		Candidates: witnessNames(survivors),
	})
}

// resolveRequirements substitutes the unification result into the witness's
// own nested requirements and discharges each resulting child constraint. The
// returned diagnostic marks the witness as discarded; it is not reported
// directly unless no sibling candidate survives either.
func (r *Resolver) resolveRequirements(w *Witness, sub Subst, vis Visibility, ctx *resolveContext, lg *slog.Logger) (map[string][]*Resolved, diag.Diag) {
	if len(w.Params) == 0 {
		return nil, nil
	}
	children := make(map[string][]*Resolved, len(w.Params))
	for _, p := range w.Params {
		for _, req := range p.Requires {
			child := sub.ApplyInst(req)
			if !ir.FreeVarsAll(child.Args).Empty() {
				// requirement still mentions unbound parameters: nothing to
				// discharge it against
				return nil, diag.New(diag.NewNoWitnessFound{
					Positioner: w.Range,
					Capability: child.Capability,
					Args:       child.Args,
				})
			}
			res, d := r.resolve(child, vis, ctx, lg)
			if d != nil {
				return nil, d
			}
			children[p.Name] = append(children[p.Name], res)
		}
	}
	return children, nil
}

type candidate struct {
	resolved *Resolved
	freeVars int
	numReqs  int
	rank     int
}

// moreConcrete reports whether a strictly dominates b: no less concrete on
// either measure, strictly more concrete on at least one.
func moreConcrete(a, b candidate) bool {
	return a.freeVars <= b.freeVars && a.numReqs <= b.numReqs &&
		(a.freeVars < b.freeVars || a.numReqs < b.numReqs)
}

// tieBreak applies the specificity order: concreteness dominance first, scope
// locality second. It returns the single winner, or nil along with the
// surviving candidates when they remain ambiguous.
func tieBreak(candidates []candidate) (*candidate, []candidate) {
	var undominated []candidate
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i != j && moreConcrete(other, c) {
				dominated = true
				break
			}
		}
		if !dominated {
			undominated = append(undominated, c)
		}
	}
	if len(undominated) == 1 {
		return &undominated[0], nil
	}

	// scope tie-break: a unique innermost candidate wins
	best := 0
	bestUnique := true
	for i := 1; i < len(undominated); i++ {
		switch {
		case undominated[i].rank < undominated[best].rank:
			best = i
			bestUnique = true
		case undominated[i].rank == undominated[best].rank:
			bestUnique = false
		}
	}
	if bestUnique {
		return &undominated[best], nil
	}
	return nil, undominated
}

// structurallySmaller reports provable structural descent: the new argument
// list is strictly smaller than the enclosing one, and every new argument
// occurs within some enclosing argument.
func structurallySmaller(newArgs, oldArgs []ir.Type) bool {
	if ir.SizeAll(newArgs) >= ir.SizeAll(oldArgs) {
		return false
	}
	for _, n := range newArgs {
		contained := false
		for _, o := range oldArgs {
			if ir.ContainsSubterm(o, n) {
				contained = true
				break
			}
		}
		if !contained {
			return false
		}
	}
	return true
}

func witnessNames(candidates []candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.resolved.Witness.Name
	}
	sort.Strings(names)
	n := set.Uniq(sort.StringSlice(names))
	return names[:n]
}

func posOf(args []ir.Type) ir.Positioner {
	if len(args) == 0 {
		return ir.Range{}
	}
	return args[0]
}
