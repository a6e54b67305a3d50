package concepts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-lang/fennec/frontend/decl"
	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/frontend/ir"
)

func classify(t *testing.T, unit *decl.Unit) *Registry {
	t.Helper()
	reg, errs := Classify(unit)
	require.False(t, errs.HasError(), "unexpected classification errors: %v", errs.Errors())
	return reg
}

func eqCapability() decl.Capability {
	return decl.Capability{
		Name:    "Eq",
		Params:  []string{"A"},
		Members: []decl.Member{{Name: "equals", Arity: 2}},
	}
}

func eqIntWitness() decl.Witness {
	return decl.Witness{
		Name:       "EqInt",
		Implements: decl.Inst{Capability: "Eq", Args: []decl.Type{{Name: "int"}}},
		Members:    map[string]string{"equals": "eq_int_equals"},
	}
}

func arrayEqWitness() decl.Witness {
	return decl.Witness{
		Name:   "ArrayEq",
		Params: []decl.Param{{Name: "A", Requires: []decl.Inst{{Capability: "Eq", Args: []decl.Type{{Var: "A"}}}}}},
		Implements: decl.Inst{
			Capability: "Eq",
			Args:       []decl.Type{{Name: "Array", Args: []decl.Type{{Var: "A"}}}},
		},
		Members: map[string]string{"equals": "array_eq_equals"},
	}
}

func groundConstraint(capability string, args ...ir.Type) Constraint {
	return Constraint{Capability: capability, Args: args}
}

func TestResolveConcreteWitness(t *testing.T) {
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses:    []decl.Witness{eqIntWitness()},
	})
	r := NewResolver(reg)

	res, d := r.Resolve(groundConstraint("Eq", &ir.Name{Name: "int"}), Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "EqInt", res.Witness.Name)
	assert.Empty(t, res.Children)

	_, d = r.Resolve(groundConstraint("Eq", &ir.Name{Name: "bool"}), Visibility{})
	require.NotNil(t, d)
	assert.Equal(t, diag.NoWitnessFound, d.Code())
	assert.Contains(t, d.Error(), "Eq<bool>")
}

func TestResolveAmbiguousWitnesses(t *testing.T) {
	ordApple := func(name string) decl.Witness {
		return decl.Witness{
			Name:       name,
			Implements: decl.Inst{Capability: "Ord", Args: []decl.Type{{Name: "Apple"}}},
			Members:    map[string]string{"compare": name + "_compare"},
		}
	}
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{
			{Name: "Ord", Params: []string{"A"}, Members: []decl.Member{{Name: "compare", Arity: 2}}},
		},
		Witnesses: []decl.Witness{ordApple("OrdAppleBySize"), ordApple("OrdAppleByColour")},
	})
	r := NewResolver(reg)

	_, d := r.Resolve(groundConstraint("Ord", &ir.Name{Name: "Apple"}), Visibility{})
	require.NotNil(t, d)
	require.Equal(t, diag.AmbiguousWitness, d.Code())

	ambiguous, ok := d.(diag.NewAmbiguousWitness)
	require.True(t, ok)
	assert.Equal(t, []string{"OrdAppleByColour", "OrdAppleBySize"}, ambiguous.Candidates)
}

func TestResolveNestedRequirement(t *testing.T) {
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses:    []decl.Witness{eqIntWitness(), arrayEqWitness()},
	})
	r := NewResolver(reg)

	arrayOfInt := &ir.Applied{Base: "Array", Args: []ir.Type{&ir.Name{Name: "int"}}}
	res, d := r.Resolve(groundConstraint("Eq", arrayOfInt), Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "ArrayEq", res.Witness.Name)

	require.Len(t, res.Children["A"], 1)
	child := res.Children["A"][0]
	assert.Equal(t, "EqInt", child.Witness.Name)
	assert.Equal(t, "Eq<int>", child.Constraint.String())

	bound, found := res.Subst.Lookup("A")
	require.True(t, found)
	assert.Equal(t, "int", bound.String())
}

func TestResolveDeterminesAssociatedTypes(t *testing.T) {
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{
			{Name: "Collection", Params: []string{"C"}, Assoc: []string{"Item"}, Members: []decl.Member{{Name: "size", Arity: 1}}},
		},
		Witnesses: []decl.Witness{{
			Name:   "ArrayCollection",
			Params: []decl.Param{{Name: "A"}},
			Implements: decl.Inst{
				Capability: "Collection",
				Args:       []decl.Type{{Name: "Array", Args: []decl.Type{{Var: "A"}}}},
			},
			Assoc:   map[string]decl.Type{"Item": {Var: "A"}},
			Members: map[string]string{"size": "array_size"},
		}},
	})
	r := NewResolver(reg)

	arrayOfInt := &ir.Applied{Base: "Array", Args: []ir.Type{&ir.Name{Name: "int"}}}
	res, d := r.Resolve(groundConstraint("Collection", arrayOfInt), Visibility{})
	require.Nil(t, d)

	item, ok := res.Assoc("Item")
	require.True(t, ok)
	assert.Equal(t, "int", item.String())

	_, ok = res.Assoc("Key")
	assert.False(t, ok)
}

func TestResolveNestedRequirementFails(t *testing.T) {
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses:    []decl.Witness{eqIntWitness(), arrayEqWitness()},
	})
	r := NewResolver(reg)

	arrayOfWidget := &ir.Applied{Base: "Array", Args: []ir.Type{&ir.Name{Name: "Widget"}}}
	_, d := r.Resolve(groundConstraint("Eq", arrayOfWidget), Visibility{})
	require.NotNil(t, d)
	// a missing element witness surfaces as an ordinary failure of the outer
	// constraint, not a cascading internal error
	assert.Equal(t, diag.NoWitnessFound, d.Code())
	assert.Contains(t, d.Error(), "Eq<Array<Widget>>")
}

func TestResolveSpecificity(t *testing.T) {
	anyEq := decl.Witness{
		Name:       "AnyEq",
		Params:     []decl.Param{{Name: "A"}},
		Implements: decl.Inst{Capability: "Eq", Args: []decl.Type{{Var: "A"}}},
		Members:    map[string]string{"equals": "any_eq_equals"},
	}
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses:    []decl.Witness{eqIntWitness(), anyEq},
	})
	r := NewResolver(reg)

	// the fully concrete witness strictly dominates the catch-all
	res, d := r.Resolve(groundConstraint("Eq", &ir.Name{Name: "int"}), Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "EqInt", res.Witness.Name)

	// the catch-all still serves types nothing else covers
	res, d = r.Resolve(groundConstraint("Eq", &ir.Name{Name: "bool"}), Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "AnyEq", res.Witness.Name)
}

func TestResolveScopeTieBreak(t *testing.T) {
	ordApple := func(name string, scope int) decl.Witness {
		return decl.Witness{
			Name:       name,
			Implements: decl.Inst{Capability: "Ord", Args: []decl.Type{{Name: "Apple"}}},
			Members:    map[string]string{"compare": name + "_compare"},
			Scope:      scope,
		}
	}
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{
			{Name: "Ord", Params: []string{"A"}, Members: []decl.Member{{Name: "compare", Arity: 2}}},
		},
		Witnesses: []decl.Witness{ordApple("OuterOrd", 0), ordApple("InnerOrd", 2)},
	})
	r := NewResolver(reg)
	apple := groundConstraint("Ord", &ir.Name{Name: "Apple"})

	// equally specific patterns: the innermost declaration wins
	res, d := r.Resolve(apple, Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "InnerOrd", res.Witness.Name)

	// an explicit visibility order overrides declared scope depth
	res, d = r.Resolve(apple, NewVisibility("OuterOrd", "InnerOrd"))
	require.Nil(t, d)
	assert.Equal(t, "OuterOrd", res.Witness.Name)

	// restricting visibility hides the other candidate entirely
	res, d = r.Resolve(apple, NewVisibility("InnerOrd"))
	require.Nil(t, d)
	assert.Equal(t, "InnerOrd", res.Witness.Name)
}

func TestResolveTupleMonoid(t *testing.T) {
	unit := &decl.Unit{
		Capabilities: []decl.Capability{
			{Name: "Monoid", Params: []string{"A"}, Members: []decl.Member{
				{Name: "empty", Arity: 0},
				{Name: "combine", Arity: 2},
			}},
		},
		Witnesses: []decl.Witness{
			{
				Name:       "MonoidInt",
				Implements: decl.Inst{Capability: "Monoid", Args: []decl.Type{{Name: "int"}}},
				Members:    map[string]string{"empty": "int_empty", "combine": "int_combine"},
			},
			{
				Name: "TupleMonoid",
				Params: []decl.Param{
					{Name: "A", Requires: []decl.Inst{{Capability: "Monoid", Args: []decl.Type{{Var: "A"}}}}},
					{Name: "B", Requires: []decl.Inst{{Capability: "Monoid", Args: []decl.Type{{Var: "B"}}}}},
					{Name: "C", Requires: []decl.Inst{{Capability: "Monoid", Args: []decl.Type{{Var: "C"}}}}},
				},
				Implements: decl.Inst{Capability: "Monoid", Args: []decl.Type{
					{Name: "Tuple", Args: []decl.Type{{Var: "A"}, {Var: "B"}, {Var: "C"}}},
				}},
				Members: map[string]string{"empty": "tuple_empty", "combine": "tuple_combine"},
			},
		},
	}
	r := NewResolver(classify(t, unit))

	tuple := &ir.Applied{Base: "Tuple", Args: []ir.Type{
		&ir.Name{Name: "int"}, &ir.Name{Name: "int"}, &ir.Name{Name: "int"},
	}}
	res, d := r.Resolve(groundConstraint("Monoid", tuple), Visibility{})
	require.Nil(t, d)
	assert.Equal(t, "TupleMonoid", res.Witness.Name)
	for _, param := range []string{"A", "B", "C"} {
		require.Len(t, res.Children[param], 1, "missing child for %s", param)
		assert.Equal(t, "MonoidInt", res.Children[param][0].Witness.Name)
	}
}

func TestResolveSelfReferentialWitness(t *testing.T) {
	unit := &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses: []decl.Witness{
			{
				Name: "SelfEq",
				Params: []decl.Param{
					{Name: "T", Requires: []decl.Inst{{Capability: "Eq", Args: []decl.Type{{Name: "Widget"}}}}},
				},
				Implements: decl.Inst{Capability: "Eq", Args: []decl.Type{{Name: "Widget"}}},
				Members:    map[string]string{"equals": "self_eq_equals"},
			},
		},
	}
	r := NewResolver(classify(t, unit))

	_, d := r.Resolve(groundConstraint("Eq", &ir.Name{Name: "Widget"}), Visibility{})
	require.NotNil(t, d)
	assert.Equal(t, diag.CyclicResolution, d.Code())
}

func TestResolveGrowingRequirement(t *testing.T) {
	// a requirement that grows instead of descending cannot prove progress
	unit := &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses: []decl.Witness{
			{
				Name: "GrowEq",
				Params: []decl.Param{
					{Name: "A", Requires: []decl.Inst{{
						Capability: "Eq",
						Args:       []decl.Type{{Name: "Array", Args: []decl.Type{{Var: "A"}}}},
					}}},
				},
				Implements: decl.Inst{Capability: "Eq", Args: []decl.Type{{Var: "A"}}},
				Members:    map[string]string{"equals": "grow_eq_equals"},
			},
		},
	}
	r := NewResolver(classify(t, unit))

	_, d := r.Resolve(groundConstraint("Eq", &ir.Name{Name: "int"}), Visibility{})
	require.NotNil(t, d)
	assert.Equal(t, diag.CyclicResolution, d.Code())
}

func TestResolveIsDeterministic(t *testing.T) {
	reg := classify(t, &decl.Unit{
		Capabilities: []decl.Capability{eqCapability()},
		Witnesses:    []decl.Witness{eqIntWitness(), arrayEqWitness()},
	})
	r := NewResolver(reg)

	arrayOfInt := &ir.Applied{Base: "Array", Args: []ir.Type{&ir.Name{Name: "int"}}}
	first, d := r.Resolve(groundConstraint("Eq", arrayOfInt), Visibility{})
	require.Nil(t, d)
	for i := 0; i < 10; i++ {
		again, d := r.Resolve(groundConstraint("Eq", arrayOfInt), Visibility{})
		require.Nil(t, d)
		assert.Equal(t, first.Witness.Name, again.Witness.Name)
		assert.Equal(t, first.Children["A"][0].Witness.Name, again.Children["A"][0].Witness.Name)
	}
}

func TestStructurallySmaller(t *testing.T) {
	tInt := &ir.Name{Name: "int"}
	tuple := &ir.Applied{Base: "Tuple", Args: []ir.Type{tInt, tInt, tInt}}
	array := &ir.Applied{Base: "Array", Args: []ir.Type{tInt}}

	assert.True(t, structurallySmaller([]ir.Type{tInt}, []ir.Type{tuple}))
	assert.True(t, structurallySmaller([]ir.Type{tInt}, []ir.Type{array}))
	assert.False(t, structurallySmaller([]ir.Type{tuple}, []ir.Type{tuple}))
	assert.False(t, structurallySmaller([]ir.Type{array}, []ir.Type{tInt}))
	// smaller in size but not a subterm
	assert.False(t, structurallySmaller([]ir.Type{&ir.Name{Name: "bool"}}, []ir.Type{array}))
}

func TestTieBreak(t *testing.T) {
	mk := func(name string, freeVars, numReqs, rank int) candidate {
		return candidate{
			resolved: &Resolved{Witness: &Witness{Name: name}},
			freeVars: freeVars,
			numReqs:  numReqs,
			rank:     rank,
		}
	}

	t.Run("single undominated wins regardless of scope", func(t *testing.T) {
		winner, _ := tieBreak([]candidate{mk("concrete", 0, 0, 5), mk("generic", 1, 1, 0)})
		require.NotNil(t, winner)
		assert.Equal(t, "concrete", winner.resolved.Witness.Name)
	})

	t.Run("equal specificity falls back to scope", func(t *testing.T) {
		winner, _ := tieBreak([]candidate{mk("outer", 0, 0, 3), mk("inner", 0, 0, 1)})
		require.NotNil(t, winner)
		assert.Equal(t, "inner", winner.resolved.Witness.Name)
	})

	t.Run("full tie is ambiguous", func(t *testing.T) {
		winner, survivors := tieBreak([]candidate{mk("fst", 0, 0, 1), mk("snd", 0, 0, 1)})
		assert.Nil(t, winner)
		assert.Len(t, survivors, 2)
	})
}
