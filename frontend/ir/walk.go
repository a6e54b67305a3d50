package ir

import (
	"github.com/hashicorp/go-set/v3"
)

// Walk yields t and every type expression nested inside it, outermost first.
func Walk(t Type, yield func(Type) bool) bool {
	if !yield(t) {
		return false
	}
	for child := range t.children() {
		if !Walk(child, yield) {
			return false
		}
	}
	return true
}

// Size counts the nodes of a type expression. It is the measure the resolver
// uses to prove structural descent.
func Size(t Type) int {
	n := 0
	Walk(t, func(Type) bool {
		n++
		return true
	})
	return n
}

// SizeAll sums Size over a type argument list.
func SizeAll(ts []Type) int {
	n := 0
	for _, t := range ts {
		n += Size(t)
	}
	return n
}

// ContainsSubterm reports whether inner occurs somewhere within outer
// (including outer itself).
func ContainsSubterm(outer, inner Type) bool {
	found := false
	Walk(outer, func(t Type) bool {
		if Equal(t, inner) {
			found = true
			return false
		}
		return true
	})
	return found
}

// FreeVars collects the names of all Vars occurring in t.
func FreeVars(t Type) *set.Set[string] {
	vars := set.New[string](0)
	Walk(t, func(t Type) bool {
		if v, ok := t.(*Var); ok {
			vars.Insert(v.Name)
		}
		return true
	})
	return vars
}

// FreeVarsAll collects the names of all Vars occurring in a type list.
func FreeVarsAll(ts []Type) *set.Set[string] {
	vars := set.New[string](0)
	for _, t := range ts {
		vars.InsertSet(FreeVars(t))
	}
	return vars
}

// IsGround reports whether t contains no type variables.
func IsGround(t Type) bool {
	return FreeVars(t).Empty()
}
