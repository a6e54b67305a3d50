package ir

import (
	"encoding/binary"
	"hash/fnv"
	"iter"
	"strings"
)

// Type is a type expression as handed to the concept engine by the lowering
// stage: fully named, already resolved against the binder's symbol tables.
// Types are compared by Hash rather than by a per-variant Equals method, so
// structurally identical expressions compare equal regardless of provenance.
type Type interface {
	String() string
	Hash() uint64
	children() iter.Seq[Type]
	Positioner
}

var (
	_ Type = (*Name)(nil)
	_ Type = (*Var)(nil)
	_ Type = (*Applied)(nil)
	_ Type = (*Ref)(nil)
)

// Name is a fully concrete named type (int, Apple, Widget).
type Name struct {
	Name string
	Range
}

func (t *Name) String() string { return t.Name }

func (t *Name) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("Name"))
	_, _ = h.Write([]byte(t.Name))
	return h.Sum64()
}

func (t *Name) children() iter.Seq[Type] { return emptySeq }

// Var is a formal type parameter occurring free in a pattern, like the A in
// Eq<A[]>. A type with no Vars anywhere is ground.
type Var struct {
	Name string
	Range
}

func (t *Var) String() string { return t.Name }

func (t *Var) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("Var"))
	_, _ = h.Write([]byte(t.Name))
	return h.Sum64()
}

func (t *Var) children() iter.Seq[Type] { return emptySeq }

// Applied is a generic type applied to arguments, like Array<int> or
// Tuple<int, int, int>.
type Applied struct {
	Base string
	Args []Type
	Range
}

func (t *Applied) String() string {
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return t.Base + "<" + strings.Join(args, ", ") + ">"
}

func (t *Applied) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("Applied"))
	_, _ = h.Write([]byte(t.Base))
	arr := []byte{}
	for _, arg := range t.Args {
		arr = binary.LittleEndian.AppendUint64(arr, arg.Hash())
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func (t *Applied) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, arg := range t.Args {
			if !yield(arg) {
				return
			}
		}
	}
}

// Ref is the reference qualifier over its element type. The engine treats it
// as an ordinary one-argument constructor: ref int and int never unify.
type Ref struct {
	Elem Type
	Range
}

func (t *Ref) String() string { return "ref " + t.Elem.String() }

func (t *Ref) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("Ref"))
	arr := binary.LittleEndian.AppendUint64(nil, t.Elem.Hash())
	_, _ = h.Write(arr)
	return h.Sum64()
}

func (t *Ref) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		yield(t.Elem)
	}
}

func emptySeq(func(Type) bool) {}

// Equal compares two type expressions structurally, via their hashes.
func Equal(this, that Type) bool {
	return this == that || this.Hash() == that.Hash()
}
