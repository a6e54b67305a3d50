package concepts

import (
	"github.com/benbjohnson/immutable"
)

// Registry is the phase-scoped index of classified declarations: capabilities
// by name, witnesses by the capability they implement. It is built once by
// Classify and immutable afterwards, so concurrent resolution requests may
// read it without locking.
type Registry struct {
	capabilities *immutable.Map[string, *Capability]
	witnesses    *immutable.Map[string, *Witness]
	byCapability *immutable.Map[string, []*Witness]
}

func emptyRegistry() *Registry {
	return &Registry{
		capabilities: immutable.NewMap[string, *Capability](nil),
		witnesses:    immutable.NewMap[string, *Witness](nil),
		byCapability: immutable.NewMap[string, []*Witness](nil),
	}
}

// Capability looks a capability up by name.
func (r *Registry) Capability(name string) (*Capability, bool) {
	return r.capabilities.Get(name)
}

// Witness looks a witness up by its own name.
func (r *Registry) Witness(name string) (*Witness, bool) {
	return r.witnesses.Get(name)
}

// WitnessesFor returns all witnesses implementing the named capability, in
// declaration order. The returned slice is shared: callers must not mutate it.
func (r *Registry) WitnessesFor(capability string) []*Witness {
	ws, _ := r.byCapability.Get(capability)
	return ws
}

// Len reports the number of classified witnesses.
func (r *Registry) Len() int {
	return r.witnesses.Len()
}

type registryBuilder struct {
	capabilities *immutable.MapBuilder[string, *Capability]
	witnesses    *immutable.MapBuilder[string, *Witness]
	byCapability *immutable.MapBuilder[string, []*Witness]
}

func newRegistryBuilder() *registryBuilder {
	return &registryBuilder{
		capabilities: immutable.NewMapBuilder[string, *Capability](nil),
		witnesses:    immutable.NewMapBuilder[string, *Witness](nil),
		byCapability: immutable.NewMapBuilder[string, []*Witness](nil),
	}
}

func (b *registryBuilder) addCapability(c *Capability) {
	b.capabilities.Set(c.Name, c)
}

func (b *registryBuilder) addWitness(w *Witness) {
	b.witnesses.Set(w.Name, w)
	existing, _ := b.byCapability.Get(w.Implements.Capability)
	b.byCapability.Set(w.Implements.Capability, append(existing, w))
}

func (b *registryBuilder) build() *Registry {
	return &Registry{
		capabilities: b.capabilities.Map(),
		witnesses:    b.witnesses.Map(),
		byCapability: b.byCapability.Map(),
	}
}
