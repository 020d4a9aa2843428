package counters

import "fmt"

// Builder declares the slots of a CounterSet. It is single use: Finalize
// hands the set over and any later call on the builder panics.
type Builder struct {
	set *CounterSet
}

// NewBuilder starts a set whose slots are addressed by the indexes strictly
// between lower and upper.
func NewBuilder(name string, lower, upper int) *Builder {
	if upper <= lower {
		panic(fmt.Sprintf("counter set %s: upper bound %d must be greater than lower bound %d", name, upper, lower))
	}
	return &Builder{set: newCounterSet(name, lower, upper)}
}

func (b *Builder) DeclareInt(idx int, name string) *Builder {
	return b.declare(idx, name, KindInt, false)
}

// DeclareAvgInt declares an int slot whose mutations are counted, so
// observers can derive an average from count and sum.
func (b *Builder) DeclareAvgInt(idx int, name string) *Builder {
	return b.declare(idx, name, KindInt, true)
}

func (b *Builder) DeclareFloat(idx int, name string) *Builder {
	return b.declare(idx, name, KindFloat, false)
}

// DeclareAvgFloat declares a float slot whose mutations are counted.
func (b *Builder) DeclareAvgFloat(idx int, name string) *Builder {
	return b.declare(idx, name, KindFloat, true)
}

func (b *Builder) declare(idx int, name string, kind Kind, tracked bool) *Builder {
	if b.set == nil {
		panic(ErrBuilderConsumed)
	}
	sl := b.set.slot(idx)
	sl.name = name
	sl.kind = kind
	sl.tracked = tracked
	// a redeclared slot starts over
	sl.count = 0
	sl.u64 = 0
	sl.f64 = 0
	return b
}

// Finalize checks that every index was declared and returns the set.
func (b *Builder) Finalize() *CounterSet {
	if b.set == nil {
		panic(ErrBuilderConsumed)
	}

	var missing []int
	for i, sl := range b.set.slots {
		if sl.kind == KindNone {
			missing = append(missing, b.set.lower+1+i)
		}
	}
	if len(missing) > 0 {
		panic(&IncompleteError{Set: b.set.name, Missing: missing})
	}

	set := b.set
	b.set = nil
	return set
}
