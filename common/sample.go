package common

const (
	SampleKindInt   = "int"
	SampleKindFloat = "float"
)

// Sample is a point-in-time copy of one counter slot.
type Sample struct {
	Set     string
	Name    string
	Kind    string
	Tracked bool
	Count   uint64
	Int     uint64
	Float   float64
}

// Value returns the slot value as a float regardless of its kind.
func (s Sample) Value() float64 {
	if s.Kind == SampleKindInt {
		return float64(s.Int)
	}
	return s.Float
}

type Source interface {
	Samples() []Sample
}

type Publisher interface {
	Publish(samples []Sample)
	Stop()
}
