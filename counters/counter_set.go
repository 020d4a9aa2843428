package counters

import (
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/devopsext/proflog/common"
)

type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return common.SampleKindInt
	case KindFloat:
		return common.SampleKindFloat
	default:
		return "none"
	}
}

// slot holds one counter. count is only meaningful when tracked is set.
type slot struct {
	name    string
	kind    Kind
	tracked bool
	count   uint64
	u64     uint64
	f64     float64
}

// CounterSet is a fixed-shape array of counters addressed by indexes in the
// exclusive range (lower, upper). All methods are safe for concurrent use.
// An index outside the range is a programming error and panics with *IndexError.
type CounterSet struct {
	name  string
	lower int
	upper int

	mu    sync.Mutex
	slots []slot
}

func newCounterSet(name string, lower, upper int) *CounterSet {
	return &CounterSet{
		name:  name,
		lower: lower,
		upper: upper,
		slots: make([]slot, upper-lower-1),
	}
}

func (s *CounterSet) Name() string {
	return s.name
}

// Bounds returns the exclusive index bounds.
func (s *CounterSet) Bounds() (int, int) {
	return s.lower, s.upper
}

func (s *CounterSet) Len() int {
	return len(s.slots)
}

func (s *CounterSet) slot(idx int) *slot {
	if idx <= s.lower || idx >= s.upper {
		panic(&IndexError{Set: s.name, Index: idx, Lower: s.lower, Upper: s.upper})
	}
	return &s.slots[idx-s.lower-1]
}

func (sl *slot) touch() {
	if sl.tracked {
		sl.count++
	}
}

func (s *CounterSet) IncInt(idx int, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindInt {
		return
	}
	sl.u64 += amount
	sl.touch()
}

func (s *CounterSet) SetInt(idx int, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindInt {
		return
	}
	sl.u64 = amount
	sl.touch()
}

// Int returns the value of an int slot, or 0 for a slot of another kind.
func (s *CounterSet) Int(idx int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindInt {
		return 0
	}
	return sl.u64
}

func (s *CounterSet) IncFloat(idx int, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindFloat {
		return
	}
	sl.f64 += amount
	sl.touch()
}

func (s *CounterSet) SetFloat(idx int, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindFloat {
		return
	}
	sl.f64 = amount
	sl.touch()
}

// Float returns the value of a float slot, or 0 for a slot of another kind.
func (s *CounterSet) Float(idx int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	if sl.kind != KindFloat {
		return 0
	}
	return sl.f64
}

// Count returns the number of successful mutations of a tracked slot.
// The second result is false for untracked slots.
func (s *CounterSet) Count(idx int) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(idx)
	return sl.count, sl.tracked
}

// Kind returns the declared kind of the slot at idx.
func (s *CounterSet) Kind(idx int) Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.slot(idx).kind
}

// Serialize writes the version 1 fragment of this set: one entry per slot in
// index order, each followed by a comma, without enclosing braces.
func (s *CounterSet) Serialize(w io.Writer) error {
	buf, _ := s.appendJSON(nil, FormatV1, true)
	_, err := w.Write(buf)
	return err
}

// appendJSON appends the entries of the set to dst. first reports whether
// nothing has been written to the document yet; FormatV2 uses it to place
// separators. The updated value is returned.
func (s *CounterSet) appendJSON(dst []byte, format Format, first bool) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		sl := &s.slots[i]
		if format == FormatV2 && !first {
			dst = append(dst, ',')
		}
		first = false

		dst = appendName(dst, sl.name, format)
		dst = append(dst, " : "...)
		if sl.tracked {
			dst = append(dst, `{ "count" : `...)
			dst = strconv.AppendUint(dst, sl.count, 10)
			dst = append(dst, `, "sum" : `...)
			dst = sl.appendValue(dst, format)
			dst = append(dst, " }"...)
		} else {
			dst = sl.appendValue(dst, format)
		}
		if format == FormatV1 {
			dst = append(dst, ',')
		}
	}
	return dst, first
}

// appendValue renders the slot value. FormatV2 has no NaN or Inf and writes null instead.
func (sl *slot) appendValue(dst []byte, format Format) []byte {
	switch sl.kind {
	case KindInt:
		return strconv.AppendUint(dst, sl.u64, 10)
	case KindFloat:
		if format == FormatV2 && (math.IsNaN(sl.f64) || math.IsInf(sl.f64, 0)) {
			return append(dst, "null"...)
		}
		return strconv.AppendFloat(dst, sl.f64, 'g', -1, 64)
	default:
		panic("counter slot without kind")
	}
}

// Samples returns a copy of every slot taken under the set lock.
func (s *CounterSet) Samples() []common.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]common.Sample, 0, len(s.slots))
	for _, sl := range s.slots {
		samples = append(samples, common.Sample{
			Set:     s.name,
			Name:    sl.name,
			Kind:    sl.kind.String(),
			Tracked: sl.tracked,
			Count:   sl.count,
			Int:     sl.u64,
			Float:   sl.f64,
		})
	}
	return samples
}
