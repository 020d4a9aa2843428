package counters

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrAlreadyMember   = errors.New("counter set is already registered")
	ErrNotMember       = errors.New("counter set is not registered")
	ErrBuilderConsumed = errors.New("builder is already finalized")
	ErrEmptyPath       = errors.New("socket path is empty")
	ErrPathTooLong     = errors.New("socket path is too long")
	ErrSocketInUse     = errors.New("socket is in use by another listener")
	ErrExporterStuck   = errors.New("exporter did not stop in time")
)

// IndexError is raised (via panic) when an index falls outside the exclusive
// bounds of a counter set or builder.
type IndexError struct {
	Set   string
	Index int
	Lower int
	Upper int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("counter set %s: index %d is out of range (%d, %d)", e.Set, e.Index, e.Lower, e.Upper)
}

// IncompleteError is raised (via panic) when a builder is finalized before
// every index in its range has been declared.
type IncompleteError struct {
	Set     string
	Missing []int
}

func (e *IncompleteError) Error() string {
	missing := make([]string, 0, len(e.Missing))
	for _, idx := range e.Missing {
		missing = append(missing, strconv.Itoa(idx))
	}
	return fmt.Sprintf("counter set %s: indexes [%s] were never declared", e.Set, strings.Join(missing, " "))
}
